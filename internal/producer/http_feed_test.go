package producer

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"chronicle/internal/models"
)

func TestHTTPFeedKeepsPayloadVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "abc" {
			http.Error(w, "missing header", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"key":"42","payload":{"b":2, "a":1},"attrs":{"url":"https://example.org/42"}}]`))
	}))
	defer srv.Close()

	feed, err := NewHTTPFeed(FeedConfig{Name: "news", URL: srv.URL, Headers: map[string]string{"X-Token": "abc"}}, srv.Client())
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}
	items, err := feed.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	want := []models.Item{{
		Key:     "42",
		Payload: []byte(`{"b":2, "a":1}`),
		Attrs:   map[string]string{"url": "https://example.org/42"},
	}}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestHTTPFeedPagesAndBinary(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /feed", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("p") {
		case "1":
			data := base64.StdEncoding.EncodeToString([]byte("%PDF-inline"))
			_, _ = w.Write([]byte(`[{"key":"https://example.org/a.pdf","name":"a.pdf","data":"` + data + `"},` +
				`{"key":"https://example.org/b.pdf","name":"b.pdf","content_url":"` + "http://" + r.Host + `/files/b.pdf"}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	})
	mux.HandleFunc("GET /files/b.pdf", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("%PDF-remote"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	feed, err := NewHTTPFeed(FeedConfig{Name: "ddg", URL: srv.URL + "/feed", PageParam: "p", Binary: true}, srv.Client())
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}

	items, err := feed.FetchPage(context.Background(), 1)
	if err != nil {
		t.Fatalf("fetch page: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if string(items[0].Payload) != "%PDF-inline" || items[0].Name != "a.pdf" {
		t.Fatalf("unexpected inline item %+v", items[0])
	}
	if string(items[1].Payload) != "%PDF-remote" {
		t.Fatalf("unexpected downloaded payload %q", items[1].Payload)
	}

	empty, err := feed.FetchPage(context.Background(), 2)
	if err != nil {
		t.Fatalf("fetch page 2: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %d items", len(empty))
	}
}

func TestHTTPFeedErrorsAreSourceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/down":
			http.Error(w, "upstream down", http.StatusBadGateway)
		case "/garbage":
			_, _ = w.Write([]byte(`<html>`))
		default:
			_, _ = w.Write([]byte(`[{"key":"x"}]`))
		}
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		path   string
		binary bool
	}{
		{name: "status", path: "/down"},
		{name: "decode", path: "/garbage"},
		{name: "binary without data", path: "/ok", binary: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed, err := NewHTTPFeed(FeedConfig{Name: "src", URL: srv.URL + tt.path, Binary: tt.binary}, srv.Client())
			if err != nil {
				t.Fatalf("new feed: %v", err)
			}
			_, err = feed.Fetch(context.Background())
			var srcErr *models.SourceError
			if !errors.As(err, &srcErr) {
				t.Fatalf("expected SourceError, got %v", err)
			}
			if srcErr.Source != "src" {
				t.Fatalf("expected source name src, got %q", srcErr.Source)
			}
		})
	}
}

func TestNewHTTPFeedRequiresURL(t *testing.T) {
	if _, err := NewHTTPFeed(FeedConfig{Name: "x"}, nil); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestHTTPFeedCredentialsStayOnFeedHost(t *testing.T) {
	type seen struct{ auth, apiKey string }
	var other, own seen

	otherSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		other = seen{auth: r.Header.Get("Authorization"), apiKey: r.Header.Get("X-Api-Key")}
		_, _ = w.Write([]byte("%PDF-elsewhere"))
	}))
	defer otherSrv.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /feed", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"key":"a","name":"a.pdf","content_url":"` + otherSrv.URL + `/a.pdf"},` +
			`{"key":"b","name":"b.pdf","content_url":"/files/b.pdf"}]`))
	})
	mux.HandleFunc("GET /files/b.pdf", func(w http.ResponseWriter, r *http.Request) {
		own = seen{auth: r.Header.Get("Authorization"), apiKey: r.Header.Get("X-Api-Key")}
		_, _ = w.Write([]byte("%PDF-own"))
	})
	feedSrv := httptest.NewServer(mux)
	defer feedSrv.Close()

	feed, err := NewHTTPFeed(FeedConfig{
		Name:     "library",
		URL:      feedSrv.URL + "/feed",
		Headers:  map[string]string{"X-Api-Key": "k"},
		Username: "lib-user",
		Password: "s3cret",
		Binary:   true,
	}, nil)
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}

	items, err := feed.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 || string(items[0].Payload) != "%PDF-elsewhere" || string(items[1].Payload) != "%PDF-own" {
		t.Fatalf("unexpected items %+v", items)
	}
	if other.auth != "" || other.apiKey != "" {
		t.Fatalf("foreign host received credentials: %+v", other)
	}
	if own.auth == "" || own.apiKey != "k" {
		t.Fatalf("feed host should receive credentials, got %+v", own)
	}
}

func TestHTTPFeedRejectsNonHTTPContentURL(t *testing.T) {
	feed, err := NewHTTPFeed(FeedConfig{Name: "docs", URL: "https://example.org/feed", Binary: true}, nil)
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}
	if _, _, err := feed.resolveContentURL("file:///etc/passwd"); err == nil {
		t.Fatal("expected error for file scheme")
	}
	u, trusted, err := feed.resolveContentURL("https://EXAMPLE.org/a.pdf")
	if err != nil || !trusted || u != "https://EXAMPLE.org/a.pdf" {
		t.Fatalf("expected same-host url to be trusted, got %q %v %v", u, trusted, err)
	}
}
