package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"chronicle/internal/api"
	"chronicle/internal/auth"
	"chronicle/internal/blobstore"
	"chronicle/internal/ledger"
	"chronicle/internal/metrics"
	"chronicle/internal/models"
)

const testAdminToken = "test-admin-token-0123456789"

type testEnv struct {
	ledger *ledger.Store
	blobs  *blobstore.LocalStore
	srv    *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	st, err := ledger.Open(context.Background(), ledger.Options{Path: filepath.Join(dir, "data.db")})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	blobs, err := blobstore.NewLocalStore(filepath.Join(dir, "files"))
	if err != nil {
		t.Fatalf("open blobs: %v", err)
	}
	hash, err := auth.HashToken(testAdminToken)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New("127.0.0.1:0", st, blobs, logger, Options{AdminTokenHash: hash, Metrics: metrics.New()})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{ledger: st, blobs: blobs, srv: srv}
}

func (e *testEnv) append(t *testing.T, kindName string, row models.NewRow) models.Row {
	t.Helper()
	kind, err := models.LookupKind(kindName)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	out, err := e.ledger.Append(context.Background(), kind, row)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return out
}

func (e *testEnv) do(t *testing.T, method, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func expectError(t *testing.T, resp *http.Response, status, errCode int) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("expected status %d, got %d", status, resp.StatusCode)
	}
	errResp := decode[api.ErrorResponse](t, resp)
	if errResp.ErrorCode != errCode {
		t.Fatalf("expected error_code %d, got %d (%s)", errCode, errResp.ErrorCode, errResp.Error)
	}
}

func TestListenAddrRemoteGuard(t *testing.T) {
	t.Run("allows loopback", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "")
		addr, err := ListenAddr("http://127.0.0.1:7340")
		if err != nil {
			t.Fatalf("expected loopback to be allowed, got error: %v", err)
		}
		if addr != "127.0.0.1:7340" {
			t.Fatalf("unexpected addr: %s", addr)
		}
	})

	t.Run("blocks non-loopback by default", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "")
		if _, err := ListenAddr("http://0.0.0.0:7340"); err == nil {
			t.Fatal("expected error for non-loopback listen host")
		}
	})

	t.Run("allows non-loopback when explicitly enabled", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "true")
		addr, err := ListenAddr("http://0.0.0.0:7340")
		if err != nil {
			t.Fatalf("expected allow-remote to permit host, got error: %v", err)
		}
		if addr != "0.0.0.0:7340" {
			t.Fatalf("unexpected addr: %s", addr)
		}
	})
}

func TestKindsAndRows(t *testing.T) {
	env := newTestEnv(t)
	first := env.append(t, "news", models.NewRow{Key: "42", Date: 1, Payload: `{"title":"A"}`})
	second := env.append(t, "news", models.NewRow{Key: "42", Date: 2, Payload: `{"title":"B"}`})
	third := env.append(t, "news", models.NewRow{Key: "43", Date: 3, Payload: `{"title":"C"}`})

	kinds := decode[api.KindsResponse](t, env.do(t, http.MethodGet, "/v1/kinds", ""))
	var newsRows int64 = -1
	for _, k := range kinds.Kinds {
		if k.Name == "news" {
			newsRows = k.Rows
		}
	}
	if newsRows != 3 || len(kinds.Kinds) != len(models.Kinds()) {
		t.Fatalf("unexpected kinds response %+v", kinds)
	}

	latest := decode[api.RowsResponse](t, env.do(t, http.MethodGet, "/v1/kinds/news/rows?limit=2", ""))
	if len(latest.Rows) != 2 || latest.Rows[0].ID != third.ID || latest.Rows[1].ID != second.ID {
		t.Fatalf("unexpected latest rows %+v", latest.Rows)
	}

	all := decode[api.RowsResponse](t, env.do(t, http.MethodGet, "/v1/kinds/news/rows", ""))
	if len(all.Rows) != 3 || all.Rows[2].ID != first.ID {
		t.Fatalf("unexpected all rows %+v", all.Rows)
	}

	history := decode[api.RowsResponse](t, env.do(t, http.MethodGet, "/v1/kinds/news/history?key=42", ""))
	if len(history.Rows) != 2 || history.Rows[0].Payload != `{"title":"B"}` {
		t.Fatalf("unexpected history %+v", history.Rows)
	}

	row := decode[models.Row](t, env.do(t, http.MethodGet, "/v1/kinds/news/rows/"+strconv.FormatInt(first.ID, 10), ""))
	if row.ID != first.ID || row.Payload != `{"title":"A"}` {
		t.Fatalf("unexpected row %+v", row)
	}

	empty := decode[api.RowsResponse](t, env.do(t, http.MethodGet, "/v1/kinds/vacancy/rows", ""))
	if empty.Rows == nil || len(empty.Rows) != 0 {
		t.Fatalf("expected empty rows array, got %+v", empty.Rows)
	}
}

func TestReadErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		path    string
		status  int
		errCode int
	}{
		{name: "unknown kind", path: "/v1/kinds/podcasts/rows", status: http.StatusNotFound, errCode: ErrCodeUnknownKind},
		{name: "bad limit", path: "/v1/kinds/news/rows?limit=abc", status: http.StatusBadRequest, errCode: ErrCodeInvalidQuery},
		{name: "bad id", path: "/v1/kinds/news/rows/x", status: http.StatusBadRequest, errCode: ErrCodeInvalidID},
		{name: "missing row", path: "/v1/kinds/news/rows/999", status: http.StatusNotFound, errCode: ErrCodeRowNotFound},
		{name: "missing key", path: "/v1/kinds/news/history", status: http.StatusBadRequest, errCode: ErrCodeMissingRequired},
		{name: "non-integer key", path: "/v1/kinds/news/history?key=abc", status: http.StatusBadRequest, errCode: ErrCodeInvalidKey},
		{name: "missing blob", path: "/v1/blobs/" + blobstore.NewID(), status: http.StatusNotFound, errCode: ErrCodeBlobNotFound},
		{name: "foreign blob id", path: "/v1/blobs/not-an-id/meta", status: http.StatusNotFound, errCode: ErrCodeBlobNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, env.do(t, http.MethodGet, tt.path, ""), tt.status, tt.errCode)
		})
	}
}

func TestSingletonHistoryWithoutKey(t *testing.T) {
	env := newTestEnv(t)
	env.append(t, "hh_dump", models.NewRow{Date: 1, Payload: "[]"})

	history := decode[api.RowsResponse](t, env.do(t, http.MethodGet, "/v1/kinds/hh_dump/history", ""))
	if len(history.Rows) != 1 {
		t.Fatalf("expected one dump row, got %+v", history.Rows)
	}
}

func TestBlobReads(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.blobs.Write(context.Background(), "rules.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("write blob: %v", err)
	}

	resp := env.do(t, http.MethodGet, "/v1/blobs/"+id, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "%PDF-1.4" {
		t.Fatalf("unexpected body %q", body)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("expected application/pdf, got %q", got)
	}
	if got := resp.Header.Get("Content-Disposition"); !strings.Contains(got, "rules.pdf") {
		t.Fatalf("expected filename in disposition, got %q", got)
	}

	meta := decode[api.BlobMetaResponse](t, env.do(t, http.MethodGet, "/v1/blobs/"+id+"/meta", ""))
	if meta.ID != id || meta.Name != "rules.pdf" {
		t.Fatalf("unexpected meta %+v", meta)
	}
}

func TestAdminRemoveBlob(t *testing.T) {
	env := newTestEnv(t)
	id, err := env.blobs.Write(context.Background(), "a.txt", []byte("a"))
	if err != nil {
		t.Fatalf("write blob: %v", err)
	}

	expectError(t, env.do(t, http.MethodDelete, "/v1/admin/blobs/"+id, ""), http.StatusUnauthorized, ErrCodeUnauthorized)
	expectError(t, env.do(t, http.MethodDelete, "/v1/admin/blobs/"+id, "wrong-token-wrong-token"), http.StatusUnauthorized, ErrCodeUnauthorized)

	resp := env.do(t, http.MethodDelete, "/v1/admin/blobs/"+id, testAdminToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if removed := decode[api.RemoveBlobResponse](t, resp); !removed.Removed {
		t.Fatalf("unexpected remove response %+v", removed)
	}

	// Removal is not idempotent.
	expectError(t, env.do(t, http.MethodDelete, "/v1/admin/blobs/"+id, testAdminToken), http.StatusNotFound, ErrCodeBlobNotFound)
	expectError(t, env.do(t, http.MethodGet, "/v1/blobs/"+id, ""), http.StatusNotFound, ErrCodeBlobNotFound)
}

func TestAdminDisabledWithoutHash(t *testing.T) {
	s := New("127.0.0.1:0", nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/v1/admin/blobs/"+blobstore.NewID(), nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	if resp := env.do(t, http.MethodGet, "/health", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", resp.StatusCode)
	}
	resp := env.do(t, http.MethodGet, "/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("expected runtime metrics in exposition")
	}
}
