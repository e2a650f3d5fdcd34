package producer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chronicle/internal/models"
)

const (
	defaultFeedTimeout = 60 * time.Second
	defaultPageParam   = "page"
	maxErrorBodyBytes  = 512
)

// FeedConfig describes a JSON feed endpoint.
type FeedConfig struct {
	Name      string
	URL       string
	PageParam string
	Headers   map[string]string
	Username  string
	Password  string
	// Binary feeds carry raw bytes via "data" or "content_url" instead of JSON payloads.
	Binary bool
}

// HTTPFeed fetches normalized items from a JSON endpoint. It serves both as a batch
// source (one request) and as a paged source (page number in the query string).
type HTTPFeed struct {
	cfg  FeedConfig
	http *http.Client
}

// feedItem is the wire shape of one feed record.
type feedItem struct {
	Key        string            `json:"key"`
	Name       string            `json:"name"`
	Payload    json.RawMessage   `json:"payload"`
	Data       string            `json:"data"`
	ContentURL string            `json:"content_url"`
	Attrs      map[string]string `json:"attrs"`
}

// NewHTTPFeed creates a feed producer. A nil client uses a client with a fixed timeout.
func NewHTTPFeed(cfg FeedConfig, client *http.Client) (*HTTPFeed, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("feed %s: url is required", cfg.Name)
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("feed %s: invalid url: %w", cfg.Name, err)
	}
	if cfg.PageParam == "" {
		cfg.PageParam = defaultPageParam
	}
	if client == nil {
		client = &http.Client{Timeout: defaultFeedTimeout}
	}
	return &HTTPFeed{cfg: cfg, http: client}, nil
}

// Fetch requests the feed once.
func (f *HTTPFeed) Fetch(ctx context.Context) ([]models.Item, error) {
	return f.fetch(ctx, f.cfg.URL)
}

// FetchPage requests one page of the feed.
func (f *HTTPFeed) FetchPage(ctx context.Context, page int) ([]models.Item, error) {
	u, err := url.Parse(f.cfg.URL)
	if err != nil {
		return nil, f.sourceError(err)
	}
	q := u.Query()
	q.Set(f.cfg.PageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return f.fetch(ctx, u.String())
}

func (f *HTTPFeed) fetch(ctx context.Context, endpoint string) ([]models.Item, error) {
	body, err := f.get(ctx, endpoint, true)
	if err != nil {
		return nil, err
	}

	var records []feedItem
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, f.sourceError(fmt.Errorf("decode feed: %w", err))
	}

	items := make([]models.Item, 0, len(records))
	for i, rec := range records {
		item, err := f.normalize(ctx, rec)
		var srcErr *models.SourceError
		if errors.As(err, &srcErr) {
			return nil, err
		}
		if err != nil {
			return nil, f.sourceError(fmt.Errorf("item %d: %w", i, err))
		}
		items = append(items, item)
	}
	return items, nil
}

func (f *HTTPFeed) normalize(ctx context.Context, rec feedItem) (models.Item, error) {
	item := models.Item{Key: rec.Key, Name: rec.Name, Attrs: rec.Attrs}

	if !f.cfg.Binary {
		// The payload is archived exactly as the upstream serialized it.
		if len(rec.Payload) > 0 && string(rec.Payload) != "null" {
			item.Payload = []byte(rec.Payload)
		}
		return item, nil
	}

	switch {
	case rec.Data != "":
		data, err := base64.StdEncoding.DecodeString(rec.Data)
		if err != nil {
			return item, fmt.Errorf("decode data: %w", err)
		}
		item.Payload = data
	case rec.ContentURL != "":
		contentURL, trusted, err := f.resolveContentURL(rec.ContentURL)
		if err != nil {
			return item, err
		}
		data, err := f.get(ctx, contentURL, trusted)
		if err != nil {
			return item, err
		}
		item.Payload = data
	default:
		return item, fmt.Errorf("binary item %q has neither data nor content_url", rec.Key)
	}
	return item, nil
}

// resolveContentURL resolves raw against the feed URL and reports whether it shares the
// feed's scheme and host. Only such URLs receive the feed's credentials and headers.
func (f *HTTPFeed) resolveContentURL(raw string) (string, bool, error) {
	base, err := url.Parse(f.cfg.URL)
	if err != nil {
		return "", false, fmt.Errorf("invalid feed url: %w", err)
	}
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false, fmt.Errorf("invalid content_url: %w", err)
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false, fmt.Errorf("unsupported content_url scheme %q", u.Scheme)
	}
	trusted := strings.EqualFold(u.Scheme, base.Scheme) && strings.EqualFold(u.Host, base.Host)
	return u.String(), trusted, nil
}

func (f *HTTPFeed) get(ctx context.Context, endpoint string, withCredentials bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, f.sourceError(err)
	}
	if withCredentials {
		req.Header.Set("Accept", "application/json")
		for key, value := range f.cfg.Headers {
			req.Header.Set(key, value)
		}
		if f.cfg.Username != "" || f.cfg.Password != "" {
			req.SetBasicAuth(f.cfg.Username, f.cfg.Password)
		}
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, f.sourceError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, f.sourceError(fmt.Errorf("GET %s: %s: %s", endpoint, resp.Status, strings.TrimSpace(string(snippet))))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, f.sourceError(err)
	}
	return body, nil
}

func (f *HTTPFeed) sourceError(err error) error {
	return &models.SourceError{Source: f.cfg.Name, Err: err}
}
