package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "CHRONICLE_HTTP_TIMEOUT"
	adminTokenEnvKey   = "CHRONICLE_ADMIN_TOKEN"
)

// Client is a simple HTTP client for the chronicle read API.
type Client struct {
	baseURL    string
	http       *http.Client
	adminToken string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: httpTimeoutFromEnv()},
		adminToken: strings.TrimSpace(os.Getenv(adminTokenEnvKey)),
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Kinds lists archived kinds with row counts.
func (c *Client) Kinds(ctx context.Context) (KindsResponse, error) {
	var resp KindsResponse
	err := c.do(ctx, http.MethodGet, "/v1/kinds", nil, &resp)
	return resp, err
}

// LatestRows returns the n newest rows of kind; n <= 0 returns all rows.
func (c *Client) LatestRows(ctx context.Context, kind string, n int) (RowsResponse, error) {
	var query url.Values
	if n > 0 {
		query = url.Values{"limit": {strconv.Itoa(n)}}
	}
	var resp RowsResponse
	err := c.do(ctx, http.MethodGet, "/v1/kinds/"+url.PathEscape(kind)+"/rows", query, &resp)
	return resp, err
}

// History returns every row recorded for key, newest first.
func (c *Client) History(ctx context.Context, kind, key string) (RowsResponse, error) {
	var resp RowsResponse
	err := c.do(ctx, http.MethodGet, "/v1/kinds/"+url.PathEscape(kind)+"/history", url.Values{"key": {key}}, &resp)
	return resp, err
}

// BlobMeta returns the stored metadata of a blob.
func (c *Client) BlobMeta(ctx context.Context, id string) (BlobMetaResponse, error) {
	var resp BlobMetaResponse
	err := c.do(ctx, http.MethodGet, "/v1/blobs/"+url.PathEscape(id)+"/meta", nil, &resp)
	return resp, err
}

// BlobData streams the stored bytes of a blob into w.
func (c *Client) BlobData(ctx context.Context, id string, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, http.MethodGet, "/v1/blobs/"+url.PathEscape(id), nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(w, resp.Body)
}

// RemoveBlob deletes a blob through the admin endpoint.
func (c *Client) RemoveBlob(ctx context.Context, id string) (RemoveBlobResponse, error) {
	var resp RemoveBlobResponse
	err := c.do(ctx, http.MethodDelete, "/v1/admin/blobs/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	resp, err := c.send(ctx, method, path, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values) (*http.Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.setAdminHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return &APIError{
			Status:    resp.StatusCode,
			Code:      errResp.Code,
			ErrorCode: errResp.ErrorCode,
			Message:   errResp.Error,
		}
	}
	return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("api error: %s", resp.Status)}
}

func (c *Client) setAdminHeader(req *http.Request) {
	if c.adminToken == "" || req == nil {
		return
	}
	if req.Method != http.MethodDelete {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.adminToken)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultHTTPTimeout
}
