// Package store talks to the forum's REST backend, a json-server style
// service exposing the collections forum, thread, posts and user.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: backend returned %d", e.Method, e.URL, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	// PageSize is the number of forums per page. Non-positive uses 10.
	PageSize int
}

// Client is a typed wrapper around the backend collections. It is safe for
// concurrent use.
type Client struct {
	base     *url.URL
	http     *http.Client
	logger   *slog.Logger
	pageSize int
}

// New returns a client for the backend rooted at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("backend URL must be provided")
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend URL must be http or https: %s", baseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}

	return &Client{
		base:     base,
		http:     httpClient,
		logger:   logger.With("component", "store"),
		pageSize: pageSize,
	}, nil
}

// PageSize reports the number of forums per page.
func (c *Client) PageSize() int {
	return c.pageSize
}

func (c *Client) endpoint(parts ...string) string {
	u := *c.base
	for _, p := range parts {
		u.Path += "/" + url.PathEscape(p)
	}
	return u.String()
}

func (c *Client) get(ctx context.Context, out any, query url.Values, parts ...string) (http.Header, error) {
	target := c.endpoint(parts...)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, target, nil, out)
}

func (c *Client) send(ctx context.Context, method string, body, out any, parts ...string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s body: %w", method, err)
	}
	_, err = c.do(ctx, method, c.endpoint(parts...), payload, out)
	return err
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, out any) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	c.logger.DebugContext(ctx, "backend request",
		slog.String("method", method),
		slog.String("url", target),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s %s: %w", method, target, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Method: method, URL: target, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", method, target, err)
		}
	}
	return resp.Header, nil
}

func idParam(id int) string {
	return strconv.Itoa(id)
}

// likeQuery builds repeated id_like filters. json-server treats them as
// patterns, so callers must filter the response to exact ids.
func likeQuery(ids []int) url.Values {
	q := url.Values{}
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		q.Add("id_like", "^"+idParam(id)+"$")
	}
	return q
}

func idSet(ids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
