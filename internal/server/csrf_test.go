package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSameOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		host    string
		origin  string
		referer string
		want    bool
	}{
		{name: "matching origin", host: "forum.test", origin: "https://forum.test", want: true},
		{name: "origin port is ignored", host: "forum.test:8080", origin: "http://forum.test:9090", want: true},
		{name: "host case is ignored", host: "Forum.Test", origin: "http://forum.test", want: true},
		{name: "loopback spellings match", host: "127.0.0.1:8080", origin: "http://localhost:8080", want: true},
		{name: "ipv6 loopback", host: "[::1]:8080", origin: "http://localhost:8080", want: true},
		{name: "referer used without origin", host: "forum.test", referer: "http://forum.test/thread/1", want: true},
		{name: "null origin falls back to referer", host: "forum.test", origin: "null", referer: "http://forum.test/", want: true},
		{name: "foreign origin", host: "forum.test", origin: "http://evil.test", want: false},
		{name: "foreign referer", host: "forum.test", referer: "http://evil.test/forum.test", want: false},
		{name: "neither header", host: "forum.test", want: false},
		{name: "origin without host", host: "forum.test", origin: "forum.test", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/api/render", nil)
			req.Host = tc.host
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.referer != "" {
				req.Header.Set("Referer", tc.referer)
			}
			if got := sameOrigin(req); got != tc.want {
				t.Fatalf("sameOrigin() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSameOriginMiddleware(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := sameOriginMiddleware(ok)

	tests := []struct {
		name     string
		method   string
		path     string
		want     int
		wantJSON bool
	}{
		{name: "safe method passes", method: http.MethodGet, path: "/thread/1", want: http.StatusTeapot},
		{name: "head passes", method: http.MethodHead, path: "/", want: http.StatusTeapot},
		{name: "static bypass", method: http.MethodPost, path: "/static/css/forum.css", want: http.StatusTeapot},
		{name: "health bypass", method: http.MethodPost, path: "/healthz", want: http.StatusTeapot},
		{name: "api mutation rejected as json", method: http.MethodPost, path: "/api/login", want: http.StatusForbidden, wantJSON: true},
		{name: "patch rejected", method: http.MethodPatch, path: "/api/profile", want: http.StatusForbidden, wantJSON: true},
		{name: "page mutation rejected as text", method: http.MethodPost, path: "/thread/1", want: http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tc.method, tc.path, nil)
			req.Header.Set("Origin", "http://evil.test")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, rec.Code)
			}
			isJSON := strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json")
			if rec.Code == http.StatusForbidden && isJSON != tc.wantJSON {
				t.Fatalf("json response = %v, want %v (body %q)", isJSON, tc.wantJSON, rec.Body.String())
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	handler := recoveryMiddleware(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
