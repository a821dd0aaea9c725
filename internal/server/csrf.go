package server

import (
	"net/http"
	"net/url"
	"strings"
)

// sameOriginMiddleware rejects state-changing requests whose Origin (or
// Referer, when Origin is absent) names a different host than the request.
// The session cookie is SameSite=Lax, so this closes the gap for POST and
// PATCH forms posted from elsewhere.
func sameOriginMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		if r.URL.Path == "/healthz" || strings.HasPrefix(r.URL.Path, "/static/") {
			next.ServeHTTP(w, r)
			return
		}
		if !sameOrigin(r) {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				respondJSON(w, http.StatusForbidden, errorResponse("cross-origin request rejected"))
				return
			}
			http.Error(w, "Forbidden: cross-origin request rejected", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sameOrigin(r *http.Request) bool {
	source := r.Header.Get("Origin")
	if source == "" || source == "null" {
		source = r.Header.Get("Referer")
	}
	if source == "" {
		return false
	}
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return false
	}

	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	return canonicalHost(u.Host) == canonicalHost(host)
}

// canonicalHost drops the port and folds loopback spellings together.
func canonicalHost(hostport string) string {
	host := hostport
	if i := strings.LastIndex(host, ":"); i != -1 && !strings.HasSuffix(host, "]") {
		host = host[:i]
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return "localhost"
	}
	return host
}
