// Package storetest runs an in-memory backend speaking the same json-server
// conventions as the real one, for tests.
package storetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/dlclark/regexp2"

	"github.com/vaadforum/vaad/internal/forum"
)

var collections = []string{"forum", "thread", "posts", "user"}

// Seed is the initial content of the backend.
type Seed struct {
	Forums  []forum.Forum
	Threads []forum.Thread
	Posts   []forum.Post
	Users   []forum.User
}

type record = map[string]any

// Server is a running fake backend.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	data     map[string][]record
	failWith int
	requests int
}

// NewServer starts a fake backend holding seed. It is closed when t finishes.
func NewServer(t testing.TB, seed Seed) *Server {
	t.Helper()
	s := &Server{data: make(map[string][]record)}
	for _, c := range collections {
		s.data[c] = nil
	}
	s.load(t, "forum", seed.Forums)
	s.load(t, "thread", seed.Threads)
	s.load(t, "posts", seed.Posts)
	s.load(t, "user", seed.Users)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{coll}", s.handleList)
	mux.HandleFunc("POST /{coll}", s.handleCreate)
	mux.HandleFunc("GET /{coll}/{id}", s.handleGet)
	mux.HandleFunc("PATCH /{coll}/{id}", s.handlePatch)

	s.Server = httptest.NewServer(s.middleware(mux))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) load(t testing.TB, coll string, items any) {
	t.Helper()
	raw, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("encode %s seed: %v", coll, err)
	}
	var recs []record
	if err := json.Unmarshal(raw, &recs); err != nil {
		t.Fatalf("decode %s seed: %v", coll, err)
	}
	s.data[coll] = recs
}

// FailWith makes every later request answer with status code. Zero restores
// normal service.
func (s *Server) FailWith(code int) {
	s.mu.Lock()
	s.failWith = code
	s.mu.Unlock()
}

// Requests reports how many requests the server has handled.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Records returns a copy of a collection decoded into out, which must be a
// pointer to a slice.
func (s *Server) Records(t testing.TB, coll string, out any) {
	t.Helper()
	s.mu.Lock()
	raw, err := json.Marshal(s.data[coll])
	s.mu.Unlock()
	if err != nil {
		t.Fatalf("encode %s: %v", coll, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode %s: %v", coll, err)
	}
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		code := s.failWith
		s.mu.Unlock()
		if code != 0 {
			http.Error(w, http.StatusText(code), code)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) collection(w http.ResponseWriter, r *http.Request) (string, bool) {
	coll := r.PathValue("coll")
	if _, ok := s.data[coll]; !ok {
		http.NotFound(w, r)
		return "", false
	}
	return coll, true
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collection(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	var out []record
	for _, rec := range s.data[coll] {
		if matches(rec, query) {
			out = append(out, rec)
		}
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(len(out)))
	if page, err := strconv.Atoi(query.Get("_page")); err == nil && page > 0 {
		limit, err := strconv.Atoi(query.Get("_limit"))
		if err != nil || limit <= 0 {
			limit = 10
		}
		start := min((page-1)*limit, len(out))
		end := min(start+limit, len(out))
		out = out[start:end]
	}
	if out == nil {
		out = []record{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collection(w, r)
	if !ok {
		return
	}
	idx := s.find(coll, r.PathValue("id"))
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, record{})
		return
	}
	writeJSON(w, http.StatusOK, s.data[coll][idx])
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collection(w, r)
	if !ok {
		return
	}
	var rec record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, ok := rec["id"]; !ok {
		rec["id"] = float64(s.nextID(coll))
	}
	s.data[coll] = append(s.data[coll], rec)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collection(w, r)
	if !ok {
		return
	}
	idx := s.find(coll, r.PathValue("id"))
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, record{})
		return
	}
	var patch record
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec := s.data[coll][idx]
	for k, v := range patch {
		if k == "id" {
			continue
		}
		rec[k] = v
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) find(coll, id string) int {
	for i, rec := range s.data[coll] {
		if fmt.Sprint(rec["id"]) == id {
			return i
		}
	}
	return -1
}

func (s *Server) nextID(coll string) int {
	highest := 0
	for _, rec := range s.data[coll] {
		if n, ok := rec["id"].(float64); ok && int(n) > highest {
			highest = int(n)
		}
	}
	return highest + 1
}

// matches applies json-server filters: field=value equality (any of the
// repeated values), field_like regular expressions, and q full text search.
func matches(rec record, query map[string][]string) bool {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		values := query[key]
		switch {
		case strings.HasPrefix(key, "_"):
			continue
		case key == "q":
			if !containsText(rec, strings.ToLower(values[0])) {
				return false
			}
		case strings.HasSuffix(key, "_like"):
			field := fmt.Sprint(rec[strings.TrimSuffix(key, "_like")])
			if !anyLike(field, values) {
				return false
			}
		default:
			v, ok := rec[key]
			if !ok || v == nil {
				return false
			}
			field := fmt.Sprint(v)
			found := false
			for _, want := range values {
				if field == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func anyLike(field string, patterns []string) bool {
	for _, p := range patterns {
		re, err := regexp2.Compile(p, regexp2.IgnoreCase)
		if err != nil {
			continue
		}
		if ok, _ := re.MatchString(field); ok {
			return true
		}
	}
	return false
}

func containsText(v any, needle string) bool {
	switch val := v.(type) {
	case string:
		return strings.Contains(strings.ToLower(val), needle)
	case map[string]any:
		for _, item := range val {
			if containsText(item, needle) {
				return true
			}
		}
	case []any:
		for _, item := range val {
			if containsText(item, needle) {
				return true
			}
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
