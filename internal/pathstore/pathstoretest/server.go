// Package pathstoretest provides an in-memory pathstore API for tests.
package pathstoretest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Server serves the subset of the pathstore API that Client uses.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	nodes    map[string]json.RawMessage
	failCode int
	apiKey   string
}

// NewServer starts a server. Requests must carry apiKey as a bearer token
// when apiKey is not empty.
func NewServer(apiKey string) *Server {
	s := &Server{nodes: make(map[string]json.RawMessage), apiKey: apiKey}
	r := chi.NewRouter()
	r.Use(s.check)
	r.Put("/kv/*", s.handlePut)
	r.Get("/kv/*", s.handleGet)
	r.Delete("/kv/*", s.handleDelete)
	s.Server = httptest.NewServer(r)
	return s
}

// Fail makes every following request answer with code. Zero restores
// normal service.
func (s *Server) Fail(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCode = code
}

// Keys returns the stored keys, sorted.
func (s *Server) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.nodes))
	for k := range s.nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Server) check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		code := s.failCode
		s.mu.Unlock()
		if code != 0 {
			http.Error(w, "unavailable", code)
			return
		}
		if s.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+s.apiKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type node struct {
	Key   string          `json:"key_path"`
	Value json.RawMessage `json:"value"`
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.nodes[chi.URLParam(r, "*")] = body.Value
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	s.mu.Lock()
	defer s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if prefix, ok := strings.CutSuffix(key, "/*"); ok {
		nodes := []node{}
		for k, v := range s.nodes {
			if strings.HasPrefix(k, prefix+"/") {
				nodes = append(nodes, node{Key: k, Value: v})
			}
		}
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].Key < nodes[j].Key })
		json.NewEncoder(w).Encode(map[string]any{"nodes": nodes})
		return
	}
	v, ok := s.nodes[key]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(node{Key: key, Value: v})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[key]; !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	delete(s.nodes, key)
	if r.URL.Query().Get("children") == "true" {
		for k := range s.nodes {
			if strings.HasPrefix(k, key+"/") {
				delete(s.nodes, k)
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
