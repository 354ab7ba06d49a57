// Package apitest provides an in-memory todo collection served over HTTP for
// tests. It is a fixture, not a product server.
package apitest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/idilsaglam/todosync/internal/model"
)

// Request is one call the server received.
type Request struct {
	Method string
	Path   string
	Body   string
}

// Server is a fake collection endpoint mounted at /api/todos.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	items    []model.Item
	requests []Request
	failCode int
	rawList  []byte
}

// New starts a Server seeded with items and stops it when t finishes.
func New(t testing.TB, items ...model.Item) *Server {
	t.Helper()
	s := &Server{items: model.Clone(items)}
	router := mux.NewRouter()
	api := router.PathPrefix("/api/todos").Subrouter()
	api.HandleFunc("", s.list).Methods(http.MethodGet)
	api.HandleFunc("", s.create).Methods(http.MethodPost)
	api.HandleFunc("/{id}", s.update).Methods(http.MethodPut)
	api.HandleFunc("/{id}", s.remove).Methods(http.MethodDelete)
	router.Use(s.record)
	s.Server = httptest.NewServer(router)
	t.Cleanup(s.Server.Close)
	return s
}

// CollectionURL returns the collection endpoint.
func (s *Server) CollectionURL() string { return s.Server.URL + "/api/todos" }

// FailWith makes every subsequent request answer with code. Zero restores
// normal behavior.
func (s *Server) FailWith(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCode = code
}

// ServeRawList makes GET answer with body verbatim.
func (s *Server) ServeRawList(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawList = []byte(body)
}

// Items returns the server-side collection.
func (s *Server) Items() []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Clone(s.items)
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Body: string(body)})
		code := s.failCode
		s.mu.Unlock()

		if code != 0 {
			http.Error(w, http.StatusText(code), code)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) list(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	raw := s.rawList
	items := model.Clone(s.items)
	s.mu.Unlock()
	if raw != nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(raw)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var in model.Item
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Text == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if in.ID == "" {
		in.ID = model.ID(uuid.New().String())
	}
	s.mu.Lock()
	s.items = append(s.items, in)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, in)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id := model.ID(mux.Vars(r)["id"])
	var in struct {
		Completed *bool `json:"completed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Completed == nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	i := model.Index(s.items, id)
	if i < 0 {
		s.mu.Unlock()
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.items[i].Completed = *in.Completed
	it := s.items[i]
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	id := model.ID(mux.Vars(r)["id"])
	s.mu.Lock()
	defer s.mu.Unlock()
	if model.Index(s.items, id) < 0 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.items = model.Remove(s.items, id)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
