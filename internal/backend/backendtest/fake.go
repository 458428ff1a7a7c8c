// Package backendtest provides an in-process stand-in for the SoulMate backend.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Reply is a canned response: status code plus a raw body.
type Reply struct {
	Status int
	Body   string
}

// Server records every request body it receives and answers with the canned
// reply configured for the path.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	replies  map[string]Reply
	requests map[string][]map[string]any
	gate     map[string]chan struct{}
}

// New starts a fake backend. Unconfigured paths answer 200 with "{}".
func New() *Server {
	s := &Server{
		replies:  make(map[string]Reply),
		requests: make(map[string][]map[string]any),
		gate:     make(map[string]chan struct{}),
	}

	r := chi.NewRouter()
	r.Post("/chat", s.handle("/chat"))
	r.Post("/journal", s.handle("/journal"))
	r.Get("/summary", s.handle("/summary"))
	r.Get("/wellness", s.handle("/wellness"))

	s.Server = httptest.NewServer(r)
	return s
}

// Set configures the reply for path.
func (s *Server) Set(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[path] = Reply{Status: status, Body: body}
}

// Hold makes requests to path block until the returned release func runs.
func (s *Server) Hold(path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gate[path] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Requests returns the decoded bodies received on path.
func (s *Server) Requests(path string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.requests[path]...)
}

// Count returns how many requests hit path.
func (s *Server) Count(path string) int {
	return len(s.Requests(path))
}

func (s *Server) handle(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}

		s.mu.Lock()
		s.requests[path] = append(s.requests[path], body)
		reply, ok := s.replies[path]
		gate := s.gate[path]
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}

		if !ok {
			reply = Reply{Status: http.StatusOK, Body: "{}"}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(reply.Status)
		_, _ = w.Write([]byte(reply.Body))
	}
}
