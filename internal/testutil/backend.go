package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const defaultChunkSize = 5

// BackendRequest is one request seen by the fake backend.
type BackendRequest struct {
	Path string
	Body map[string]string
}

type jsonReply struct {
	status int
	body   any
}

type hold struct {
	opened  chan struct{}
	release chan struct{}
}

// FakeBackend is a scripted game backend. Stream endpoints replay queued
// scripts, flushed in small chunks that ignore line and rune boundaries.
type FakeBackend struct {
	URL string

	server *httptest.Server

	mu        sync.Mutex
	scripts   map[string][][]string
	replies   map[string]jsonReply
	holds     map[string]*hold
	requests  []BackendRequest
	chunkSize int
}

// NewFakeBackend starts a fake backend that is closed with the test.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()

	f := &FakeBackend{
		scripts:   make(map[string][][]string),
		replies:   make(map[string]jsonReply),
		holds:     make(map[string]*hold),
		chunkSize: defaultChunkSize,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/{endpoint}", f.handle)

	f.server = httptest.NewServer(r)
	f.URL = f.server.URL
	t.Cleanup(f.server.Close)
	return f
}

// Script queues one stream reply for path. The lines are joined without a
// trailing newline so the final line arrives unterminated.
func (f *FakeBackend) Script(path string, lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[path] = append(f.scripts[path], lines)
}

// Reply sets the JSON reply for path.
func (f *FakeBackend) Reply(path string, status int, body any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[path] = jsonReply{status: status, body: body}
}

// Hold keeps the next stream on path open after its script is written.
// opened is closed once the script has been flushed.
func (f *FakeBackend) Hold(path string) (opened <-chan struct{}, release func()) {
	h := &hold{opened: make(chan struct{}), release: make(chan struct{})}
	f.mu.Lock()
	f.holds[path] = h
	f.mu.Unlock()

	var once sync.Once
	return h.opened, func() { once.Do(func() { close(h.release) }) }
}

// SetChunkSize changes the flush size for streams.
func (f *FakeBackend) SetChunkSize(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > 0 {
		f.chunkSize = n
	}
}

// Requests returns the requests received so far.
func (f *FakeBackend) Requests() []BackendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]BackendRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// Paths returns the paths of the requests received so far.
func (f *FakeBackend) Paths() []string {
	var out []string
	for _, r := range f.Requests() {
		out = append(out, r.Path)
	}
	return out
}

func (f *FakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	path := "/" + chi.URLParam(r, "endpoint")

	body := make(map[string]string)
	json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.requests = append(f.requests, BackendRequest{Path: path, Body: body})
	var script []string
	scripted := len(f.scripts[path]) > 0
	if scripted {
		script = f.scripts[path][0]
		f.scripts[path] = f.scripts[path][1:]
	}
	reply, replied := f.replies[path]
	h := f.holds[path]
	delete(f.holds, path)
	chunkSize := f.chunkSize
	f.mu.Unlock()

	switch {
	case scripted:
		writeChunked(w, strings.Join(script, "\n"), chunkSize)
		if h != nil {
			close(h.opened)
			select {
			case <-h.release:
			case <-r.Context().Done():
			}
		}
	case replied:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(reply.status)
		json.NewEncoder(w).Encode(reply.body)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": fmt.Sprintf("no script for %s", path)})
	}
}

func writeChunked(w http.ResponseWriter, data string, size int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	raw := []byte(data)
	for len(raw) > 0 {
		n := min(size, len(raw))
		w.Write(raw[:n])
		raw = raw[n:]
		if flusher != nil {
			flusher.Flush()
		}
	}
}
