package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// MockChatServer mocks an OpenAI-compatible chat completions endpoint.
type MockChatServer struct {
	*httptest.Server

	calls atomic.Int64

	mu       sync.Mutex
	handler  http.HandlerFunc
	requests []ChatRequest
}

// ChatRequest is the decoded body of a received completion request.
type ChatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// NewMockChatServer starts a server that answers every request with a fixed
// completion until another response is configured.
func NewMockChatServer(t *testing.T) *MockChatServer {
	t.Helper()
	m := &MockChatServer{}
	m.RespondWith("A fixed historical fact.")
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		m.calls.Add(1)
		var req ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck // recorded best effort
		m.mu.Lock()
		m.requests = append(m.requests, req)
		h := m.handler
		m.mu.Unlock()
		h(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

// Calls returns the number of completion requests received.
func (m *MockChatServer) Calls() int { return int(m.calls.Load()) }

// Requests returns the decoded requests received so far.
func (m *MockChatServer) Requests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Handle replaces the response handler.
func (m *MockChatServer) Handle(h http.HandlerFunc) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// RespondWith answers with a single choice carrying content.
func (m *MockChatServer) RespondWith(content string) {
	m.Handle(func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	})
}

// RespondStatus answers with status and a JSON error body.
func (m *MockChatServer) RespondStatus(status int, message string) {
	m.Handle(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck // test mock response
			"error": map[string]string{"message": message},
		})
	})
}

// RespondRaw answers 200 with an arbitrary body.
func (m *MockChatServer) RespondRaw(body string) {
	m.Handle(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}
