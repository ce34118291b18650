package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBaseURL(t *testing.T) {
	tests := []struct{ addr, want string }{
		{"", "http://localhost:8080"},
		{":9000", "http://localhost:9000"},
		{"0.0.0.0:8081", "http://localhost:8081"},
		{"127.0.0.1:7000", "http://127.0.0.1:7000"},
		{"[::]:8082", "http://localhost:8082"},
		{"garbage", "http://localhost:8080"},
	}
	for _, tt := range tests {
		if got := baseURL(tt.addr); got != tt.want {
			t.Errorf("baseURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/readyz" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	if err := probe(context.Background(), srv.Client(), srv.URL+"/healthz"); err != nil {
		t.Errorf("healthz probe: %v", err)
	}
	if err := probe(context.Background(), srv.Client(), srv.URL+"/readyz"); err == nil {
		t.Error("expected readyz probe to fail on 503")
	}
}
