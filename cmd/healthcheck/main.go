// Package main is a container health probe. It exits 0 when the server's
// liveness (or, with --ready, readiness) endpoint answers 200.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"
)

func main() {
	ready := flag.Bool("ready", false, "Probe /readyz instead of /healthz")
	flag.Parse()

	path := "/healthz"
	if *ready {
		path = "/readyz"
	}
	client := &http.Client{Timeout: 3 * time.Second}
	if err := probe(context.Background(), client, baseURL(os.Getenv("HTTP_ADDR"))+path); err != nil {
		log.Printf("healthcheck failed: %v", err)
		os.Exit(1)
	}
}

// baseURL maps a listen address such as ":8080" or "0.0.0.0:9000" to a
// loopback URL.
func baseURL(addr string) string {
	if addr == "" {
		addr = ":8080"
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://localhost:8080"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func probe(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}
	return nil
}
