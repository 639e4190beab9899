package httpclient

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tombee/fieldfill/internal/tracing"
)

func TestLoggingTransport_SetsUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	transport := newLoggingTransport(http.DefaultTransport, "test-agent/1.0", nil)
	req, _ := http.NewRequest("GET", server.URL, nil)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got != "test-agent/1.0" {
		t.Errorf("expected User-Agent %q, got %q", "test-agent/1.0", got)
	}
	if req.Header.Get("User-Agent") != "" {
		t.Error("caller's request was modified")
	}
}

func TestLoggingTransport_PreservesExistingUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	transport := newLoggingTransport(http.DefaultTransport, "test-agent/1.0", nil)
	req, _ := http.NewRequest("GET", server.URL, nil)
	req.Header.Set("User-Agent", "custom-agent/2.0")
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got != "custom-agent/2.0" {
		t.Errorf("expected User-Agent %q, got %q", "custom-agent/2.0", got)
	}
}

func TestLoggingTransport_InjectsCorrelationID(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(tracing.HeaderCorrelationID)
	}))
	defer server.Close()

	id := tracing.NewCorrelationID()
	ctx := tracing.ToContext(context.Background(), id)

	transport := newLoggingTransport(http.DefaultTransport, "test-agent/1.0", nil)
	req, _ := http.NewRequestWithContext(ctx, "GET", server.URL, nil)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got != id.String() {
		t.Errorf("expected correlation ID %q, got %q", id, got)
	}
}

func TestLoggingTransport_LogsSanitizedURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	transport := newLoggingTransport(http.DefaultTransport, "test-agent/1.0", logger)
	req, _ := http.NewRequest("POST", server.URL+"/v1?key=supersecret", nil)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	out := buf.String()
	if strings.Contains(out, "supersecret") {
		t.Errorf("log leaked key: %s", out)
	}
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("expected warn level for 429, got: %s", out)
	}
	if !strings.Contains(out, "status=429") {
		t.Errorf("expected status in log, got: %s", out)
	}
}
