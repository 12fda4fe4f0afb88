package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestGetJSONDecodesBody(t *testing.T) {
	var gotUA, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count": 3}`))
	}))
	defer server.Close()

	client := NewClient(zap.NewNop())

	var target struct {
		Count int `json:"count"`
	}
	q := url.Values{}
	q.Set("page", "1")

	err := client.GetJSON(context.Background(), "test", server.URL, q, nil, 5*time.Second, &target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Count != 3 {
		t.Fatalf("expected count 3, got %d", target.Count)
	}
	if gotUA == "" {
		t.Fatalf("expected a user agent header")
	}
	if gotQuery != "page=1" {
		t.Fatalf("unexpected query: %q", gotQuery)
	}
}

func TestGetJSONRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "17")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(zap.NewNop())

	err := client.GetJSON(context.Background(), "test", server.URL, nil, nil, 5*time.Second, nil)
	var rateLimited *RateLimitedError
	if !errors.As(err, &rateLimited) {
		t.Fatalf("expected *RateLimitedError, got %v", err)
	}
	if rateLimited.Source != "test" {
		t.Fatalf("unexpected source: %q", rateLimited.Source)
	}
	if rateLimited.RetryAfter != 17*time.Second {
		t.Fatalf("expected retry after 17s, got %s", rateLimited.RetryAfter)
	}
}

func TestGetJSONRateLimitedDefaultHint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(zap.NewNop())

	err := client.GetJSON(context.Background(), "test", server.URL, nil, nil, 5*time.Second, nil)
	var rateLimited *RateLimitedError
	if !errors.As(err, &rateLimited) {
		t.Fatalf("expected *RateLimitedError, got %v", err)
	}
	if rateLimited.RetryAfter != defaultRetryAfter {
		t.Fatalf("expected default hint %s, got %s", defaultRetryAfter, rateLimited.RetryAfter)
	}
}

func TestGetJSONBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(zap.NewNop())

	err := client.GetJSON(context.Background(), "broken", server.URL, nil, nil, 5*time.Second, nil)
	if err == nil {
		t.Fatalf("expected an error for 500")
	}

	var rateLimited *RateLimitedError
	if errors.As(err, &rateLimited) {
		t.Fatalf("500 must not be a rate limit error")
	}
}

func TestGetJSONExtraHeaders(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization-Key")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(zap.NewNop())

	headers := map[string]string{"Authorization-Key": "secret"}
	if err := client.GetJSON(context.Background(), "test", server.URL, nil, headers, 5*time.Second, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "secret" {
		t.Fatalf("custom header not sent, got %q", gotAuth)
	}
}

func TestBackOffRespectsCap(t *testing.T) {
	client := NewClient(zap.NewNop())

	e := &RateLimitedError{Source: "test", RetryAfter: time.Hour}

	start := time.Now()
	if err := client.BackOff(context.Background(), e, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("backoff ignored the cap, took %s", elapsed)
	}
}
