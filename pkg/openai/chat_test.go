package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewRequiresKey(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err = %v", err)
	}
}

func TestComplete(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"brand\":\"opel\"}"}}]}`))
	}))
	defer srv.Close()

	c, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Complete(context.Background(), "sys", "usr", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"brand":"opel"}` {
		t.Errorf("out = %q", out)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o-mini" || gotReq.Stream {
		t.Errorf("request = %+v", gotReq)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Content != "usr" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestCompleteNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(429)
		w.Write([]byte(`{"error":{"message":"rate limit"}}`))
	}))
	defer srv.Close()

	c, _ := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), "s", "u", 0)
	if err == nil || !strings.Contains(err.Error(), "status 429") {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "rate limit") {
		t.Errorf("error body not surfaced: %v", err)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c, _ := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL))
	if _, err := c.Complete(context.Background(), "s", "u", 0); err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("stream flag not set")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Merhaba\"}}]}\n\n"))
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"\"}}]}\n\n")) // skipped
		w.Write([]byte(": keepalive comment\n\n"))
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"!\"}}]}\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"after done\"}}]}\n\n"))
	}))
	defer srv.Close()

	c, _ := New("sk-test", "gpt-4o", WithBaseURL(srv.URL))
	var chunks []string
	err := c.Stream(context.Background(), "s", "u", 0.3, func(s string) error {
		chunks = append(chunks, s)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 || chunks[0] != "Merhaba" || chunks[1] != "!" {
		t.Errorf("chunks = %v", chunks)
	}
}

func TestStreamEmitErrorStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n"))
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n"))
	}))
	defer srv.Close()

	c, _ := New("sk-test", "gpt-4o", WithBaseURL(srv.URL))
	stop := errors.New("client gone")
	calls := 0
	err := c.Stream(context.Background(), "s", "u", 0, func(string) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("emit called %d times after error", calls)
	}
}

func TestRateLimitRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	// Burst 1 at a very slow refill: the second call must block and
	// then fail on the cancelled context.
	c, _ := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL), WithRateLimit(0.001, 1))
	if _, err := c.Complete(context.Background(), "s", "u", 0); err != nil {
		t.Fatalf("first call: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Complete(ctx, "s", "u", 0); err == nil {
		t.Fatal("expected context error from limiter wait")
	}
}
