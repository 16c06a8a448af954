package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, status int, body string, inspect func(req map[string]interface{})) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if inspect != nil {
			inspect(req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func testClient(url string) *OpenAIClient {
	return NewOpenAIClient(Config{
		BaseURL:     url + "/",
		APIKey:      "test-key",
		Model:       "llama-3.3-70b-versatile",
		Temperature: 0.3,
		MaxTokens:   2000,
	})
}

func TestComplete(t *testing.T) {
	srv := newTestServer(t, http.StatusOK,
		`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  ## Chief Concerns\n..."},"finish_reason":"stop"}]}`,
		func(req map[string]interface{}) {
			if req["model"] != "llama-3.3-70b-versatile" {
				t.Errorf("unexpected model %v", req["model"])
			}
			if req["max_tokens"] != float64(2000) {
				t.Errorf("unexpected max_tokens %v", req["max_tokens"])
			}
			if temp, ok := req["temperature"].(float64); !ok || temp < 0.29 || temp > 0.31 {
				t.Errorf("unexpected temperature %v", req["temperature"])
			}
			msgs := req["messages"].([]interface{})
			if len(msgs) != 1 || msgs[0].(map[string]interface{})["content"] != "prompt text" {
				t.Errorf("unexpected messages %v", msgs)
			}
		})
	defer srv.Close()

	out, err := testClient(srv.URL).Complete(context.Background(), "prompt text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "## Chief Concerns\n..." {
		t.Errorf("unexpected completion %q", out)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"id":"c1","object":"chat.completion","choices":[]}`, nil)
	defer srv.Close()

	if _, err := testClient(srv.URL).Complete(context.Background(), "p"); !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestComplete_ProviderError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit_error"}}`))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Complete(context.Background(), "p"); err == nil {
		t.Fatal("expected error from provider")
	}
	if calls != 1 {
		t.Errorf("expected exactly one call without retry, got %d", calls)
	}
}
