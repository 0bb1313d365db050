package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chatServer(t *testing.T, handler func(w http.ResponseWriter, req chatRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) *ChatClient {
	t.Helper()
	c, err := NewChatClient(Config{APIKey: "test-key", BaseURL: baseURL, Model: "test-model"})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestChatClient_Complete(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, req chatRequest) {
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("messages = %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "The answer is 42."}},
			},
		})
	})

	got, err := newTestClient(t, srv.URL).Complete(context.Background(), "You are helpful.", "What is the answer?")
	if err != nil {
		t.Fatal(err)
	}
	if got != "The answer is 42." {
		t.Errorf("Complete = %q", got)
	}
}

func TestChatClient_APIError(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, req chatRequest) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "invalid api key", "type": "auth_error"},
		})
	})

	_, err := newTestClient(t, srv.URL).Complete(context.Background(), "sys", "user")
	if err == nil || !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("expected api error, got %v", err)
	}
}

func TestChatClient_NoChoices(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, req chatRequest) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := newTestClient(t, srv.URL).Complete(context.Background(), "sys", "user")
	if err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestNewChatClient_Validation(t *testing.T) {
	if _, err := NewChatClient(Config{BaseURL: "http://x", Model: "m"}); err == nil {
		t.Error("expected error for missing API key")
	}
	if _, err := NewChatClient(Config{APIKey: "k", Model: "m"}); err == nil {
		t.Error("expected error for missing base URL")
	}
	if _, err := NewChatClient(Config{APIKey: "k", BaseURL: "http://x"}); err == nil {
		t.Error("expected error for missing model")
	}
}
