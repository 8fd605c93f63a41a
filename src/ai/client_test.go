package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientRequiresKey(t *testing.T) {
	cases := []struct {
		name     string
		provider string
	}{
		{name: "openai", provider: "openai"},
		{name: "claude", provider: "claude"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewClient(FactoryConfig{Provider: tc.provider}); err == nil {
				t.Fatal("expected error without API key")
			}
		})
	}
}

func TestNewClientDefaultsToOpenAI(t *testing.T) {
	client, err := NewClient(FactoryConfig{OpenAIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*openAIClient); !ok {
		t.Fatalf("default provider is %T, want *openAIClient", client)
	}
}

func TestOpenAIComplete(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "world"}},
			},
		})
	}))
	defer srv.Close()

	client, err := newOpenAIClient(FactoryConfig{OpenAIKey: "sk-test"})
	if err != nil {
		t.Fatalf("newOpenAIClient: %v", err)
	}
	client.endpoint = srv.URL

	text, err := client.Complete(context.Background(), "hello", Options{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "world" {
		t.Fatalf("got %q, want %q", text, "world")
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth header = %q", gotAuth)
	}
}

func TestOpenAICompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer srv.Close()

	client, _ := newOpenAIClient(FactoryConfig{OpenAIKey: "sk-test"})
	client.endpoint = srv.URL

	_, err := client.Complete(context.Background(), "hello", Options{})
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestClaudeComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "ck-test" {
			http.Error(w, "no key", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{
				{"type": "text", "text": "part one "},
				{"type": "text", "text": "part two"},
			},
		})
	}))
	defer srv.Close()

	client, err := newClaudeClient(FactoryConfig{Provider: "claude", ClaudeKey: "ck-test"})
	if err != nil {
		t.Fatalf("newClaudeClient: %v", err)
	}
	client.endpoint = srv.URL

	text, err := client.Complete(context.Background(), "hello", Options{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "part one part two" {
		t.Fatalf("got %q", text)
	}
}

func TestClaudeCompleteEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"content": []interface{}{}})
	}))
	defer srv.Close()

	client, _ := newClaudeClient(FactoryConfig{Provider: "claude", ClaudeKey: "ck-test"})
	client.endpoint = srv.URL

	_, err := client.Complete(context.Background(), "hello", Options{})
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestOptionOverrides(t *testing.T) {
	client, _ := newOpenAIClient(FactoryConfig{OpenAIKey: "sk-test", Model: "gpt-4"})
	merged := client.merge(Options{MaxCompletionTokens: 500})
	if merged.Model != "gpt-4" {
		t.Errorf("model = %q", merged.Model)
	}
	if merged.MaxCompletionTokens != 500 {
		t.Errorf("max tokens = %d", merged.MaxCompletionTokens)
	}
	if merged.Temperature == 0 {
		t.Error("temperature default missing")
	}
}
