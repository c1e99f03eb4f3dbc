package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"weave/internal/config"
	weaveerrors "weave/internal/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewHTTPClient(config.LLMConfig{
		BaseURL:   server.URL,
		Model:     "test-model",
		TimeoutMs: 5000,
	})
}

func TestComplete(t *testing.T) {
	var got chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "a,b,c"}},
			},
		})
	})

	text, err := client.Complete(context.Background(), Request{
		SystemPrompt: "you are a csv machine",
		UserPrompt:   "emit csv",
		Temperature:  0,
		MaxTokens:    100,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if text != "a,b,c" {
		t.Errorf("Expected response text, got %q", text)
	}

	if got.Model != "test-model" {
		t.Errorf("Expected model in request, got %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("Expected system+user messages, got %+v", got.Messages)
	}
	if got.Temperature != 0 {
		t.Errorf("Expected temperature 0, got %v", got.Temperature)
	}
}

func TestComplete_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Complete(context.Background(), Request{UserPrompt: "hi"})
	if err == nil {
		t.Fatal("Expected error for 500 response")
	}
	we, ok := err.(*weaveerrors.WeaveError)
	if !ok || we.Code != weaveerrors.LLMUnavailable {
		t.Errorf("Expected LLM_UNAVAILABLE, got %v", err)
	}
}

func TestComplete_MalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := client.Complete(context.Background(), Request{UserPrompt: "hi"})
	we, ok := err.(*weaveerrors.WeaveError)
	if !ok || we.Code != weaveerrors.LLMMalformedOutput {
		t.Errorf("Expected LLM_MALFORMED_OUTPUT, got %v", err)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	})

	_, err := client.Complete(context.Background(), Request{UserPrompt: "hi"})
	we, ok := err.(*weaveerrors.WeaveError)
	if !ok || we.Code != weaveerrors.LLMMalformedOutput {
		t.Errorf("Expected LLM_MALFORMED_OUTPUT, got %v", err)
	}
}

func TestScriptedClient(t *testing.T) {
	client := &ScriptedClient{Responses: []string{"first", "second"}}

	for i, want := range []string{"first", "second"} {
		got, err := client.Complete(context.Background(), Request{UserPrompt: "p"})
		if err != nil {
			t.Fatalf("Call %d failed: %v", i, err)
		}
		if got != want {
			t.Errorf("Call %d: expected %q, got %q", i, want, got)
		}
	}

	if _, err := client.Complete(context.Background(), Request{}); err == nil {
		t.Error("Expected error after script exhaustion")
	}
	if len(client.Calls) != 3 {
		t.Errorf("Expected 3 recorded calls, got %d", len(client.Calls))
	}
}
