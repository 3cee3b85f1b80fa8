package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClient_CompleteSendsToolsAndParsesToolCalls(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"tool_calls","message":{"role":"assistant","content":"","tool_calls":[{"id":"c1","type":"function","function":{"name":"memory","arguments":"{\"query\":\"select 1\"}"}}]}}]}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL+"/", "key", "m1", time.Second, nil)
	tools := []ToolDefinition{{Type: "function", Function: FunctionSpec{Name: "memory", Description: "d", Parameters: json.RawMessage(`{"type":"object"}`)}}}
	msg, err := client.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hola"}}, tools)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Model != "m1" || len(got.Messages) != 1 || len(got.Tools) != 1 || got.ToolChoice != "auto" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].Function.Name != "memory" || msg.ToolCalls[0].Function.Arguments != `{"query":"select 1"}` {
		t.Fatalf("unexpected tool calls: %+v", msg.ToolCalls)
	}
}

func TestHTTPClient_CompleteErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		is     error
	}{
		{"http error", http.StatusInternalServerError, `{"error":{"message":"boom"}}`, nil},
		{"api error", http.StatusOK, `{"error":{"message":"bad model"}}`, nil},
		{"no choices", http.StatusOK, `{"choices":[]}`, ErrEmptyResponse},
		{"empty content", http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":""}}]}`, ErrEmptyResponse},
		{"invalid json", http.StatusOK, `not json`, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.status)
				_, _ = w.Write([]byte(c.body))
			}))
			defer srv.Close()

			client := NewHTTPClient(srv.URL, "key", "m1", time.Second, nil)
			_, err := client.Complete(context.Background(), []ChatMessage{{Role: RoleUser, Content: "x"}}, nil)
			if err == nil {
				t.Fatalf("expected error")
			}
			if c.is != nil && !errors.Is(err, c.is) {
				t.Fatalf("expected %v, got %v", c.is, err)
			}
		})
	}
}

func TestHTTPClient_DefaultsAssistantRole(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Tools) != 0 || req.ToolChoice != "" {
			t.Errorf("expected no tools in request, got %+v", req)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"alice said hi"}}]}`))
	}))
	defer srv.Close()

	msg, err := NewHTTPClient(srv.URL, "key", "m1", time.Second, nil).Complete(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Role != RoleAssistant || msg.Content != "alice said hi" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}
