package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/yungbote/bloomie-backend/internal/platform/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_BASE_URL", srv.URL)
	t.Setenv("OPENAI_MAX_RETRIES", "2")
	c, err := NewClient(logger.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func writeOutput(w http.ResponseWriter, text string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"output": []any{
			map[string]any{
				"type": "message",
				"role": "assistant",
				"content": []any{
					map[string]any{"type": "output_text", "text": text},
				},
			},
		},
	})
}

func TestGenerateJSONParsesFencedOutput(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" {
			t.Errorf("path: want=%q got=%q", "/v1/responses", r.URL.Path)
		}
		var req responsesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Text.Format["name"] != "child_log_entry" {
			t.Errorf("schema name: want=%q got=%v", "child_log_entry", req.Text.Format["name"])
		}
		writeOutput(w, "```json\n{\"summary\":\"ok\"}\n```")
	})

	out, err := c.GenerateJSON(context.Background(), "sys", "user", "child_log_entry", map[string]any{"type": "object"})
	if err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if out["summary"] != "ok" {
		t.Fatalf("summary: want=%q got=%v", "ok", out["summary"])
	}
}

func TestGenerateTextRetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeOutput(w, "hello")
	})

	got, err := c.GenerateText(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if got != "hello" {
		t.Fatalf("GenerateText: want=%q got=%q", "hello", got)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("calls: want=2 got=%d", n)
	}
}

func TestGenerateTextDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	if _, err := c.GenerateText(context.Background(), "sys", "user"); err == nil {
		t.Fatalf("GenerateText: expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls: want=1 got=%d", n)
	}
}

func TestEmbedOrdersByIndex(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path: want=%q got=%q", "/v1/embeddings", r.URL.Path)
		}
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Input) != 2 || req.Input[1] != " " {
			t.Errorf("input: want blank inputs padded got=%q", req.Input)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []any{
				map[string]any{"index": 1, "embedding": []float64{0, 1}},
				map[string]any{"index": 0, "embedding": []float64{1, 0}},
			},
		})
	})

	got, err := c.Embed(context.Background(), []string{"eczema", "  "})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 2 || got[0][0] != 1 || got[1][1] != 1 {
		t.Fatalf("Embed: want=[[1 0] [0 1]] got=%v", got)
	}
}

func TestEmbedRetriesOnceWhenVectorsMissing(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data := []any{map[string]any{"index": 0, "embedding": []float64{1}}}
		if atomic.AddInt32(&calls, 1) > 1 {
			data = append(data, map[string]any{"index": 1, "embedding": []float64{2}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	})

	got, err := c.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 || got[1][0] != 2 {
		t.Fatalf("Embed: want 2 calls and second vector got calls=%d vectors=%v", n, got)
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":                 "{\"a\":1}",
		"```json\n{\"a\":1}\n```":   "{\"a\":1}",
		"```\n{\"a\":1}```":         "{\"a\":1}",
		"  \n{\"a\":1}\n  ":         "{\"a\":1}",
	}
	for in, want := range cases {
		if got := StripCodeFences(in); got != want {
			t.Fatalf("StripCodeFences(%q): want=%q got=%q", in, want, got)
		}
	}
}
