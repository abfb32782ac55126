package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/bloomie-backend/internal/platform/logger"
	"github.com/yungbote/bloomie-backend/internal/platform/openai"
)

type stubClient struct {
	jsonCalls, textCalls, imageCalls int
	lastImages                       []openai.ImageInput
}

func (s *stubClient) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	s.jsonCalls++
	return map[string]any{"ok": true}, nil
}

func (s *stubClient) GenerateText(ctx context.Context, system, user string) (string, error) {
	s.textCalls++
	return "text", nil
}

func (s *stubClient) GenerateTextWithImages(ctx context.Context, system, user string, images []openai.ImageInput) (string, error) {
	s.imageCalls++
	s.lastImages = images
	return "seen", nil
}

func (s *stubClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return make([][]float32, len(inputs)), nil
}

func TestOpenAIBackendRoutesByPromptShape(t *testing.T) {
	c := &stubClient{}
	b := NewOpenAIBackend(c)
	ctx := context.Background()
	if _, err := b.Generate(ctx, StructuredPrompt{Schema: map[string]any{"type": "object"}}); err != nil {
		t.Fatalf("json: %v", err)
	}
	if _, err := b.Generate(ctx, StructuredPrompt{ImageURLs: []string{"https://img/1.jpg"}}); err != nil {
		t.Fatalf("images: %v", err)
	}
	if _, err := b.Generate(ctx, StructuredPrompt{}); err != nil {
		t.Fatalf("text: %v", err)
	}
	if c.jsonCalls != 1 || c.imageCalls != 1 || c.textCalls != 1 {
		t.Fatalf("routing: json=%d images=%d text=%d", c.jsonCalls, c.imageCalls, c.textCalls)
	}
	if c.lastImages[0].Detail != "low" {
		t.Fatalf("image detail: want=%q got=%q", "low", c.lastImages[0].Detail)
	}
}

func TestGenerativeTimeoutIsGenerationFailure(t *testing.T) {
	slow := &fakeGenerative{fn: func(ctx context.Context, p StructuredPrompt) (StructuredResponse, error) {
		<-ctx.Done()
		return StructuredResponse{}, ctx.Err()
	}}
	g := NewGenerative(slow, logger.Nop(), 20*time.Millisecond)
	_, err := g.Generate(context.Background(), StructuredPrompt{Task: TaskConsultationReply})
	if !errors.Is(err, ErrGenerationFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Generate: want ErrGenerationFailed wrapping DeadlineExceeded got=%v", err)
	}
}

func TestCapWords(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"  a  b c ", 10, "a b c"},
		{"a b c d", 2, "a b"},
		{"", 3, ""},
	}
	for _, tc := range cases {
		if got := capWords(tc.in, tc.n); got != tc.want {
			t.Fatalf("capWords(%q,%d): want=%q got=%q", tc.in, tc.n, tc.want, got)
		}
	}
}
