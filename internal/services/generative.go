package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/bloomie-backend/internal/observability"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
	"github.com/yungbote/bloomie-backend/internal/platform/openai"
)

const (
	TaskRecommendations   = "recommendations"
	TaskConsultationReply = "consultation_reply"
	TaskMedicalLog        = "medical_log"
)

// StructuredPrompt is the single input shape of the generative capability.
// A nil Schema asks for free text.
type StructuredPrompt struct {
	Task       string
	System     string
	User       string
	SchemaName string
	Schema     map[string]any
	ImageURLs  []string
}

type StructuredResponse struct {
	Text string
	JSON map[string]any
}

// GenerativeCapability turns a prompt into text or a schema-conforming object.
// Calls are blocking, retryable, and not assumed idempotent.
type GenerativeCapability interface {
	Generate(ctx context.Context, p StructuredPrompt) (StructuredResponse, error)
}

type openAIBackend struct {
	client openai.Client
}

// NewOpenAIBackend adapts the OpenAI Responses client to GenerativeCapability.
func NewOpenAIBackend(client openai.Client) GenerativeCapability {
	return &openAIBackend{client: client}
}

func (b *openAIBackend) Generate(ctx context.Context, p StructuredPrompt) (StructuredResponse, error) {
	if b == nil || b.client == nil {
		return StructuredResponse{}, fmt.Errorf("openai client not configured")
	}
	if p.Schema != nil {
		obj, err := b.client.GenerateJSON(ctx, p.System, p.User, p.SchemaName, p.Schema)
		if err != nil {
			return StructuredResponse{}, err
		}
		return StructuredResponse{JSON: obj}, nil
	}
	if len(p.ImageURLs) > 0 {
		imgs := make([]openai.ImageInput, 0, len(p.ImageURLs))
		for _, u := range p.ImageURLs {
			imgs = append(imgs, openai.ImageInput{ImageURL: u, Detail: "low"})
		}
		text, err := b.client.GenerateTextWithImages(ctx, p.System, p.User, imgs)
		return StructuredResponse{Text: text}, err
	}
	text, err := b.client.GenerateText(ctx, p.System, p.User)
	return StructuredResponse{Text: text}, err
}

type instrumentedCapability struct {
	next    GenerativeCapability
	log     *logger.Logger
	timeout time.Duration
}

// NewGenerative wraps a backend with the engine's timeout, tracing and metrics.
// Every failure comes back wrapped in ErrGenerationFailed.
func NewGenerative(next GenerativeCapability, baseLog *logger.Logger, timeout time.Duration) GenerativeCapability {
	if timeout <= 0 {
		timeout = DefaultEngineConfig().GenerationTimeout
	}
	return &instrumentedCapability{next: next, log: baseLog.With("service", "GenerativeCapability"), timeout: timeout}
}

func (g *instrumentedCapability) Generate(ctx context.Context, p StructuredPrompt) (StructuredResponse, error) {
	if g.next == nil {
		return StructuredResponse{}, generationf("no generative backend configured")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, "generative."+p.Task, attribute.String("generative.task", p.Task))
	defer span.End()

	start := time.Now()
	out, err := g.next.Generate(ctx, p)
	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		g.log.Warn("generation failed", "task", p.Task, "status", status, "error", err)
	}
	observability.Current().ObserveGeneration(p.Task, status, time.Since(start))
	if err != nil {
		return StructuredResponse{}, generationErr(p.Task, err)
	}
	return out, nil
}

// generationErr wraps err in ErrGenerationFailed unless it already is one.
func generationErr(task string, err error) error {
	if err == nil || errors.Is(err, ErrGenerationFailed) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrGenerationFailed, task, err)
}

// decodeStructured re-encodes a generic JSON object into out.
func decodeStructured(resp StructuredResponse, out any) error {
	var raw []byte
	switch {
	case resp.JSON != nil:
		b, err := json.Marshal(resp.JSON)
		if err != nil {
			return err
		}
		raw = b
	case strings.TrimSpace(resp.Text) != "":
		raw = []byte(openai.StripCodeFences(resp.Text))
	default:
		return fmt.Errorf("empty response")
	}
	return json.Unmarshal(raw, out)
}

func capWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ")
}
