package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
)

const (
	maxImmediateRecommendations = 5
	maxFollowUpQuestions        = 3
)

type MedicalLogInput struct {
	ChildID          string
	SessionID        uuid.UUID
	ConversationDate time.Time
	Turns            []types.Turn
	Topics           []string
	EmergencyFlags   []string
	Traits           []types.MatchedTrait
}

// hasMedicalContent reports whether the consultation touched a trait topic or
// raised an emergency indicator. An emergency with no trait topic is still logged.
func (in MedicalLogInput) hasMedicalContent() bool {
	return len(in.Topics) > 0 || len(in.EmergencyFlags) > 0
}

// MedicalLogGenerator condenses a finished consultation into a MedicalVisitLog.
// A nil log with a nil error means nothing medical was discussed.
type MedicalLogGenerator interface {
	Generate(ctx context.Context, in MedicalLogInput) (*types.MedicalVisitLog, error)
}

type medicalLogGenerator struct {
	log *logger.Logger
	gen GenerativeCapability
}

func NewMedicalLogGenerator(baseLog *logger.Logger, gen GenerativeCapability) MedicalLogGenerator {
	return &medicalLogGenerator{
		log: baseLog.With("service", "MedicalLogGenerator"),
		gen: gen,
	}
}

type medicalLogPayload struct {
	ProblemDiscussed         string   `json:"problem_discussed"`
	ImmediateRecommendations []string `json:"immediate_recommendations"`
	FollowUpQuestions        []string `json:"follow_up_questions"`
}

func (g *medicalLogGenerator) Generate(ctx context.Context, in MedicalLogInput) (*types.MedicalVisitLog, error) {
	if !in.hasMedicalContent() {
		return nil, nil
	}
	resp, err := g.gen.Generate(ctx, StructuredPrompt{
		Task:       TaskMedicalLog,
		System:     medicalLogSystemPrompt,
		User:       buildMedicalLogPrompt(in),
		SchemaName: "medical_visit_log",
		Schema:     medicalLogSchema(),
	})
	if err != nil {
		return nil, generationErr(TaskMedicalLog, err)
	}
	var p medicalLogPayload
	if err := decodeStructured(resp, &p); err != nil {
		return nil, generationf("decode medical log: %v", err)
	}
	problem := strings.TrimSpace(p.ProblemDiscussed)
	if problem == "" {
		return nil, generationf("empty problem_discussed")
	}
	date := in.ConversationDate
	if date.IsZero() {
		date = time.Now().UTC()
	}
	return &types.MedicalVisitLog{
		ChildID:                  in.ChildID,
		SessionID:                in.SessionID,
		ConversationDate:         date,
		ProblemDiscussed:         problem,
		ImmediateRecommendations: trimList(p.ImmediateRecommendations, maxImmediateRecommendations),
		FollowUpQuestions:        trimList(p.FollowUpQuestions, maxFollowUpQuestions),
		TraitsDiscussed:          append([]string{}, in.Topics...),
		EmergencyIndicators:      append([]string{}, in.EmergencyFlags...),
		Disclaimer:               types.MedicalDisclaimer,
	}, nil
}

func trimList(in []string, max int) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == max {
			break
		}
	}
	return out
}

const medicalLogSystemPrompt = `You summarize a parent's consultation about their child into a note they can bring to their pediatrician.
Describe the problem discussed in plain language. Give at most 5 immediate recommendations and at most 3 follow-up questions for the doctor.
Do not diagnose. If emergency indicators are listed, the first recommendation must be to seek emergency care.`

func buildMedicalLogPrompt(in MedicalLogInput) string {
	var b strings.Builder
	if len(in.Topics) > 0 {
		fmt.Fprintf(&b, "TRAITS DISCUSSED: %s\n", strings.Join(in.Topics, ", "))
	}
	if len(in.EmergencyFlags) > 0 {
		fmt.Fprintf(&b, "EMERGENCY INDICATORS: %s\n", strings.Join(in.EmergencyFlags, ", "))
	}
	if len(in.Traits) > 0 {
		names := make([]string, 0, len(in.Traits))
		for _, t := range in.Traits {
			names = append(names, t.TraitName)
		}
		fmt.Fprintf(&b, "CHILD'S GENETIC TRAITS: %s\n", strings.Join(names, ", "))
	}
	b.WriteString("\nTRANSCRIPT:\n")
	b.WriteString(renderTranscript(in.Turns))
	return b.String()
}

// renderTranscript prints one line per turn. Images are referenced, never inlined.
func renderTranscript(turns []types.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		text := strings.TrimSpace(t.Text)
		if t.ImageURL != "" {
			if text != "" {
				text += " "
			}
			text += "[photo shared]"
		}
		fmt.Fprintf(&b, "%s: %s\n", t.Speaker, text)
	}
	return b.String()
}

func medicalLogSchema() map[string]any {
	strArr := func(max int) map[string]any {
		return map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "maxItems": max}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"problem_discussed", "immediate_recommendations", "follow_up_questions"},
		"properties": map[string]any{
			"problem_discussed":         map[string]any{"type": "string"},
			"immediate_recommendations": strArr(maxImmediateRecommendations),
			"follow_up_questions":       strArr(maxFollowUpQuestions),
		},
	}
}
