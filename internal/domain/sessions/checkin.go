package sessions

import (
	"time"

	"github.com/google/uuid"
)

const (
	CheckInTypeWeekly    = "checkin"
	CheckInTypeEmergency = "emergency"
	CheckInTypeInitial   = "initial"
)

const (
	StatusActive    = "active"
	StatusSubmitted = "submitted"
	StatusAbandoned = "abandoned"
	StatusCompleted = "completed"
	StatusDiscarded = "discarded"
)

func ValidCheckInType(t string) bool {
	switch t {
	case CheckInTypeWeekly, CheckInTypeEmergency, CheckInTypeInitial:
		return true
	}
	return false
}

type Question struct {
	Index     int      `json:"index"`
	TraitName string   `json:"trait_name,omitempty"`
	Text      string   `json:"text"`
	Options   []string `json:"options,omitempty"`
}

// CheckInSession lives in process memory only.
type CheckInSession struct {
	ID             uuid.UUID      `json:"id"`
	ChildID        string         `json:"child_id"`
	Type           string         `json:"type"`
	Status         string         `json:"status"`
	Questions      []Question     `json:"questions"`
	Answers        map[int]string `json:"answers"`
	Concern        string         `json:"concern,omitempty"`
	Traits         []string       `json:"traits"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
}

func (s *CheckInSession) Unanswered() []int {
	var out []int
	for _, q := range s.Questions {
		if v, ok := s.Answers[q.Index]; !ok || v == "" {
			out = append(out, q.Index)
		}
	}
	return out
}

func (s *CheckInSession) Clone() *CheckInSession {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Questions = append([]Question(nil), s.Questions...)
	cp.Traits = append([]string(nil), s.Traits...)
	cp.Answers = make(map[int]string, len(s.Answers))
	for k, v := range s.Answers {
		cp.Answers[k] = v
	}
	return &cp
}
