package sessions

import (
	"time"

	"github.com/google/uuid"
)

const (
	SpeakerParent    = "parent"
	SpeakerAssistant = "assistant"
)

type Turn struct {
	Speaker  string    `json:"speaker"`
	Text     string    `json:"text"`
	ImageURL string    `json:"image_url,omitempty"`
	At       time.Time `json:"at"`
}

// ConversationSession holds a consultation transcript in memory. Turns are
// erased when the session completes or is discarded.
type ConversationSession struct {
	ID             uuid.UUID `json:"id"`
	ChildID        string    `json:"child_id"`
	Status         string    `json:"status"`
	Turns          []Turn    `json:"turns,omitempty"`
	DetectedTopics []string  `json:"detected_topics"`
	EmergencyFlags []string  `json:"emergency_flags"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Erase drops every turn, including attached images.
func (s *ConversationSession) Erase() {
	for i := range s.Turns {
		s.Turns[i] = Turn{}
	}
	s.Turns = nil
}

func (s *ConversationSession) Clone() *ConversationSession {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Turns = append([]Turn(nil), s.Turns...)
	cp.DetectedTopics = append([]string(nil), s.DetectedTopics...)
	cp.EmergencyFlags = append([]string(nil), s.EmergencyFlags...)
	return &cp
}
