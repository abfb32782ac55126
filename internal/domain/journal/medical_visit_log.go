package journal

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const MedicalDisclaimer = "This summary is for informational purposes only and is not medical advice. Share it with your pediatrician, and call emergency services if your child's symptoms are severe."

// MedicalVisitLog is the only durable trace of a consultation; the transcript is never stored.
type MedicalVisitLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ChildID   string    `gorm:"column:child_id;not null;size:128;uniqueIndex:idx_medical_log_child_seq,priority:1;index:idx_medical_log_child_order,priority:1" json:"child_id"`
	Seq       int64     `gorm:"column:seq;not null;uniqueIndex:idx_medical_log_child_seq,priority:2" json:"seq"`
	SessionID uuid.UUID `gorm:"type:uuid;column:session_id;not null;uniqueIndex:idx_medical_log_session" json:"session_id"`

	ConversationDate         time.Time                   `gorm:"column:conversation_date;not null" json:"conversation_date"`
	ProblemDiscussed         string                      `gorm:"column:problem_discussed;type:text;not null" json:"problem_discussed"`
	ImmediateRecommendations datatypes.JSONSlice[string] `gorm:"column:immediate_recommendations" json:"immediate_recommendations"`
	FollowUpQuestions        datatypes.JSONSlice[string] `gorm:"column:follow_up_questions" json:"follow_up_questions"`
	TraitsDiscussed          datatypes.JSONSlice[string] `gorm:"column:traits_discussed" json:"traits_discussed"`
	EmergencyIndicators      datatypes.JSONSlice[string] `gorm:"column:emergency_indicators" json:"emergency_indicators"`
	Disclaimer               string                      `gorm:"column:disclaimer;type:text" json:"disclaimer"`

	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_medical_log_child_order,priority:2" json:"created_at"`
}

func (MedicalVisitLog) TableName() string { return "medical_visit_log" }

func (m *MedicalVisitLog) HasEmergency() bool {
	return m != nil && len(m.EmergencyIndicators) > 0
}
