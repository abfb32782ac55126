package journal

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	EntryTypeInitial   = "initial"
	EntryTypeCheckIn   = "checkin"
	EntryTypeEmergency = "emergency"
)

type Recommendation struct {
	TraitName string `json:"trait_name"`
	GeneID    string `json:"gene_id"`
	Goal      string `json:"goal"`
	Activity  string `json:"activity"`
	TLDR      string `json:"tldr"`
	Frequency string `json:"frequency,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

type AnswerRecord struct {
	Index     int    `json:"index"`
	TraitName string `json:"trait_name,omitempty"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
}

// LogEntry is append-only. Order is (created_at, seq); seq is assigned per child at insert.
// A session produces at most one entry.
type LogEntry struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ChildID   string    `gorm:"column:child_id;not null;size:128;uniqueIndex:idx_log_entry_child_seq,priority:1;index:idx_log_entry_child_order,priority:1" json:"child_id"`
	Seq       int64     `gorm:"column:seq;not null;uniqueIndex:idx_log_entry_child_seq,priority:2" json:"seq"`
	SessionID uuid.UUID `gorm:"type:uuid;column:session_id;not null;uniqueIndex:idx_log_entry_session" json:"session_id"`
	EntryType string    `gorm:"column:entry_type;not null;size:32;index" json:"entry_type"`

	Summary         string                              `gorm:"column:summary;type:text;not null" json:"summary"`
	Recommendations datatypes.JSONSlice[Recommendation] `gorm:"column:recommendations;not null" json:"recommendations"`
	RawAnswers      datatypes.JSONSlice[AnswerRecord]   `gorm:"column:raw_answers" json:"raw_answers,omitempty"`
	Concern         string                              `gorm:"column:concern;type:text" json:"concern,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_log_entry_child_order,priority:2" json:"created_at"`
}

func (LogEntry) TableName() string { return "log_entry" }

// TraitsCovered lists the trait names the entry's recommendations reference.
func (e *LogEntry) TraitsCovered() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.Recommendations))
	for _, r := range e.Recommendations {
		out = append(out, r.TraitName)
	}
	return out
}
