package journal

import "time"

const (
	StreamEntries     = "entries"
	StreamMedicalLogs = "medical_logs"
)

// LogStreamCursor holds the next insertion sequence per (child, stream).
// Appends lock the row FOR UPDATE before assigning seq.
type LogStreamCursor struct {
	ChildID   string    `gorm:"column:child_id;primaryKey;size:128" json:"child_id"`
	Stream    string    `gorm:"column:stream;primaryKey;size:32" json:"stream"`
	NextSeq   int64     `gorm:"column:next_seq;not null" json:"next_seq"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (LogStreamCursor) TableName() string { return "log_stream_cursor" }
