package journal

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/pkg/dbctx"
)

// reserveSeq hands out the next per-child sequence for stream. tx must be an
// open transaction: the cursor row stays locked until it commits.
func reserveSeq(tx *gorm.DB, childID, stream string) (int64, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&types.LogStreamCursor{
		ChildID:   childID,
		Stream:    stream,
		NextSeq:   1,
		UpdatedAt: time.Now().UTC(),
	}).Error; err != nil {
		return 0, fmt.Errorf("init cursor: %w", err)
	}
	var cur types.LogStreamCursor
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("child_id = ? AND stream = ?", childID, stream).
		Take(&cur).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("cursor %s/%s vanished", childID, stream)
	}
	if err != nil {
		return 0, fmt.Errorf("lock cursor: %w", err)
	}
	seq := cur.NextSeq
	if err := tx.Model(&types.LogStreamCursor{}).
		Where("child_id = ? AND stream = ?", childID, stream).
		Updates(map[string]interface{}{"next_seq": seq + 1, "updated_at": time.Now().UTC()}).Error; err != nil {
		return 0, fmt.Errorf("advance cursor: %w", err)
	}
	return seq, nil
}

// inTx runs fn in the caller's transaction when there is one, else in a new one.
func inTx(dbc dbctx.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	conn := dbc.Conn(db)
	if dbc.Tx != nil {
		return fn(conn)
	}
	return conn.Transaction(fn)
}

// bySession returns the row recorded for sessionID, or nil when there is none.
func bySession[T any](conn *gorm.DB, sessionID uuid.UUID) (*T, error) {
	var row T
	err := conn.Where("session_id = ?", sessionID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session row: %w", err)
	}
	return &row, nil
}
