package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/pkg/dbctx"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
)

type LogEntryRepo interface {
	// Append assigns id, seq and created_at and inserts the entry in one transaction.
	// A second append for the same session returns the row already recorded.
	Append(dbc dbctx.Context, row *types.LogEntry) (*types.LogEntry, error)
	// ListByChild returns up to limit most recent entries in chronological order.
	ListByChild(dbc dbctx.Context, childID string, limit int) ([]*types.LogEntry, error)
	// ListRecent returns up to limit entries, newest first.
	ListRecent(dbc dbctx.Context, childID string, limit int) ([]*types.LogEntry, error)
	CountByChild(dbc dbctx.Context, childID string) (int64, error)
}

type logEntryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLogEntryRepo(db *gorm.DB, log *logger.Logger) LogEntryRepo {
	return &logEntryRepo{db: db, log: log.With("repo", "LogEntryRepo")}
}

func (r *logEntryRepo) Append(dbc dbctx.Context, row *types.LogEntry) (*types.LogEntry, error) {
	if row == nil || strings.TrimSpace(row.ChildID) == "" {
		return nil, fmt.Errorf("missing child_id")
	}
	if row.Seq != 0 {
		return nil, fmt.Errorf("log entry already appended (seq=%d)", row.Seq)
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	// Rows appended outside a session are keyed by their own id.
	if row.SessionID == uuid.Nil {
		row.SessionID = row.ID
	}
	prior, err := bySession[types.LogEntry](dbc.Conn(r.db), row.SessionID)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		r.log.Info("session already recorded", "session_id", row.SessionID, "id", prior.ID)
		return prior, nil
	}
	err = inTx(dbc, r.db, func(tx *gorm.DB) error {
		seq, err := reserveSeq(tx, row.ChildID, types.StreamEntries)
		if err != nil {
			return err
		}
		row.Seq = seq
		row.CreatedAt = time.Now().UTC()
		return tx.Create(row).Error
	})
	if err != nil {
		row.Seq = 0
		// A concurrent append for the same session won the unique index.
		if prior, lookupErr := bySession[types.LogEntry](dbctx.Context{Ctx: dbc.Ctx}.Conn(r.db), row.SessionID); lookupErr == nil && prior != nil {
			return prior, nil
		}
		return nil, err
	}
	return row, nil
}

func (r *logEntryRepo) ListByChild(dbc dbctx.Context, childID string, limit int) ([]*types.LogEntry, error) {
	out, err := r.ListRecent(dbc, childID, limit)
	if err != nil {
		return nil, err
	}
	// Normalize to ASC for clients.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *logEntryRepo) ListRecent(dbc dbctx.Context, childID string, limit int) ([]*types.LogEntry, error) {
	if strings.TrimSpace(childID) == "" {
		return nil, fmt.Errorf("missing child_id")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []*types.LogEntry
	if err := dbc.Conn(r.db).
		Model(&types.LogEntry{}).
		Where("child_id = ?", childID).
		Order("created_at DESC").
		Order("seq DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *logEntryRepo) CountByChild(dbc dbctx.Context, childID string) (int64, error) {
	if strings.TrimSpace(childID) == "" {
		return 0, fmt.Errorf("missing child_id")
	}
	var n int64
	if err := dbc.Conn(r.db).
		Model(&types.LogEntry{}).
		Where("child_id = ?", childID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
