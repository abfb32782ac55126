package journal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/pkg/dbctx"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
)

type MedicalLogRepo interface {
	// Append returns the row already recorded when the session was appended before.
	Append(dbc dbctx.Context, row *types.MedicalVisitLog) (*types.MedicalVisitLog, error)
	ListByChild(dbc dbctx.Context, childID string, limit int) ([]*types.MedicalVisitLog, error)
	// GetByID returns nil, nil when the log does not exist for the child.
	GetByID(dbc dbctx.Context, childID string, id uuid.UUID) (*types.MedicalVisitLog, error)
	// ListByTraitSince returns logs discussing trait whose conversation date is at or after since, newest first.
	ListByTraitSince(dbc dbctx.Context, childID, trait string, since time.Time) ([]*types.MedicalVisitLog, error)
}

type medicalLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMedicalLogRepo(db *gorm.DB, log *logger.Logger) MedicalLogRepo {
	return &medicalLogRepo{db: db, log: log.With("repo", "MedicalLogRepo")}
}

func (r *medicalLogRepo) Append(dbc dbctx.Context, row *types.MedicalVisitLog) (*types.MedicalVisitLog, error) {
	if row == nil || strings.TrimSpace(row.ChildID) == "" {
		return nil, fmt.Errorf("missing child_id")
	}
	if row.Seq != 0 {
		return nil, fmt.Errorf("medical log already appended (seq=%d)", row.Seq)
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	// Rows appended outside a session are keyed by their own id.
	if row.SessionID == uuid.Nil {
		row.SessionID = row.ID
	}
	prior, err := bySession[types.MedicalVisitLog](dbc.Conn(r.db), row.SessionID)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		r.log.Info("session already recorded", "session_id", row.SessionID, "id", prior.ID)
		return prior, nil
	}
	err = inTx(dbc, r.db, func(tx *gorm.DB) error {
		seq, err := reserveSeq(tx, row.ChildID, types.StreamMedicalLogs)
		if err != nil {
			return err
		}
		row.Seq = seq
		row.CreatedAt = time.Now().UTC()
		if row.ConversationDate.IsZero() {
			row.ConversationDate = row.CreatedAt
		}
		return tx.Create(row).Error
	})
	if err != nil {
		row.Seq = 0
		// A concurrent append for the same session won the unique index.
		if prior, lookupErr := bySession[types.MedicalVisitLog](dbctx.Context{Ctx: dbc.Ctx}.Conn(r.db), row.SessionID); lookupErr == nil && prior != nil {
			return prior, nil
		}
		return nil, err
	}
	return row, nil
}

func (r *medicalLogRepo) ListByChild(dbc dbctx.Context, childID string, limit int) ([]*types.MedicalVisitLog, error) {
	if strings.TrimSpace(childID) == "" {
		return nil, fmt.Errorf("missing child_id")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []*types.MedicalVisitLog
	if err := dbc.Conn(r.db).
		Model(&types.MedicalVisitLog{}).
		Where("child_id = ?", childID).
		Order("created_at DESC").
		Order("seq DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *medicalLogRepo) GetByID(dbc dbctx.Context, childID string, id uuid.UUID) (*types.MedicalVisitLog, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	var out types.MedicalVisitLog
	err := dbc.Conn(r.db).
		Where("child_id = ? AND id = ?", childID, id).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *medicalLogRepo) ListByTraitSince(dbc dbctx.Context, childID, trait string, since time.Time) ([]*types.MedicalVisitLog, error) {
	if strings.TrimSpace(childID) == "" {
		return nil, fmt.Errorf("missing child_id")
	}
	trait = strings.TrimSpace(trait)
	var rows []*types.MedicalVisitLog
	if err := dbc.Conn(r.db).
		Model(&types.MedicalVisitLog{}).
		Where("child_id = ? AND conversation_date >= ?", childID, since.UTC()).
		Order("created_at DESC").
		Order("seq DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	// traits_discussed is a JSON column; filtered in memory.
	out := rows[:0]
	for _, row := range rows {
		for _, t := range row.TraitsDiscussed {
			if strings.EqualFold(t, trait) {
				out = append(out, row)
				break
			}
		}
	}
	return out, nil
}
