package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/raspisms/golang_services/internal/core_domain"
	"github.com/raspisms/golang_services/internal/platform/database"
	"github.com/raspisms/golang_services/internal/scheduler_service/domain"
)

type PgScheduledRepository struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgScheduledRepository(db database.Querier, logger *slog.Logger) *PgScheduledRepository {
	return &PgScheduledRepository{db: db, logger: logger}
}

const scheduledColumns = `id, user_id, phone_id, at, text, flash, destinations, created_at, updated_at`

func (r *PgScheduledRepository) Create(ctx context.Context, s *core_domain.Scheduled) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	// phone_id is nullable: no phone means "any phone of the user".
	var phoneID *string
	if s.PhoneID != "" {
		phoneID = &s.PhoneID
	}
	query := `INSERT INTO scheduled (` + scheduledColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Exec(ctx, query,
		s.ID, s.UserID, phoneID, s.At, s.Text, s.Flash, s.Destinations, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating scheduled message", "error", err, "scheduled_id", s.ID)
		return fmt.Errorf("creating scheduled: %w", err)
	}
	r.logger.InfoContext(ctx, "Scheduled message created", "scheduled_id", s.ID, "at", s.At)
	return nil
}

func (r *PgScheduledRepository) GetForUser(ctx context.Context, userID, id string) (*core_domain.Scheduled, error) {
	query := `SELECT ` + scheduledColumns + ` FROM scheduled WHERE id = $1 AND user_id = $2`
	s, err := scanScheduled(r.db.QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return s, err
}

func (r *PgScheduledRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*core_domain.Scheduled, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM scheduled WHERE user_id = $1`, userID).Scan(&total); err != nil {
		r.logger.ErrorContext(ctx, "Error counting scheduled messages", "error", err)
		return nil, 0, fmt.Errorf("counting scheduled: %w", err)
	}
	if total == 0 {
		return []*core_domain.Scheduled{}, 0, nil
	}

	query := `SELECT ` + scheduledColumns + ` FROM scheduled WHERE user_id = $1 ORDER BY at ASC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing scheduled messages", "error", err)
		return nil, 0, fmt.Errorf("listing scheduled: %w", err)
	}
	defer rows.Close()

	var list []*core_domain.Scheduled
	for rows.Next() {
		s, err := scanScheduled(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *PgScheduledRepository) DeleteForUser(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM scheduled WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error deleting scheduled message", "error", err, "scheduled_id", id)
		return fmt.Errorf("deleting scheduled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	r.logger.InfoContext(ctx, "Scheduled message deleted", "scheduled_id", id)
	return nil
}

func scanScheduled(row pgx.Row) (*core_domain.Scheduled, error) {
	var (
		s       core_domain.Scheduled
		phoneID *string
	)
	err := row.Scan(&s.ID, &s.UserID, &phoneID, &s.At, &s.Text, &s.Flash, &s.Destinations, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning scheduled: %w", err)
	}
	if phoneID != nil {
		s.PhoneID = *phoneID
	}
	return &s, nil
}
