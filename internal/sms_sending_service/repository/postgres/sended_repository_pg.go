package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/raspisms/golang_services/internal/core_domain"
	"github.com/raspisms/golang_services/internal/platform/database"
	"github.com/raspisms/golang_services/internal/sms_sending_service/domain"
)

type PgSendedRepository struct {
	db database.Querier
}

func NewPgSendedRepository(db database.Querier) *PgSendedRepository {
	return &PgSendedRepository{db: db}
}

const sendedColumns = `id, user_id, phone_id, destination, text, flash, uid, status, error, at, updated_at`

func (r *PgSendedRepository) Create(ctx context.Context, s *core_domain.Sended) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if s.At.IsZero() {
		s.At = now
	}
	s.UpdatedAt = now
	if s.Status == "" {
		s.Status = core_domain.SendedStatusUnknown
	}

	query := `INSERT INTO sended (` + sendedColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.Exec(ctx, query,
		s.ID, s.UserID, s.PhoneID, s.Destination, s.Text, s.Flash, s.UID, s.Status, s.Error, s.At, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating sended: %w", err)
	}
	return nil
}

func (r *PgSendedRepository) GetForUser(ctx context.Context, userID, id string) (*core_domain.Sended, error) {
	query := `SELECT ` + sendedColumns + ` FROM sended WHERE id = $1 AND user_id = $2`
	s, err := scanSended(r.db.QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSendedNotFound
	}
	return s, err
}

func (r *PgSendedRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*core_domain.Sended, error) {
	query := `SELECT ` + sendedColumns + ` FROM sended WHERE user_id = $1 ORDER BY at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing sended: %w", err)
	}
	defer rows.Close()

	var messages []*core_domain.Sended
	for rows.Next() {
		s, err := scanSended(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PgSendedRepository) UpdateStatusByUID(ctx context.Context, phoneID, uid string, status core_domain.SendedStatus) (*core_domain.Sended, error) {
	query := `
		UPDATE sended SET status = $3, updated_at = $4
		WHERE phone_id = $1 AND uid = $2
		RETURNING ` + sendedColumns
	s, err := scanSended(r.db.QueryRow(ctx, query, phoneID, uid, status, time.Now().UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSendedNotFound
	}
	return s, err
}

func scanSended(row pgx.Row) (*core_domain.Sended, error) {
	var s core_domain.Sended
	err := row.Scan(&s.ID, &s.UserID, &s.PhoneID, &s.Destination, &s.Text, &s.Flash, &s.UID, &s.Status, &s.Error, &s.At, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning sended: %w", err)
	}
	return &s, nil
}
