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
	"github.com/raspisms/golang_services/internal/inbound_processor_service/domain"
	"github.com/raspisms/golang_services/internal/platform/database"
)

type PgReceivedRepository struct {
	db     database.Querier
	logger *slog.Logger
}

// NewPgReceivedRepository creates a new PostgreSQL implementation of ReceivedRepository.
func NewPgReceivedRepository(db database.Querier, logger *slog.Logger) *PgReceivedRepository {
	return &PgReceivedRepository{db: db, logger: logger.With("component", "received_repository_pg")}
}

const receivedColumns = `id, user_id, phone_id, origin, text, status, at, created_at`

// Create inserts a new inbound message. Missing id, status and at are filled in.
func (r *PgReceivedRepository) Create(ctx context.Context, msg *core_domain.Received) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = time.Now().UTC()
	if msg.At.IsZero() {
		msg.At = msg.CreatedAt
	}
	if msg.Status == "" {
		msg.Status = core_domain.ReceivedStatusUnread
	}

	query := `INSERT INTO received (` + receivedColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, query, msg.ID, msg.UserID, msg.PhoneID, msg.Origin, msg.Text, msg.Status, msg.At, msg.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error inserting received message", "error", err, "phone_id", msg.PhoneID)
		return fmt.Errorf("creating received: %w", err)
	}
	r.logger.DebugContext(ctx, "Inserted received message", "id", msg.ID, "phone_id", msg.PhoneID)
	return nil
}

func (r *PgReceivedRepository) GetForUser(ctx context.Context, userID, id string) (*core_domain.Received, error) {
	query := `SELECT ` + receivedColumns + ` FROM received WHERE id = $1 AND user_id = $2`
	msg, err := scanReceived(r.db.QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrReceivedNotFound
	}
	return msg, err
}

func (r *PgReceivedRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*core_domain.Received, error) {
	query := `SELECT ` + receivedColumns + ` FROM received WHERE user_id = $1 ORDER BY at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing received: %w", err)
	}
	defer rows.Close()

	var messages []*core_domain.Received
	for rows.Next() {
		msg, err := scanReceived(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PgReceivedRepository) MarkRead(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE received SET status = $3 WHERE id = $1 AND user_id = $2`, id, userID, core_domain.ReceivedStatusRead)
	if err != nil {
		return fmt.Errorf("marking received as read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReceivedNotFound
	}
	return nil
}

func scanReceived(row pgx.Row) (*core_domain.Received, error) {
	var m core_domain.Received
	err := row.Scan(&m.ID, &m.UserID, &m.PhoneID, &m.Origin, &m.Text, &m.Status, &m.At, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning received: %w", err)
	}
	return &m, nil
}
