package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/raspisms/golang_services/internal/platform/database"
	"github.com/raspisms/golang_services/internal/sms_sending_service/domain"
)

type PgPhoneRepository struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgPhoneRepository(db database.Querier, logger *slog.Logger) *PgPhoneRepository {
	return &PgPhoneRepository{db: db, logger: logger.With("component", "phone_repository_pg")}
}

const phoneColumns = `id, user_id, name, adapter, adapter_data, created_at`

func (r *PgPhoneRepository) Create(ctx context.Context, phone *domain.Phone) error {
	if phone.ID == "" {
		phone.ID = uuid.NewString()
	}
	phone.CreatedAt = time.Now().UTC()

	query := `INSERT INTO phones (` + phoneColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Exec(ctx, query, phone.ID, phone.UserID, phone.Name, phone.Adapter, []byte(phone.AdapterData), phone.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrDuplicatePhone
		}
		r.logger.ErrorContext(ctx, "Error creating phone", "user_id", phone.UserID, "error", err)
		return fmt.Errorf("creating phone: %w", err)
	}
	return nil
}

func (r *PgPhoneRepository) GetByID(ctx context.Context, id string) (*domain.Phone, error) {
	query := `SELECT ` + phoneColumns + ` FROM phones WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *PgPhoneRepository) GetForUser(ctx context.Context, userID, id string) (*domain.Phone, error) {
	query := `SELECT ` + phoneColumns + ` FROM phones WHERE id = $1 AND user_id = $2`
	return r.scanOne(r.db.QueryRow(ctx, query, id, userID))
}

func (r *PgPhoneRepository) ListForUser(ctx context.Context, userID string) ([]*domain.Phone, error) {
	query := `SELECT ` + phoneColumns + ` FROM phones WHERE user_id = $1 ORDER BY name ASC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing phones: %w", err)
	}
	return collectPhones(rows)
}

func (r *PgPhoneRepository) ListAll(ctx context.Context) ([]*domain.Phone, error) {
	query := `SELECT ` + phoneColumns + ` FROM phones ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing all phones: %w", err)
	}
	return collectPhones(rows)
}

func (r *PgPhoneRepository) DeleteForUser(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM phones WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting phone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPhoneNotFound
	}
	return nil
}

func (r *PgPhoneRepository) scanOne(row pgx.Row) (*domain.Phone, error) {
	var p domain.Phone
	var data []byte
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Adapter, &data, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPhoneNotFound
		}
		return nil, fmt.Errorf("scanning phone: %w", err)
	}
	p.AdapterData = data
	return &p, nil
}

func collectPhones(rows pgx.Rows) ([]*domain.Phone, error) {
	defer rows.Close()
	var phones []*domain.Phone
	for rows.Next() {
		var p domain.Phone
		var data []byte
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Adapter, &data, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning phone: %w", err)
		}
		p.AdapterData = data
		phones = append(phones, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return phones, nil
}
