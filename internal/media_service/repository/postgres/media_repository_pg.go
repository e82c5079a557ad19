package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/raspisms/golang_services/internal/media_service/domain"
	"github.com/raspisms/golang_services/internal/platform/database"
)

type PgMediaRepository struct {
	db     database.Querier
	logger *slog.Logger
}

func NewPgMediaRepository(db database.Querier, logger *slog.Logger) *PgMediaRepository {
	return &PgMediaRepository{db: db, logger: logger}
}

const mediaColumns = `id, user_id, path, created_at`

func (r *PgMediaRepository) Create(ctx context.Context, m *domain.Media) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(ctx, `INSERT INTO media (`+mediaColumns+`) VALUES ($1, $2, $3, $4)`, m.ID, m.UserID, m.Path, m.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating media", "error", err, "media_id", m.ID)
		return fmt.Errorf("creating media: %w", err)
	}
	return nil
}

func (r *PgMediaRepository) GetForUser(ctx context.Context, userID, id string) (*domain.Media, error) {
	m, err := scanMedia(r.db.QueryRow(ctx, `SELECT `+mediaColumns+` FROM media WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMediaNotFound
	}
	return m, err
}

func (r *PgMediaRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Media, error) {
	return r.list(ctx, `SELECT `+mediaColumns+` FROM media WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
}

func (r *PgMediaRepository) UpdatePathForUser(ctx context.Context, userID, id, path string) error {
	tag, err := r.db.Exec(ctx, `UPDATE media SET path = $3 WHERE id = $1 AND user_id = $2`, id, userID, path)
	if err != nil {
		return fmt.Errorf("updating media: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMediaNotFound
	}
	return nil
}

func (r *PgMediaRepository) DeleteForUser(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM media WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error deleting media", "error", err, "media_id", id)
		return fmt.Errorf("deleting media: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMediaNotFound
	}
	return nil
}

// Link inserts the link only when the resource exists and belongs to the media owner.
// Linking twice is a no-op.
func (r *PgMediaRepository) Link(ctx context.Context, mediaID string, kind domain.ResourceKind, resourceID string) error {
	if !kind.Valid() {
		return domain.ErrUnknownResourceKind
	}
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (media_id, %[2]s)
		SELECT m.id, res.id FROM media m
		JOIN %[3]s res ON res.user_id = m.user_id
		WHERE m.id = $1 AND res.id = $2
		ON CONFLICT (media_id, %[2]s) DO UPDATE SET media_id = EXCLUDED.media_id`,
		kind.LinkTable(), kind.LinkColumn(), kind.Table())
	tag, err := r.db.Exec(ctx, query, mediaID, resourceID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error linking media", "error", err, "media_id", mediaID, "kind", kind.String())
		return fmt.Errorf("linking media to %s: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrResourceNotFound
	}
	return nil
}

func (r *PgMediaRepository) Unlink(ctx context.Context, mediaID string, kind domain.ResourceKind, resourceID string) error {
	if !kind.Valid() {
		return domain.ErrUnknownResourceKind
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE media_id = $1 AND %s = $2`, kind.LinkTable(), kind.LinkColumn())
	tag, err := r.db.Exec(ctx, query, mediaID, resourceID)
	if err != nil {
		return fmt.Errorf("unlinking media from %s: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLinkNotFound
	}
	return nil
}

// UnlinkAll removes every link of the user's media to the resource.
func (r *PgMediaRepository) UnlinkAll(ctx context.Context, userID string, kind domain.ResourceKind, resourceID string) (int64, error) {
	if !kind.Valid() {
		return 0, domain.ErrUnknownResourceKind
	}
	query := fmt.Sprintf(`DELETE FROM %s l USING media m WHERE l.media_id = m.id AND l.%s = $1 AND m.user_id = $2`,
		kind.LinkTable(), kind.LinkColumn())
	tag, err := r.db.Exec(ctx, query, resourceID, userID)
	if err != nil {
		return 0, fmt.Errorf("unlinking all media from %s: %w", kind, err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgMediaRepository) ListFor(ctx context.Context, userID string, kind domain.ResourceKind, resourceID string) ([]*domain.Media, error) {
	if !kind.Valid() {
		return nil, domain.ErrUnknownResourceKind
	}
	query := fmt.Sprintf(`
		SELECT m.id, m.user_id, m.path, m.created_at FROM media m
		JOIN %s l ON l.media_id = m.id
		WHERE l.%s = $1 AND m.user_id = $2
		ORDER BY m.created_at`, kind.LinkTable(), kind.LinkColumn())
	return r.list(ctx, query, resourceID, userID)
}

// ListUnused returns the user's media linked to no message of any kind.
func (r *PgMediaRepository) ListUnused(ctx context.Context, userID string) ([]*domain.Media, error) {
	var clauses []string
	for _, kind := range domain.ResourceKinds {
		clauses = append(clauses, fmt.Sprintf(`NOT EXISTS (SELECT 1 FROM %s l WHERE l.media_id = m.id)`, kind.LinkTable()))
	}
	query := `SELECT m.id, m.user_id, m.path, m.created_at FROM media m WHERE m.user_id = $1 AND ` +
		strings.Join(clauses, " AND ") + ` ORDER BY m.created_at`
	return r.list(ctx, query, userID)
}

func (r *PgMediaRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Media, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing media", "error", err)
		return nil, fmt.Errorf("listing media: %w", err)
	}
	defer rows.Close()

	var list []*domain.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func scanMedia(row pgx.Row) (*domain.Media, error) {
	var m domain.Media
	if err := row.Scan(&m.ID, &m.UserID, &m.Path, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning media: %w", err)
	}
	return &m, nil
}
