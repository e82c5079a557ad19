package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/raspisms/golang_services/internal/media_service/domain"
	"github.com/raspisms/golang_services/internal/platform/database"
)

const (
	// PerPage is the page size of the media list.
	PerPage  = 25
	mediaDir = "medias"
)

var ErrInvalidMedia = errors.New("invalid media")

// MediaService manages uploaded files and their links to messages.
// File and row are two independent steps: nothing makes them atomic.
type MediaService struct {
	repo    domain.MediaRepository
	dataDir string
	logger  *slog.Logger
}

func NewMediaService(repo domain.MediaRepository, dataDir string, logger *slog.Logger) *MediaService {
	return &MediaService{
		repo:    repo,
		dataDir: dataDir,
		logger:  logger.With("service", "media"),
	}
}

// Upload stores content under <data dir>/medias/<user>/<uuid><ext> and records it.
func (s *MediaService) Upload(ctx context.Context, userID, filename string, content io.Reader) (*domain.Media, error) {
	if userID == "" || strings.ContainsAny(userID, `/\`) {
		return nil, fmt.Errorf("%w: bad owner", ErrInvalidMedia)
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	rel := filepath.Join(mediaDir, userID, uuid.NewString()+ext)
	abs := filepath.Join(s.dataDir, rel)

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating media file: %w", err)
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		os.Remove(abs)
		return nil, fmt.Errorf("writing media file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(abs)
		return nil, fmt.Errorf("writing media file: %w", err)
	}

	m, err := s.Create(ctx, userID, rel)
	if err != nil {
		os.Remove(abs)
		mediaOperationsCounter.WithLabelValues("upload", "error").Inc()
		return nil, err
	}
	mediaOperationsCounter.WithLabelValues("upload", "success").Inc()
	return m, nil
}

// Create records a media for a file already present in the data directory.
func (s *MediaService) Create(ctx context.Context, userID, path string) (*domain.Media, error) {
	path, err := s.cleanPath(path)
	if err != nil {
		return nil, err
	}
	m := &domain.Media{UserID: userID, Path: path}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Media created", "media_id", m.ID, "user_id", userID)
	return m, nil
}

func (s *MediaService) UpdateForUser(ctx context.Context, userID, mediaID, path string) error {
	path, err := s.cleanPath(path)
	if err != nil {
		return err
	}
	return s.repo.UpdatePathForUser(ctx, userID, mediaID, path)
}

func (s *MediaService) GetForUser(ctx context.Context, userID, mediaID string) (*domain.Media, error) {
	return s.repo.GetForUser(ctx, userID, mediaID)
}

func (s *MediaService) ListForUser(ctx context.Context, userID string, page int) ([]*domain.Media, error) {
	return s.repo.ListForUser(ctx, userID, PerPage, database.Offset(page, PerPage))
}

// DeleteForUser removes the file then the row. A media the user does not own
// yields ErrMediaNotFound and leaves the file in place. A file already gone is tolerated.
func (s *MediaService) DeleteForUser(ctx context.Context, userID, mediaID string) error {
	m, err := s.repo.GetForUser(ctx, userID, mediaID)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dataDir, m.Path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		mediaOperationsCounter.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("removing media file: %w", err)
	}
	if err := s.repo.DeleteForUser(ctx, userID, mediaID); err != nil {
		mediaOperationsCounter.WithLabelValues("delete", "error").Inc()
		s.logger.ErrorContext(ctx, "Media file removed but row kept", "media_id", mediaID, "error", err)
		return err
	}
	mediaOperationsCounter.WithLabelValues("delete", "success").Inc()
	s.logger.InfoContext(ctx, "Media deleted", "media_id", mediaID, "user_id", userID)
	return nil
}

// LinkTo links one of the user's media to a message of the given kind.
func (s *MediaService) LinkTo(ctx context.Context, userID, mediaID, kind, resourceID string) error {
	k, err := domain.ParseResourceKind(kind)
	if err != nil {
		return err
	}
	if _, err := s.repo.GetForUser(ctx, userID, mediaID); err != nil {
		return err
	}
	if err := s.repo.Link(ctx, mediaID, k, resourceID); err != nil {
		return err
	}
	mediaOperationsCounter.WithLabelValues("link", "success").Inc()
	return nil
}

func (s *MediaService) UnlinkOf(ctx context.Context, userID, mediaID, kind, resourceID string) error {
	k, err := domain.ParseResourceKind(kind)
	if err != nil {
		return err
	}
	if _, err := s.repo.GetForUser(ctx, userID, mediaID); err != nil {
		return err
	}
	return s.repo.Unlink(ctx, mediaID, k, resourceID)
}

// UnlinkAllOf removes every link between the user's media and the resource.
func (s *MediaService) UnlinkAllOf(ctx context.Context, userID, kind, resourceID string) (int64, error) {
	k, err := domain.ParseResourceKind(kind)
	if err != nil {
		return 0, err
	}
	return s.repo.UnlinkAll(ctx, userID, k, resourceID)
}

func (s *MediaService) ListFor(ctx context.Context, userID, kind, resourceID string) ([]*domain.Media, error) {
	k, err := domain.ParseResourceKind(kind)
	if err != nil {
		return nil, err
	}
	return s.repo.ListFor(ctx, userID, k, resourceID)
}

func (s *MediaService) ListUnused(ctx context.Context, userID string) ([]*domain.Media, error) {
	return s.repo.ListUnused(ctx, userID)
}

// cleanPath keeps paths relative and inside the data directory.
func (s *MediaService) cleanPath(path string) (string, error) {
	path = filepath.Clean(strings.TrimSpace(path))
	if path == "." || filepath.IsAbs(path) || path == ".." || strings.HasPrefix(path, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path %q", ErrInvalidMedia, path)
	}
	return path, nil
}
