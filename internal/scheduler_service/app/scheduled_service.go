package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/raspisms/golang_services/internal/core_domain"
	"github.com/raspisms/golang_services/internal/platform/database"
	"github.com/raspisms/golang_services/internal/scheduler_service/domain"
)

// PerPage is the page size of the scheduled list.
const PerPage = 25

// CreateScheduledRequest is the user input of a scheduled message.
type CreateScheduledRequest struct {
	PhoneID      string    `json:"phone_id"`
	At           time.Time `json:"at" validate:"required"`
	Text         string    `json:"text" validate:"required,max=1000"`
	Flash        bool      `json:"flash"`
	Destinations []string  `json:"destinations" validate:"required,min=1,dive,required,max=20"`
}

// ScheduledService stores messages planned for later. Dispatching them is out of scope.
type ScheduledService struct {
	repo     domain.ScheduledRepository
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

func NewScheduledService(repo domain.ScheduledRepository, logger *slog.Logger) *ScheduledService {
	return &ScheduledService{
		repo:     repo,
		validate: validator.New(),
		logger:   logger.With("service", "scheduled"),
		now:      time.Now,
	}
}

func (s *ScheduledService) Create(ctx context.Context, userID string, req CreateScheduledRequest) (*core_domain.Scheduled, error) {
	destinations := make([]string, 0, len(req.Destinations))
	for _, d := range req.Destinations {
		if d = strings.TrimSpace(d); d != "" {
			destinations = append(destinations, d)
		}
	}
	req.Destinations = destinations
	req.Text = strings.TrimSpace(req.Text)

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidScheduled, err)
	}
	if req.At.Before(s.now()) {
		return nil, fmt.Errorf("%w: date is in the past", domain.ErrInvalidScheduled)
	}

	scheduled := &core_domain.Scheduled{
		UserID:       userID,
		PhoneID:      req.PhoneID,
		At:           req.At.UTC(),
		Text:         req.Text,
		Flash:        req.Flash,
		Destinations: req.Destinations,
	}
	if err := s.repo.Create(ctx, scheduled); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Message scheduled", "scheduled_id", scheduled.ID, "user_id", userID, "destinations", len(destinations))
	return scheduled, nil
}

func (s *ScheduledService) Get(ctx context.Context, userID, id string) (*core_domain.Scheduled, error) {
	return s.repo.GetForUser(ctx, userID, id)
}

// List returns a zero-based page of scheduled messages and the total count.
func (s *ScheduledService) List(ctx context.Context, userID string, page int) ([]*core_domain.Scheduled, int, error) {
	return s.repo.ListForUser(ctx, userID, PerPage, database.Offset(page, PerPage))
}

func (s *ScheduledService) Delete(ctx context.Context, userID, id string) error {
	return s.repo.DeleteForUser(ctx, userID, id)
}
