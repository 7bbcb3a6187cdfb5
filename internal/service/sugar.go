package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/satrioramadhan/scansek-api/internal/domain"
	"github.com/satrioramadhan/scansek-api/internal/repository"
	apperrors "github.com/satrioramadhan/scansek-api/pkg/errors"
)

// SugarService manages an account's sugar intake log.
type SugarService struct {
	repo   repository.SugarRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewSugarService creates a new sugar log service.
func NewSugarService(repo repository.SugarRepository, logger *slog.Logger) *SugarService {
	return &SugarService{repo: repo, logger: logger, now: time.Now}
}

// SugarInput is the client-supplied part of a sugar entry.
type SugarInput struct {
	FoodName     string
	SugarPerPack int
	PackCount    int
	PackContent  *string
	TotalSugar   float64
	Teaspoons    float64
	RecordedAt   *time.Time
}

func (in SugarInput) validate() error {
	if in.SugarPerPack <= 0 || in.PackCount <= 0 {
		return apperrors.InvalidInput("sugar per pack and pack count must be greater than 0")
	}
	if in.TotalSugar <= 0 || in.Teaspoons <= 0 {
		return apperrors.InvalidInput("total sugar and teaspoons must be greater than 0")
	}
	return nil
}

// SugarListInput holds the listing filters as sent by the client. Dates are
// YYYY-MM-DD; Date takes precedence over From/To.
type SugarListInput struct {
	Date   string
	From   string
	To     string
	Search string
}

// Create records a new entry. RecordedAt defaults to now.
func (s *SugarService) Create(ctx context.Context, accountID string, input SugarInput) (*domain.SugarEntry, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	recordedAt := s.now().UTC()
	if input.RecordedAt != nil {
		recordedAt = input.RecordedAt.UTC()
	}

	entry := &domain.SugarEntry{
		ID:           uuid.New().String(),
		AccountID:    accountID,
		FoodName:     input.FoodName,
		SugarPerPack: input.SugarPerPack,
		PackCount:    input.PackCount,
		PackContent:  input.PackContent,
		TotalSugar:   input.TotalSugar,
		Teaspoons:    input.Teaspoons,
		RecordedAt:   recordedAt,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create sugar entry: %w", err)
	}

	s.logger.DebugContext(ctx, "sugar entry created",
		slog.String("account_id", accountID),
		slog.String("entry_id", entry.ID),
	)
	return entry, nil
}

// List returns the account's entries matching the filters, newest first.
func (s *SugarService) List(ctx context.Context, accountID string, input SugarListInput) ([]domain.SugarEntry, error) {
	filter := domain.SugarFilter{Search: input.Search}

	if input.Date != "" {
		day, err := parseDate("date", input.Date)
		if err != nil {
			return nil, err
		}
		filter.From, filter.To = day, day.AddDate(0, 0, 1)
	} else {
		if input.From != "" {
			from, err := parseDate("from", input.From)
			if err != nil {
				return nil, err
			}
			filter.From = from
		}
		if input.To != "" {
			to, err := parseDate("to", input.To)
			if err != nil {
				return nil, err
			}
			filter.To = to.AddDate(0, 0, 1)
		}
		if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
			return nil, apperrors.InvalidInput("from must not be after to")
		}
	}

	entries, err := s.repo.List(ctx, accountID, filter)
	if err != nil {
		return nil, fmt.Errorf("list sugar entries: %w", err)
	}
	if entries == nil {
		entries = []domain.SugarEntry{}
	}
	return entries, nil
}

// Update rewrites an entry owned by the account. RecordedAt is left unchanged.
func (s *SugarService) Update(ctx context.Context, accountID, id string, input SugarInput) (*domain.SugarEntry, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	entry := &domain.SugarEntry{
		ID:           id,
		AccountID:    accountID,
		FoodName:     input.FoodName,
		SugarPerPack: input.SugarPerPack,
		PackCount:    input.PackCount,
		PackContent:  input.PackContent,
		TotalSugar:   input.TotalSugar,
		Teaspoons:    input.Teaspoons,
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("update sugar entry: %w", err)
	}
	return entry, nil
}

// Delete removes an entry owned by the account.
func (s *SugarService) Delete(ctx context.Context, accountID, id string) error {
	if err := s.repo.Delete(ctx, accountID, id); err != nil {
		return fmt.Errorf("delete sugar entry: %w", err)
	}
	return nil
}

// parseDate parses a YYYY-MM-DD calendar date as midnight UTC.
func parseDate(field, value string) (time.Time, error) {
	day, err := time.ParseInLocation(time.DateOnly, value, time.UTC)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput(field + " must be a date in YYYY-MM-DD format")
	}
	return day, nil
}
