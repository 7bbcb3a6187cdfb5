package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/satrioramadhan/scansek-api/internal/domain"
	"github.com/satrioramadhan/scansek-api/internal/repository"
	apperrors "github.com/satrioramadhan/scansek-api/pkg/errors"
)

// WaterService manages the per-day drink reminder times of an account.
type WaterService struct {
	repo   repository.WaterRepository
	logger *slog.Logger
}

// NewWaterService creates a new water log service.
func NewWaterService(repo repository.WaterRepository, logger *slog.Logger) *WaterService {
	return &WaterService{repo: repo, logger: logger}
}

// Get returns the log for date. A day with nothing logged yields an empty list.
func (s *WaterService) Get(ctx context.Context, accountID, date string) (*domain.WaterLog, error) {
	if date == "" {
		return nil, apperrors.InvalidInput("tanggal is required")
	}
	day, err := parseDate("tanggal", date)
	if err != nil {
		return nil, err
	}

	times, err := s.repo.Get(ctx, accountID, day)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		times = []string{}
	case err != nil:
		return nil, fmt.Errorf("get water log: %w", err)
	}
	return &domain.WaterLog{Date: date, Times: times}, nil
}

// AddTime records hhmm on date. Adding a time twice keeps one copy.
func (s *WaterService) AddTime(ctx context.Context, accountID, date, hhmm string) error {
	day, err := parseDate("tanggal", date)
	if err != nil {
		return err
	}
	if err := checkTime(hhmm); err != nil {
		return err
	}

	if err := s.repo.AddTime(ctx, accountID, day, hhmm); err != nil {
		return fmt.Errorf("add water time: %w", err)
	}

	s.logger.DebugContext(ctx, "water time logged",
		slog.String("account_id", accountID),
		slog.String("date", date),
		slog.String("time", hhmm),
	)
	return nil
}

// DeleteDay removes every time logged on date.
func (s *WaterService) DeleteDay(ctx context.Context, accountID, date string) error {
	day, err := parseDate("tanggal", date)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteDay(ctx, accountID, day); err != nil {
		return fmt.Errorf("delete water day: %w", err)
	}
	return nil
}

// RemoveTime removes one time from date.
func (s *WaterService) RemoveTime(ctx context.Context, accountID, date, hhmm string) error {
	day, err := parseDate("tanggal", date)
	if err != nil {
		return err
	}
	if err := checkTime(hhmm); err != nil {
		return err
	}
	if err := s.repo.RemoveTime(ctx, accountID, day, hhmm); err != nil {
		return fmt.Errorf("remove water time: %w", err)
	}
	return nil
}

func checkTime(hhmm string) error {
	if _, err := time.Parse("15:04", hhmm); err != nil || len(hhmm) != 5 {
		return apperrors.InvalidInput("jam must be a time in HH:MM format")
	}
	return nil
}
