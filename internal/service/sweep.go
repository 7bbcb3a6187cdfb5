package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/satrioramadhan/scansek-api/internal/repository"
)

// SweepService removes accounts that never completed verification.
type SweepService struct {
	accounts  repository.AccountRepository
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewSweepService creates a sweep that deletes unverified accounts whose OTP
// expired more than retention ago.
func NewSweepService(accounts repository.AccountRepository, retention time.Duration, logger *slog.Logger) *SweepService {
	return &SweepService{accounts: accounts, retention: retention, logger: logger, now: time.Now}
}

// Run performs one sweep and returns the number of deleted accounts. It is
// safe to run concurrently with registrations and with itself.
func (s *SweepService) Run(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.retention)

	n, err := s.accounts.DeleteUnverifiedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep unverified accounts: %w", err)
	}
	sweptAccounts.Add(float64(n))

	s.logger.InfoContext(ctx, "unverified account sweep finished",
		slog.Int64("deleted", n),
		slog.Time("cutoff", cutoff),
	)
	return n, nil
}

// Start runs the sweep every interval until ctx is cancelled. Failures are
// logged and the next tick retries.
func (s *SweepService) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				s.logger.ErrorContext(ctx, "sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}
