package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/seduc-go/academia-api/internal/models"
	appErrors "github.com/seduc-go/academia-api/pkg/errors"
)

const dashboardSummaryKey = "dashboard:summary"

type studentStatsRepository interface {
	Counts(ctx context.Context) (active, waitlisted, blocked int, err error)
	ModalityOccupancy(ctx context.Context) ([]models.ModalityOccupancy, error)
}

type attendanceCounter interface {
	CountSince(ctx context.Context, cutoff time.Time) (int, error)
}

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// DashboardService aggregates enrollment and attendance totals for the
// operator dashboard, cached in Redis between mutations.
type DashboardService struct {
	students   studentStatsRepository
	attendance attendanceCounter
	cache      dashboardCache
	ttl        time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewDashboardService constructs the dashboard service. Cache may be nil.
func NewDashboardService(students studentStatsRepository, attendance attendanceCounter, cache dashboardCache, ttl time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &DashboardService{students: students, attendance: attendance, cache: cache, ttl: ttl, logger: logger, now: time.Now}
}

// Summary returns the dashboard totals, served from cache when fresh.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	if s.cache != nil {
		var cached models.DashboardSummary
		err := s.cache.Get(ctx, dashboardSummaryKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	active, waitlisted, blocked, err := s.students.Counts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}

	occupancy, err := s.students.ModalityOccupancy(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate modality occupancy")
	}

	now := s.now().UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	checkIns, err := s.attendance.CountSince(ctx, todayStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count check-ins")
	}

	summary := &models.DashboardSummary{
		ActiveStudents:     active,
		WaitlistedStudents: waitlisted,
		BlockedStudents:    blocked,
		CheckInsToday:      checkIns,
		ModalityOccupancy:  occupancy,
		GeneratedAt:        now,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardSummaryKey, summary, s.ttl); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}
