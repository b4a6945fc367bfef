package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/seduc-go/academia-api/internal/models"
	appErrors "github.com/seduc-go/academia-api/pkg/errors"
)

type attendanceRepository interface {
	Create(ctx context.Context, record *models.AttendanceRecord) error
	ListSince(ctx context.Context, cutoff time.Time) ([]models.AttendanceDetail, error)
	CountSince(ctx context.Context, cutoff time.Time) (int, error)
}

type attendanceStudentLookup interface {
	FindByCPF(ctx context.Context, cpf string) (*models.Student, error)
}

// AttendanceService records and lists gym check-ins.
type AttendanceService struct {
	repo      attendanceRepository
	students  attendanceStudentLookup
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, students attendanceStudentLookup, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, students: students, cache: cache, validator: validate, logger: logger, now: time.Now}
}

// CheckInRequest is the kiosk check-in payload.
type CheckInRequest struct {
	CPF   string  `json:"cpf" validate:"required"`
	Photo *string `json:"photo"`
}

// CheckInResult pairs the stored record with the matched student.
type CheckInResult struct {
	Record  models.AttendanceRecord `json:"record"`
	Student models.Student          `json:"student"`
}

// CheckIn validates the cpf against the roster and appends a check-in
// record. Blocked students are refused with an access error; repeats on
// the same day are allowed.
func (s *AttendanceService) CheckIn(ctx context.Context, req CheckInRequest) (*CheckInResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-in payload")
	}

	cpf := models.NormalizeCPF(req.CPF)
	if cpf == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cpf must contain digits")
	}

	student, err := s.students.FindByCPF(ctx, cpf)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "cpf not enrolled")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up student")
	}
	if student.Blocked {
		return nil, appErrors.Clone(appErrors.ErrBlocked, "student is blocked from checking in")
	}

	now := s.now().UTC()
	record := &models.AttendanceRecord{
		StudentCPF: cpf,
		Timestamp:  now,
		Hour:       now.Format("15:04"),
		PhotoURL:   req.Photo,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record check-in")
	}

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, "dashboard:*"); err != nil {
			s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
		}
	}
	s.logger.Info("check-in recorded", zap.String("cpf", cpf), zap.String("hour", record.Hour))
	return &CheckInResult{Record: *record, Student: *student}, nil
}

// ListToday returns today's check-ins, newest first.
func (s *AttendanceService) ListToday(ctx context.Context) ([]models.AttendanceDetail, error) {
	records, err := s.repo.ListSince(ctx, s.todayStart())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// CountToday counts today's check-ins.
func (s *AttendanceService) CountToday(ctx context.Context) (int, error) {
	count, err := s.repo.CountSince(ctx, s.todayStart())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendance")
	}
	return count, nil
}

func (s *AttendanceService) todayStart() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
