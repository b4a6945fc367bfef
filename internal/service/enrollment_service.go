package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/seduc-go/academia-api/internal/models"
	"github.com/seduc-go/academia-api/internal/repository"
	appErrors "github.com/seduc-go/academia-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByCPF(ctx context.Context, cpf string) (*models.Student, error)
	ExistsByCPF(ctx context.Context, cpf string, excludeID string) (bool, error)
	CreateWithAdmission(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateWithAdmission(ctx context.Context, student *models.Student) error
	SetBlockedByCPF(ctx context.Context, cpf string, blocked bool) error
	ListWaitlist(ctx context.Context, slot *models.TrainingSlot) ([]models.Student, error)
	DeleteAndPromote(ctx context.Context, id string) (*models.Student, error)
	PromoteNext(ctx context.Context, slot models.TrainingSlot) (*models.Student, error)
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// EnrollmentService coordinates admission, waitlist and roster workflows.
type EnrollmentService struct {
	repo      studentRepository
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs the enrollment service. Cache may be
// nil when Redis is disabled.
func NewEnrollmentService(repo studentRepository, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// EnrollStudentRequest is the admission payload.
type EnrollStudentRequest struct {
	CPF          string `json:"cpf" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Department   string `json:"department"`
	Phone        string `json:"phone"`
	BirthDate    string `json:"birthDate" validate:"required"`
	Gender       string `json:"gender"`
	Modality     string `json:"modality" validate:"required"`
	TrainingDays string `json:"trainingDays" validate:"required"`
	TrainingTime string `json:"trainingTime" validate:"required"`
	Turma        string `json:"turma"`
}

// UpdateStudentRequest mirrors the admission payload for edits.
type UpdateStudentRequest struct {
	CPF          string `json:"cpf" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Department   string `json:"department"`
	Phone        string `json:"phone"`
	BirthDate    string `json:"birthDate" validate:"required"`
	Gender       string `json:"gender"`
	Modality     string `json:"modality" validate:"required"`
	TrainingDays string `json:"trainingDays" validate:"required"`
	TrainingTime string `json:"trainingTime" validate:"required"`
	Turma        string `json:"turma"`
}

// PromoteRequest identifies the slot whose waitlist head should be admitted.
type PromoteRequest struct {
	Modality     string `json:"modality" validate:"required"`
	TrainingDays string `json:"trainingDays" validate:"required"`
	TrainingTime string `json:"trainingTime" validate:"required"`
	Turma        string `json:"turma"`
}

// EnrollmentResult pairs the persisted student with the admission outcome.
type EnrollmentResult struct {
	Student    models.Student `json:"student"`
	Waitlisted bool           `json:"waitlisted"`
}

// DeletionResult reports the removal and the student promoted in its place.
type DeletionResult struct {
	DeletedID string          `json:"deletedId"`
	Promoted  *models.Student `json:"promoted,omitempty"`
}

func (s *EnrollmentService) parseSlot(modality, days, timeLabel, turma string) (models.TrainingSlot, *appErrors.Error) {
	slot := models.TrainingSlot{
		Modality:     models.Modality(modality),
		TrainingDays: models.TrainingDays(days),
		TrainingTime: timeLabel,
		Turma:        models.Turma(turma),
	}
	if !slot.Modality.Valid() {
		return slot, appErrors.Clone(appErrors.ErrValidation, "unknown modality")
	}
	if !slot.TrainingDays.Valid() {
		return slot, appErrors.Clone(appErrors.ErrValidation, "unknown training days pattern")
	}
	if !slot.Turma.Valid() {
		return slot, appErrors.Clone(appErrors.ErrValidation, "unknown turma")
	}
	if !models.ValidTrainingTime(slot.Modality, slot.TrainingTime) {
		return slot, appErrors.Clone(appErrors.ErrValidation, "training time not available for modality")
	}
	return slot, nil
}

// Enroll admits a student into the requested training slot or places
// them on its waitlist when the slot is full.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollStudentRequest) (*EnrollmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	cpf := models.NormalizeCPF(req.CPF)
	if len(cpf) != 11 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cpf must contain 11 digits")
	}

	slot, verr := s.parseSlot(req.Modality, req.TrainingDays, req.TrainingTime, req.Turma)
	if verr != nil {
		return nil, verr
	}

	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid birth date, expected YYYY-MM-DD")
	}

	exists, err := s.repo.ExistsByCPF(ctx, cpf, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate cpf")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cpf already enrolled")
	}

	student := &models.Student{
		CPF:          cpf,
		Name:         req.Name,
		Department:   req.Department,
		Phone:        req.Phone,
		BirthDate:    birthDate,
		Age:          models.AgeAt(birthDate, time.Now()),
		Gender:       req.Gender,
		Modality:     slot.Modality,
		TrainingDays: slot.TrainingDays,
		TrainingTime: slot.TrainingTime,
		Turma:        slot.Turma,
	}
	if err := s.repo.CreateWithAdmission(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}

	s.invalidateDashboard(ctx)
	s.logger.Info("student enrolled",
		zap.String("id", student.ID),
		zap.String("modality", string(student.Modality)),
		zap.Bool("waitlisted", student.OnWaitlist))

	return &EnrollmentResult{Student: *student, Waitlisted: student.OnWaitlist}, nil
}

// Roster returns the admitted students grouped by training time.
func (s *EnrollmentService) Roster(ctx context.Context, filter models.StudentFilter) ([]models.TimeGroup, error) {
	active := false
	filter.OnWaitlist = &active
	students, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return models.GroupByTrainingTime(students), nil
}

// List returns students matching the filter without grouping.
func (s *EnrollmentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	students, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// Get loads a single student.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Waitlist returns waitlisted students FIFO with 1-based queue positions.
func (s *EnrollmentService) Waitlist(ctx context.Context, slot *models.TrainingSlot) ([]models.WaitlistEntry, error) {
	if slot != nil && !slot.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid slot filter")
	}
	students, err := s.repo.ListWaitlist(ctx, slot)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list waitlist")
	}
	entries := make([]models.WaitlistEntry, len(students))
	for i, st := range students {
		entries[i] = models.WaitlistEntry{Position: i + 1, Student: st}
	}
	return entries, nil
}

// Update applies profile edits. Moving the student to a different slot
// re-runs the admission decision against the target slot.
func (s *EnrollmentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	cpf := models.NormalizeCPF(req.CPF)
	if len(cpf) != 11 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cpf must contain 11 digits")
	}
	slot, verr := s.parseSlot(req.Modality, req.TrainingDays, req.TrainingTime, req.Turma)
	if verr != nil {
		return nil, verr
	}
	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid birth date, expected YYYY-MM-DD")
	}

	if cpf != current.CPF {
		exists, err := s.repo.ExistsByCPF(ctx, cpf, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate cpf")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "cpf already enrolled")
		}
	}

	slotChanged := slot != current.Slot()

	updated := *current
	updated.CPF = cpf
	updated.Name = req.Name
	updated.Department = req.Department
	updated.Phone = req.Phone
	updated.BirthDate = birthDate
	updated.Age = models.AgeAt(birthDate, time.Now())
	updated.Gender = req.Gender
	updated.Modality = slot.Modality
	updated.TrainingDays = slot.TrainingDays
	updated.TrainingTime = slot.TrainingTime
	updated.Turma = slot.Turma

	if slotChanged {
		err = s.repo.UpdateWithAdmission(ctx, &updated)
	} else {
		err = s.repo.Update(ctx, &updated)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	s.invalidateDashboard(ctx)
	return &updated, nil
}

// Delete removes the student and reports the waitlisted student, if
// any, promoted into the freed seat.
func (s *EnrollmentService) Delete(ctx context.Context, id string) (*DeletionResult, error) {
	promoted, err := s.repo.DeleteAndPromote(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}

	s.invalidateDashboard(ctx)
	if promoted != nil {
		s.logger.Info("waitlisted student promoted",
			zap.String("deleted", id),
			zap.String("promoted", promoted.ID))
	}
	return &DeletionResult{DeletedID: id, Promoted: promoted}, nil
}

// Promote admits the earliest waitlisted student of the given slot.
func (s *EnrollmentService) Promote(ctx context.Context, req PromoteRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid promote payload")
	}
	slot, verr := s.parseSlot(req.Modality, req.TrainingDays, req.TrainingTime, req.Turma)
	if verr != nil {
		return nil, verr
	}

	promoted, err := s.repo.PromoteNext(ctx, slot)
	if err != nil {
		if errors.Is(err, repository.ErrSlotFull) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "training slot is at capacity")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote student")
	}
	if promoted == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "waitlist is empty for this slot")
	}

	s.invalidateDashboard(ctx)
	return promoted, nil
}

// SetBlocked toggles the attendance block flag by cpf.
func (s *EnrollmentService) SetBlocked(ctx context.Context, rawCPF string, blocked bool) (*models.Student, error) {
	cpf := models.NormalizeCPF(rawCPF)
	if len(cpf) != 11 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cpf must contain 11 digits")
	}
	if err := s.repo.SetBlockedByCPF(ctx, cpf, blocked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update block flag")
	}
	student, err := s.repo.FindByCPF(ctx, cpf)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	s.invalidateDashboard(ctx)
	return student, nil
}

func (s *EnrollmentService) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
