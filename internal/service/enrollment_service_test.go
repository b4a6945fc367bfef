package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seduc-go/academia-api/internal/models"
	"github.com/seduc-go/academia-api/internal/repository"
	appErrors "github.com/seduc-go/academia-api/pkg/errors"
)

// mockStudentRepo mirrors the admission semantics of the SQL repository
// in memory: capacity-bounded slots with FIFO waitlists.
type mockStudentRepo struct {
	capacity int
	students []models.Student
	seq      int
}

func newMockStudentRepo(capacity int) *mockStudentRepo {
	return &mockStudentRepo{capacity: capacity}
}

func (m *mockStudentRepo) countActive(slot models.TrainingSlot) int {
	count := 0
	for _, s := range m.students {
		if !s.OnWaitlist && s.Slot() == slot {
			count++
		}
	}
	return count
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	var out []models.Student
	for _, s := range m.students {
		if filter.OnWaitlist != nil && s.OnWaitlist != *filter.OnWaitlist {
			continue
		}
		if filter.Modality != nil && s.Modality != *filter.Modality {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	for _, s := range m.students {
		if s.ID == id {
			st := s
			return &st, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindByCPF(ctx context.Context, cpf string) (*models.Student, error) {
	for _, s := range m.students {
		if s.CPF == cpf {
			st := s
			return &st, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByCPF(ctx context.Context, cpf string, excludeID string) (bool, error) {
	for _, s := range m.students {
		if s.CPF == cpf && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) CreateWithAdmission(ctx context.Context, student *models.Student) error {
	m.seq++
	if student.ID == "" {
		student.ID = fmt.Sprintf("stu-%d", m.seq)
	}
	student.CreatedAt = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Minute)
	student.OnWaitlist = m.countActive(student.Slot()) >= m.capacity
	m.students = append(m.students, *student)
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	for i, s := range m.students {
		if s.ID == student.ID {
			m.students[i] = *student
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockStudentRepo) UpdateWithAdmission(ctx context.Context, student *models.Student) error {
	student.OnWaitlist = m.countActive(student.Slot()) >= m.capacity
	return m.Update(ctx, student)
}

func (m *mockStudentRepo) SetBlockedByCPF(ctx context.Context, cpf string, blocked bool) error {
	for i, s := range m.students {
		if s.CPF == cpf {
			m.students[i].Blocked = blocked
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockStudentRepo) ListWaitlist(ctx context.Context, slot *models.TrainingSlot) ([]models.Student, error) {
	var out []models.Student
	for _, s := range m.students {
		if !s.OnWaitlist {
			continue
		}
		if slot != nil && s.Slot() != *slot {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *mockStudentRepo) DeleteAndPromote(ctx context.Context, id string) (*models.Student, error) {
	var removed *models.Student
	for i, s := range m.students {
		if s.ID == id {
			st := s
			removed = &st
			m.students = append(m.students[:i], m.students[i+1:]...)
			break
		}
	}
	if removed == nil {
		return nil, sql.ErrNoRows
	}
	if removed.OnWaitlist {
		return nil, nil
	}
	return m.promoteFirst(removed.Slot())
}

func (m *mockStudentRepo) PromoteNext(ctx context.Context, slot models.TrainingSlot) (*models.Student, error) {
	if m.countActive(slot) >= m.capacity {
		for _, s := range m.students {
			if s.OnWaitlist && s.Slot() == slot {
				return nil, repository.ErrSlotFull
			}
		}
		return nil, nil
	}
	return m.promoteFirst(slot)
}

func (m *mockStudentRepo) promoteFirst(slot models.TrainingSlot) (*models.Student, error) {
	for i, s := range m.students {
		if s.OnWaitlist && s.Slot() == slot {
			if m.countActive(slot) >= m.capacity {
				return nil, repository.ErrSlotFull
			}
			m.students[i].OnWaitlist = false
			st := m.students[i]
			return &st, nil
		}
	}
	return nil, nil
}

func enrollRequest(cpf, name string) EnrollStudentRequest {
	return EnrollStudentRequest{
		CPF:          cpf,
		Name:         name,
		Department:   "SEDUC",
		BirthDate:    "1990-05-10",
		Gender:       "Feminino",
		Modality:     "Academia",
		TrainingDays: "Segunda, Quarta e Sexta",
		TrainingTime: "07h",
		Turma:        "Turma A",
	}
}

func fakeCPF(i int) string {
	return fmt.Sprintf("%011d", 10000000000+i)
}

func TestEnrollAdmitsUntilCapacityThenWaitlists(t *testing.T) {
	repo := newMockStudentRepo(12)
	svc := NewEnrollmentService(repo, nil, nil, nil)

	for i := 0; i < 12; i++ {
		result, err := svc.Enroll(context.Background(), enrollRequest(fakeCPF(i), fmt.Sprintf("Aluno %d", i)))
		require.NoError(t, err)
		assert.False(t, result.Waitlisted, "seat %d should be admitted", i)
	}

	result, err := svc.Enroll(context.Background(), enrollRequest(fakeCPF(12), "Aluno 12"))
	require.NoError(t, err)
	assert.True(t, result.Waitlisted)

	entries, err := svc.Waitlist(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Position)
}

func TestEnrollRejectsDuplicateCPF(t *testing.T) {
	repo := newMockStudentRepo(12)
	svc := NewEnrollmentService(repo, nil, nil, nil)

	_, err := svc.Enroll(context.Background(), enrollRequest("111.111.111-11", "Ana"))
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), enrollRequest("11111111111", "Ana Clone"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestEnrollRejectsIllegalSlot(t *testing.T) {
	repo := newMockStudentRepo(12)
	svc := NewEnrollmentService(repo, nil, nil, nil)

	req := enrollRequest(fakeCPF(1), "Ana")
	req.Modality = "Funcional"
	req.TrainingTime = "06h" // Academia-only label
	_, err := svc.Enroll(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req = enrollRequest(fakeCPF(2), "Bia")
	req.TrainingTime = ""
	_, err = svc.Enroll(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollNormalizesCPFAndDerivesAge(t *testing.T) {
	repo := newMockStudentRepo(12)
	svc := NewEnrollmentService(repo, nil, nil, nil)

	req := enrollRequest("111.111.111-11", "Ana")
	result, err := svc.Enroll(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "11111111111", result.Student.CPF)
	assert.Greater(t, result.Student.Age, 0)
}

func TestDeletePromotesEarliestWaitlisted(t *testing.T) {
	repo := newMockStudentRepo(2)
	svc := NewEnrollmentService(repo, nil, nil, nil)

	var admitted []string
	for i := 0; i < 2; i++ {
		res, err := svc.Enroll(context.Background(), enrollRequest(fakeCPF(i), fmt.Sprintf("Ativo %d", i)))
		require.NoError(t, err)
		admitted = append(admitted, res.Student.ID)
	}
	first, err := svc.Enroll(context.Background(), enrollRequest(fakeCPF(10), "Fila 1"))
	require.NoError(t, err)
	require.True(t, first.Waitlisted)
	second, err := svc.Enroll(context.Background(), enrollRequest(fakeCPF(11), "Fila 2"))
	require.NoError(t, err)
	require.True(t, second.Waitlisted)

	result, err := svc.Delete(context.Background(), admitted[0])
	require.NoError(t, err)
	require.NotNil(t, result.Promoted)
	assert.Equal(t, first.Student.ID, result.Promoted.ID, "earliest waitlisted student is promoted")
	assert.False(t, result.Promoted.OnWaitlist)

	entries, err := svc.Waitlist(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, second.Student.ID, entries[0].ID)
	assert.Equal(t, 1, entries[0].Position)
}

func TestDeleteWaitlistedDoesNotPromote(t *testing.T) {
	repo := newMockStudentRepo(1)
	svc := NewEnrollmentService(repo, nil, nil, nil)

	res, err := svc.Enroll(context.Background(), enrollRequest(fakeCPF(0), "Ativo"))
	require.NoError(t, err)
	waitlisted, err := svc.Enroll(context.Background(), enrollRequest(fakeCPF(1), "Fila"))
	require.NoError(t, err)
	require.True(t, waitlisted.Waitlisted)
	other, err := svc.Enroll(context.Background(), enrollRequest(fakeCPF(2), "Fila 2"))
	require.NoError(t, err)

	result, err := svc.Delete(context.Background(), waitlisted.Student.ID)
	require.NoError(t, err)
	assert.Nil(t, result.Promoted, "removing a waitlisted student frees no seat")

	_ = res
	entries, err := svc.Waitlist(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, other.Student.ID, entries[0].ID)
}

func TestDeleteMissingStudent(t *testing.T) {
	repo := newMockStudentRepo(12)
	svc := NewEnrollmentService(repo, nil, nil, nil)

	_, err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPromoteEmptyWaitlist(t *testing.T) {
	repo := newMockStudentRepo(12)
	svc := NewEnrollmentService(repo, nil, nil, nil)

	_, err := svc.Promote(context.Background(), PromoteRequest{
		Modality:     "Academia",
		TrainingDays: "Segunda, Quarta e Sexta",
		TrainingTime: "07h",
		Turma:        "Turma A",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRosterGroupsByTrainingTime(t *testing.T) {
	repo := newMockStudentRepo(12)
	svc := NewEnrollmentService(repo, nil, nil, nil)

	morning := enrollRequest(fakeCPF(0), "Zelia")
	morning.TrainingTime = "06h"
	_, err := svc.Enroll(context.Background(), morning)
	require.NoError(t, err)

	evening := enrollRequest(fakeCPF(1), "Abel")
	evening.TrainingTime = "18h"
	_, err = svc.Enroll(context.Background(), evening)
	require.NoError(t, err)

	groups, err := svc.Roster(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "06h", groups[0].TrainingTime)
	assert.Equal(t, "18h", groups[1].TrainingTime)
}

func TestSetBlockedToggles(t *testing.T) {
	repo := newMockStudentRepo(12)
	svc := NewEnrollmentService(repo, nil, nil, nil)

	res, err := svc.Enroll(context.Background(), enrollRequest("222.222.222-22", "Bia"))
	require.NoError(t, err)

	blocked, err := svc.SetBlocked(context.Background(), "222.222.222-22", true)
	require.NoError(t, err)
	assert.True(t, blocked.Blocked)
	assert.Equal(t, res.Student.ID, blocked.ID)

	unblocked, err := svc.SetBlocked(context.Background(), "22222222222", false)
	require.NoError(t, err)
	assert.False(t, unblocked.Blocked)

	_, err = svc.SetBlocked(context.Background(), "00000000000", true)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUpdateSlotChangeRerunsAdmission(t *testing.T) {
	repo := newMockStudentRepo(1)
	svc := NewEnrollmentService(repo, nil, nil, nil)

	res, err := svc.Enroll(context.Background(), enrollRequest(fakeCPF(0), "Ana"))
	require.NoError(t, err)

	occupant := enrollRequest(fakeCPF(1), "Beto")
	occupant.TrainingTime = "18h"
	_, err = svc.Enroll(context.Background(), occupant)
	require.NoError(t, err)

	// Moving Ana into the full 18h slot lands her on its waitlist.
	upd := UpdateStudentRequest(enrollRequest(fakeCPF(0), "Ana"))
	upd.TrainingTime = "18h"
	updated, err := svc.Update(context.Background(), res.Student.ID, upd)
	require.NoError(t, err)
	assert.True(t, updated.OnWaitlist)
}
