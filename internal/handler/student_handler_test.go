package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seduc-go/academia-api/internal/models"
	"github.com/seduc-go/academia-api/internal/service"
)

type fakeStudentRepo struct {
	students []models.Student
	blocked  map[string]bool
}

func (f *fakeStudentRepo) List(context.Context, models.StudentFilter) ([]models.Student, error) {
	return f.students, nil
}

func (f *fakeStudentRepo) FindByID(context.Context, string) (*models.Student, error) {
	if len(f.students) == 0 {
		return nil, nil
	}
	return &f.students[0], nil
}

func (f *fakeStudentRepo) FindByCPF(_ context.Context, cpf string) (*models.Student, error) {
	for i := range f.students {
		if f.students[i].CPF == cpf {
			return &f.students[i], nil
		}
	}
	return &models.Student{CPF: cpf, Blocked: f.blocked[cpf]}, nil
}

func (f *fakeStudentRepo) ExistsByCPF(_ context.Context, cpf string, _ string) (bool, error) {
	for _, s := range f.students {
		if s.CPF == cpf {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStudentRepo) CreateWithAdmission(_ context.Context, student *models.Student) error {
	student.ID = "stu-1"
	f.students = append(f.students, *student)
	return nil
}

func (f *fakeStudentRepo) Update(context.Context, *models.Student) error { return nil }

func (f *fakeStudentRepo) UpdateWithAdmission(context.Context, *models.Student) error { return nil }

func (f *fakeStudentRepo) SetBlockedByCPF(_ context.Context, cpf string, blocked bool) error {
	if f.blocked == nil {
		f.blocked = map[string]bool{}
	}
	f.blocked[cpf] = blocked
	return nil
}

func (f *fakeStudentRepo) ListWaitlist(context.Context, *models.TrainingSlot) ([]models.Student, error) {
	return nil, nil
}

func (f *fakeStudentRepo) DeleteAndPromote(context.Context, string) (*models.Student, error) {
	return nil, nil
}

func (f *fakeStudentRepo) PromoteNext(context.Context, models.TrainingSlot) (*models.Student, error) {
	return nil, nil
}

func newStudentHandlerFixture() (*StudentHandler, *fakeStudentRepo) {
	repo := &fakeStudentRepo{}
	svc := service.NewEnrollmentService(repo, nil, nil, nil)
	return NewStudentHandler(svc, nil), repo
}

func postJSON(handler gin.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	handler(c)
	return rec
}

func TestStudentHandlerEnrollInvalidJSON(t *testing.T) {
	handler, _ := newStudentHandlerFixture()

	rec := postJSON(handler.Enroll, "/students", "{not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStudentHandlerEnrollCreated(t *testing.T) {
	handler, repo := newStudentHandlerFixture()

	body := `{
		"cpf": "529.982.247-25",
		"name": "Ana Souza",
		"birthDate": "1990-05-20",
		"modality": "Academia",
		"trainingDays": "Segunda, Quarta e Sexta",
		"trainingTime": "07h",
		"turma": "Turma A"
	}`
	rec := postJSON(handler.Enroll, "/students", body)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, repo.students, 1)
	assert.Equal(t, "52998224725", repo.students[0].CPF)

	var envelope struct {
		Data service.EnrollmentResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.False(t, envelope.Data.Waitlisted)
	assert.Equal(t, "Ana Souza", envelope.Data.Student.Name)
}

func TestStudentHandlerEnrollUnknownModality(t *testing.T) {
	handler, _ := newStudentHandlerFixture()

	body := `{
		"cpf": "52998224725",
		"name": "Ana Souza",
		"birthDate": "1990-05-20",
		"modality": "Pilates",
		"trainingDays": "Segunda, Quarta e Sexta",
		"trainingTime": "07h",
		"turma": "Turma A"
	}`
	rec := postJSON(handler.Enroll, "/students", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStudentHandlerSetBlockedMissingCPF(t *testing.T) {
	handler, _ := newStudentHandlerFixture()

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPatch, "/students/block", strings.NewReader(`{"blocked": true}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.SetBlocked(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStudentHandlerSetBlockedToggles(t *testing.T) {
	handler, repo := newStudentHandlerFixture()

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPatch, "/students/block", strings.NewReader(`{"cpf": "529.982.247-25", "blocked": true}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.SetBlocked(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, repo.blocked["52998224725"])
}
