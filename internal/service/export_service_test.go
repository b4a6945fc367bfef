package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seduc-go/academia-api/internal/models"
	"github.com/seduc-go/academia-api/pkg/storage"
)

func newExportFixture(t *testing.T, students *mockStudentRepo, attendance *mockAttendanceRepo) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("report-secret", time.Hour)
	return NewExportService(students, attendance, store, signer, ExportConfig{APIPrefix: "/api/v1"}, nil, nil, nil)
}

func TestExportGenerateRosterCSV(t *testing.T) {
	repo := newMockStudentRepo(12)
	require.NoError(t, repo.CreateWithAdmission(context.Background(), &models.Student{
		CPF: "11111111111", Name: "Ana", Department: "SEDUC",
		Modality: models.ModalityAcademia, TrainingDays: models.TrainingDaysMonWedFri,
		TrainingTime: "07h", Turma: models.TurmaA,
	}))
	svc := newExportFixture(t, repo, &mockAttendanceRepo{})

	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeRoster,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Contains(t, result.URL, "/api/v1/reports/download?token=")

	f, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer f.Close()
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	body := strings.TrimPrefix(string(content), "\xef\xbb\xbf")
	assert.True(t, strings.HasPrefix(body, "Nome,CPF"))
	assert.Contains(t, body, "Ana")
}

func TestExportGenerateAttendancePDF(t *testing.T) {
	attendance := &mockAttendanceRepo{records: []models.AttendanceRecord{
		{ID: "att-1", StudentCPF: "11111111111", Timestamp: time.Now().UTC(), Hour: "07:00"},
	}}
	svc := newExportFixture(t, newMockStudentRepo(12), attendance)

	job := &models.ReportJob{
		ID:     "job-2",
		Type:   models.ReportTypeAttendance,
		Params: models.ReportJobParams{Format: models.ReportFormatPDF},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, models.ReportFormatPDF, result.Format)

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-2", jobID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportGenerateUnknownType(t *testing.T) {
	svc := newExportFixture(t, newMockStudentRepo(12), &mockAttendanceRepo{})

	_, err := svc.Generate(context.Background(), &models.ReportJob{
		ID:     "job-3",
		Type:   models.ReportType("unknown"),
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	})
	require.Error(t, err)
}
