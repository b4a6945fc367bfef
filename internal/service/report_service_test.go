package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seduc-go/academia-api/internal/models"
	"github.com/seduc-go/academia-api/internal/repository"
	appErrors "github.com/seduc-go/academia-api/pkg/errors"
	"github.com/seduc-go/academia-api/pkg/jobs"
)

type memReportStore struct {
	jobs   map[string]*models.ReportJob
	nextID int
}

func newMemReportStore() *memReportStore {
	return &memReportStore{jobs: map[string]*models.ReportJob{}}
}

func (m *memReportStore) Create(_ context.Context, job *models.ReportJob) error {
	m.nextID++
	if job.ID == "" {
		job.ID = fmt.Sprintf("job-%d", m.nextID)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *memReportStore) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, errors.New("job not found")
	}
	copied := *job
	return &copied, nil
}

func (m *memReportStore) Update(_ context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := m.jobs[id]
	if !ok {
		return errors.New("job not found")
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *memReportStore) ListQueued(_ context.Context, limit int) ([]models.ReportJob, error) {
	var out []models.ReportJob
	for _, job := range m.jobs {
		if job.Status == models.ReportStatusQueued && len(out) < limit {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (m *memReportStore) ListFinishedBefore(_ context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	var out []models.ReportJob
	for _, job := range m.jobs {
		if job.Status == models.ReportStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) && len(out) < limit {
			out = append(out, *job)
		}
	}
	return out, nil
}

type memDispatcher struct {
	enqueued []jobs.Job
	fail     bool
}

func (m *memDispatcher) Enqueue(job jobs.Job) error {
	if m.fail {
		return errors.New("queue full")
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

type stubGenerator struct {
	result *ExportResult
	err    error
	calls  int
}

func (s *stubGenerator) Generate(_ context.Context, _ *models.ReportJob) (*ExportResult, error) {
	s.calls++
	return s.result, s.err
}

func TestReportCreateJobEnqueues(t *testing.T) {
	store := newMemReportStore()
	dispatcher := &memDispatcher{}
	svc := NewReportService(store, dispatcher, nil, nil, ReportServiceConfig{})

	resp, err := svc.CreateJob(context.Background(), ReportRequest{
		Type:   models.ReportTypeRoster,
		Format: models.ReportFormatCSV,
	}, "user-1")

	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, dispatcher.enqueued, 1)
	assert.Equal(t, resp.ID, dispatcher.enqueued[0].ID)
}

func TestReportCreateJobRejectsUnknownType(t *testing.T) {
	svc := NewReportService(newMemReportStore(), &memDispatcher{}, nil, nil, ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), ReportRequest{
		Type:   models.ReportType("payroll"),
		Format: models.ReportFormatCSV,
	}, "user-1")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportCreateJobMarksFailedOnEnqueueError(t *testing.T) {
	store := newMemReportStore()
	svc := NewReportService(store, &memDispatcher{fail: true}, nil, nil, ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), ReportRequest{
		Type:   models.ReportTypeRoster,
		Format: models.ReportFormatPDF,
	}, "user-1")

	require.Error(t, err)
	require.Len(t, store.jobs, 1)
	for _, job := range store.jobs {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
		require.NotNil(t, job.ErrorMessage)
	}
}

func TestReportWorkerFinishesJob(t *testing.T) {
	store := newMemReportStore()
	job := &models.ReportJob{
		Type:   models.ReportTypeRoster,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
		Status: models.ReportStatusQueued,
	}
	require.NoError(t, store.Create(context.Background(), job))

	url := "/api/v1/reports/download?token=abc"
	generator := &stubGenerator{result: &ExportResult{URL: url}}
	worker := NewReportWorker(store, generator, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 0})

	require.NoError(t, err)
	stored := store.jobs[job.ID]
	assert.Equal(t, models.ReportStatusFinished, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.ResultURL)
	assert.Equal(t, url, *stored.ResultURL)
	require.NotNil(t, stored.FinishedAt)
}

func TestReportWorkerRequeuesBelowRetryLimit(t *testing.T) {
	store := newMemReportStore()
	job := &models.ReportJob{Type: models.ReportTypeRoster, Status: models.ReportStatusQueued}
	require.NoError(t, store.Create(context.Background(), job))

	generator := &stubGenerator{err: errors.New("storage offline")}
	worker := NewReportWorker(store, generator, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 1})

	require.Error(t, err)
	assert.Equal(t, models.ReportStatusQueued, store.jobs[job.ID].Status)
}

func TestReportWorkerFailsAtRetryLimit(t *testing.T) {
	store := newMemReportStore()
	job := &models.ReportJob{Type: models.ReportTypeRoster, Status: models.ReportStatusQueued}
	require.NoError(t, store.Create(context.Background(), job))

	generator := &stubGenerator{err: errors.New("storage offline")}
	worker := NewReportWorker(store, generator, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 3})

	require.Error(t, err)
	stored := store.jobs[job.ID]
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "storage offline", *stored.ErrorMessage)
}
