package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seduc-go/academia-api/internal/models"
	"github.com/seduc-go/academia-api/pkg/export"
	"github.com/seduc-go/academia-api/pkg/storage"
)

type exportStudentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
	ListWaitlist(ctx context.Context, slot *models.TrainingSlot) ([]models.Student, error)
}

type exportAttendanceRepository interface {
	ListSince(ctx context.Context, cutoff time.Time) ([]models.AttendanceDetail, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	students   exportStudentRepository
	attendance exportAttendanceRepository
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(students exportStudentRepository, attendance exportAttendanceRepository, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		students:   students,
		attendance: attendance,
		storage:    store,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// Generate builds the dataset for the job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/reports/download?token=%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes stored exports older than the TTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeRoster:
		return s.rosterDataset(ctx, job.Params.Modality)
	case models.ReportTypeWaitlist:
		return s.waitlistDataset(ctx)
	case models.ReportTypeAttendance:
		return s.attendanceDataset(ctx)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) rosterDataset(ctx context.Context, modality *models.Modality) (export.Dataset, string, error) {
	active := false
	students, err := s.students.List(ctx, models.StudentFilter{Modality: modality, OnWaitlist: &active})
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataset := export.Dataset{
		Headers: []string{"Nome", "CPF", "Lotação", "Modalidade", "Dias", "Horário", "Turma"},
		Rows:    make([]map[string]string, 0, len(students)),
	}
	for _, st := range students {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Nome":       st.Name,
			"CPF":        st.CPF,
			"Lotação":    st.Department,
			"Modalidade": string(st.Modality),
			"Dias":       string(st.TrainingDays),
			"Horário":    st.TrainingTime,
			"Turma":      string(st.Turma),
		})
	}
	title := "Alunos Ativos"
	if modality != nil {
		title = fmt.Sprintf("Alunos Ativos - %s", *modality)
	}
	return dataset, title, nil
}

func (s *ExportService) waitlistDataset(ctx context.Context) (export.Dataset, string, error) {
	students, err := s.students.ListWaitlist(ctx, nil)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataset := export.Dataset{
		Headers: []string{"Posição", "Nome", "CPF", "Modalidade", "Dias", "Horário", "Turma"},
		Rows:    make([]map[string]string, 0, len(students)),
	}
	for i, st := range students {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Posição":    fmt.Sprintf("%d", i+1),
			"Nome":       st.Name,
			"CPF":        st.CPF,
			"Modalidade": string(st.Modality),
			"Dias":       string(st.TrainingDays),
			"Horário":    st.TrainingTime,
			"Turma":      string(st.Turma),
		})
	}
	return dataset, "Lista de Espera", nil
}

func (s *ExportService) attendanceDataset(ctx context.Context) (export.Dataset, string, error) {
	now := time.Now().UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	records, err := s.attendance.ListSince(ctx, todayStart)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataset := export.Dataset{
		Headers: []string{"Nome", "CPF", "Horário"},
		Rows:    make([]map[string]string, 0, len(records)),
	}
	for _, rec := range records {
		name := ""
		if rec.StudentName != nil {
			name = *rec.StudentName
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Nome":    name,
			"CPF":     rec.StudentCPF,
			"Horário": rec.Hour,
		})
	}
	return dataset, fmt.Sprintf("Presenças de %s", now.Format("02/01/2006")), nil
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	ext := "csv"
	if job.Params.Format == models.ReportFormatPDF {
		ext = "pdf"
	}
	return fmt.Sprintf("reports/%s_%s_%s.%s", job.Type, time.Now().UTC().Format("20060102"), job.ID, ext)
}
