package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/seduc-go/academia-api/internal/models"
)

// AttendanceRepository manages the append-only check-in log.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Create appends a check-in record.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	const query = `INSERT INTO attendance_records (id, student_cpf, timestamp, hour, photo_url)
        VALUES (:id, :student_cpf, :timestamp, :hour, :photo_url)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create attendance record: %w", err)
	}
	return nil
}

// ListSince returns check-ins recorded at or after the cutoff, newest
// first, joined with the student's name for display.
func (r *AttendanceRepository) ListSince(ctx context.Context, cutoff time.Time) ([]models.AttendanceDetail, error) {
	const query = `SELECT a.id, a.student_cpf, a.timestamp, a.hour, a.photo_url, s.name AS student_name
        FROM attendance_records a
        LEFT JOIN students s ON s.cpf = a.student_cpf
        WHERE a.timestamp >= $1
        ORDER BY a.timestamp DESC`
	var records []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &records, query, cutoff); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// CountSince counts check-ins recorded at or after the cutoff.
func (r *AttendanceRepository) CountSince(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM attendance_records WHERE timestamp >= $1", cutoff); err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}
