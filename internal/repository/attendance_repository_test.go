package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/seduc-go/academia-api/internal/models"
)

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec(`INSERT INTO attendance_records`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	record := &models.AttendanceRecord{StudentCPF: "11122233344", Hour: "07:12"}
	require.NoError(t, repo.Create(context.Background(), record))
	require.NotEmpty(t, record.ID)
	require.False(t, record.Timestamp.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListSince(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	cutoff := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	name := "Ana Lima"
	rows := sqlmock.NewRows([]string{"id", "student_cpf", "timestamp", "hour", "photo_url", "student_name"}).
		AddRow("att-1", "11122233344", cutoff.Add(7*time.Hour), "07:00", nil, name)
	mock.ExpectQuery(`SELECT a\.id, a\.student_cpf, a\.timestamp, a\.hour, a\.photo_url, s\.name AS student_name`).
		WithArgs(cutoff).
		WillReturnRows(rows)

	records, err := repo.ListSince(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "11122233344", records[0].StudentCPF)
	require.NotNil(t, records[0].StudentName)
	require.Equal(t, name, *records[0].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCountSince(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	cutoff := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM attendance_records`).
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountSince(context.Background(), cutoff)
	require.NoError(t, err)
	require.Equal(t, 4, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
