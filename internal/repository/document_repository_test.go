package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/seduc-go/academia-api/internal/models"
)

func newDocumentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestDocumentRepositoryListGeneralOnly(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "title", "file_name", "upload_date", "file_type", "student_id", "stored_path"}).
		AddRow("doc-1", "Regulamento", "regulamento.pdf", time.Now(), "application/pdf", nil, "documents/doc-1/regulamento.pdf")
	mock.ExpectQuery(`SELECT (.+) FROM documents WHERE 1=1 AND student_id IS NULL ORDER BY upload_date DESC`).
		WillReturnRows(rows)

	docs, err := repo.List(context.Background(), models.DocumentFilter{GeneralOnly: true})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Nil(t, docs[0].StudentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListMissingTable(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM documents`).
		WillReturnError(&pq.Error{Code: "42P01"})

	docs, err := repo.List(context.Background(), models.DocumentFilter{})
	require.NoError(t, err)
	require.Empty(t, docs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(`INSERT INTO documents`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	doc := &models.DocumentItem{Title: "Atestado", FileName: "atestado.pdf", FileType: "application/pdf"}
	require.NoError(t, repo.Create(context.Background(), doc))
	require.NotEmpty(t, doc.ID)
	require.False(t, doc.UploadDate.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
