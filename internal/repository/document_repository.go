package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/seduc-go/academia-api/internal/models"
)

// DocumentRepository persists document metadata. Blob content lives in
// file storage; rows only carry the stored path.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs a DocumentRepository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = "id, title, file_name, upload_date, file_type, student_id, stored_path"

// List returns documents newest first. A missing documents table is
// reported as an empty result so a fresh deployment does not break the
// document views.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentItem, error) {
	query := fmt.Sprintf("SELECT %s FROM documents WHERE 1=1", documentColumns)
	args := []interface{}{}
	if filter.GeneralOnly {
		query += " AND student_id IS NULL"
	} else if filter.StudentID != nil {
		query += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, *filter.StudentID)
	}
	query += " ORDER BY upload_date DESC"

	var docs []models.DocumentItem
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		if isUndefinedTable(err) {
			return []models.DocumentItem{}, nil
		}
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// FindByID fetches a single document row.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.DocumentItem, error) {
	query := fmt.Sprintf("SELECT %s FROM documents WHERE id = $1", documentColumns)
	var doc models.DocumentItem
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Create inserts a new document row.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.DocumentItem) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadDate.IsZero() {
		doc.UploadDate = time.Now().UTC()
	}
	const query = `INSERT INTO documents (id, title, file_name, upload_date, file_type, student_id, stored_path)
        VALUES (:id, :title, :file_name, :upload_date, :file_type, :student_id, :stored_path)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// Delete removes a document row.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P01"
	}
	return false
}
