package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/seduc-go/academia-api/internal/models"
	"github.com/seduc-go/academia-api/pkg/config"
	appErrors "github.com/seduc-go/academia-api/pkg/errors"
	"github.com/seduc-go/academia-api/pkg/storage"
)

type documentRepository interface {
	List(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentItem, error)
	FindByID(ctx context.Context, id string) (*models.DocumentItem, error)
	Create(ctx context.Context, doc *models.DocumentItem) error
	Delete(ctx context.Context, id string) error
}

type documentStudentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// DocumentService manages uploaded documents: blob on disk, metadata in
// postgres, downloads through signed URLs.
type DocumentService struct {
	repo      documentRepository
	students  documentStudentLookup
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	cfg       config.DocumentsConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDocumentService constructs the document service.
func NewDocumentService(repo documentRepository, students documentStudentLookup, store *storage.LocalStorage, signer *storage.SignedURLSigner, cfg config.DocumentsConfig, validate *validator.Validate, logger *zap.Logger) *DocumentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{repo: repo, students: students, store: store, signer: signer, cfg: cfg, validator: validate, logger: logger}
}

// UploadDocumentRequest carries a base64 data-URL payload.
type UploadDocumentRequest struct {
	Title     string  `json:"title" validate:"required"`
	FileName  string  `json:"fileName" validate:"required"`
	Content   string  `json:"content" validate:"required"`
	StudentID *string `json:"studentId"`
}

// Upload validates and stores a document, returning the item with a
// signed download URL.
func (s *DocumentService) Upload(ctx context.Context, req UploadDocumentRequest) (*models.DocumentItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}

	mime, data, err := decodeDataURL(req.Content)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if !s.mimeAllowed(mime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %s is not accepted", mime))
	}
	if s.cfg.MaxFileSizeBytes > 0 && int64(len(data)) > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum allowed size")
	}

	if req.StudentID != nil {
		if _, err := s.students.FindByID(ctx, *req.StudentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
	}

	doc := &models.DocumentItem{
		Title:     req.Title,
		FileName:  filepath.Base(req.FileName),
		FileType:  mime,
		StudentID: req.StudentID,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document metadata")
	}

	relPath := filepath.Join("documents", doc.ID, doc.FileName)
	storedPath, err := s.store.Save(relPath, data)
	if err != nil {
		if derr := s.repo.Delete(ctx, doc.ID); derr != nil {
			s.logger.Warn("failed to roll back document row", zap.String("id", doc.ID), zap.Error(derr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document content")
	}
	doc.StoredPath = storedPath

	s.logger.Info("document uploaded", zap.String("id", doc.ID), zap.String("type", mime))
	s.attachURL(doc)
	return doc, nil
}

// List returns document metadata with fresh signed URLs.
func (s *DocumentService) List(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentItem, error) {
	docs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	for i := range docs {
		s.attachURL(&docs[i])
	}
	return docs, nil
}

// Open resolves a signed download token to the document and an open
// file handle. The caller closes the file.
func (s *DocumentService) Open(ctx context.Context, token string) (*models.DocumentItem, *os.File, error) {
	refID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	doc, err := s.repo.FindByID(ctx, refID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	f, err := s.store.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document content not found")
	}
	return doc, f, nil
}

// Delete removes the metadata row and the stored blob.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	relPath := filepath.Join("documents", doc.ID, doc.FileName)
	if err := s.store.Delete(relPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove document blob", zap.String("id", id), zap.Error(err))
	}
	return nil
}

func (s *DocumentService) attachURL(doc *models.DocumentItem) {
	relPath := filepath.Join("documents", doc.ID, doc.FileName)
	token, _, err := s.signer.Generate(doc.ID, relPath)
	if err != nil {
		s.logger.Warn("failed to sign download url", zap.String("id", doc.ID), zap.Error(err))
		return
	}
	doc.FileURL = "/api/v1/documents/" + doc.ID + "/download?token=" + token
}

func (s *DocumentService) mimeAllowed(mime string) bool {
	if len(s.cfg.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedMIMEs {
		if strings.EqualFold(allowed, mime) {
			return true
		}
	}
	return false
}

// decodeDataURL splits a "data:<mime>;base64,<payload>" string.
func decodeDataURL(content string) (mime string, data []byte, err error) {
	payload := content
	mime = "application/octet-stream"
	if strings.HasPrefix(content, "data:") {
		meta, rest, ok := strings.Cut(content[len("data:"):], ",")
		if !ok {
			return "", nil, fmt.Errorf("malformed data url")
		}
		mime = strings.TrimSuffix(meta, ";base64")
		payload = rest
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("content is not valid base64")
	}
	return mime, data, nil
}
