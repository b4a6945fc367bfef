package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seduc-go/academia-api/internal/models"
	"github.com/seduc-go/academia-api/pkg/config"
	appErrors "github.com/seduc-go/academia-api/pkg/errors"
	"github.com/seduc-go/academia-api/pkg/storage"
)

type mockDocumentRepo struct {
	docs map[string]models.DocumentItem
	seq  int
}

func (m *mockDocumentRepo) List(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentItem, error) {
	var out []models.DocumentItem
	for _, d := range m.docs {
		out = append(out, d)
	}
	return out, nil
}

func (m *mockDocumentRepo) FindByID(ctx context.Context, id string) (*models.DocumentItem, error) {
	if d, ok := m.docs[id]; ok {
		doc := d
		return &doc, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDocumentRepo) Create(ctx context.Context, doc *models.DocumentItem) error {
	if m.docs == nil {
		m.docs = make(map[string]models.DocumentItem)
	}
	m.seq++
	if doc.ID == "" {
		doc.ID = "doc-1"
	}
	if doc.UploadDate.IsZero() {
		doc.UploadDate = time.Now().UTC()
	}
	m.docs[doc.ID] = *doc
	return nil
}

func (m *mockDocumentRepo) Delete(ctx context.Context, id string) error {
	delete(m.docs, id)
	return nil
}

func newDocumentFixture(t *testing.T) (*DocumentService, *mockDocumentRepo) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("doc-secret", time.Hour)
	cfg := config.DocumentsConfig{
		MaxFileSizeBytes: 1024,
		AllowedMIMEs:     []string{"application/pdf", "image/png"},
	}
	repo := &mockDocumentRepo{}
	students := &mockStudentRepo{capacity: 12}
	svc := NewDocumentService(repo, students, store, signer, cfg, nil, nil)
	return svc, repo
}

func pdfDataURL(payload string) string {
	return "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte(payload))
}

func TestDocumentUploadStoresBlobAndSignsURL(t *testing.T) {
	svc, repo := newDocumentFixture(t)

	doc, err := svc.Upload(context.Background(), UploadDocumentRequest{
		Title:    "Regulamento",
		FileName: "regulamento.pdf",
		Content:  pdfDataURL("%PDF-1.4 conteudo"),
	})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.FileType)
	assert.Contains(t, doc.FileURL, "/documents/"+doc.ID+"/download?token=")
	require.Contains(t, repo.docs, doc.ID)

	stored, f, err := svc.Open(context.Background(), doc.FileURL[len("/api/v1/documents/"+doc.ID+"/download?token="):])
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, doc.ID, stored.ID)
}

func TestDocumentUploadRejectsDisallowedMIME(t *testing.T) {
	svc, _ := newDocumentFixture(t)

	content := "data:application/zip;base64," + base64.StdEncoding.EncodeToString([]byte("PK"))
	_, err := svc.Upload(context.Background(), UploadDocumentRequest{
		Title:    "Arquivo",
		FileName: "arquivo.zip",
		Content:  content,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentUploadRejectsOversizedFile(t *testing.T) {
	svc, _ := newDocumentFixture(t)

	big := make([]byte, 2048)
	content := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(big)
	_, err := svc.Upload(context.Background(), UploadDocumentRequest{
		Title:    "Grande",
		FileName: "grande.pdf",
		Content:  content,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentUploadRejectsMalformedBase64(t *testing.T) {
	svc, _ := newDocumentFixture(t)

	_, err := svc.Upload(context.Background(), UploadDocumentRequest{
		Title:    "Quebrado",
		FileName: "quebrado.pdf",
		Content:  "data:application/pdf;base64,@@not-base64@@",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentDeleteRemovesRowAndBlob(t *testing.T) {
	svc, repo := newDocumentFixture(t)

	doc, err := svc.Upload(context.Background(), UploadDocumentRequest{
		Title:    "Atestado",
		FileName: "atestado.pdf",
		Content:  pdfDataURL("conteudo"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), doc.ID))
	assert.NotContains(t, repo.docs, doc.ID)

	err = svc.Delete(context.Background(), doc.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
