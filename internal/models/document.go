package models

import "time"

// DocumentItem is an uploaded document's metadata. The binary content
// lives in blob storage under StoredPath; FileURL carries a signed
// download link and is filled in when the item is served.
type DocumentItem struct {
	ID         string    `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	FileName   string    `db:"file_name" json:"fileName"`
	UploadDate time.Time `db:"upload_date" json:"uploadDate"`
	FileType   string    `db:"file_type" json:"fileType,omitempty"`
	StudentID  *string   `db:"student_id" json:"studentId,omitempty"`
	StoredPath string    `db:"stored_path" json:"-"`
	FileURL    string    `db:"-" json:"fileUrl,omitempty"`
}

// DocumentFilter scopes document listings. GeneralOnly selects documents
// not tied to any student; StudentID selects a single student's documents.
type DocumentFilter struct {
	StudentID   *string
	GeneralOnly bool
}
