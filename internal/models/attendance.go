package models

import "time"

// AttendanceRecord is one check-in event at the access terminal.
// Records are append-only; there is no update or delete surface.
type AttendanceRecord struct {
	ID         string    `db:"id" json:"id"`
	StudentCPF string    `db:"student_cpf" json:"studentCpf"`
	Timestamp  time.Time `db:"timestamp" json:"timestamp"`
	Hour       string    `db:"hour" json:"hour"`
	PhotoURL   *string   `db:"photo_url" json:"photo,omitempty"`
}

// AttendanceDetail joins the record with the student's name for display.
type AttendanceDetail struct {
	AttendanceRecord
	StudentName *string `db:"student_name" json:"studentName,omitempty"`
}
