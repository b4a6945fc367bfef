package models

import "time"

// ModalityOccupancy aggregates seats taken per modality.
type ModalityOccupancy struct {
	Modality   Modality `db:"modality" json:"modality"`
	Active     int      `db:"active" json:"active"`
	Waitlisted int      `db:"waitlisted" json:"waitlisted"`
}

// DashboardSummary is the home-view snapshot of the program.
type DashboardSummary struct {
	ActiveStudents     int                 `json:"activeStudents"`
	WaitlistedStudents int                 `json:"waitlistedStudents"`
	BlockedStudents    int                 `json:"blockedStudents"`
	CheckInsToday      int                 `json:"checkInsToday"`
	ModalityOccupancy  []ModalityOccupancy `json:"modalityOccupancy"`
	GeneratedAt        time.Time           `json:"generatedAt"`
}
