package models

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

// Modality enumerates the program's training modalities.
type Modality string

const (
	ModalityAcademia  Modality = "Academia"
	ModalityFuncional Modality = "Funcional"
	ModalityDanca     Modality = "Dança"
)

// Valid returns true when the modality is a supported value.
func (m Modality) Valid() bool {
	switch m {
	case ModalityAcademia, ModalityFuncional, ModalityDanca:
		return true
	default:
		return false
	}
}

// TrainingDays enumerates the weekly training patterns.
type TrainingDays string

const (
	TrainingDaysMonWedFri TrainingDays = "Segunda, Quarta e Sexta"
	TrainingDaysTueThu    TrainingDays = "Terça e Quinta"
)

// Valid returns true when the pattern is a supported value.
func (d TrainingDays) Valid() bool {
	switch d {
	case TrainingDaysMonWedFri, TrainingDaysTueThu:
		return true
	default:
		return false
	}
}

// Turma discriminates parallel class groups within a slot.
type Turma string

const (
	TurmaA Turma = "Turma A"
	TurmaB Turma = "Turma B"
)

// Valid returns true for a known turma or the empty value.
func (t Turma) Valid() bool {
	switch t {
	case "", TurmaA, TurmaB:
		return true
	default:
		return false
	}
}

var academiaTimes = []string{"06h", "07h", "11h", "12h", "13h", "17h", "18h", "19h"}
var studioTimes = []string{"07h10", "11h10", "17h10", "18h"}

// TrainingTimes returns the legal time labels for a modality.
func TrainingTimes(m Modality) []string {
	if m == ModalityAcademia {
		return academiaTimes
	}
	return studioTimes
}

// ValidTrainingTime reports whether the time label is selectable for the modality.
func ValidTrainingTime(m Modality, label string) bool {
	for _, t := range TrainingTimes(m) {
		if t == label {
			return true
		}
	}
	return false
}

// TrainingSlot is the capacity-bounded group key: a student occupies one
// seat in the slot identified by modality, weekday pattern, time label
// and turma.
type TrainingSlot struct {
	Modality     Modality     `json:"modality"`
	TrainingDays TrainingDays `json:"trainingDays"`
	TrainingTime string       `json:"trainingTime"`
	Turma        Turma        `json:"turma"`
}

// Valid checks every component of the slot key.
func (s TrainingSlot) Valid() bool {
	return s.Modality.Valid() && s.TrainingDays.Valid() && s.Turma.Valid() &&
		ValidTrainingTime(s.Modality, s.TrainingTime)
}

// Student represents an enrolled member ("servidor") of the program.
type Student struct {
	ID           string       `db:"id" json:"id"`
	CPF          string       `db:"cpf" json:"cpf"`
	Name         string       `db:"name" json:"name"`
	Department   string       `db:"department" json:"department"`
	Phone        string       `db:"phone" json:"phone"`
	BirthDate    time.Time    `db:"birth_date" json:"birthDate"`
	Age          int          `db:"age" json:"age"`
	Gender       string       `db:"gender" json:"gender"`
	Modality     Modality     `db:"modality" json:"modality"`
	TrainingDays TrainingDays `db:"training_days" json:"trainingDays"`
	TrainingTime string       `db:"training_time" json:"trainingTime"`
	Turma        Turma        `db:"turma" json:"turma,omitempty"`
	Blocked      bool         `db:"blocked" json:"blocked"`
	OnWaitlist   bool         `db:"on_waitlist" json:"onWaitlist"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
}

// Slot returns the training slot the student occupies.
func (s *Student) Slot() TrainingSlot {
	return TrainingSlot{
		Modality:     s.Modality,
		TrainingDays: s.TrainingDays,
		TrainingTime: s.TrainingTime,
		Turma:        s.Turma,
	}
}

// StudentFilter captures search parameters for listing students.
type StudentFilter struct {
	Search     string
	Modality   *Modality
	OnWaitlist *bool
	Blocked    *bool
}

// WaitlistEntry is a waitlisted student annotated with its queue position.
type WaitlistEntry struct {
	Position int `json:"position"`
	Student
}

// TimeGroup partitions the active roster by training time for display.
type TimeGroup struct {
	TrainingTime string    `json:"trainingTime"`
	Students     []Student `json:"students"`
}

// GroupByTrainingTime partitions students by time label, ordering groups
// by the label and preserving input order inside each group. Students
// without a time label land in a trailing group with an empty key.
func GroupByTrainingTime(students []Student) []TimeGroup {
	index := make(map[string]int)
	groups := make([]TimeGroup, 0)
	for _, s := range students {
		i, ok := index[s.TrainingTime]
		if !ok {
			i = len(groups)
			index[s.TrainingTime] = i
			groups = append(groups, TimeGroup{TrainingTime: s.TrainingTime})
		}
		groups[i].Students = append(groups[i].Students, s)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].TrainingTime == "" {
			return false
		}
		if groups[j].TrainingTime == "" {
			return true
		}
		return groups[i].TrainingTime < groups[j].TrainingTime
	})
	return groups
}

// NormalizeCPF strips formatting punctuation, keeping digits only.
func NormalizeCPF(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AgeAt derives a person's age from the birth date at the given instant.
func AgeAt(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	anniversary := time.Date(now.Year(), birth.Month(), birth.Day(), 0, 0, 0, 0, now.Location())
	if now.Before(anniversary) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}
