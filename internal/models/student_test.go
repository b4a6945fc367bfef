package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidTrainingTime(t *testing.T) {
	assert.True(t, ValidTrainingTime(ModalityAcademia, "06h"))
	assert.True(t, ValidTrainingTime(ModalityFuncional, "07h10"))
	assert.True(t, ValidTrainingTime(ModalityDanca, "18h"))
	assert.False(t, ValidTrainingTime(ModalityAcademia, "07h10"))
	assert.False(t, ValidTrainingTime(ModalityFuncional, "06h"))
	assert.False(t, ValidTrainingTime(ModalityAcademia, ""))
}

func TestTrainingSlotValid(t *testing.T) {
	slot := TrainingSlot{Modality: ModalityAcademia, TrainingDays: TrainingDaysMonWedFri, TrainingTime: "06h"}
	assert.True(t, slot.Valid())

	slot.TrainingTime = ""
	assert.False(t, slot.Valid())

	slot.TrainingTime = "06h"
	slot.Turma = "Turma C"
	assert.False(t, slot.Valid())
}

func TestGroupByTrainingTime(t *testing.T) {
	students := []Student{
		{Name: "Carla", TrainingTime: "07h"},
		{Name: "Ana", TrainingTime: "06h"},
		{Name: "Bruno", TrainingTime: "06h"},
		{Name: "Davi", TrainingTime: ""},
	}

	groups := GroupByTrainingTime(students)
	require.Len(t, groups, 3)
	assert.Equal(t, "06h", groups[0].TrainingTime)
	assert.Equal(t, []string{"Ana", "Bruno"}, []string{groups[0].Students[0].Name, groups[0].Students[1].Name})
	assert.Equal(t, "07h", groups[1].TrainingTime)
	// missing time label sorts last
	assert.Equal(t, "", groups[2].TrainingTime)
}

func TestNormalizeCPF(t *testing.T) {
	assert.Equal(t, "11111111111", NormalizeCPF("111.111.111-11"))
	assert.Equal(t, "22222222222", NormalizeCPF("22222222222"))
	assert.Equal(t, "", NormalizeCPF("abc"))
}

func TestAgeAt(t *testing.T) {
	now := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 30, AgeAt(time.Date(1996, time.March, 10, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 29, AgeAt(time.Date(1996, time.September, 10, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 0, AgeAt(now.AddDate(1, 0, 0), now))
}

func camelToSnake(in string) string {
	var b strings.Builder
	for i, r := range in {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// The db (snake_case) and json (camelCase) tags are the bidirectional
// field mapping between the store and the API; they must stay aligned.
func TestStudentFieldMappingAligned(t *testing.T) {
	for _, typ := range []reflect.Type{
		reflect.TypeOf(Student{}),
		reflect.TypeOf(AttendanceRecord{}),
		reflect.TypeOf(DocumentItem{}),
	} {
		for i := 0; i < typ.NumField(); i++ {
			field := typ.Field(i)
			dbTag := field.Tag.Get("db")
			jsonTag := strings.Split(field.Tag.Get("json"), ",")[0]
			if dbTag == "" || dbTag == "-" || jsonTag == "-" {
				continue
			}
			// AttendanceRecord.PhotoURL keeps the legacy "photo" wire name.
			if typ.Name() == "AttendanceRecord" && field.Name == "PhotoURL" {
				assert.Equal(t, "photo_url", dbTag)
				continue
			}
			assert.Equal(t, camelToSnake(jsonTag), dbTag, "%s.%s", typ.Name(), field.Name)
		}
	}
}

func TestStudentJSONRoundTrip(t *testing.T) {
	student := Student{
		ID:           "s1",
		CPF:          "11111111111",
		Name:         "Maria Souza",
		Department:   "Gerência de TI",
		Phone:        "62999990000",
		BirthDate:    time.Date(1990, time.May, 2, 0, 0, 0, 0, time.UTC),
		Age:          36,
		Gender:       "Feminino",
		Modality:     ModalityAcademia,
		TrainingDays: TrainingDaysMonWedFri,
		TrainingTime: "06h",
		Turma:        TurmaA,
		CreatedAt:    time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(student)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"birthDate"`)
	assert.Contains(t, string(data), `"onWaitlist"`)

	var decoded Student
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, student, decoded)
}
