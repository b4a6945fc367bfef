package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/seduc-go/academia-api/internal/models"
)

const studentColumns = `id, cpf, name, department, phone, birth_date, age, gender,
        modality, training_days, training_time, turma, blocked, on_waitlist, created_at, updated_at`

// StudentRepository manages persistence for enrollment records. Slot
// admission runs inside a transaction holding a per-slot advisory lock
// so two concurrent enrollments cannot both observe a free seat.
type StudentRepository struct {
	db       *sqlx.DB
	capacity int
}

// NewStudentRepository constructs a StudentRepository bounded by the
// configured seats per training slot.
func NewStudentRepository(db *sqlx.DB, capacity int) *StudentRepository {
	if capacity <= 0 {
		capacity = 12
	}
	return &StudentRepository{db: db, capacity: capacity}
}

// Capacity exposes the configured seats per slot.
func (r *StudentRepository) Capacity() int {
	return r.capacity
}

// List returns students matching the provided filters, name ascending.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR cpf LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Modality != nil {
		conditions = append(conditions, fmt.Sprintf("modality = $%d", len(args)+1))
		args = append(args, *filter.Modality)
	}
	if filter.OnWaitlist != nil {
		conditions = append(conditions, fmt.Sprintf("on_waitlist = $%d", len(args)+1))
		args = append(args, *filter.OnWaitlist)
	}
	if filter.Blocked != nil {
		conditions = append(conditions, fmt.Sprintf("blocked = $%d", len(args)+1))
		args = append(args, *filter.Blocked)
	}

	query := fmt.Sprintf("SELECT %s FROM students WHERE %s ORDER BY name ASC", studentColumns, strings.Join(conditions, " AND "))

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByCPF fetches a student by the normalized national identifier.
func (r *StudentRepository) FindByCPF(ctx context.Context, cpf string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE cpf = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, cpf); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByCPF checks if a student with given CPF exists optionally excluding an ID.
func (r *StudentRepository) ExistsByCPF(ctx context.Context, cpf string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE cpf = $1"
	args := []interface{}{cpf}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check cpf: %w", err)
	}
	return true, nil
}

// CountActiveInSlot counts admitted (non-waitlisted) students in the slot.
func (r *StudentRepository) CountActiveInSlot(ctx context.Context, slot models.TrainingSlot) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, countActiveInSlotQuery, slot.Modality, slot.TrainingDays, slot.TrainingTime, slot.Turma); err != nil {
		return 0, fmt.Errorf("count slot occupancy: %w", err)
	}
	return count, nil
}

const countActiveInSlotQuery = `SELECT COUNT(*) FROM students
        WHERE on_waitlist = false AND modality = $1 AND training_days = $2 AND training_time = $3 AND turma = $4`

const insertStudentQuery = `INSERT INTO students (id, cpf, name, department, phone, birth_date, age, gender,
        modality, training_days, training_time, turma, blocked, on_waitlist, created_at, updated_at)
        VALUES (:id, :cpf, :name, :department, :phone, :birth_date, :age, :gender,
        :modality, :training_days, :training_time, :turma, :blocked, :on_waitlist, :created_at, :updated_at)`

// CreateWithAdmission inserts the student, deciding admission versus
// waitlist against slot occupancy inside one transaction. On return the
// student's OnWaitlist flag carries the final decision.
func (r *StudentRepository) CreateWithAdmission(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin admission tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	slot := student.Slot()
	if err := lockSlot(ctx, tx, slot); err != nil {
		return err
	}

	var occupancy int
	if err := tx.GetContext(ctx, &occupancy, countActiveInSlotQuery, slot.Modality, slot.TrainingDays, slot.TrainingTime, slot.Turma); err != nil {
		return fmt.Errorf("count slot occupancy: %w", err)
	}
	student.OnWaitlist = occupancy >= r.capacity

	if _, err := tx.NamedExecContext(ctx, insertStudentQuery, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit admission tx: %w", err)
	}
	return nil
}

const updateStudentQuery = `UPDATE students SET cpf = :cpf, name = :name, department = :department,
        phone = :phone, birth_date = :birth_date, age = :age, gender = :gender,
        modality = :modality, training_days = :training_days, training_time = :training_time, turma = :turma,
        blocked = :blocked, on_waitlist = :on_waitlist, updated_at = :updated_at WHERE id = :id`

// Update persists profile changes without touching slot admission.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	if _, err := r.db.NamedExecContext(ctx, updateStudentQuery, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// UpdateWithAdmission persists an edit that moved the student to a new
// training slot, re-running the admission decision against the target
// slot under its lock.
func (r *StudentRepository) UpdateWithAdmission(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin admission tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	slot := student.Slot()
	if err := lockSlot(ctx, tx, slot); err != nil {
		return err
	}

	var occupancy int
	if err := tx.GetContext(ctx, &occupancy, countActiveInSlotQuery, slot.Modality, slot.TrainingDays, slot.TrainingTime, slot.Turma); err != nil {
		return fmt.Errorf("count slot occupancy: %w", err)
	}
	student.OnWaitlist = occupancy >= r.capacity

	if _, err := tx.NamedExecContext(ctx, updateStudentQuery, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit admission tx: %w", err)
	}
	return nil
}

// SetBlockedByCPF toggles the access block flag for a student.
func (r *StudentRepository) SetBlockedByCPF(ctx context.Context, cpf string, blocked bool) error {
	const query = `UPDATE students SET blocked = $2, updated_at = $3 WHERE cpf = $1`
	res, err := r.db.ExecContext(ctx, query, cpf, blocked, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set blocked: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListWaitlist returns waitlisted students in FIFO (created_at) order,
// optionally scoped to one slot.
func (r *StudentRepository) ListWaitlist(ctx context.Context, slot *models.TrainingSlot) ([]models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE on_waitlist = true", studentColumns)
	args := []interface{}{}
	if slot != nil {
		query += " AND modality = $1 AND training_days = $2 AND training_time = $3 AND turma = $4"
		args = append(args, slot.Modality, slot.TrainingDays, slot.TrainingTime, slot.Turma)
	}
	query += " ORDER BY created_at ASC"

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	return students, nil
}

const firstWaitlistedQuery = `SELECT ` + studentColumns + ` FROM students
        WHERE on_waitlist = true AND modality = $1 AND training_days = $2 AND training_time = $3 AND turma = $4
        ORDER BY created_at ASC LIMIT 1 FOR UPDATE`

// DeleteAndPromote removes the student and, when the removed student
// held a seat, promotes the earliest waitlisted student of the same
// slot within the same transaction. The promoted student is returned,
// nil when the waitlist was empty or no seat was freed.
func (r *StudentRepository) DeleteAndPromote(ctx context.Context, id string) (*models.Student, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var removed models.Student
	if err := tx.GetContext(ctx, &removed, fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns), id); err != nil {
		return nil, err
	}

	slot := removed.Slot()
	if !removed.OnWaitlist {
		if err := lockSlot(ctx, tx, slot); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("delete student: %w", err)
	}

	var promoted *models.Student
	if !removed.OnWaitlist {
		promoted, err = promoteFirst(ctx, tx, slot, r.capacity)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete tx: %w", err)
	}
	return promoted, nil
}

// PromoteNext flips the earliest waitlisted student of the slot to
// admitted, provided a seat is free. Returns nil when the waitlist for
// the slot is empty.
func (r *StudentRepository) PromoteNext(ctx context.Context, slot models.TrainingSlot) (*models.Student, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin promote tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := lockSlot(ctx, tx, slot); err != nil {
		return nil, err
	}
	promoted, err := promoteFirst(ctx, tx, slot, r.capacity)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit promote tx: %w", err)
	}
	return promoted, nil
}

// ErrSlotFull is returned when promotion is attempted against a slot
// with no free seat.
var ErrSlotFull = fmt.Errorf("training slot at capacity")

func promoteFirst(ctx context.Context, tx *sqlx.Tx, slot models.TrainingSlot, capacity int) (*models.Student, error) {
	var candidate models.Student
	err := tx.GetContext(ctx, &candidate, firstWaitlistedQuery, slot.Modality, slot.TrainingDays, slot.TrainingTime, slot.Turma)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load waitlist head: %w", err)
	}

	var occupancy int
	if err := tx.GetContext(ctx, &occupancy, countActiveInSlotQuery, slot.Modality, slot.TrainingDays, slot.TrainingTime, slot.Turma); err != nil {
		return nil, fmt.Errorf("count slot occupancy: %w", err)
	}
	if occupancy >= capacity {
		return nil, ErrSlotFull
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, "UPDATE students SET on_waitlist = false, updated_at = $2 WHERE id = $1", candidate.ID, now); err != nil {
		return nil, fmt.Errorf("promote student: %w", err)
	}
	candidate.OnWaitlist = false
	candidate.UpdatedAt = now
	return &candidate, nil
}

// lockSlot serialises admission decisions per slot with a transaction
// scoped advisory lock.
func lockSlot(ctx context.Context, tx *sqlx.Tx, slot models.TrainingSlot) error {
	key := strings.Join([]string{string(slot.Modality), string(slot.TrainingDays), slot.TrainingTime, string(slot.Turma)}, "|")
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
		return fmt.Errorf("lock slot: %w", err)
	}
	return nil
}

// ModalityOccupancy aggregates admitted and waitlisted seats per modality.
func (r *StudentRepository) ModalityOccupancy(ctx context.Context) ([]models.ModalityOccupancy, error) {
	const query = `SELECT modality,
        COUNT(*) FILTER (WHERE on_waitlist = false) AS active,
        COUNT(*) FILTER (WHERE on_waitlist = true) AS waitlisted
        FROM students GROUP BY modality ORDER BY modality`
	var rows []models.ModalityOccupancy
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("modality occupancy: %w", err)
	}
	return rows, nil
}

// Counts returns total admitted, waitlisted and blocked students.
func (r *StudentRepository) Counts(ctx context.Context) (active, waitlisted, blocked int, err error) {
	const query = `SELECT
        COUNT(*) FILTER (WHERE on_waitlist = false) AS active,
        COUNT(*) FILTER (WHERE on_waitlist = true) AS waitlisted,
        COUNT(*) FILTER (WHERE blocked = true) AS blocked
        FROM students`
	row := struct {
		Active     int `db:"active"`
		Waitlisted int `db:"waitlisted"`
		Blocked    int `db:"blocked"`
	}{}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, 0, fmt.Errorf("student counts: %w", err)
	}
	return row.Active, row.Waitlisted, row.Blocked, nil
}
