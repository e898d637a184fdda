package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tuitionbook/core"
	"github.com/trezcool/tuitionbook/core/tuition"
)

type tuitionRow struct {
	ID                     string      `db:"id"`
	TeacherID              string      `db:"teacher_id"`
	TeacherName            string      `db:"teacher_name"`
	StudentID              null.String `db:"student_id"`
	StudentName            null.String `db:"student_name"`
	StudentEmail           null.String `db:"student_email"`
	Subject                string      `db:"subject"`
	StartTime              string      `db:"start_time"`
	EndTime                string      `db:"end_time"`
	DaysPerWeek            int         `db:"days_per_week"`
	PlannedClassesPerMonth int         `db:"planned_classes_per_month"`
	CurrentMonthYear       string      `db:"current_month_year"`
	TakenClasses           int         `db:"taken_classes"`
	CreatedAt              time.Time   `db:"created_at"`
	UpdatedAt              time.Time   `db:"updated_at"`
}

func toTuitionRow(t tuition.Tuition) tuitionRow {
	return tuitionRow{
		ID:                     t.ID,
		TeacherID:              t.TeacherID,
		TeacherName:            t.TeacherName,
		StudentID:              null.NewString(t.StudentID, t.StudentID != ""),
		StudentName:            null.NewString(t.StudentName, t.StudentID != ""),
		StudentEmail:           null.NewString(t.StudentEmail, t.StudentID != ""),
		Subject:                t.Subject,
		StartTime:              t.StartTime,
		EndTime:                t.EndTime,
		DaysPerWeek:            t.DaysPerWeek,
		PlannedClassesPerMonth: t.PlannedClassesPerMonth,
		CurrentMonthYear:       t.CurrentMonthYear,
		TakenClasses:           t.TakenClasses,
		CreatedAt:              t.CreatedAt.UTC(),
		UpdatedAt:              t.UpdatedAt.UTC(),
	}
}

func (row tuitionRow) tuition() tuition.Tuition {
	return tuition.Tuition{
		ID:                     row.ID,
		TeacherID:              row.TeacherID,
		TeacherName:            row.TeacherName,
		StudentID:              row.StudentID.String,
		StudentName:            row.StudentName.String,
		StudentEmail:           row.StudentEmail.String,
		Subject:                row.Subject,
		StartTime:              row.StartTime,
		EndTime:                row.EndTime,
		DaysPerWeek:            row.DaysPerWeek,
		PlannedClassesPerMonth: row.PlannedClassesPerMonth,
		CurrentMonthYear:       row.CurrentMonthYear,
		TakenClasses:           row.TakenClasses,
		CreatedAt:              row.CreatedAt.UTC(),
		UpdatedAt:              row.UpdatedAt.UTC(),
	}
}

func tuitionRowsToSlice(rows []tuitionRow) []tuition.Tuition {
	tuitions := make([]tuition.Tuition, 0, len(rows))
	for _, row := range rows {
		tuitions = append(tuitions, row.tuition())
	}
	return tuitions
}

type tuitionRepository struct {
	db *sqlx.DB
}

var _ tuition.Repository = (*tuitionRepository)(nil) // interface compliance check

func NewTuitionRepository(db *sqlx.DB) *tuitionRepository {
	return &tuitionRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to tuition.ErrNotFound
func (repo tuitionRepository) trapNoRowsErr(err error, op string) error {
	if err == sql.ErrNoRows {
		return tuition.ErrNotFound
	}
	return core.NewPersistenceError(err, op)
}

func (repo tuitionRepository) CreateTuition(ctx context.Context, t tuition.Tuition) (tuition.Tuition, error) {
	t.ID = uuid.New().String()
	row := toTuitionRow(t)

	const q = `
	INSERT INTO tuitions (
		id, teacher_id, teacher_name, student_id, student_name, student_email, subject, start_time, end_time,
		days_per_week, planned_classes_per_month, current_month_year, taken_classes, created_at, updated_at
	) VALUES (
		:id, :teacher_id, :teacher_name, :student_id, :student_name, :student_email, :subject, :start_time, :end_time,
		:days_per_week, :planned_classes_per_month, :current_month_year, :taken_classes, :created_at, :updated_at
	)`

	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return tuition.Tuition{}, core.NewPersistenceError(err, "inserting tuition")
	}
	return row.tuition(), nil
}

func (repo tuitionRepository) GetTuitionByID(ctx context.Context, id string) (tuition.Tuition, error) {
	if _, err := uuid.Parse(id); err != nil {
		return tuition.Tuition{}, tuition.ErrNotFound
	}
	var row tuitionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM tuitions WHERE id = $1`, id); err != nil {
		return tuition.Tuition{}, repo.trapNoRowsErr(err, "finding tuition by ID")
	}
	return row.tuition(), nil
}

func (repo tuitionRepository) QueryTuitionsByTeacher(ctx context.Context, teacherID string) ([]tuition.Tuition, error) {
	var rows []tuitionRow
	const q = `SELECT * FROM tuitions WHERE teacher_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, teacherID); err != nil {
		return nil, core.NewPersistenceError(err, "querying tuitions by teacher")
	}
	return tuitionRowsToSlice(rows), nil
}

func (repo tuitionRepository) QueryTuitionsByStudent(ctx context.Context, studentID string) ([]tuition.Tuition, error) {
	var rows []tuitionRow
	const q = `SELECT * FROM tuitions WHERE student_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, core.NewPersistenceError(err, "querying tuitions by student")
	}
	return tuitionRowsToSlice(rows), nil
}

func (repo tuitionRepository) UpdateTuition(ctx context.Context, t tuition.Tuition) (tuition.Tuition, error) {
	if _, err := uuid.Parse(t.ID); err != nil {
		return tuition.Tuition{}, tuition.ErrNotFound
	}

	const q = `
	UPDATE tuitions
	SET student_id = $2, student_name = $3, student_email = $4, updated_at = $5
	WHERE id = $1
	RETURNING *`

	in := toTuitionRow(t)
	var row tuitionRow
	if err := repo.db.GetContext(ctx, &row, q, in.ID, in.StudentID, in.StudentName, in.StudentEmail, in.UpdatedAt); err != nil {
		return tuition.Tuition{}, repo.trapNoRowsErr(err, "updating tuition")
	}
	return row.tuition(), nil
}

// AddTakenClasses applies delta in a single statement so that concurrent updates are never lost.
func (repo tuitionRepository) AddTakenClasses(ctx context.Context, id string, delta int, at time.Time) (int, error) {
	if _, err := uuid.Parse(id); err != nil {
		return 0, tuition.ErrNotFound
	}

	const q = `
	UPDATE tuitions
	SET taken_classes = taken_classes + $2, updated_at = $3
	WHERE id = $1 AND taken_classes + $2 >= 0
	RETURNING taken_classes`

	var count int
	err := repo.db.GetContext(ctx, &count, q, id, delta, at.UTC())
	if err == nil {
		return count, nil
	}
	if err != sql.ErrNoRows {
		return 0, core.NewPersistenceError(err, "updating taken classes")
	}

	// no row matched: the tuition is either missing or the count would go negative
	if err = repo.db.GetContext(ctx, &count, `SELECT taken_classes FROM tuitions WHERE id = $1`, id); err != nil {
		return 0, repo.trapNoRowsErr(err, "finding taken classes")
	}
	return count, tuition.ErrNegativeCount
}

func (repo tuitionRepository) ResetTakenClasses(ctx context.Context, id, monthYear string, at time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return tuition.ErrNotFound
	}
	const q = `UPDATE tuitions SET taken_classes = 0, current_month_year = $2, updated_at = $3 WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q, id, monthYear, at.UTC())
	if err != nil {
		return core.NewPersistenceError(err, "resetting taken classes")
	}
	return checkAffected(res, tuition.ErrNotFound, "resetting taken classes")
}

func (repo tuitionRepository) DeleteTuition(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return tuition.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM tuitions WHERE id = $1`, id)
	if err != nil {
		return core.NewPersistenceError(err, "deleting tuition")
	}
	return checkAffected(res, tuition.ErrNotFound, "deleting tuition")
}

// checkAffected returns notFoundErr if res did not touch any row.
func checkAffected(res sql.Result, notFoundErr error, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return core.NewPersistenceError(err, op)
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}
