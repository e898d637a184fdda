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

type eventRow struct {
	ID          string      `db:"id"`
	TuitionID   string      `db:"tuition_id"`
	ActionType  string      `db:"action_type"`
	AddedBy     string      `db:"added_by"`
	AddedByName string      `db:"added_by_name"`
	Date        time.Time   `db:"date"`
	ClassDate   null.Time   `db:"class_date"`
	Description null.String `db:"description"`
	CreatedAt   time.Time   `db:"created_at"`
	Seq         int64       `db:"seq"` // insertion order, breaks created_at ties
}

func toEventRow(ev tuition.ClassEvent) eventRow {
	row := eventRow{
		ID:          ev.ID,
		TuitionID:   ev.TuitionID,
		ActionType:  string(ev.ActionType),
		AddedBy:     ev.AddedBy,
		AddedByName: ev.AddedByName,
		Date:        ev.Date.UTC(),
		Description: null.NewString(ev.Description, ev.Description != ""),
		CreatedAt:   ev.CreatedAt.UTC(),
	}
	if ev.ClassDate != nil {
		row.ClassDate = null.TimeFrom(ev.ClassDate.UTC())
	}
	return row
}

func (row eventRow) event() tuition.ClassEvent {
	ev := tuition.ClassEvent{
		ID:          row.ID,
		TuitionID:   row.TuitionID,
		ActionType:  tuition.ActionType(row.ActionType),
		AddedBy:     row.AddedBy,
		AddedByName: row.AddedByName,
		Date:        row.Date.UTC(),
		Description: row.Description.String,
		CreatedAt:   row.CreatedAt.UTC(),
	}
	if row.ClassDate.Valid {
		classDate := row.ClassDate.Time.UTC()
		ev.ClassDate = &classDate
	}
	return ev
}

func eventRowsToSlice(rows []eventRow) []tuition.ClassEvent {
	evs := make([]tuition.ClassEvent, 0, len(rows))
	for _, row := range rows {
		evs = append(evs, row.event())
	}
	return evs
}

type eventRepository struct {
	db *sqlx.DB
}

var _ tuition.EventRepository = (*eventRepository)(nil) // interface compliance check

func NewEventRepository(db *sqlx.DB) *eventRepository {
	return &eventRepository{db: db}
}

func (repo eventRepository) AppendEvent(ctx context.Context, ev tuition.ClassEvent) (tuition.ClassEvent, error) {
	ev.ID = uuid.New().String()
	row := toEventRow(ev)

	const q = `
	INSERT INTO class_events (id, tuition_id, action_type, added_by, added_by_name, date, class_date, description, created_at)
	VALUES (:id, :tuition_id, :action_type, :added_by, :added_by_name, :date, :class_date, :description, :created_at)`

	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return tuition.ClassEvent{}, core.NewPersistenceError(err, "inserting class log")
	}
	return row.event(), nil
}

func (repo eventRepository) GetEventByID(ctx context.Context, id string) (tuition.ClassEvent, error) {
	if _, err := uuid.Parse(id); err != nil {
		return tuition.ClassEvent{}, tuition.ErrEventNotFound
	}
	var row eventRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM class_events WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return tuition.ClassEvent{}, tuition.ErrEventNotFound
		}
		return tuition.ClassEvent{}, core.NewPersistenceError(err, "finding class log by ID")
	}
	return row.event(), nil
}

func (repo eventRepository) QueryEventsByTuition(ctx context.Context, tuitionID string) ([]tuition.ClassEvent, error) {
	var rows []eventRow
	const q = `SELECT * FROM class_events WHERE tuition_id = $1 ORDER BY created_at DESC, seq DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, tuitionID); err != nil {
		return nil, core.NewPersistenceError(err, "querying class logs")
	}
	return eventRowsToSlice(rows), nil
}

func (repo eventRepository) QueryClassDatesByTuition(ctx context.Context, tuitionID string) ([]tuition.ClassEvent, error) {
	var rows []eventRow
	const q = `
	SELECT * FROM class_events
	WHERE tuition_id = $1 AND action_type = $2
	ORDER BY COALESCE(class_date, date) DESC, seq DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, tuitionID, string(tuition.ActionIncrement)); err != nil {
		return nil, core.NewPersistenceError(err, "querying class dates")
	}
	return eventRowsToSlice(rows), nil
}

func (repo eventRepository) DeleteEvent(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return tuition.ErrEventNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM class_events WHERE id = $1`, id)
	if err != nil {
		return core.NewPersistenceError(err, "deleting class log")
	}
	return checkAffected(res, tuition.ErrEventNotFound, "deleting class log")
}

func (repo eventRepository) DeleteEventsByTuition(ctx context.Context, tuitionID string) (int, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM class_events WHERE tuition_id = $1`, tuitionID)
	if err != nil {
		return 0, core.NewPersistenceError(err, "deleting class logs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, core.NewPersistenceError(err, "deleting class logs")
	}
	return int(n), nil
}
