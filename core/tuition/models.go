package tuition

import (
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/tuitionbook/core"
)

// ActionType is the kind of a ClassEvent.
type ActionType string

const (
	ActionIncrement ActionType = "increment"
	ActionDecrement ActionType = "decrement"
	ActionManual    ActionType = "manual"
)

// Class actions accepted by Service.UpdateClasses.
const (
	ClassIncrement = "increment"
	ClassDecrement = "decrement"
	ClassReset     = "reset"
)

// Tuition is a recurring teacher-student class arrangement with a monthly class quota.
// The student fields are either all set or all empty.
type Tuition struct {
	ID                     string    `json:"id"`
	TeacherID              string    `json:"teacherId"`
	TeacherName            string    `json:"teacherName"`
	StudentID              string    `json:"studentId,omitempty"`
	StudentName            string    `json:"studentName,omitempty"`
	StudentEmail           string    `json:"studentEmail,omitempty"`
	Subject                string    `json:"subject"`
	StartTime              string    `json:"startTime"` // HH:mm
	EndTime                string    `json:"endTime"`   // HH:mm
	DaysPerWeek            int       `json:"daysPerWeek"`
	PlannedClassesPerMonth int       `json:"plannedClassesPerMonth"`
	CurrentMonthYear       string    `json:"currentMonthYear"` // YYYY-MM
	TakenClasses           int       `json:"takenClasses"`
	CreatedAt              time.Time `json:"createdAt"` // UTC
	UpdatedAt              time.Time `json:"updatedAt"` // UTC
}

func (t Tuition) HasStudent() bool { return t.StudentID != "" }

// Progress is the rounded percentage of planned classes taken; it may exceed 100.
func (t Tuition) Progress() int {
	if t.PlannedClassesPerMonth <= 0 {
		return 0
	}
	return int(math.Round(float64(t.TakenClasses) / float64(t.PlannedClassesPerMonth) * 100))
}

// ClassEvent is an immutable log row of a change to a Tuition's class counter.
type ClassEvent struct {
	ID          string     `json:"id"`
	TuitionID   string     `json:"tuitionId"`
	ActionType  ActionType `json:"actionType"`
	AddedBy     string     `json:"addedBy"`
	AddedByName string     `json:"addedByName"`
	Date        time.Time  `json:"date"`
	ClassDate   *time.Time `json:"classDate,omitempty"` // increments only
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// EffectiveDate is when the class took place: ClassDate if set, else Date.
func (ev ClassEvent) EffectiveDate() time.Time {
	if ev.ClassDate != nil {
		return *ev.ClassDate
	}
	return ev.Date
}

// NewTuition contains information needed to create a new Tuition.
type NewTuition struct {
	StudentEmail           string `json:"studentEmail" validate:"omitempty,email"`
	Subject                string `json:"subject" validate:"required,notblank"`
	StartTime              string `json:"startTime" validate:"required,hhmm"`
	EndTime                string `json:"endTime" validate:"required,hhmm"`
	DaysPerWeek            int    `json:"daysPerWeek" validate:"required,min=1,max=7"`
	PlannedClassesPerMonth int    `json:"plannedClassesPerMonth" validate:"required,min=1,max=31"`
}

func (nt *NewTuition) Validate(validate *validator.Validate) error {
	nt.StudentEmail = core.CleanEmail(nt.StudentEmail)
	nt.Subject = core.CleanString(nt.Subject)
	nt.StartTime = core.CleanString(nt.StartTime)
	nt.EndTime = core.CleanString(nt.EndTime)
	return validate.Struct(nt)
}

// RenameStudent changes the student display name of a Tuition.
type RenameStudent struct {
	StudentName string `json:"studentName" validate:"required,notblank"`
}

func (rs *RenameStudent) Validate(validate *validator.Validate) error {
	rs.StudentName = core.CleanString(rs.StudentName)
	return validate.Struct(rs)
}

// AssignStudent attaches the student owning StudentEmail to a Tuition.
type AssignStudent struct {
	StudentEmail string `json:"studentEmail" validate:"required,email"`
}

func (as *AssignStudent) Validate(validate *validator.Validate) error {
	as.StudentEmail = core.CleanEmail(as.StudentEmail)
	return validate.Struct(as)
}

// UpdateClasses is a bookkeeping action on a Tuition's class counter.
// ClassDate is only used by increments; it accepts RFC 3339 timestamps and YYYY-MM-DD dates.
type UpdateClasses struct {
	Action    string `json:"action" validate:"required,oneof=increment decrement reset"`
	ClassDate string `json:"classDate"`

	classDate *time.Time
}

var errInvalidClassDate = errors.New("classDate must be an RFC 3339 timestamp or a YYYY-MM-DD date")

func (uc *UpdateClasses) Validate(validate *validator.Validate) error {
	uc.Action = core.CleanString(uc.Action, true /* lower */)
	if err := validate.Struct(uc); err != nil {
		return err
	}
	if raw := strings.TrimSpace(uc.ClassDate); raw != "" {
		date, err := parseClassDate(raw)
		if err != nil {
			return core.NewValidationError(errInvalidClassDate, core.FieldError{Field: "classDate", Error: errInvalidClassDate.Error()})
		}
		uc.classDate = &date
	}
	return nil
}

// WithClassDate sets the class date of an increment.
func (uc UpdateClasses) WithClassDate(date time.Time) UpdateClasses {
	date = date.UTC()
	uc.classDate = &date
	return uc
}

func parseClassDate(raw string) (time.Time, error) {
	if date, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return date.UTC(), nil
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return date.UTC(), nil
}
