package tuition

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tuitionbook/core"
	"github.com/trezcool/tuitionbook/core/user"
)

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("tuition")
	ErrEventNotFound       = core.NewNotFoundError("log")
	ErrNegativeCount       = core.NewInvalidStateError("cannot decrement below 0")
	ErrPermissionDenied    = core.NewAuthorizationError("you do not have permission to perform this action")
	ErrTeacherOnly         = core.NewAuthorizationError("only teachers can create tuitions")
	ErrEventWrongTuition   = core.NewAuthorizationError("log does not belong to this tuition")
	errNotAStudent         = errors.New("User is not a student")
	errOnlyIncrementEvents = errors.New("only increment logs can be deleted")
)

type (
	// Repository is the tuition record accessor.
	Repository interface {
		// CreateTuition assigns the ID.
		CreateTuition(ctx context.Context, t Tuition) (Tuition, error)
		GetTuitionByID(ctx context.Context, id string) (Tuition, error)
		// QueryTuitionsByTeacher and QueryTuitionsByStudent order by CreatedAt desc.
		QueryTuitionsByTeacher(ctx context.Context, teacherID string) ([]Tuition, error)
		QueryTuitionsByStudent(ctx context.Context, studentID string) ([]Tuition, error)
		// UpdateTuition saves the student fields and UpdatedAt. TakenClasses is never written.
		UpdateTuition(ctx context.Context, t Tuition) (Tuition, error)
		// AddTakenClasses atomically adds delta to TakenClasses and returns the new count.
		// It returns ErrNegativeCount, writing nothing, if the count would drop below 0.
		AddTakenClasses(ctx context.Context, id string, delta int, at time.Time) (int, error)
		// ResetTakenClasses sets TakenClasses to 0 and CurrentMonthYear to monthYear.
		ResetTakenClasses(ctx context.Context, id, monthYear string, at time.Time) error
		DeleteTuition(ctx context.Context, id string) error
	}

	// EventRepository is the class event log accessor.
	EventRepository interface {
		// AppendEvent assigns the ID.
		AppendEvent(ctx context.Context, ev ClassEvent) (ClassEvent, error)
		GetEventByID(ctx context.Context, id string) (ClassEvent, error)
		// QueryEventsByTuition orders by CreatedAt desc.
		QueryEventsByTuition(ctx context.Context, tuitionID string) ([]ClassEvent, error)
		// QueryClassDatesByTuition returns increment events only, ordered by ClassDate desc.
		QueryClassDatesByTuition(ctx context.Context, tuitionID string) ([]ClassEvent, error)
		DeleteEvent(ctx context.Context, id string) error
		DeleteEventsByTuition(ctx context.Context, tuitionID string) (int, error)
	}

	// UserAccessor is the part of the user Service a tuition needs.
	UserAccessor interface {
		GetByEmail(ctx context.Context, email string) (user.User, error)
		AddLinkedTuition(ctx context.Context, uid, tuitionID string) error
		RemoveLinkedTuition(ctx context.Context, uid, tuitionID string) error
	}

	// Notifier is told about every successful change to a Tuition.
	Notifier interface {
		Publish(ctx context.Context, chg Change)
	}

	Service struct {
		repo     Repository
		events   EventRepository
		users    UserAccessor
		notifier Notifier
		logger   core.Logger
	}
)

// Change kinds
const (
	ChangeClasses = "classes"
	ChangeStudent = "student"
	ChangeDeleted = "deleted"
)

// Change describes an update to a Tuition, as streamed to live clients.
type Change struct {
	TuitionID    string    `json:"tuitionId"`
	Kind         string    `json:"kind"`
	Action       string    `json:"action,omitempty"`
	TakenClasses int       `json:"takenClasses"`
	By           string    `json:"by,omitempty"`
	At           time.Time `json:"at"`
}

// NewService returns the tuition Service. notifier may be nil.
func NewService(repo Repository, events EventRepository, users UserAccessor, notifier Notifier, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		events:   events,
		users:    users,
		notifier: notifier,
		logger:   logger,
	}
}

// CanView reports whether usr is the owning teacher or the attached student of t.
func CanView(usr user.User, t Tuition) bool {
	return t.TeacherID == usr.ID || (t.HasStudent() && t.StudentID == usr.ID)
}

// CanManage reports whether usr is the owning teacher of t.
func CanManage(usr user.User, t Tuition) bool {
	return t.TeacherID == usr.ID
}

// GetForUser returns the Tuition if usr may see it (or manage it when manage is true).
func (svc *Service) GetForUser(ctx context.Context, usr user.User, id string, manage bool) (Tuition, error) {
	t, err := svc.repo.GetTuitionByID(ctx, id)
	if err != nil {
		return Tuition{}, err
	}
	if (manage && !CanManage(usr, t)) || (!manage && !CanView(usr, t)) {
		return Tuition{}, ErrPermissionDenied
	}
	return t, nil
}

// Create saves a new Tuition owned by teacher and links it to the teacher and to the student, if any.
func (svc *Service) Create(ctx context.Context, teacher user.User, nt NewTuition) (Tuition, error) {
	if !teacher.IsTeacher() {
		return Tuition{}, ErrTeacherOnly
	}

	now := core.NowFunc().UTC()
	t := Tuition{
		TeacherID:              teacher.ID,
		TeacherName:            teacher.Name,
		Subject:                nt.Subject,
		StartTime:              nt.StartTime,
		EndTime:                nt.EndTime,
		DaysPerWeek:            nt.DaysPerWeek,
		PlannedClassesPerMonth: nt.PlannedClassesPerMonth,
		CurrentMonthYear:       core.MonthYear(now),
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if nt.StudentEmail != "" {
		student, err := svc.findStudent(ctx, nt.StudentEmail)
		if err != nil {
			if err == user.ErrNotFound {
				return Tuition{}, core.NewValidationError(err, core.FieldError{Field: "studentEmail", Error: "student not found"})
			}
			return Tuition{}, err
		}
		t.StudentID, t.StudentName, t.StudentEmail = student.ID, student.Name, student.Email
	}

	t, err := svc.repo.CreateTuition(ctx, t)
	if err != nil {
		return Tuition{}, errors.Wrap(err, "creating tuition")
	}

	if err = svc.users.AddLinkedTuition(ctx, t.TeacherID, t.ID); err != nil {
		return t, errors.Wrap(err, "linking tuition to teacher")
	}
	if t.HasStudent() {
		if err = svc.users.AddLinkedTuition(ctx, t.StudentID, t.ID); err != nil {
			return t, errors.Wrap(err, "linking tuition to student")
		}
	}
	return t, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Tuition, error) {
	return svc.repo.GetTuitionByID(ctx, id)
}

// ListForUser returns the Tuitions a teacher owns or a student is attached to.
func (svc *Service) ListForUser(ctx context.Context, usr user.User) ([]Tuition, error) {
	var (
		tuitions []Tuition
		err      error
	)
	if usr.IsTeacher() {
		tuitions, err = svc.repo.QueryTuitionsByTeacher(ctx, usr.ID)
	} else {
		tuitions, err = svc.repo.QueryTuitionsByStudent(ctx, usr.ID)
	}
	return tuitions, errors.Wrap(err, "listing tuitions")
}

// AssignStudent attaches the student owning email to t, replacing any previous student.
func (svc *Service) AssignStudent(ctx context.Context, t Tuition, email string) (user.User, error) {
	student, err := svc.findStudent(ctx, email)
	if err != nil {
		return user.User{}, err
	}

	prevStudentID := t.StudentID
	t.StudentID, t.StudentName, t.StudentEmail = student.ID, student.Name, student.Email
	t.UpdatedAt = core.NowFunc().UTC()
	if t, err = svc.repo.UpdateTuition(ctx, t); err != nil {
		return user.User{}, errors.Wrap(err, "assigning student")
	}

	if prevStudentID != "" && prevStudentID != student.ID {
		if err = svc.users.RemoveLinkedTuition(ctx, prevStudentID, t.ID); err != nil {
			return user.User{}, errors.Wrap(err, "unlinking previous student")
		}
	}
	if err = svc.users.AddLinkedTuition(ctx, student.ID, t.ID); err != nil {
		return user.User{}, errors.Wrap(err, "linking tuition to student")
	}

	svc.publish(ctx, Change{TuitionID: t.ID, Kind: ChangeStudent, TakenClasses: t.TakenClasses, At: t.UpdatedAt})
	return student, nil
}

// RenameStudent overwrites the student display name of t.
func (svc *Service) RenameStudent(ctx context.Context, t Tuition, name string) (Tuition, error) {
	t.StudentName = name
	t.UpdatedAt = core.NowFunc().UTC()
	t, err := svc.repo.UpdateTuition(ctx, t)
	if err != nil {
		return Tuition{}, errors.Wrap(err, "renaming student")
	}
	svc.publish(ctx, Change{TuitionID: t.ID, Kind: ChangeStudent, TakenClasses: t.TakenClasses, At: t.UpdatedAt})
	return t, nil
}

// Delete unlinks t from its teacher and student, drops its class events and removes it.
func (svc *Service) Delete(ctx context.Context, t Tuition) error {
	if err := svc.users.RemoveLinkedTuition(ctx, t.TeacherID, t.ID); err != nil {
		return errors.Wrap(err, "unlinking teacher")
	}
	if t.HasStudent() {
		if err := svc.users.RemoveLinkedTuition(ctx, t.StudentID, t.ID); err != nil {
			return errors.Wrap(err, "unlinking student")
		}
	}
	if _, err := svc.events.DeleteEventsByTuition(ctx, t.ID); err != nil {
		return errors.Wrap(err, "deleting tuition logs")
	}
	if err := svc.repo.DeleteTuition(ctx, t.ID); err != nil {
		return errors.Wrap(err, "deleting tuition")
	}
	svc.publish(ctx, Change{TuitionID: t.ID, Kind: ChangeDeleted, At: core.NowFunc().UTC()})
	return nil
}

// ListEvents returns the class log of a Tuition, newest first.
func (svc *Service) ListEvents(ctx context.Context, tuitionID string) ([]ClassEvent, error) {
	evs, err := svc.events.QueryEventsByTuition(ctx, tuitionID)
	return evs, errors.Wrap(err, "listing tuition logs")
}

// ListClassDates returns the increment events of a Tuition, latest class first.
func (svc *Service) ListClassDates(ctx context.Context, tuitionID string) ([]ClassEvent, error) {
	evs, err := svc.events.QueryClassDatesByTuition(ctx, tuitionID)
	return evs, errors.Wrap(err, "listing class dates")
}

// UpdateClasses applies an increment, decrement or reset to the class counter of t and logs it.
// The counter write and the log write are independent: a failed log write is only logged.
func (svc *Service) UpdateClasses(ctx context.Context, actor user.User, t Tuition, uc UpdateClasses) (int, error) {
	now := core.NowFunc().UTC()
	var (
		newCount int
		err      error
	)

	switch uc.Action {
	case ClassIncrement:
		if newCount, err = svc.repo.AddTakenClasses(ctx, t.ID, 1, now); err != nil {
			return 0, errors.Wrap(err, "incrementing classes")
		}
		classDate := now
		if uc.classDate != nil {
			classDate = *uc.classDate
		}
		svc.appendEvent(ctx, actor, ClassEvent{
			TuitionID:  t.ID,
			ActionType: ActionIncrement,
			Date:       now,
			ClassDate:  &classDate,
		})

	case ClassDecrement:
		if newCount, err = svc.repo.AddTakenClasses(ctx, t.ID, -1, now); err != nil {
			return 0, errors.Wrap(err, "decrementing classes")
		}
		svc.appendEvent(ctx, actor, ClassEvent{
			TuitionID:  t.ID,
			ActionType: ActionDecrement,
			Date:       now,
		})

	case ClassReset:
		if _, err = svc.events.DeleteEventsByTuition(ctx, t.ID); err != nil {
			return 0, errors.Wrap(err, "clearing tuition logs")
		}
		if err = svc.repo.ResetTakenClasses(ctx, t.ID, core.MonthYear(now), now); err != nil {
			return 0, errors.Wrap(err, "resetting classes")
		}

	default:
		return 0, core.NewValidationError(nil, core.FieldError{Field: "action", Error: "invalid action"})
	}

	svc.publish(ctx, Change{TuitionID: t.ID, Kind: ChangeClasses, Action: uc.Action, TakenClasses: newCount, By: actor.Name, At: now})
	return newCount, nil
}

// DeleteEvent removes an increment event of t and takes one class off the counter, stopping at 0.
func (svc *Service) DeleteEvent(ctx context.Context, t Tuition, eventID string) (int, error) {
	ev, err := svc.events.GetEventByID(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if ev.TuitionID != t.ID {
		return 0, ErrEventWrongTuition
	}
	if ev.ActionType != ActionIncrement {
		return 0, core.NewValidationError(errOnlyIncrementEvents, core.FieldError{Field: "logId", Error: errOnlyIncrementEvents.Error()})
	}

	// only the caller that removed the row takes the class off
	if err = svc.events.DeleteEvent(ctx, ev.ID); err != nil {
		return 0, errors.Wrap(err, "deleting log")
	}
	now := core.NowFunc().UTC()
	newCount, err := svc.repo.AddTakenClasses(ctx, t.ID, -1, now)
	if err != nil {
		if errors.Cause(err) != ErrNegativeCount {
			return 0, errors.Wrap(err, "decrementing classes")
		}
		newCount = 0
	}

	svc.publish(ctx, Change{TuitionID: t.ID, Kind: ChangeClasses, Action: "deleteLog", TakenClasses: newCount, At: now})
	return newCount, nil
}

// Report gathers the data of the class report of t.
func (svc *Service) Report(ctx context.Context, t Tuition) (Report, error) {
	evs, err := svc.events.QueryEventsByTuition(ctx, t.ID)
	if err != nil {
		return Report{}, errors.Wrap(err, "listing tuition logs")
	}
	return BuildReport(t, evs, core.NowFunc().UTC()), nil
}

func (svc *Service) findStudent(ctx context.Context, email string) (user.User, error) {
	student, err := svc.users.GetByEmail(ctx, email)
	if err != nil {
		return user.User{}, err
	}
	if !student.IsStudent() {
		return user.User{}, core.NewValidationError(errNotAStudent)
	}
	return student, nil
}

func (svc *Service) appendEvent(ctx context.Context, actor user.User, ev ClassEvent) {
	ev.AddedBy = actor.ID
	ev.AddedByName = actor.Name
	ev.CreatedAt = ev.Date
	if _, err := svc.events.AppendEvent(ctx, ev); err != nil {
		svc.logger.Error("appending class log", err, actor.Person(), map[string]interface{}{
			"tuitionId":  ev.TuitionID,
			"actionType": ev.ActionType,
		})
	}
}

func (svc *Service) publish(ctx context.Context, chg Change) {
	if svc.notifier != nil {
		svc.notifier.Publish(ctx, chg)
	}
}
