package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/tuitionbook/core"
	"github.com/trezcool/tuitionbook/core/tuition"
	"github.com/trezcool/tuitionbook/core/user"
	appfs "github.com/trezcool/tuitionbook/fs"
)

// LoggerMock records the messages logged at each level.
type LoggerMock struct {
	mu       sync.Mutex
	Messages map[string][]string
}

var _ core.Logger = (*LoggerMock)(nil)

func NewLoggerMock() *LoggerMock {
	return &LoggerMock{Messages: make(map[string][]string)}
}

func (l *LoggerMock) log(level, msg string) {
	l.mu.Lock()
	l.Messages[level] = append(l.Messages[level], msg)
	l.mu.Unlock()
}

func (l *LoggerMock) Debug(msg string, _ ...interface{}) { l.log("debug", msg) }
func (l *LoggerMock) Info(msg string, _ ...interface{})  { l.log("info", msg) }
func (l *LoggerMock) Warn(msg string, _ ...interface{})  { l.log("warn", msg) }
func (l *LoggerMock) Error(msg string, _ ...interface{}) { l.log("error", msg) }
func (l *LoggerMock) Fatal(msg string, _ ...interface{}) { l.log("fatal", msg) }

// Logged returns the messages logged at level.
func (l *LoggerMock) Logged(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.Messages[level]...)
}

// EmailTemplates parses the embedded email templates.
func EmailTemplates(t *testing.T, conf *core.Config) *core.EmailTemplates {
	tmpls, err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf)
	if err != nil {
		t.Fatalf("EmailTemplates() failed: %v", err)
	}
	return tmpls
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	verified bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:           name,
		Email:          email,
		Role:           role,
		EmailVerified:  verified,
		LinkedTuitions: []string{},
		CreatedAt:      tstamp,
		UpdatedAt:      tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateTuition saves a tuition of teacher, attached to student when it is not nil.
func CreateTuition(
	t *testing.T,
	repo tuition.Repository,
	usrRepo user.Repository,
	teacher user.User,
	student *user.User,
	subject string,
	planned int,
	createdAt ...time.Time,
) tuition.Tuition {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	tt := tuition.Tuition{
		TeacherID:              teacher.ID,
		TeacherName:            teacher.Name,
		Subject:                subject,
		StartTime:              "16:00",
		EndTime:                "17:30",
		DaysPerWeek:            2,
		PlannedClassesPerMonth: planned,
		CurrentMonthYear:       core.MonthYear(tstamp),
		CreatedAt:              tstamp,
		UpdatedAt:              tstamp,
	}
	if student != nil {
		tt.StudentID, tt.StudentName, tt.StudentEmail = student.ID, student.Name, student.Email
	}

	tt, err := repo.CreateTuition(context.Background(), tt)
	if err != nil {
		t.Fatalf("CreateTuition() failed: %v", err)
	}
	for _, uid := range []string{tt.TeacherID, tt.StudentID} {
		if uid == "" {
			continue
		}
		if err = usrRepo.AddLinkedTuition(context.Background(), uid, tt.ID); err != nil {
			t.Fatalf("CreateTuition() failed linking %s: %v", uid, err)
		}
	}
	return tt
}
