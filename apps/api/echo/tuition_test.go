package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tuitionbook/core/tuition"
	"github.com/trezcool/tuitionbook/core/user"
)

type tuitionFixture struct {
	*testApp
	teacher, other, student, stranger user.User
	teacherToken, otherToken          string
	studentToken, strangerToken       string
}

func setupTuitions(t *testing.T) *tuitionFixture {
	app := setup(t)
	f := &tuitionFixture{
		testApp:  app,
		teacher:  app.createUser(t, "Mrs Teacher", "teacher@test.com", user.RoleTeacher, true),
		other:    app.createUser(t, "Mr Other", "other@test.com", user.RoleTeacher, true),
		student:  app.createUser(t, "Kid Student", "student@test.com", user.RoleStudent, true),
		stranger: app.createUser(t, "Random Kid", "stranger@test.com", user.RoleStudent, true),
	}
	f.teacherToken = app.getToken(t, f.teacher)
	f.otherToken = app.getToken(t, f.other)
	f.studentToken = app.getToken(t, f.student)
	f.strangerToken = app.getToken(t, f.stranger)
	return f
}

func (f *tuitionFixture) reload(t *testing.T, id string) tuition.Tuition {
	tt, err := f.tuitionRepo.GetTuitionByID(context.Background(), id)
	require.NoError(t, err)
	return tt
}

func (f *tuitionFixture) linked(t *testing.T, uid string) []string {
	usr, err := f.usrRepo.GetUserByID(context.Background(), uid)
	require.NoError(t, err)
	return usr.LinkedTuitions
}

func errResp(t *testing.T, err error) []byte {
	return marshallObj(t, errorResponse{Message: err.Error()})
}

func Test_tuitionApi_create(t *testing.T) {
	f := setupTuitions(t)

	body := func(email, subject, start, end string, days, planned int) []byte {
		return marshallObj(t, tuition.NewTuition{
			StudentEmail:           email,
			Subject:                subject,
			StartTime:              start,
			EndTime:                end,
			DaysPerWeek:            days,
			PlannedClassesPerMonth: planned,
		})
	}

	tests := []struct {
		httpTest
		wantErrors []string
	}{
		{httpTest: httpTest{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)}},
		{httpTest: httpTest{name: "teacher only", token: f.studentToken, body: body("", "Maths", "16:00", "17:00", 2, 8), wantCode: http.StatusForbidden, wantData: errResp(t, errForbidden)}},
		{
			httpTest:   httpTest{name: "invalid data", token: f.teacherToken, body: body("lol", " ", "25:00", "1700", 0, 40), wantCode: http.StatusBadRequest},
			wantErrors: []string{"studentEmail", "subject", "startTime", "endTime", "daysPerWeek", "plannedClassesPerMonth"},
		},
		{
			httpTest:   httpTest{name: "unknown student", token: f.teacherToken, body: body("ghost@test.com", "Maths", "16:00", "17:00", 2, 8), wantCode: http.StatusBadRequest},
			wantErrors: []string{"studentEmail"},
		},
		{
			httpTest: httpTest{
				name: "not a student", token: f.teacherToken, body: body("other@test.com", "Maths", "16:00", "17:00", 2, 8), wantCode: http.StatusBadRequest,
				wantData: marshallObj(t, errorResponse{Message: "User is not a student"}),
			},
		},
		{httpTest: httpTest{name: "without student", token: f.teacherToken, body: body("", "Physics", "09:00", "10:30", 1, 4), wantCode: http.StatusCreated}},
		{httpTest: httpTest{name: "with student", token: f.teacherToken, body: body(" Student@Test.com ", "Maths", "16:00", "17:00", 2, 8), wantCode: http.StatusCreated}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/api/tuitions"
			rec := f.do(tt.httpTest)
			if tt.wantData != nil {
				checkCodeAndData(t, tt.httpTest, rec)
				return
			}
			checkCode(t, tt.httpTest, rec)

			resp := unmarshallMap(t, rec.Body.Bytes())
			if tt.wantCode != http.StatusCreated {
				errs, _ := resp["errors"].(map[string]interface{})
				for _, field := range tt.wantErrors {
					assert.Contains(t, errs, field)
				}
				return
			}

			assert.Equal(t, true, resp["success"])
			id, _ := resp["tuitionId"].(string)
			require.NotEmpty(t, id)
			created := f.reload(t, id)
			assert.Equal(t, f.teacher.ID, created.TeacherID)
			assert.Equal(t, 0, created.TakenClasses)
			assert.Contains(t, f.linked(t, f.teacher.ID), id)
			if created.HasStudent() {
				assert.Equal(t, f.student.ID, created.StudentID)
				assert.Equal(t, "student@test.com", created.StudentEmail)
				assert.Contains(t, f.linked(t, f.student.ID), id)
			}
		})
	}
}

func Test_tuitionApi_list(t *testing.T) {
	f := setupTuitions(t)
	now := time.Now()
	t1 := f.createTuition(t, f.teacher, &f.student, "Maths", 8, now.Add(-3*time.Hour))
	t2 := f.createTuition(t, f.teacher, nil, "Physics", 4, now.Add(-2*time.Hour))
	t3 := f.createTuition(t, f.other, &f.student, "Chemistry", 4, now.Add(-time.Hour))

	listOf := func(tts ...tuition.Tuition) []byte {
		return marshallObj(t, tuitionsResponse{Success: true, Tuitions: append([]tuition.Tuition{}, tts...)})
	}

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "teacher: owned only", token: f.teacherToken, wantCode: http.StatusOK, wantData: listOf(t2, t1)},
		{name: "student: linked only", token: f.studentToken, wantCode: http.StatusOK, wantData: listOf(t3, t1)},
		{name: "nothing", token: f.strangerToken, wantCode: http.StatusOK, wantData: listOf()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.path = "/api/tuitions"
			checkCodeAndData(t, tt, f.do(tt))
		})
	}
}

func Test_tuitionApi_retrieve(t *testing.T) {
	f := setupTuitions(t)
	tu := f.createTuition(t, f.teacher, &f.student, "Maths", 4)

	// a backfilled class & a class of today
	classDate := time.Date(2024, time.May, 2, 17, 0, 0, 0, time.UTC)
	_, err := f.tuitionSvc.UpdateClasses(context.Background(), f.teacher, tu, tuition.UpdateClasses{Action: tuition.ClassIncrement}.WithClassDate(classDate))
	require.NoError(t, err)
	_, err = f.tuitionSvc.UpdateClasses(context.Background(), f.student, tu, tuition.UpdateClasses{Action: tuition.ClassIncrement})
	require.NoError(t, err)

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "not found", path: "/api/tuitions/8c1f4a52-5a0e-4b8f-9d55-3f0f0c1e2a11", token: f.teacherToken, wantCode: http.StatusNotFound, wantData: errResp(t, tuition.ErrNotFound)},
		{name: "other teacher", token: f.otherToken, wantCode: http.StatusForbidden, wantData: errResp(t, tuition.ErrPermissionDenied)},
		{name: "stranger", token: f.strangerToken, wantCode: http.StatusForbidden, wantData: errResp(t, tuition.ErrPermissionDenied)},
		{name: "teacher", token: f.teacherToken, wantCode: http.StatusOK},
		{name: "student", token: f.studentToken, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.path == "" {
				tt.path = "/api/tuitions/" + tu.ID
			}
			rec := f.do(tt)
			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			checkCode(t, tt, rec)

			var resp tuitionDetailResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.True(t, resp.Success)
			assert.Equal(t, tu.ID, resp.Tuition.ID)
			assert.Equal(t, 2, resp.Tuition.TakenClasses)
			assert.Equal(t, 50, resp.Progress)
			require.Len(t, resp.Logs, 2)
			assert.Equal(t, f.student.Name, resp.Logs[0].AddedByName) // newest first
			require.Len(t, resp.ClassDates, 2)
			assert.True(t, resp.ClassDates[1].ClassDate.Equal(classDate)) // latest class first
		})
	}
}

func Test_tuitionApi_renameStudent(t *testing.T) {
	f := setupTuitions(t)
	tu := f.createTuition(t, f.teacher, &f.student, "Maths", 4)
	body := marshallObj(t, tuition.RenameStudent{StudentName: "  Junior  "})

	tests := []httpTest{
		{name: "student cannot manage", token: f.studentToken, body: body, wantCode: http.StatusForbidden, wantData: errResp(t, tuition.ErrPermissionDenied)},
		{name: "blank name", token: f.teacherToken, body: marshallObj(t, tuition.RenameStudent{StudentName: " "}), wantCode: http.StatusBadRequest},
		{name: "ok", token: f.teacherToken, body: body, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPatch, "/api/tuitions/"+tu.ID
			rec := f.do(tt)
			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			checkCode(t, tt, rec)
		})
	}

	got := f.reload(t, tu.ID)
	assert.Equal(t, "Junior", got.StudentName)
	assert.Equal(t, f.student.ID, got.StudentID)
	assert.Equal(t, f.student.Email, got.StudentEmail)
}

func Test_tuitionApi_assignStudent(t *testing.T) {
	f := setupTuitions(t)
	tu := f.createTuition(t, f.teacher, &f.student, "Maths", 4)
	body := func(email string) []byte { return marshallObj(t, tuition.AssignStudent{StudentEmail: email}) }

	tests := []httpTest{
		{name: "other teacher", token: f.otherToken, body: body("stranger@test.com"), wantCode: http.StatusForbidden, wantData: errResp(t, tuition.ErrPermissionDenied)},
		{name: "invalid email", token: f.teacherToken, body: body("lol"), wantCode: http.StatusBadRequest},
		{name: "unknown email", token: f.teacherToken, body: body("ghost@test.com"), wantCode: http.StatusNotFound, wantData: errResp(t, user.ErrNotFound)},
		{
			name: "not a student", token: f.teacherToken, body: body("other@test.com"), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, errorResponse{Message: "User is not a student"}),
		},
		{
			name: "ok", token: f.teacherToken, body: body("Stranger@test.com"), wantCode: http.StatusOK,
			wantData: marshallObj(t, studentResponse{Success: true, Student: studentInfo{UID: f.stranger.ID, Name: f.stranger.Name, Email: f.stranger.Email}}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPatch, "/api/tuitions/"+tu.ID+"/student"
			rec := f.do(tt)
			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			checkCode(t, tt, rec)
		})
	}

	got := f.reload(t, tu.ID)
	assert.Equal(t, f.stranger.ID, got.StudentID)
	assert.Contains(t, f.linked(t, f.stranger.ID), tu.ID)
	assert.NotContains(t, f.linked(t, f.student.ID), tu.ID)
}

func Test_tuitionApi_destroy(t *testing.T) {
	f := setupTuitions(t)
	tu := f.createTuition(t, f.teacher, &f.student, "Maths", 4)
	_, err := f.tuitionSvc.UpdateClasses(context.Background(), f.teacher, tu, tuition.UpdateClasses{Action: tuition.ClassIncrement})
	require.NoError(t, err)

	tests := []httpTest{
		{name: "student cannot delete", token: f.studentToken, wantCode: http.StatusForbidden, wantData: errResp(t, tuition.ErrPermissionDenied)},
		{name: "ok", token: f.teacherToken, wantCode: http.StatusOK, wantData: marshallObj(t, successResponse{Success: true})},
		{name: "gone", token: f.teacherToken, wantCode: http.StatusNotFound, wantData: errResp(t, tuition.ErrNotFound)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodDelete, "/api/tuitions/"+tu.ID
			checkCodeAndData(t, tt, f.do(tt))
		})
	}

	assert.NotContains(t, f.linked(t, f.teacher.ID), tu.ID)
	assert.NotContains(t, f.linked(t, f.student.ID), tu.ID)
	evs, err := f.eventRepo.QueryEventsByTuition(context.Background(), tu.ID)
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func Test_tuitionApi_updateClasses(t *testing.T) {
	f := setupTuitions(t)
	tu := f.createTuition(t, f.teacher, &f.student, "Maths", 4)
	body := func(action, classDate string) []byte {
		return marshallObj(t, tuition.UpdateClasses{Action: action, ClassDate: classDate})
	}
	count := func(n int) []byte { return marshallObj(t, countResponse{Success: true, NewCount: n}) }

	tests := []httpTest{
		{name: "stranger", token: f.strangerToken, body: body("increment", ""), wantCode: http.StatusForbidden, wantData: errResp(t, tuition.ErrPermissionDenied)},
		{name: "invalid action", token: f.teacherToken, body: body("double", ""), wantCode: http.StatusBadRequest},
		{name: "invalid class date", token: f.teacherToken, body: body("increment", "yesterday"), wantCode: http.StatusBadRequest},
		{name: "decrement at 0", token: f.teacherToken, body: body("decrement", ""), wantCode: http.StatusBadRequest, wantData: errResp(t, tuition.ErrNegativeCount)},
		{name: "increment (teacher)", token: f.teacherToken, body: body("increment", ""), wantCode: http.StatusOK, wantData: count(1)},
		{name: "increment (student)", token: f.studentToken, body: body("INCREMENT", "2024-05-02"), wantCode: http.StatusOK, wantData: count(2)},
		{name: "increment", token: f.teacherToken, body: body("increment", "2024-05-06T17:00:00Z"), wantCode: http.StatusOK, wantData: count(3)},
		{name: "decrement", token: f.teacherToken, body: body("decrement", ""), wantCode: http.StatusOK, wantData: count(2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPatch, "/api/tuitions/"+tu.ID+"/classes"
			rec := f.do(tt)
			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			checkCode(t, tt, rec)
		})
	}

	got := f.reload(t, tu.ID)
	assert.Equal(t, 2, got.TakenClasses)
	assert.Equal(t, 50, got.Progress())

	evs, err := f.eventRepo.QueryEventsByTuition(context.Background(), tu.ID)
	require.NoError(t, err)
	assert.Len(t, evs, 4)

	// reset
	tt := httpTest{method: http.MethodPatch, path: "/api/tuitions/" + tu.ID + "/classes", token: f.teacherToken, body: body("reset", ""), wantCode: http.StatusOK}
	checkCodeAndData(t, tt.withData(count(0)), f.do(tt))
	assert.Equal(t, 0, f.reload(t, tu.ID).TakenClasses)
	evs, err = f.eventRepo.QueryEventsByTuition(context.Background(), tu.ID)
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func Test_tuitionApi_logs(t *testing.T) {
	f := setupTuitions(t)
	tu := f.createTuition(t, f.teacher, &f.student, "Maths", 4)

	tt := httpTest{path: "/api/tuitions/" + tu.ID + "/logs", token: f.studentToken, wantCode: http.StatusOK}
	checkCodeAndData(t, tt.withData(marshallObj(t, logsResponse{Success: true, Logs: []tuition.ClassEvent{}})), f.do(tt))

	_, err := f.tuitionSvc.UpdateClasses(context.Background(), f.teacher, tu, tuition.UpdateClasses{Action: tuition.ClassIncrement})
	require.NoError(t, err)

	rec := f.do(tt)
	checkCode(t, tt, rec)
	var resp logsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Logs, 1)
	assert.Equal(t, tuition.ActionIncrement, resp.Logs[0].ActionType)
	assert.Equal(t, f.teacher.ID, resp.Logs[0].AddedBy)
	assert.NotNil(t, resp.Logs[0].ClassDate)
}

func Test_tuitionApi_deleteLog(t *testing.T) {
	f := setupTuitions(t)
	tu := f.createTuition(t, f.teacher, &f.student, "Maths", 4)
	other := f.createTuition(t, f.teacher, nil, "Physics", 4)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.tuitionSvc.UpdateClasses(ctx, f.teacher, tu, tuition.UpdateClasses{Action: tuition.ClassIncrement})
		require.NoError(t, err)
	}
	_, err := f.tuitionSvc.UpdateClasses(ctx, f.teacher, tu, tuition.UpdateClasses{Action: tuition.ClassDecrement})
	require.NoError(t, err)
	_, err = f.tuitionSvc.UpdateClasses(ctx, f.teacher, other, tuition.UpdateClasses{Action: tuition.ClassIncrement})
	require.NoError(t, err)

	evs, err := f.eventRepo.QueryEventsByTuition(ctx, tu.ID)
	require.NoError(t, err)
	require.Len(t, evs, 4)
	decrement, increment := evs[0], evs[1]
	otherEvs, err := f.eventRepo.QueryEventsByTuition(ctx, other.ID)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "student cannot delete", path: increment.ID, token: f.studentToken, wantCode: http.StatusForbidden, wantData: errResp(t, tuition.ErrPermissionDenied)},
		{name: "unknown log", path: "8c1f4a52-5a0e-4b8f-9d55-3f0f0c1e2a11", token: f.teacherToken, wantCode: http.StatusNotFound, wantData: errResp(t, tuition.ErrEventNotFound)},
		{name: "log of another tuition", path: otherEvs[0].ID, token: f.teacherToken, wantCode: http.StatusForbidden, wantData: errResp(t, tuition.ErrEventWrongTuition)},
		{name: "not an increment", path: decrement.ID, token: f.teacherToken, wantCode: http.StatusBadRequest},
		{name: "ok", path: increment.ID, token: f.teacherToken, wantCode: http.StatusOK, wantData: marshallObj(t, countResponse{Success: true, NewCount: 1})},
		{name: "already deleted", path: increment.ID, token: f.teacherToken, wantCode: http.StatusNotFound, wantData: errResp(t, tuition.ErrEventNotFound)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodDelete, "/api/tuitions/"+tu.ID+"/logs/"+tt.path
			rec := f.do(tt)
			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			checkCode(t, tt, rec)
		})
	}

	_, err = f.eventRepo.GetEventByID(ctx, increment.ID)
	assert.Equal(t, tuition.ErrEventNotFound, err)
	assert.Equal(t, 1, f.reload(t, tu.ID).TakenClasses)
	evs, err = f.eventRepo.QueryEventsByTuition(ctx, tu.ID)
	require.NoError(t, err)
	assert.Len(t, evs, 3)
}

func Test_tuitionApi_classesLifecycle(t *testing.T) {
	f := setupTuitions(t)
	tu := f.createTuition(t, f.teacher, &f.student, "Maths", 4)

	update := func(action string) {
		tt := httpTest{
			method:   http.MethodPatch,
			path:     "/api/tuitions/" + tu.ID + "/classes",
			token:    f.teacherToken,
			body:     marshallObj(t, tuition.UpdateClasses{Action: action}),
			wantCode: http.StatusOK,
		}
		checkCode(t, tt, f.do(tt))
	}
	detail := func() tuitionDetailResponse {
		tt := httpTest{path: "/api/tuitions/" + tu.ID, token: f.studentToken, wantCode: http.StatusOK}
		rec := f.do(tt)
		checkCode(t, tt, rec)
		var resp tuitionDetailResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	for i := 0; i < 3; i++ {
		update(tuition.ClassIncrement)
	}
	resp := detail()
	assert.Equal(t, 3, resp.Tuition.TakenClasses)
	assert.Equal(t, 75, resp.Progress)
	assert.Len(t, resp.Logs, 3)
	assert.Len(t, resp.ClassDates, 3)

	update(tuition.ClassDecrement)
	resp = detail()
	assert.Equal(t, 2, resp.Tuition.TakenClasses)
	assert.Equal(t, 50, resp.Progress)
	require.Len(t, resp.Logs, 4)
	assert.Equal(t, tuition.ActionDecrement, resp.Logs[0].ActionType)

	update(tuition.ClassReset)
	resp = detail()
	assert.Equal(t, 0, resp.Tuition.TakenClasses)
	assert.Equal(t, 0, resp.Progress)
	assert.Empty(t, resp.Logs)
	assert.Empty(t, resp.ClassDates)
}

func Test_tuitionApi_report(t *testing.T) {
	f := setupTuitions(t)
	tu := f.createTuition(t, f.teacher, &f.student, "Maths 101", 4)
	_, err := f.tuitionSvc.UpdateClasses(context.Background(), f.teacher, tu, tuition.UpdateClasses{Action: tuition.ClassIncrement})
	require.NoError(t, err)

	tt := httpTest{path: "/api/tuitions/" + tu.ID + "/report", token: f.strangerToken, wantCode: http.StatusForbidden}
	checkCodeAndData(t, tt.withData(errResp(t, tuition.ErrPermissionDenied)), f.do(tt))

	tt.token = f.studentToken
	rec := f.do(tt)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t,
		`attachment; filename="Maths_101_Kid_Student_`+tu.CurrentMonthYear+`.pdf"`,
		rec.Header().Get("Content-Disposition"),
	)
	assert.True(t, len(rec.Body.Bytes()) > 4 && string(rec.Body.Bytes()[:4]) == "%PDF")
}

func Test_tuitionApi_emailReport(t *testing.T) {
	f := setupTuitions(t)
	tu := f.createTuition(t, f.teacher, &f.student, "Maths", 4)

	tt := httpTest{method: http.MethodPost, path: "/api/tuitions/" + tu.ID + "/report/email", token: f.teacherToken, wantCode: http.StatusAccepted}
	checkCode(t, tt, f.do(tt))

	msgs := f.mailSvc.SentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, f.teacher.Email, msgs[0].To[0].Address)
	assert.Equal(t, "tuition_report", msgs[0].TemplateName)
	require.Len(t, msgs[0].Attachments, 1)
	assert.Equal(t, "application/pdf", msgs[0].Attachments[0].ContentType)
	assert.Equal(t, tuition.ReportFileName(tu), msgs[0].Attachments[0].Filename)
	assert.Contains(t, msgs[0].TextContent, "0 of 4 planned classes taken (0%)")
}

func Test_tuitionApi_classActionMetrics(t *testing.T) {
	f := setupTuitions(t)
	tu := f.createTuition(t, f.teacher, nil, "Maths", 4)

	for i := 0; i < 2; i++ {
		tt := httpTest{method: http.MethodPatch, path: "/api/tuitions/" + tu.ID + "/classes", token: f.teacherToken, body: []byte(`{"action":"increment"}`), wantCode: http.StatusOK}
		checkCode(t, tt, f.do(tt))
	}

	rec := f.do(httpTest{path: "/metrics"})
	assert.Contains(t, rec.Body.String(), `tuitionbook_class_actions_total{action="increment"} 2`)
}
