package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/tuitionbook/core"
	"github.com/trezcool/tuitionbook/core/tuition"
	"github.com/trezcool/tuitionbook/core/user"
)

const contextTuitionKey = "tuition"

var (
	errTuitionNotFoundInCtx = errors.New("tuition object not found in echo.Context")
	errReportsDisabled      = core.NewInvalidStateError("reports are not available")
)

type (
	createTuitionResponse struct {
		Success   bool   `json:"success"`
		TuitionID string `json:"tuitionId"`
	}

	tuitionsResponse struct {
		Success  bool              `json:"success"`
		Tuitions []tuition.Tuition `json:"tuitions"`
	}

	tuitionDetailResponse struct {
		Success    bool                 `json:"success"`
		Tuition    tuition.Tuition      `json:"tuition"`
		Progress   int                  `json:"progress"`
		Logs       []tuition.ClassEvent `json:"logs"`
		ClassDates []tuition.ClassEvent `json:"classDates"`
	}

	tuitionResponse struct {
		Success bool            `json:"success"`
		Tuition tuition.Tuition `json:"tuition"`
	}

	studentResponse struct {
		Success bool        `json:"success"`
		Student studentInfo `json:"student"`
	}

	studentInfo struct {
		UID   string `json:"uid"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	countResponse struct {
		Success  bool `json:"success"`
		NewCount int  `json:"newCount"`
	}

	logsResponse struct {
		Success bool                 `json:"success"`
		Logs    []tuition.ClassEvent `json:"logs"`
	}

	reportMailData struct {
		Name     string
		Subject  string
		Month    string
		Taken    int
		Planned  int
		Progress int
	}
)

type tuitionApi struct {
	*Server
}

func registerTuitionAPI(g *echo.Group, s *Server, authed []echo.MiddlewareFunc) {
	api := tuitionApi{s}

	tg := g.Group("/tuitions", authed...)
	tg.POST("", api.create, roleMiddleware(user.RoleTeacher))
	tg.GET("", api.list)

	view := api.tuitionMiddleware(false)
	manage := api.tuitionMiddleware(true)

	dg := tg.Group("/:id")
	dg.GET("", api.retrieve, view)
	dg.PATCH("", api.renameStudent, manage)
	dg.DELETE("", api.destroy, manage)
	dg.PATCH("/student", api.assignStudent, manage)
	dg.PATCH("/classes", api.updateClasses, view)
	dg.GET("/logs", api.logs, view)
	dg.DELETE("/logs/:logId", api.deleteLog, manage)
	dg.GET("/report", api.report, view)
	dg.POST("/report/email", api.emailReport, view)

	// browsers cannot set headers on websocket requests
	if s.live != nil {
		jwtQuery := middleware.JWTWithConfig(s.jwtConfig("query:token"))
		g.GET("/tuitions/:id/live", api.liveUpdates, jwtQuery, s.contextUserMiddleware, view)
	}
}

// tuitionMiddleware loads the Tuition of the ":id" path param if the context User may view it,
// or manage it when manage is true.
func (api tuitionApi) tuitionMiddleware(manage bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := contextUser(ctx)
			if err != nil {
				return err
			}
			t, err := api.tuitionSvc.GetForUser(ctx.Request().Context(), usr, ctx.Param("id"), manage)
			if err != nil {
				return errors.Wrap(err, "getting tuition")
			}
			ctx.Set(contextTuitionKey, t)
			return next(ctx)
		}
	}
}

func contextTuition(ctx echo.Context) (tuition.Tuition, error) {
	t, ok := ctx.Get(contextTuitionKey).(tuition.Tuition)
	if !ok {
		return tuition.Tuition{}, errors.Wrap(errTuitionNotFoundInCtx, "retrieving object from context")
	}
	return t, nil
}

// Handlers

func (api tuitionApi) create(ctx echo.Context) error {
	var data tuition.NewTuition
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTuition")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}

	t, err := api.tuitionSvc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating tuition")
	}
	return ctx.JSON(http.StatusCreated, createTuitionResponse{Success: true, TuitionID: t.ID})
}

func (api tuitionApi) list(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	tuitions, err := api.tuitionSvc.ListForUser(ctx.Request().Context(), usr)
	if err != nil {
		return err
	}
	if tuitions == nil {
		tuitions = []tuition.Tuition{}
	}
	return ctx.JSON(http.StatusOK, tuitionsResponse{Success: true, Tuitions: tuitions})
}

func (api tuitionApi) retrieve(ctx echo.Context) error {
	t, err := contextTuition(ctx)
	if err != nil {
		return err
	}
	logs, err := api.tuitionSvc.ListEvents(ctx.Request().Context(), t.ID)
	if err != nil {
		return err
	}
	classDates, err := api.tuitionSvc.ListClassDates(ctx.Request().Context(), t.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tuitionDetailResponse{
		Success:    true,
		Tuition:    t,
		Progress:   t.Progress(),
		Logs:       nonNilEvents(logs),
		ClassDates: nonNilEvents(classDates),
	})
}

func (api tuitionApi) renameStudent(ctx echo.Context) error {
	t, err := contextTuition(ctx)
	if err != nil {
		return err
	}
	var data tuition.RenameStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RenameStudent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if t, err = api.tuitionSvc.RenameStudent(ctx.Request().Context(), t, data.StudentName); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tuitionResponse{Success: true, Tuition: t})
}

func (api tuitionApi) destroy(ctx echo.Context) error {
	t, err := contextTuition(ctx)
	if err != nil {
		return err
	}
	if err = api.tuitionSvc.Delete(ctx.Request().Context(), t); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, successResponse{Success: true})
}

func (api tuitionApi) assignStudent(ctx echo.Context) error {
	t, err := contextTuition(ctx)
	if err != nil {
		return err
	}
	var data tuition.AssignStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignStudent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	student, err := api.tuitionSvc.AssignStudent(ctx.Request().Context(), t, data.StudentEmail)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, studentResponse{
		Success: true,
		Student: studentInfo{UID: student.ID, Name: student.Name, Email: student.Email},
	})
}

func (api tuitionApi) updateClasses(ctx echo.Context) error {
	t, err := contextTuition(ctx)
	if err != nil {
		return err
	}
	var data tuition.UpdateClasses
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClasses")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}

	newCount, err := api.tuitionSvc.UpdateClasses(ctx.Request().Context(), usr, t, data)
	if err != nil {
		return err
	}
	if api.metrics != nil {
		api.metrics.ClassAction(data.Action)
	}
	return ctx.JSON(http.StatusOK, countResponse{Success: true, NewCount: newCount})
}

func (api tuitionApi) logs(ctx echo.Context) error {
	t, err := contextTuition(ctx)
	if err != nil {
		return err
	}
	logs, err := api.tuitionSvc.ListEvents(ctx.Request().Context(), t.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, logsResponse{Success: true, Logs: nonNilEvents(logs)})
}

func (api tuitionApi) deleteLog(ctx echo.Context) error {
	t, err := contextTuition(ctx)
	if err != nil {
		return err
	}
	newCount, err := api.tuitionSvc.DeleteEvent(ctx.Request().Context(), t, ctx.Param("logId"))
	if err != nil {
		return err
	}
	if api.metrics != nil {
		api.metrics.ClassAction("deleteLog")
	}
	return ctx.JSON(http.StatusOK, countResponse{Success: true, NewCount: newCount})
}

func (api tuitionApi) report(ctx echo.Context) error {
	t, err := contextTuition(ctx)
	if err != nil {
		return err
	}
	rep, buf, err := api.renderReport(ctx, t)
	if err != nil {
		return err
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", rep.FileName))
	return ctx.Blob(http.StatusOK, api.reports.ContentType(), buf.Bytes())
}

// emailReport sends the report of the Tuition to the requesting User.
func (api tuitionApi) emailReport(ctx echo.Context) error {
	t, err := contextTuition(ctx)
	if err != nil {
		return err
	}
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	rep, buf, err := api.renderReport(ctx, t)
	if err != nil {
		return err
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Class report: " + t.Subject,
		TemplateName: "tuition_report",
		TemplateData: reportMailData{
			Name:     usr.Name,
			Subject:  t.Subject,
			Month:    t.CurrentMonthYear,
			Taken:    t.TakenClasses,
			Planned:  t.PlannedClassesPerMonth,
			Progress: rep.Progress,
		},
	}
	if err = msg.Attach(buf, rep.FileName, api.reports.ContentType()); err != nil {
		return errors.Wrap(err, "attaching report")
	}
	api.mailSvc.SendMessages(msg)

	return ctx.JSON(http.StatusAccepted, successResponse{Success: true, Message: "The report will arrive in your inbox shortly."})
}

func (api tuitionApi) renderReport(ctx echo.Context, t tuition.Tuition) (tuition.Report, *bytes.Buffer, error) {
	if api.reports == nil {
		return tuition.Report{}, nil, errReportsDisabled
	}
	rep, err := api.tuitionSvc.Report(ctx.Request().Context(), t)
	if err != nil {
		return tuition.Report{}, nil, err
	}
	buf := new(bytes.Buffer)
	if err = api.reports.Render(buf, rep); err != nil {
		return tuition.Report{}, nil, errors.Wrap(err, "rendering report")
	}
	return rep, buf, nil
}

func nonNilEvents(evs []tuition.ClassEvent) []tuition.ClassEvent {
	if evs == nil {
		return []tuition.ClassEvent{}
	}
	return evs
}
