package echoapi

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/tuitionbook/core"
	"github.com/trezcool/tuitionbook/core/tuition"
	"github.com/trezcool/tuitionbook/core/user"
	"github.com/trezcool/tuitionbook/services/metrics"
)

type (
	// LiveFeed streams the changes of a tuition.
	LiveFeed interface {
		Subscribe(tuitionID string) (<-chan tuition.Change, func())
	}

	// ReportRenderer renders a tuition.Report into a downloadable document.
	ReportRenderer interface {
		ContentType() string
		Render(w io.Writer, rep tuition.Report) error
	}

	ServerDeps struct {
		Conf        *core.Config
		Logger      core.Logger
		UserSvc     *user.Service
		TuitionSvc  *tuition.Service
		MailSvc     core.EmailService
		Validate    *validator.Validate
		Translator  ut.Translator
		Live        LiveFeed       // optional
		Reports     ReportRenderer // optional
		Metrics     *metrics.Metrics
		HealthCheck func(ctx context.Context) error // optional
	}

	Server struct {
		app         *echo.Echo
		conf        *core.Config
		logger      core.Logger
		userSvc     *user.Service
		tuitionSvc  *tuition.Service
		mailSvc     core.EmailService
		validate    *validator.Validate
		translator  ut.Translator
		live        LiveFeed
		reports     ReportRenderer
		metrics     *metrics.Metrics
		healthCheck func(ctx context.Context) error
		errors      chan error
		shutdown    chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		app:         echo.New(),
		conf:        deps.Conf,
		logger:      deps.Logger,
		userSvc:     deps.UserSvc,
		tuitionSvc:  deps.TuitionSvc,
		mailSvc:     deps.MailSvc,
		validate:    deps.Validate,
		translator:  deps.Translator,
		live:        deps.Live,
		reports:     deps.Reports,
		metrics:     deps.Metrics,
		healthCheck: deps.HealthCheck,
		errors:      make(chan error, 1),
		shutdown:    make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	debug := s.conf.Debug

	s.app.HideBanner = s.conf.TestMode
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.metrics != nil {
		s.app.Use(s.metrics.Middleware())
		s.app.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	s.app.HTTPErrorHandler = s.newAppHTTPErrorHandler(s.signalShutdown)
	s.app.Debug = debug

	s.app.GET("/", s.home)

	api := s.app.Group("/api")
	api.GET("/health", s.health)

	jwt := middleware.JWTWithConfig(s.jwtConfig("header:" + echo.HeaderAuthorization))
	authed := []echo.MiddlewareFunc{jwt, s.contextUserMiddleware}

	registerUserAPI(api, s, authed)
	registerTuitionAPI(api, s, authed)
}

// Start listens on the configured address; a failure is sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

// Close stops the server immediately.
func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}

type healthResponse struct {
	Success bool   `json:"success"`
	Build   string `json:"build"`
	Status  string `json:"status"`
}

func (s *Server) health(ctx echo.Context) error {
	resp := healthResponse{Success: true, Build: s.conf.Build, Status: "ok"}
	if s.healthCheck != nil {
		if err := s.healthCheck(ctx.Request().Context()); err != nil {
			s.logger.Warn("health check failed", err)
			resp.Success, resp.Status = false, "db not ready"
			return ctx.JSON(http.StatusServiceUnavailable, resp)
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}
