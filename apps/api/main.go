package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // /debug/pprof
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	echoapi "github.com/trezcool/tuitionbook/apps/api/echo"
	"github.com/trezcool/tuitionbook/core"
	"github.com/trezcool/tuitionbook/core/tuition"
	"github.com/trezcool/tuitionbook/core/user"
	appfs "github.com/trezcool/tuitionbook/fs"
	emailsvc "github.com/trezcool/tuitionbook/services/email"
	logsvc "github.com/trezcool/tuitionbook/services/logger"
	"github.com/trezcool/tuitionbook/services/metrics"
	notifysvc "github.com/trezcool/tuitionbook/services/notify"
	reportsvc "github.com/trezcool/tuitionbook/services/report"
	throttlesvc "github.com/trezcool/tuitionbook/services/throttle"
	"github.com/trezcool/tuitionbook/storage/database"
	inmemdb "github.com/trezcool/tuitionbook/storage/database/inmem"
	sqlxrepos "github.com/trezcool/tuitionbook/storage/database/sqlx"
)

type repositories struct {
	users    user.Repository
	tuitions tuition.Repository
	events   tuition.EventRepository
	health   func(ctx context.Context) error
	close    func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	// rollbar is process wide: enabling one logger enables both
	logger.Enable(!conf.Debug)
	defer logger.Close()

	// set up DB
	repos, err := setUpRepositories(conf)
	if err != nil {
		dbLogger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up live updates & throttling: shared through redis when configured
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		notifier  tuition.Notifier
		live      echoapi.LiveFeed
		throttler user.Throttler
	)
	if conf.Redis.Address != "" {
		client := redis.NewClient(&redis.Options{Addr: conf.Redis.Address, Password: conf.Redis.Password})
		defer func() { _ = client.Close() }()

		redisNotifier := notifysvc.NewRedisNotifier(client, logger)
		go func() {
			if err := redisNotifier.Run(ctx); err != nil {
				logger.Error(fmt.Sprintf("relaying tuition changes: %v", err), err)
			}
		}()
		notifier, live = redisNotifier, redisNotifier
		throttler = throttlesvc.NewRedisThrottler(client, conf.ResendVerificationThrottle)
	} else {
		hub := notifysvc.NewHub()
		notifier, live = hub, hub
	}

	// set up email
	tmpls, err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}
	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, tmpls, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, tmpls, logger)
	}

	usrSvc := user.NewService(repos.users, mailSvc, throttler, logger, conf)
	tuitionSvc := tuition.NewService(repos.tuitions, repos.events, usrSvc, notifier, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	if err = loadCommonPasswords(); err != nil {
		logger.Fatal(fmt.Sprintf("loading common passwords: %v", err), err)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("dbEngine").Set(conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			UserSvc:     usrSvc,
			TuitionSvc:  tuitionSvc,
			MailSvc:     mailSvc,
			Validate:    validate,
			Translator:  translator,
			Live:        live,
			Reports:     reportsvc.NewPDFRenderer(conf.AppName),
			Metrics:     metrics.New(),
			HealthCheck: repos.health,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer shutdownCancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(shutdownCtx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpRepositories(conf *core.Config) (*repositories, error) {
	if conf.Database.Engine == "memory" {
		db := inmemdb.Open()
		return &repositories{
			users:    inmemdb.NewUserRepository(db),
			tuitions: inmemdb.NewTuitionRepository(db),
			events:   inmemdb.NewEventRepository(db),
			close:    func() error { return nil },
		}, nil
	}

	db, err := setUpDB(conf)
	if err != nil {
		return nil, err
	}
	return &repositories{
		users:    sqlxrepos.NewUserRepository(db),
		tuitions: sqlxrepos.NewTuitionRepository(db),
		events:   sqlxrepos.NewEventRepository(db),
		health:   func(ctx context.Context) error { return database.StatusCheck(ctx, db) },
		close:    db.Close,
	}, nil
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func loadCommonPasswords() error {
	f, err := appfs.FS.Open("assets/common-passwords.txt")
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return user.LoadCommonPasswords(f)
}
