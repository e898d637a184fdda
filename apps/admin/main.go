package main

import (
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/tuitionbook/core"
	"github.com/trezcool/tuitionbook/core/user"
	appfs "github.com/trezcool/tuitionbook/fs"
	emailsvc "github.com/trezcool/tuitionbook/services/email"
	logsvc "github.com/trezcool/tuitionbook/services/logger"
	"github.com/trezcool/tuitionbook/storage/database"
	inmemdb "github.com/trezcool/tuitionbook/storage/database/inmem"
	sqlxrepos "github.com/trezcool/tuitionbook/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	var (
		db      *sqlx.DB
		usrRepo user.Repository
		err     error
	)
	if conf.Database.Engine == "memory" {
		usrRepo = inmemdb.NewUserRepository(inmemdb.Open())
	} else {
		if db, err = database.Open(conf); err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		usrRepo = sqlxrepos.NewUserRepository(db)
	}

	tmpls, err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:         db,
		usrSvc:     user.NewService(usrRepo, emailsvc.NewConsoleService(conf, tmpls, logger), nil, logger, conf),
		validate:   validate,
		translator: translator,
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	if db != nil {
		_ = db.Close()
	}
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
