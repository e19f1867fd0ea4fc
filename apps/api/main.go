package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/classroom"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	sendgridmail "github.com/trezcool/academia/services/email/sendgrid"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/storage/database"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
)

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig(core.Getwd())

	// set up logger
	var logger core.Logger
	if conf.Debug {
		logger = core.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}
	logger.Enable(!conf.Debug)

	// set up DB
	errAndDie(std, database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(std, err)
	defer func() { _ = db.Close() }()
	errAndDie(std, database.Migrate(db))
	dbx := sqlx.NewDb(db, conf.Database.Engine)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = sendgridmail.NewService(conf, logger)
	}
	usrRepo := sqlxrepos.NewUserRepository(dbx)
	usrSvc := user.NewService(usrRepo, mailSvc)
	classSvc := classroom.NewService(sqlxrepos.NewClassroomRepository(dbx), usrRepo, mailSvc, logger)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	app := echoapi.NewServer(&echoapi.Options{
		Address:        conf.Server.Address(),
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		ClassroomSvc:   classSvc,
		SignalShutdown: func() { shutdown <- syscall.SIGTERM },
	})
	go app.Start()

	<-shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		std.Printf("graceful shutdown failed: %v", err)
	}
}

func errAndDie(std *log.Logger, err error) {
	if err != nil {
		std.Fatal(err)
	}
}
