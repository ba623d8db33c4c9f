package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof" // /debug/pprof on the debug server

	"github.com/go-playground/validator/v10"

	"github.com/Beccio00/homeworks-web-app/apps/api/echo"
	"github.com/Beccio00/homeworks-web-app/core"
	"github.com/Beccio00/homeworks-web-app/core/task"
	"github.com/Beccio00/homeworks-web-app/core/user"
	"github.com/Beccio00/homeworks-web-app/services/logger"
	"github.com/Beccio00/homeworks-web-app/storage/database"
	"github.com/Beccio00/homeworks-web-app/storage/database/inmem"
	"github.com/Beccio00/homeworks-web-app/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(logsvc.NewZerolog(conf).With().Str("component", "API").Logger(), conf)
	logger.Enable(!conf.Debug)

	// set up DB & repos
	usrRepo, taskRepo, closeDB, err := setUpRepos(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = closeDB(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	task.InitValidators(validate, translator)

	usrSvc := user.NewService(usrRepo)
	taskSvc := task.NewService(taskRepo, usrRepo, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("database").Set(conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.Deps{
			Conf:       conf,
			Logger:     logger,
			UserSvc:    usrSvc,
			TaskSvc:    taskSvc,
			Validate:   validate,
			Translator: translator,
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
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpRepos opens the configured storage, migrating SQL databases to the latest version.
func setUpRepos(conf *core.Config) (user.Repository, task.Repository, func() error, error) {
	if conf.Database.Engine == database.InMemory {
		db := inmemdb.Open()
		return inmemdb.NewUserRepository(db), inmemdb.NewTaskRepository(db), func() error { return nil }, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, nil, nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, nil, nil, err
	}

	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	return sqlxrepos.NewUserRepository(db), sqlxrepos.NewTaskRepository(db), db.Close, nil
}
