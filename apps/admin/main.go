package main

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Beccio00/homeworks-web-app/core"
	"github.com/Beccio00/homeworks-web-app/core/user"
	"github.com/Beccio00/homeworks-web-app/services/logger"
	"github.com/Beccio00/homeworks-web-app/storage/database"
	"github.com/Beccio00/homeworks-web-app/storage/database/sqlx"
)

var logger zerolog.Logger

func main() {
	conf := core.NewConfig()
	logger = logsvc.NewZerolog(conf).With().Str("component", "ADMIN").Logger()

	if conf.Database.Engine == database.InMemory {
		logger.Fatal().Msgf("the admin CLI needs a %s or %s database", database.Postgres, database.SQLite)
	}

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:         db,
		usrSvc:     user.NewService(sqlxrepos.NewUserRepository(db)),
		validate:   validate,
		translator: translator,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error().Msg(cli.describe(err))
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal().Err(err).Send()
	}
}
