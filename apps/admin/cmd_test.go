package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Beccio00/homeworks-web-app/core"
	"github.com/Beccio00/homeworks-web-app/core/user"
	"github.com/Beccio00/homeworks-web-app/storage/database/sqlx"
	"github.com/Beccio00/homeworks-web-app/tests"
)

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	// set up DB & repos
	db := testutil.PrepareDB(t)
	usrRepo = sqlxrepos.NewUserRepository(db)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// start CLI
	return &commandLine{
		db:         db,
		usrSvc:     user.NewService(usrRepo),
		validate:   validate,
		translator: translator,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

type extra struct {
	pwd string
}

func mockPassword(tt cliTest) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		if extra, ok := tt.extra.(extra); ok {
			return []byte(extra.pwd), nil
		}
		return nil, nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var gotDir string
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		gotDir = dir
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "0"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "reviews", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
	assert.Equal(t, "migrations/sqlite3", gotDir)
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)

	testutil.CreateUser(t, usrRepo, "Luigi", "De Russis", "luigi", "", user.RoleTeacher, true)
	pwd := extra{pwd: "n3wPassw0rd!"}

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"adduser", "-username", "anna"}, wantErr: errHelp},
		{
			name: "missing name", args: []string{"adduser", "-username", "anna", "-surname", "Alberti"},
			extra: pwd, wantErrStr: "name",
		},
		{
			name: "unknown role", args: []string{"adduser", "-username", "anna", "-name", "Anna", "-surname", "Alberti", "-role", "admin"},
			extra: pwd, wantErrStr: "role",
		},
		{
			name: "weak password", args: []string{"adduser", "-username", "anna", "-name", "Anna", "-surname", "Alberti"},
			extra: extra{pwd: "12345678"}, wantErrStr: "password",
		},
		{
			name: "username taken", args: []string{"adduser", "-username", "Luigi", "-name", "Luigi", "-surname", "Rossi", "-role", "teacher"},
			extra: pwd, wantErr: user.ErrUsernameExists,
		},
		{
			name: "student created", args: []string{"adduser", "-username", "Anna", "-name", "Anna", "-surname", "Alberti"},
			extra: pwd,
		},
		{
			name: "teacher created", args: []string{"adduser", "-username", "fulvio", "-name", "Fulvio", "-surname", "Corno", "-role", "TEACHER"},
			extra: pwd,
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		mockPassword(tt)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.True(t, strings.Contains(cli.describe(err), tt.wantErrStr+": "), "describe() = %s", cli.describe(err))
			case err != nil:
				t.Errorf("cli.run() unexpected error = %v", err)
			}
		})
	}

	anna, err := usrRepo.GetUserByUsername(context.Background(), "anna")
	require.NoError(t, err)
	assert.True(t, anna.IsStudent())
	assert.True(t, anna.IsActive)
	assert.NoError(t, anna.CheckPassword(pwd.pwd))

	fulvio, err := usrRepo.GetUserByUsername(context.Background(), "fulvio")
	require.NoError(t, err)
	assert.True(t, fulvio.IsTeacher())
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "Anna", "Alberti", "anna", "0ldPassw0rd!", user.RoleStudent, true)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "n3wPassw0rd!"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "n3wPassw0rd!"}},
		{name: "reset with uppercase username", args: []string{"resetpassword", "-username", "ANNA"}, extra: extra{pwd: "an0therPassw0rd"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		mockPassword(tt)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUserByID(context.Background(), usr.ID)
				if err != nil {
					t.Fatalf("GetUserByID() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
				if pwd, ok := tt.extra.(extra); ok {
					assert.NoError(t, refreshedUsr.CheckPassword(pwd.pwd))
				}
				usr = refreshedUsr
			} else if !errors.Is(err, tt.wantErr) {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
