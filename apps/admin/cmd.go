package main

import (
	"errors"
	"flag"
	"fmt"
	"sort"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/Beccio00/homeworks-web-app/core"
	"github.com/Beccio00/homeworks-web-app/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sqlx.DB
	usrSvc     *user.Service
	validate   *validator.Validate
	translator ut.Translator
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, up-to VERSION, down, status, version, ...)")
	fmt.Println("  adduser -username USERNAME -name NAME -surname SURNAME -role teacher|student [-avatar FILE] - create a user")
	fmt.Println("  resetpassword -username USERNAME - reset user's password")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's first name.")
	addUserSurname := addUserCmd.String("surname", "", "The user's last name.")
	addUserRole := addUserCmd.String("role", user.RoleStudent, "One of: "+strings.Join(user.Roles, ", "))
	addUserAvatar := addUserCmd.String("avatar", "", "The user's avatar file, relative to the avatars dir.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(user.NewUser{
			Username:        *addUserUname,
			Name:            *addUserName,
			Surname:         *addUserSurname,
			Role:            *addUserRole,
			Avatar:          *addUserAvatar,
			Password:        pwd,
			PasswordConfirm: pwd,
		})
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)
	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

// describe renders validation errors field by field.
func (cli *commandLine) describe(err error) string {
	var vErrs validator.ValidationErrors
	var valErr *core.ValidationError
	var lines []string
	switch {
	case errors.As(err, &vErrs):
		for _, fe := range vErrs {
			lines = append(lines, fe.Field()+": "+fe.Translate(cli.translator))
		}
	case errors.As(err, &valErr) && len(valErr.Fields) > 0:
		for _, fe := range valErr.Fields {
			lines = append(lines, fe.Field+": "+fe.Error)
		}
	default:
		return "error: " + err.Error()
	}
	sort.Strings(lines)
	return "error:\n  " + strings.Join(lines, "\n  ")
}
