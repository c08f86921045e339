package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/darasa/core/cascade"
	"github.com/trezcool/darasa/core/ledger"
	"github.com/trezcool/darasa/core/school"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	schoolSvc *school.Service
	ledger    *ledger.Ledger
	cascade   *cascade.Engine
	db        *sqlx.DB // nil unless the database engine is SQL
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset a school admin's password")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  clearattendance -school ID - clear the attendance of every student of a school")
	fmt.Fprintln(cli.out, "  purgeclasses -school ID - delete every class of a school, with its students, subjects & teachers")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The school admin's email. The password will be prompted next.")

	clearAttendanceCmd := flag.NewFlagSet("clearattendance", flag.ExitOnError)
	clearAttendanceSchool := clearAttendanceCmd.String("school", "", "The school ID.")

	purgeClassesCmd := flag.NewFlagSet("purgeclasses", flag.ExitOnError)
	purgeClassesSchool := purgeClassesCmd.String("school", "", "The school ID.")

	switch args[1] {
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordEmail, string(pwd))
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "clearattendance":
		if err := clearAttendanceCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *clearAttendanceSchool == "" {
			clearAttendanceCmd.Usage()
			return errHelp
		}
		return cli.clearAttendance(ctx, *clearAttendanceSchool)
	case "purgeclasses":
		if err := purgeClassesCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *purgeClassesSchool == "" {
			purgeClassesCmd.Usage()
			return errHelp
		}
		return cli.purgeClasses(ctx, *purgeClassesSchool)
	default:
		cli.printUsage()
		return errHelp
	}
}
