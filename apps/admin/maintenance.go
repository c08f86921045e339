package main

import (
	"context"
	"fmt"

	"github.com/trezcool/darasa/core"
)

func (cli *commandLine) clearAttendance(ctx context.Context, schoolID string) error {
	n, err := cli.ledger.ClearAttendanceForSchool(ctx, core.SystemActor(), schoolID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "attendance cleared for %d student(s)\n", n)
	return nil
}

func (cli *commandLine) purgeClasses(ctx context.Context, schoolID string) error {
	sum, err := cli.cascade.DeleteAllClassesForSchool(ctx, core.SystemActor(), schoolID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "deleted %d class(es), %d subject(s), %d teacher(s) & %d student(s)\n",
		sum.Classes, sum.Subjects, sum.Teachers, sum.Students)
	return nil
}
