package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/cascade"
	"github.com/trezcool/darasa/core/ledger"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/validation"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage"
)

func main() {
	ctx := context.Background()
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	stores, err := storage.Open(ctx, conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}

	// start CLI
	validate, _ := validation.New()
	cli := commandLine{
		schoolSvc: school.NewService(stores.Schools, validate, emailsvc.NewService(conf, logger)),
		ledger:    ledger.New(stores.Academic, validate, logger, nil),
		cascade:   cascade.NewEngine(stores.Academic, logger, nil),
		db:        stores.SQL,
		out:       os.Stdout,
	}
	err = cli.run(ctx, os.Args)
	if cErr := stores.Close(); cErr != nil {
		logger.Error(fmt.Sprintf("closing database: %v", cErr), cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
