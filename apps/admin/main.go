package main

import (
	"log"
	"os"

	"github.com/peerbot/peerbot/core"
	"github.com/peerbot/peerbot/core/exam"
	"github.com/peerbot/peerbot/services/logger"
	"github.com/peerbot/peerbot/services/messenger"
	"github.com/peerbot/peerbot/storage/database"
	"github.com/peerbot/peerbot/storage/database/sqlite"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	repo := sqliterepos.NewExamRepository(db)

	// the importer funnels questions through the engine so the same
	// validation applies as for /addquestion
	svc := exam.NewService(repo, messengersvc.NewConsoleMessenger(conf), logsvc.NewStdLogger(logger), conf)

	cli := commandLine{
		db:   db,
		repo: repo,
		svc:  svc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
