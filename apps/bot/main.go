package main

import (
	"flag"
	"log"
	"os"

	"github.com/peerbot/peerbot/apps/bot/echo"
	"github.com/peerbot/peerbot/bot"
	"github.com/peerbot/peerbot/core"
	"github.com/peerbot/peerbot/core/exam"
	"github.com/peerbot/peerbot/services/logger"
	"github.com/peerbot/peerbot/services/messenger"
	"github.com/peerbot/peerbot/storage/database"
	"github.com/peerbot/peerbot/storage/database/sqlite"
)

// TODO:
// - graceful shutdown for the console loop (flush pending messages)
// - wire a real chat transport behind core.Messenger
func main() {
	serve := flag.Bool("serve", false, "run the webhook server instead of the console loop")
	flag.Parse()

	conf := core.NewConfig()
	std := log.New(os.Stdout, "BOT : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	var logger core.Logger
	if conf.Debug {
		logger = logsvc.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(database.Migrate(db.DB))

	// set up services
	var msgr core.Messenger
	if conf.Debug {
		msgr = messengersvc.NewConsoleMessenger(conf)
	} else {
		msgr = messengersvc.NewSendgridMessenger(conf, logger)
	}
	svc := exam.NewService(sqliterepos.NewExamRepository(db), msgr, logger, conf)
	dispatcher := bot.NewDispatcher(svc, msgr, logger)

	if *serve {
		app := echobot.NewServer(
			&echobot.Options{
				Address:    conf.Address(),
				Secret:     conf.Server.Secret,
				Debug:      conf.Debug,
				Dispatcher: dispatcher,
				Logger:     logger,
			},
		)
		app.Start()
		return
	}
	runConsole(dispatcher, os.Stdin, logger)
}

func errAndDie(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
