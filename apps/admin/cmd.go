package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/peerbot/peerbot/core/exam"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db   *sqlx.DB
	repo exam.Repository
	svc  *exam.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run database migrations (up, down, status, ...)")
	fmt.Println("  import -file PATH      - import questions from a text file")
	fmt.Println("  reset                  - wipe all data (users, questions, exams, answers, reviews)")
	fmt.Println("  dump                   - print the contents of every table")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importFile := importCmd.String("file", "", "The questions file. Variant groups are separated by '===' lines, variants within a group by '---' lines.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importQuestions(*importFile)
	case "reset":
		return cli.repo.Reset()
	case "dump":
		return cli.dump(os.Stdout)
	default:
		cli.printUsage()
		return errHelp
	}
}
