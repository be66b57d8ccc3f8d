package main

import (
	"strings"
	"testing"

	"github.com/peerbot/peerbot/bot"
	"github.com/peerbot/peerbot/core/exam"
	"github.com/peerbot/peerbot/storage/database/sqlite"
	"github.com/peerbot/peerbot/tests"
)

func TestRunConsole(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqliterepos.NewExamRepository(db)
	rec := new(testutil.MessageRecorder)
	logger := testutil.NewTestLogger()
	svc := exam.NewService(repo, rec, logger, testutil.NewTestConfig(2))
	d := bot.NewDispatcher(svc, rec, logger)

	input := strings.Join([]string{
		"",
		"this line does not parse",
		"1 [op]: /register Op",
		"1 : /addexam midterm",
		"200 [alice]: /register Alice",
		"1 : /exit",
		"300 [bob]: /register Bob", // never reached
	}, "\n")

	runConsole(d, strings.NewReader(input), logger)

	op, err := repo.GetUserByExternalID(1)
	if err != nil {
		t.Fatalf("GetUserByExternalID() failed: %v", err)
	}
	if op.Privilege != exam.Privileged || op.DisplayName() != "Op" {
		t.Errorf("operator = %+v, want privileged Op", op)
	}
	if _, err := repo.GetUserByExternalID(200); err != nil {
		t.Errorf("alice was not registered: %v", err)
	}

	// the loop stops at /exit
	if _, err := repo.GetUserByExternalID(300); err != exam.ErrNotFound {
		t.Error("input after /exit was dispatched")
	}
	if got, want := rec.Last(200), "User 200 registered as regular: Alice"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}
