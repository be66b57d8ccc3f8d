package testutil

import (
	"fmt"
	"io/ioutil"
	"log"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/volatiletech/null/v8"

	"github.com/peerbot/peerbot/core"
	"github.com/peerbot/peerbot/core/exam"
	"github.com/peerbot/peerbot/services/logger"
	"github.com/peerbot/peerbot/storage/database"
)

// NewTestConfig returns a config suitable for tests, bypassing env lookups.
func NewTestConfig(fanOut int) *core.Config {
	conf := &core.Config{
		Debug:          true,
		TestMode:       true,
		Env:            "TEST",
		AppName:        "Peerbot",
		ReviewerFanOut: fanOut,
	}
	conf.Database.Name = ":memory:"
	return conf
}

// NewTestLogger returns a logger that swallows everything.
func NewTestLogger() core.Logger {
	return logsvc.NewStdLogger(log.New(ioutil.Discard, "", 0))
}

// PrepareDB opens a fresh in-memory database, migrated and torn down with the
// test. Every call gets its own database; shared cache keeps it alive across
// connections within the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", uuid.New())
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := database.Migrate(db.DB); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func CreateUser(t *testing.T, repo exam.Repository, extID int64, name string, priv exam.Privilege) exam.User {
	t.Helper()

	usr, err := repo.CreateUser(exam.User{ExternalID: extID, Name: null.StringFrom(name), Privilege: priv})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateQuestion(t *testing.T, repo exam.Repository, number, variant int, text string) exam.Question {
	t.Helper()

	qst, err := repo.UpsertQuestion(exam.Question{Number: number, Variant: variant, Text: text})
	if err != nil {
		t.Fatalf("CreateQuestion() failed: %v", err)
	}
	return qst
}

func CreateExam(t *testing.T, repo exam.Repository, phase exam.Phase) exam.Exam {
	t.Helper()

	exm, err := repo.CreateExam(exam.Exam{Phase: phase, Name: "exam"})
	if err != nil {
		t.Fatalf("CreateExam() failed: %v", err)
	}
	return exm
}

// MessageRecorder is a core.Messenger that keeps everything it is handed,
// in order, for assertions.
type MessageRecorder struct {
	mu       sync.Mutex
	Messages []core.Message
}

var _ core.Messenger = (*MessageRecorder)(nil)

func (rec *MessageRecorder) SendMessages(messages ...*core.Message) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, msg := range messages {
		rec.Messages = append(rec.Messages, *msg)
	}
}

func (rec *MessageRecorder) Clear() {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.Messages = nil
}

// Texts returns the texts of all recorded messages sent to chatID.
func (rec *MessageRecorder) Texts(chatID int64) []string {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	var texts []string
	for _, msg := range rec.Messages {
		if msg.ChatID == chatID {
			texts = append(texts, msg.Text)
		}
	}
	return texts
}

// Last returns the most recent message sent to chatID, or "" if none was.
func (rec *MessageRecorder) Last(chatID int64) string {
	texts := rec.Texts(chatID)
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

// Diff renders a unified diff of two multiline strings for test failures.
func Diff(want, got string) string {
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  2,
	})
	return diff
}
