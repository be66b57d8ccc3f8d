package bot

import (
	"strconv"
	"strings"
	"testing"

	"github.com/peerbot/peerbot/core/exam"
	"github.com/peerbot/peerbot/storage/database/sqlite"
	"github.com/peerbot/peerbot/tests"
)

func setup(t *testing.T) (*Dispatcher, exam.Repository, *testutil.MessageRecorder) {
	t.Helper()

	db := testutil.PrepareDB(t)
	repo := sqliterepos.NewExamRepository(db)
	rec := new(testutil.MessageRecorder)
	logger := testutil.NewTestLogger()
	svc := exam.NewService(repo, rec, logger, testutil.NewTestConfig(2))
	return NewDispatcher(svc, rec, logger), repo, rec
}

func TestDispatcher_Dispatch_parsing(t *testing.T) {
	d, _, rec := setup(t)

	// plain chatter is ignored
	if exit := d.Dispatch(1, "op", "hello there"); exit {
		t.Error("Dispatch() = true for non-command text")
	}
	if len(rec.Messages) != 0 {
		t.Errorf("non-command text produced %d messages", len(rec.Messages))
	}

	// a bare slash is ignored too
	if d.Dispatch(1, "op", "/") {
		t.Error("Dispatch() = true for bare slash")
	}
	if len(rec.Messages) != 0 {
		t.Errorf("bare slash produced %d messages", len(rec.Messages))
	}
}

func TestDispatcher_Dispatch_commandScoping(t *testing.T) {
	d, repo, rec := setup(t)

	// unregistered callers only see the base command set
	d.Dispatch(500, "eve", "/startexam")
	want := "Unknown command /startexam\n---\n" + baseHelpText
	if got := rec.Last(500); got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
	d.Dispatch(500, "eve", "/help")
	if got := rec.Last(500); got != baseHelpText {
		t.Errorf("reply = %q, want base help", got)
	}

	// first registration creates the privileged operator
	d.Dispatch(1, "op", "/register Op")
	if got, want := rec.Last(1), "User 1 registered as privileged: Op"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
	d.Dispatch(1, "op", "/help")
	if got := rec.Last(1); got != privilegedHelpText {
		t.Errorf("reply = %q, want privileged help", got)
	}

	d.Dispatch(1, "op", "/addexam midterm")
	if got, want := rec.Last(1), "Exam added"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}

	d.Dispatch(200, "alice", "/register Alice")
	if got, want := rec.Last(200), "User 200 registered as regular: Alice"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
	d.Dispatch(200, "alice", "/help")
	if got := rec.Last(200); got != regularHelpText {
		t.Errorf("reply = %q, want regular help", got)
	}

	// privileged commands stay invisible to regulars
	d.Dispatch(200, "alice", "/startexam")
	if got := rec.Last(200); !strings.HasPrefix(got, "Unknown command /startexam\n---\n") {
		t.Errorf("reply = %q, want unknown command with scoped help", got)
	}
	// /exit included
	if exit := d.Dispatch(200, "alice", "/exit"); exit {
		t.Error("Dispatch() = true for a regular /exit")
	}

	alice, err := repo.GetUserByExternalID(200)
	if err != nil {
		t.Fatalf("GetUserByExternalID() failed: %v", err)
	}
	if alice.Privilege != exam.Regular {
		t.Errorf("privilege = %s, want regular", alice.Privilege)
	}
}

func TestDispatcher_Dispatch_malformedArgs(t *testing.T) {
	d, _, rec := setup(t)
	d.Dispatch(1, "op", "/register Op")
	d.Dispatch(1, "op", "/addexam")
	d.Dispatch(200, "alice", "/register Alice")

	tests := []struct {
		name   string
		caller int64
		text   string
		want   string
	}{
		{name: "addquestion missing text", caller: 1, text: "/addquestion 1 2",
			want: "You need to specify question number, variant and question text"},
		{name: "addquestion missing variant", caller: 1, text: "/addquestion 1",
			want: "You need to specify question number, variant and question text"},
		{name: "answer missing text", caller: 200, text: "/answer 1",
			want: "You need to specify question number and answer text"},
		{name: "answer no number", caller: 200, text: "/answer howdy",
			want: "You need to specify question number and answer text"},
		{name: "review missing parts", caller: 200, text: "/review 1 5",
			want: "You need to specify review number, grade and review text"},
		{name: "lookup_question no number", caller: 200, text: "/lookup_question x",
			want: "Wrong command format: specify n"},
		{name: "lookup_answer no number", caller: 200, text: "/lookup_answer",
			want: "Wrong command format: specify n"},
		{name: "lookup_review no number", caller: 200, text: "/lookup_review",
			want: "Wrong command format: specify n"},
		{name: "answersof no id", caller: 1, text: "/answersof",
			want: "Wrong command format: specify user id"},
		{name: "reviewsof bad id", caller: 1, text: "/reviewsof lol",
			want: "Wrong command format: specify user id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d.Dispatch(tt.caller, "", tt.text)
			if got := rec.Last(tt.caller); got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
		})
	}
}

// walks a whole exam through the chat surface: registration, questions,
// answering, reviewing, grading.
func TestDispatcher_Dispatch_fullExam(t *testing.T) {
	d, repo, rec := setup(t)

	d.Dispatch(1, "op", "/register Op")
	d.Dispatch(1, "op", "/addexam midterm")
	d.Dispatch(1, "op", "/addquestion 1 1 What is a goroutine?")
	if got, want := rec.Last(1), "question added or updated"; got != want {
		t.Fatalf("reply = %q, want %q", got, want)
	}
	d.Dispatch(200, "alice", "/register Alice")
	d.Dispatch(300, "bob", "/register Bob")
	d.Dispatch(400, "carol", "/register Carol")

	d.Dispatch(1, "op", "/startexam")
	exm, err := repo.GetExam()
	if err != nil {
		t.Fatalf("GetExam() failed: %v", err)
	}
	if exm.Phase != exam.Answering {
		t.Fatalf("phase = %s, want answering", exm.Phase)
	}

	for _, id := range []int64{200, 300, 400} {
		d.Dispatch(id, "", "/answer 1 A goroutine is a lightweight thread.")
		if got := rec.Last(id); !strings.HasPrefix(got, "Answer recorded to ") {
			t.Fatalf("reply for %d = %q, want answer recorded", id, got)
		}
	}

	d.Dispatch(1, "op", "/startreview")
	exm, _ = repo.GetExam()
	if exm.Phase != exam.Reviewing {
		t.Fatalf("phase = %s, want reviewing", exm.Phase)
	}

	// grade bounds reach the caller as a validation reply
	d.Dispatch(200, "", "/review 1 11 too good")
	if got, want := rec.Last(200), "Grade shall be 1 .. 10"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}

	// every reviewer grades everything they were assigned
	for _, usr := range []int64{200, 300, 400} {
		caller, err := repo.GetUserByExternalID(usr)
		if err != nil {
			t.Fatalf("GetUserByExternalID() failed: %v", err)
		}
		for id := 1; ; id++ {
			rasg, err := repo.GetReviewAssignment(id)
			if err != nil {
				break
			}
			if rasg.ReviewerID != caller.ID {
				continue
			}
			d.Dispatch(usr, "", "/review "+strconv.Itoa(rasg.ID)+" 8 well put")
			if got := rec.Last(usr); !strings.HasPrefix(got, "You sent ") {
				t.Fatalf("reply = %q, want progress notice", got)
			}
		}
	}

	d.Dispatch(1, "op", "/setgrades")
	exm, _ = repo.GetExam()
	if exm.Phase != exam.Grading {
		t.Fatalf("phase = %s, want grading", exm.Phase)
	}
	for _, id := range []int64{200, 300, 400} {
		if got, want := rec.Last(id), "Your approx grade is 8"; got != want {
			t.Errorf("grade reply for %d = %q, want %q", id, got, want)
		}
	}

	if exit := d.Dispatch(1, "op", "/exit"); !exit {
		t.Error("Dispatch() = false for privileged /exit")
	}
}
