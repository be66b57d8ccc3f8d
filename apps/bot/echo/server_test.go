package echobot

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/peerbot/peerbot/bot"
	"github.com/peerbot/peerbot/core/exam"
	"github.com/peerbot/peerbot/storage/database/sqlite"
	"github.com/peerbot/peerbot/tests"
)

const testSecret = "s3cret"

func setup(t *testing.T) (Server, exam.Repository, *testutil.MessageRecorder) {
	t.Helper()

	db := testutil.PrepareDB(t)
	repo := sqliterepos.NewExamRepository(db)
	rec := new(testutil.MessageRecorder)
	logger := testutil.NewTestLogger()
	svc := exam.NewService(repo, rec, logger, testutil.NewTestConfig(2))

	srv := NewServer(&Options{
		Address:        ":0",
		Secret:         testSecret,
		Debug:          true,
		DisableReqLogs: true,
		Dispatcher:     bot.NewDispatcher(svc, rec, logger),
		Logger:         logger,
	})
	return srv, repo, rec
}

func TestServer_home(t *testing.T) {
	srv, _, _ := setup(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()
	srv.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.Code, http.StatusOK)
	}
	if got, want := res.Body.String(), "Welcome to Peerbot!"; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestServer_update(t *testing.T) {
	srv, repo, rec := setup(t)

	post := func(secret, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/bot/"+secret+"/update", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		res := httptest.NewRecorder()
		srv.ServeHTTP(res, req)
		return res
	}

	// a wrong secret looks like a missing route
	res := post("wrong", `{"message":{"from":{"id":1,"username":"op"},"text":"/register Op"}}`)
	if res.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", res.Code, http.StatusNotFound)
	}
	if _, err := repo.GetUserByExternalID(1); err != exam.ErrNotFound {
		t.Error("update was dispatched despite wrong secret")
	}

	res = post(testSecret, `{"message":`)
	if res.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", res.Code, http.StatusBadRequest)
	}

	res = post(testSecret, `{"message":{"from":{"id":1,"username":"op"},"text":"/register Op"}}`)
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body %s", res.Code, http.StatusOK, res.Body.String())
	}
	if got, want := strings.TrimSpace(res.Body.String()), `{"ok":true}`; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
	usr, err := repo.GetUserByExternalID(1)
	if err != nil {
		t.Fatalf("GetUserByExternalID() failed: %v", err)
	}
	if usr.Privilege != exam.Privileged {
		t.Errorf("privilege = %s, want privileged", usr.Privilege)
	}
	if got, want := rec.Last(1), "User 1 registered as privileged: Op"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}
