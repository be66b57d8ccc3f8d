package exam

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/peerbot/peerbot/core"
)

// Service is the exam workflow engine. One inbound command is fully processed
// (store reads, store writes, outbound notifications) before the next is
// accepted; nothing here suspends.
type Service struct {
	repo   Repository
	msgr   core.Messenger
	logger core.Logger
	fanOut int
	rand   *rand.Rand
}

func NewService(repo Repository, msgr core.Messenger, logger core.Logger, conf *core.Config) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(msgr, "msgr"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	fanOut := conf.ReviewerFanOut
	if fanOut < 1 {
		fanOut = 1
	}
	return &Service{
		repo:   repo,
		msgr:   msgr,
		logger: logger,
		fanOut: fanOut,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (svc *Service) send(msgs ...*core.Message) {
	if len(msgs) > 0 {
		svc.msgr.SendMessages(msgs...)
	}
}

func (svc *Service) reply(chatID int64, format string, args ...interface{}) {
	svc.msgr.SendMessages(core.NewMessage(chatID, format, args...))
}

// ResolveCaller maps an external caller id to its user record. An unknown
// caller yields a User with Privilege None, not an error.
func (svc *Service) ResolveCaller(extID int64) (User, error) {
	usr, err := svc.repo.GetUserByExternalID(extID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{ExternalID: extID, Privilege: None}, nil
		}
		return User{}, errors.Wrap(err, "resolving caller")
	}
	return usr, nil
}

// getExam fetches the singleton exam; its absence surfaces to the caller as
// the command-specific missingMsg.
func (svc *Service) getExam(missingMsg string) (Exam, error) {
	exm, err := svc.repo.GetExam()
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Exam{}, NewNotFoundError(missingMsg)
		}
		return Exam{}, errors.Wrap(err, "getting exam")
	}
	return exm, nil
}

// Register creates or renames the caller's user record. The very first caller
// ever becomes privileged unconditionally; everyone after that is regular.
// Joining during the answering phase hands out the full question set as if
// the exam had just started for this user.
func (svc *Service) Register(extID int64, username, name string) error {
	name = core.CleanString(name)
	if name == "" {
		if username != "" {
			name = username
		} else {
			name = strconv.FormatInt(extID, 10)
		}
	}
	svc.logger.Debug("registering user: " + name)

	hasUsers, err := svc.repo.HasUsers()
	if err != nil {
		return errors.Wrap(err, "checking users")
	}
	if !hasUsers {
		if _, err := svc.repo.CreateUser(User{ExternalID: extID, Name: null.StringFrom(name), Privilege: Privileged}); err != nil {
			return errors.Wrap(err, "creating privileged user")
		}
		svc.reply(extID, "User %d registered as privileged: %s", extID, name)
		return nil
	}

	exm, err := svc.getExam("No exam to register")
	if err != nil {
		return err
	}
	if exm.Phase == Reviewing || exm.Phase == Grading {
		return NewPhaseError("Exam not accepting registers now: it is reviewing or grading")
	}

	usr, registered, err := svc.registerUser(extID, name)
	if err != nil || !registered || exm.Phase == Stopped {
		return err
	}

	var msgs []*core.Message
	err = svc.repo.Atomic(func(repo Repository) error {
		var aerr error
		msgs, aerr = svc.assignQuestions(repo, usr, exm)
		return aerr
	})
	if err != nil {
		return err
	}
	svc.send(msgs...)
	return nil
}

// registerUser reports registered=false when an identical re-registration
// was a no-op. Privilege is immutable: a rename keeps the existing tier.
func (svc *Service) registerUser(extID int64, name string) (User, bool, error) {
	existing, err := svc.repo.GetUserByExternalID(extID)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return User{}, false, errors.Wrap(err, "looking up user")
		}
		usr, err := svc.repo.CreateUser(User{ExternalID: extID, Name: null.StringFrom(name), Privilege: Regular})
		if err != nil {
			return User{}, false, errors.Wrap(err, "creating user")
		}
		svc.reply(extID, "User %d registered as regular: %s", extID, name)
		return usr, true, nil
	}
	if existing.Name.String == name {
		svc.reply(extID, "User %d already registered as %s", extID, name)
		return existing, false, nil
	}
	if err := svc.repo.UpdateUserName(existing.ID, name); err != nil {
		return User{}, false, errors.Wrap(err, "updating user name")
	}
	svc.reply(extID, "User %d name changed from %s to %s", extID, existing.Name.String, name)
	existing.Name = null.StringFrom(name)
	return existing, true, nil
}

func (svc *Service) AddQuestion(caller User, nq NewQuestion) error {
	if err := nq.Validate(); err != nil {
		return err
	}
	svc.logger.Debug(fmt.Sprintf("add question: %d %d", nq.Number, nq.Variant))
	if _, err := svc.repo.UpsertQuestion(Question{Number: nq.Number, Variant: nq.Variant, Text: nq.Text}); err != nil {
		return errors.Wrap(err, "upserting question")
	}
	svc.reply(caller.ExternalID, "question added or updated")
	return nil
}

func (svc *Service) ListQuestions(caller User) error {
	allq, err := svc.repo.QueryAllQuestions()
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	msgs := []*core.Message{core.NewMessage(caller.ExternalID, "--- all questions ---")}
	for _, qst := range allq {
		msgs = append(msgs, core.NewMessage(caller.ExternalID, "%d %d %s", qst.Number, qst.Variant, qst.Text))
	}
	msgs = append(msgs, core.NewMessage(caller.ExternalID, "---"))

	nn, err := svc.repo.MaxQuestionNumber()
	if err != nil {
		return errors.Wrap(err, "counting questions")
	}
	nv, err := svc.repo.MaxQuestionVariant()
	if err != nil {
		return errors.Wrap(err, "counting variants")
	}
	// an incomplete (number, variant) grid breaks random assignment later
	if nn*nv != len(allq) {
		msgs = append(msgs, core.NewMessage(caller.ExternalID, "Warning: %d * %d != %d", nn, nv, len(allq)))
	}
	svc.send(msgs...)
	return nil
}

func (svc *Service) ListUsers(caller User) error {
	allu, err := svc.repo.QueryAllUsers()
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	msgs := []*core.Message{core.NewMessage(caller.ExternalID, "--- all users ---")}
	for _, usr := range allu {
		msgs = append(msgs, core.NewMessage(caller.ExternalID, "%d %s %s", usr.ExternalID, usr.Name.String, usr.Privilege))
	}
	msgs = append(msgs, core.NewMessage(caller.ExternalID, "---"))
	svc.send(msgs...)
	return nil
}

// AddExam creates the singleton exam in the stopped phase. A second call
// while one exists is a no-op, not an error.
func (svc *Service) AddExam(caller User, name string) error {
	name = core.CleanString(name)
	if name == "" {
		name = "exam"
	}
	if _, err := svc.repo.GetExam(); err == nil {
		svc.reply(caller.ExternalID, "Exam already exists, currently only one exam possible")
		return nil
	} else if errors.Cause(err) != ErrNotFound {
		return errors.Wrap(err, "getting exam")
	}
	if _, err := svc.repo.CreateExam(Exam{Phase: Stopped, Name: name}); err != nil {
		return errors.Wrap(err, "creating exam")
	}
	svc.reply(caller.ExternalID, "Exam added")
	return nil
}

// StartExam moves stopped → answering and hands each regular user their
// question set. Phase flip and the whole assignment pass commit together so
// a mid-loop failure leaves no partially-assigned state.
func (svc *Service) StartExam(caller User) error {
	exm, err := svc.getExam("No exam to start")
	if err != nil {
		return err
	}
	if exm.Phase != Stopped {
		return NewPhaseError("Exam currently not in stopped mode")
	}

	var msgs []*core.Message
	err = svc.repo.Atomic(func(repo Repository) error {
		if err := repo.SetExamPhase(exm.ID, Answering); err != nil {
			return errors.Wrap(err, "setting exam phase")
		}
		users, err := repo.QueryRegularUsers()
		if err != nil {
			return errors.Wrap(err, "querying users")
		}
		for _, usr := range users {
			m, err := svc.assignQuestions(repo, usr, exm)
			if err != nil {
				return err
			}
			msgs = append(msgs, m...)
		}
		return nil
	})
	if err != nil {
		return err
	}
	svc.reply(caller.ExternalID, "Exam started, sending questions")
	svc.send(msgs...)
	return nil
}

// StopExam is the emergency reset: always legal, from any phase.
func (svc *Service) StopExam(caller User) error {
	exm, err := svc.getExam("No exam to stop")
	if err != nil {
		return err
	}
	if exm.Phase == Stopped {
		return NewPhaseError("Exam already stopped")
	}
	if err := svc.repo.SetExamPhase(exm.ID, Stopped); err != nil {
		return errors.Wrap(err, "setting exam phase")
	}
	svc.reply(caller.ExternalID, "Exam stopped")
	return nil
}

// StartReview moves answering → reviewing and fans each answered user's
// answers out to their rotation-picked reviewers.
func (svc *Service) StartReview(caller User) error {
	exm, err := svc.getExam("No exam to start review")
	if err != nil {
		return err
	}
	if exm.Phase != Answering {
		return NewPhaseError("Exam currently not in answering mode")
	}

	var msgs []*core.Message
	err = svc.repo.Atomic(func(repo Repository) error {
		if err := repo.SetExamPhase(exm.ID, Reviewing); err != nil {
			return errors.Wrap(err, "setting exam phase")
		}
		var aerr error
		msgs, aerr = svc.assignReviewers(repo, caller)
		return aerr
	})
	if err != nil {
		return err
	}
	svc.send(msgs...)
	return nil
}

// SetGrades moves reviewing → grading and sends every qualified user their
// reviews and aggregate grade.
func (svc *Service) SetGrades(caller User) error {
	exm, err := svc.getExam("No exam to set grades")
	if err != nil {
		return err
	}
	if exm.Phase != Reviewing {
		return NewPhaseError("Exam currently not in reviewing mode")
	}

	var msgs []*core.Message
	err = svc.repo.Atomic(func(repo Repository) error {
		if err := repo.SetExamPhase(exm.ID, Grading); err != nil {
			return errors.Wrap(err, "setting exam phase")
		}
		var gerr error
		msgs, gerr = svc.gradeUsers(repo, caller)
		return gerr
	})
	if err != nil {
		return err
	}
	svc.send(msgs...)
	return nil
}

// SubmitAnswer records the caller's answer to their variant of question
// number na.Number. Re-submitting overwrites the prior text.
func (svc *Service) SubmitAnswer(usr User, na NewAnswer) error {
	exm, err := svc.getExam("No exam to send answer")
	if err != nil {
		return err
	}
	if exm.Phase != Answering {
		return NewPhaseError("Exam not accepting answers now")
	}
	if err := na.Validate(); err != nil {
		return err
	}
	if err := svc.checkQuestionNumber(na.Number); err != nil {
		return err
	}

	asg, err := svc.repo.GetAssignmentByNumber(exm.ID, usr.ID, na.Number)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return NewNotFoundError("You don't have this question yet.")
		}
		return errors.Wrap(err, "getting assignment")
	}
	answ, err := svc.repo.UpsertAnswer(asg.ID, na.Text)
	if err != nil {
		return errors.Wrap(err, "recording answer")
	}
	if answ.AssignmentID != asg.ID {
		return NewIntegrityError("answer %d bound to assignment %d, want %d", answ.ID, answ.AssignmentID, asg.ID)
	}
	svc.reply(usr.ExternalID, "Answer recorded to %d", asg.ID)
	return nil
}

func (svc *Service) LookupQuestion(usr User, number int) error {
	if err := svc.checkQuestionNumber(number); err != nil {
		return err
	}
	exm, err := svc.getExam("No exam to lookup")
	if err != nil {
		return err
	}
	asg, err := svc.repo.GetAssignmentByNumber(exm.ID, usr.ID, number)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return NewNotFoundError("You don't have this question yet.")
		}
		return errors.Wrap(err, "getting assignment")
	}
	qst, err := svc.repo.GetQuestionByID(asg.QuestionID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return NewIntegrityError("assignment %d references missing question %d", asg.ID, asg.QuestionID)
		}
		return errors.Wrap(err, "getting question")
	}
	svc.reply(usr.ExternalID, qst.Text)
	return nil
}

func (svc *Service) LookupAnswer(usr User, number int) error {
	if err := svc.checkQuestionNumber(number); err != nil {
		return err
	}
	exm, err := svc.getExam("No exam to lookup")
	if err != nil {
		return err
	}
	if exm.Phase != Answering {
		return NewPhaseError("Exam not accepting answers now")
	}
	asg, err := svc.repo.GetAssignmentByNumber(exm.ID, usr.ID, number)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return NewNotFoundError("You don't have this question yet.")
		}
		return errors.Wrap(err, "getting assignment")
	}
	answ, err := svc.repo.GetAnswer(asg.ID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return NewNotFoundError("You haven't answered yet.")
		}
		return errors.Wrap(err, "getting answer")
	}
	svc.reply(usr.ExternalID, answ.Text)
	return nil
}

// SubmitReview records the caller's review of someone else's answer, then
// reports their progress against their personal review due.
func (svc *Service) SubmitReview(usr User, nr NewReview) error {
	exm, err := svc.getExam("No exam to post review")
	if err != nil {
		return err
	}
	if exm.Phase != Reviewing {
		return NewPhaseError("Exam not accepting reviews now")
	}
	if err := nr.Validate(); err != nil {
		return err
	}

	rasg, err := svc.getOwnReviewAssignment(usr, nr.AssignmentID)
	if err != nil {
		return err
	}
	if _, err := svc.repo.UpsertReview(rasg.ID, nr.Grade, nr.Text); err != nil {
		return errors.Wrap(err, "recording review")
	}
	svc.reply(usr.ExternalID, "Review assignment %d recorded/updated", rasg.ID)

	required, err := svc.repo.CountReviewAssignments(usr.ID)
	if err != nil {
		return errors.Wrap(err, "counting review assignments")
	}
	done, err := svc.repo.CountUserReviews(usr.ID)
	if err != nil {
		return errors.Wrap(err, "counting reviews")
	}
	svc.reply(usr.ExternalID, "You sent %d out of %d required reviews", done, required)
	return nil
}

func (svc *Service) LookupReview(usr User, assignmentID int) error {
	exm, err := svc.getExam("No exam to post review")
	if err != nil {
		return err
	}
	if exm.Phase != Reviewing {
		return NewPhaseError("Exam not accepting reviews now")
	}
	rasg, err := svc.getOwnReviewAssignment(usr, assignmentID)
	if err != nil {
		return err
	}
	rev, err := svc.repo.GetReview(rasg.ID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return NewNotFoundError("%d review not found", assignmentID)
		}
		return errors.Wrap(err, "getting review")
	}
	svc.reply(usr.ExternalID, "%d review info. Grade: %d. Text: %s", rasg.ID, rev.Grade, rev.Text)
	return nil
}

// getOwnReviewAssignment refuses review assignments that belong to someone
// else with the same message as an unknown id, leaking nothing.
func (svc *Service) getOwnReviewAssignment(usr User, id int) (ReviewAssignment, error) {
	rasg, err := svc.repo.GetReviewAssignment(id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return ReviewAssignment{}, NewNotFoundError("%d is not your review assignment", id)
		}
		return ReviewAssignment{}, errors.Wrap(err, "getting review assignment")
	}
	if rasg.ReviewerID != usr.ID {
		return ReviewAssignment{}, NewNotFoundError("%d is not your review assignment", id)
	}
	return rasg, nil
}

func (svc *Service) AnswerStats(caller User) error {
	stats, err := svc.repo.UserAnswerStats()
	if err != nil {
		return errors.Wrap(err, "querying answer stats")
	}
	reports := make([]string, 0, len(stats))
	for _, st := range stats {
		reports = append(reports, fmt.Sprintf(
			"Student: @%s (%d)\nAnswers submitted: %d\nAnswered questions: %s\n---\n",
			st.Name.String, st.ExternalID, st.TotalAnswers, joinInts(st.AnsweredNumbers)))
	}
	svc.reply(caller.ExternalID, "ANSWERS:\n%s", strings.Join(reports, "\n"))
	return nil
}

func (svc *Service) ReviewStats(caller User) error {
	stats, err := svc.repo.UserReviewStats()
	if err != nil {
		return errors.Wrap(err, "querying review stats")
	}
	reports := make([]string, 0, len(stats))
	for _, st := range stats {
		reports = append(reports, fmt.Sprintf(
			"Student: @%s (%d)\nReviews submitted: %d\nAnswers reviewed: %s\n---\n",
			st.Name.String, st.ExternalID, st.TotalReviews, joinInts(st.ReviewedAssignments)))
	}
	svc.reply(caller.ExternalID, "REVIEWS:\n%s", strings.Join(reports, "\n"))
	return nil
}

func (svc *Service) AnswersOf(caller User, extID int64) error {
	usr, err := svc.repo.GetUserByExternalID(extID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return NewNotFoundError("No such user: %d", extID)
		}
		return errors.Wrap(err, "looking up user")
	}
	answs, err := svc.repo.QueryUserAnswers(usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying answers")
	}
	reports := make([]string, 0, len(answs))
	for _, ad := range answs {
		reports = append(reports, fmt.Sprintf("Answer:\n---\n%s\n---\n%s\n", ad.Question.Text, ad.Answer.Text))
	}
	svc.reply(caller.ExternalID, "ANSWERS:\n%s", strings.Join(reports, "\n"))
	return nil
}

func (svc *Service) ReviewsOf(caller User, extID int64) error {
	usr, err := svc.repo.GetUserByExternalID(extID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return NewNotFoundError("No such user: %d", extID)
		}
		return errors.Wrap(err, "looking up user")
	}
	revs, err := svc.repo.QueryUserReviews(usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying reviews")
	}
	reports := make([]string, 0, len(revs))
	for _, rd := range revs {
		reports = append(reports, fmt.Sprintf(
			"Review:\n---\n%s\n---\n%s\n---\nGrade: %d\nText: %s\n",
			rd.Question.Text, rd.Answer.Text, rd.Review.Grade, rd.Review.Text))
	}
	svc.reply(caller.ExternalID, "REVIEWS:\n%s", strings.Join(reports, "\n"))
	return nil
}

func (svc *Service) checkQuestionNumber(n int) error {
	nn, err := svc.repo.MaxQuestionNumber()
	if err != nil {
		return errors.Wrap(err, "counting questions")
	}
	if n < 1 || n > nn {
		return core.NewValidationError(
			fmt.Errorf("Question have incorrect number %d. Allowed range: [1 .. %d].", n, nn))
	}
	return nil
}

func joinInts(ints []int) string {
	strs := make([]string, 0, len(ints))
	for _, n := range ints {
		strs = append(strs, strconv.Itoa(n))
	}
	return strings.Join(strs, ", ")
}
