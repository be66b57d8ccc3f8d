package exam

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/peerbot/peerbot/core"
)

// assignQuestions gives usr one variant of every question number 1..N.
// Numbers the user already holds are not redrawn; the existing assignment is
// reused and its question re-sent, so repeat passes are safe.
func (svc *Service) assignQuestions(repo Repository, usr User, exm Exam) ([]*core.Message, error) {
	svc.logger.Debug("assigning questions for user: " + usr.DisplayName())
	nn, err := repo.MaxQuestionNumber()
	if err != nil {
		return nil, errors.Wrap(err, "counting questions")
	}
	nv, err := repo.MaxQuestionVariant()
	if err != nil {
		return nil, errors.Wrap(err, "counting variants")
	}

	msgs := make([]*core.Message, 0, nn)
	for n := 1; n <= nn; n++ {
		qst, err := svc.assignQuestion(repo, usr, exm, n, nv)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, core.NewMessage(usr.ExternalID,
			"Question %d, variant %d: %s", qst.Number, qst.Variant, qst.Text))
	}
	return msgs, nil
}

func (svc *Service) assignQuestion(repo Repository, usr User, exm Exam, number, maxVariant int) (Question, error) {
	asg, err := repo.GetAssignmentByNumber(exm.ID, usr.ID, number)
	if err == nil {
		qst, err := repo.GetQuestionByID(asg.QuestionID)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return Question{}, NewIntegrityError("assignment %d references missing question %d", asg.ID, asg.QuestionID)
			}
			return Question{}, errors.Wrap(err, "getting assigned question")
		}
		return qst, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Question{}, errors.Wrap(err, "getting assignment")
	}

	variant := svc.rand.Intn(maxVariant) + 1
	qst, err := repo.GetQuestion(number, variant)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			// the (number, variant) grid has a hole; the questions command warns about this
			return Question{}, NewIntegrityError("question %d variant %d does not exist", number, variant)
		}
		return Question{}, errors.Wrap(err, "getting question")
	}
	if _, err := repo.GetOrCreateAssignment(Assignment{ExamID: exm.ID, UserID: usr.ID, QuestionID: qst.ID}); err != nil {
		return Question{}, errors.Wrap(err, "creating assignment")
	}
	return qst, nil
}

// assignReviewers pairs every answered user with fanOut distinct reviewers by
// zipping the answered-user list against rotated copies of itself. Rotation
// by a non-zero offset never maps an index to itself, which is what keeps
// reviewers away from their own answers; that only holds while the list has
// more members than the offset, so the fan-out shrinks for small cohorts.
func (svc *Service) assignReviewers(repo Repository, caller User) ([]*core.Message, error) {
	reviewees, err := repo.QueryAnsweredUsers()
	if err != nil {
		return nil, errors.Wrap(err, "querying answered users")
	}
	if len(reviewees) == 0 {
		return []*core.Message{core.NewMessage(caller.ExternalID, "No answered users yet")}, nil
	}

	fanOut := svc.fanOut
	if max := len(reviewees) - 1; fanOut > max {
		fanOut = max
	}
	if fanOut < 1 {
		return []*core.Message{core.NewMessage(caller.ExternalID, "Not enough answered users to assign reviews")}, nil
	}

	var msgs []*core.Message
	for offset := 1; offset <= fanOut; offset++ {
		reviewers := rotate(reviewees, offset)
		for i, reviewee := range reviewees {
			svc.logger.Debug(fmt.Sprintf("%d : reviewer %d", reviewee.ExternalID, reviewers[i].ExternalID))
			m, err := svc.assignReviewer(repo, reviewee, reviewers[i])
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, m...)
		}
	}
	return msgs, nil
}

// assignReviewer makes reviewer responsible for every answer reviewee
// submitted, one ReviewAssignment per answer.
func (svc *Service) assignReviewer(repo Repository, reviewee, reviewer User) ([]*core.Message, error) {
	answs, err := repo.QueryUserAnswers(reviewee.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}
	svc.logger.Debug(fmt.Sprintf("got %d answers to review from %d", len(answs), reviewee.ExternalID))

	msgs := make([]*core.Message, 0, 2*len(answs))
	for _, ad := range answs {
		rasg, err := repo.GetOrCreateReviewAssignment(ReviewAssignment{
			ReviewerID:   reviewer.ID,
			AssignmentID: ad.Answer.AssignmentID,
		})
		if err != nil {
			return nil, errors.Wrap(err, "creating review assignment")
		}
		msgs = append(msgs,
			core.NewMessage(reviewer.ExternalID,
				"Review assignment: %d\n--- Question ---\n%s\n--- Answer ---\n%s",
				rasg.ID, ad.Question.Text, ad.Answer.Text),
			core.NewMessage(reviewer.ExternalID,
				"You was assigned review %d. Please review it thoroughly.", rasg.ID),
		)
		svc.logger.Debug(fmt.Sprintf("assigned review %d to %d", rasg.ID, reviewer.ExternalID))
	}
	return msgs, nil
}

// rotate returns a copy of users shifted left by offset positions.
func rotate(users []User, offset int) []User {
	n := len(users)
	if n == 0 {
		return nil
	}
	offset %= n
	out := make([]User, 0, n)
	out = append(out, users[offset:]...)
	out = append(out, users[:offset]...)
	return out
}
