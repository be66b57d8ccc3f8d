package exam

import (
	"math"

	"github.com/pkg/errors"

	"github.com/peerbot/peerbot/core"
)

// gradeUsers sends every qualified user their collected reviews and an
// aggregate grade. Users below their review due are notified and skipped,
// not penalized after the fact.
func (svc *Service) gradeUsers(repo Repository, caller User) ([]*core.Message, error) {
	nn, err := repo.MaxQuestionNumber()
	if err != nil {
		return nil, errors.Wrap(err, "counting questions")
	}

	qualified, msgs, err := svc.qualifyUsers(repo, caller)
	if err != nil {
		return nil, err
	}
	for _, usr := range qualified {
		m, err := svc.gradeUser(repo, usr, nn)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m...)
	}
	return msgs, nil
}

// qualifyUsers splits the answered users into those who completed their
// review due and those who did not. The due is the same for everyone:
// distinct variants times the reviewer fan-out.
func (svc *Service) qualifyUsers(repo Repository, caller User) ([]User, []*core.Message, error) {
	allu, err := repo.QueryAnsweredUsers()
	if err != nil {
		return nil, nil, errors.Wrap(err, "querying answered users")
	}
	if len(allu) == 0 {
		return nil, []*core.Message{core.NewMessage(caller.ExternalID, "No answered users yet")}, nil
	}

	variants, err := repo.CountDistinctVariants()
	if err != nil {
		return nil, nil, errors.Wrap(err, "counting variants")
	}
	required := variants * svc.fanOut

	var qualified []User
	var msgs []*core.Message
	for _, usr := range allu {
		done, err := repo.CountUserReviews(usr.ID)
		if err != nil {
			return nil, nil, errors.Wrap(err, "counting reviews")
		}
		if done < required {
			msgs = append(msgs, core.NewMessage(usr.ExternalID,
				"You haven't done your reviewing due.\nDone %d of %d\nYou will not be graded", done, required))
			continue
		}
		qualified = append(qualified, usr)
	}
	return qualified, msgs, nil
}

// gradeUser scores each answered question as the rounded mean of its review
// grades, then divides the score sum by the total question count; unanswered
// questions silently depress the aggregate.
func (svc *Service) gradeUser(repo Repository, usr User, numQuestions int) ([]*core.Message, error) {
	answs, err := repo.QueryUserAnswers(usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}

	var msgs []*core.Message
	total := 0
	for _, ad := range answs {
		revs, err := repo.QueryAnswerReviews(ad.Answer.AssignmentID)
		if err != nil {
			return nil, errors.Wrap(err, "querying reviews")
		}
		if len(revs) == 0 {
			msgs = append(msgs, core.NewMessage(usr.ExternalID,
				"Sorry, answer to question %d had no reviews", ad.Question.Number))
			continue
		}
		msgs = append(msgs, core.NewMessage(usr.ExternalID,
			"Reviews for your question %d\n--- Question text ---\n%s", ad.Question.Number, ad.Question.Text))
		for _, rev := range revs {
			msgs = append(msgs, core.NewMessage(usr.ExternalID,
				"--- Review text ---\n%s\n-------------------\nReview grade: %d", rev.Text, rev.Grade))
		}
		total += gradeAnswer(revs)
	}

	final := roundDiv(total, numQuestions)
	msgs = append(msgs, core.NewMessage(usr.ExternalID, "Your approx grade is %d", final))
	return msgs, nil
}

// gradeAnswer is the rounded arithmetic mean of the reviews' grades.
func gradeAnswer(revs []Review) int {
	sum := 0
	for _, rev := range revs {
		sum += rev.Grade
	}
	return roundDiv(sum, len(revs))
}

func roundDiv(sum, n int) int {
	return int(math.Round(float64(sum) / float64(n)))
}
