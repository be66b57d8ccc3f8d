package exam

import (
	"strconv"

	"github.com/volatiletech/null/v8"
)

// Privilege is a user's tier. It is assigned on first registration and never changes.
type Privilege int

const (
	Privileged Privilege = iota
	Regular
	// None is a sentinel for "no record found"; it is never persisted.
	None
)

func (p Privilege) String() string {
	switch p {
	case Privileged:
		return "privileged"
	case Regular:
		return "regular"
	default:
		return "nonexistent"
	}
}

// Phase is the exam's single global state.
type Phase int

const (
	Stopped Phase = iota
	Answering
	Reviewing
	Grading
)

func (p Phase) String() string {
	switch p {
	case Stopped:
		return "stopped"
	case Answering:
		return "answering"
	case Reviewing:
		return "reviewing"
	case Grading:
		return "grading"
	default:
		return "unknown"
	}
}

type (
	User struct {
		ID         int         `db:"id"`
		ExternalID int64       `db:"external_id"`
		Name       null.String `db:"name"`
		Privilege  Privilege   `db:"privilege"`
	}

	// Question is one of the randomized phrasings (variants) of a numbered slot.
	Question struct {
		ID      int    `db:"id"`
		Number  int    `db:"number"`
		Variant int    `db:"variant"`
		Text    string `db:"text"`
	}

	Exam struct {
		ID    int    `db:"id"`
		Phase Phase  `db:"phase"`
		Name  string `db:"name"`
	}

	// Assignment links a user to the specific question variant they must answer.
	Assignment struct {
		ID         int `db:"id"`
		ExamID     int `db:"exam_id"`
		UserID     int `db:"user_id"`
		QuestionID int `db:"question_id"`
	}

	Answer struct {
		ID           int    `db:"id"`
		AssignmentID int    `db:"assignment_id"`
		Text         string `db:"text"`
	}

	// ReviewAssignment links a reviewer to an Assignment whose answer they must review.
	ReviewAssignment struct {
		ID           int `db:"id"`
		ReviewerID   int `db:"reviewer_id"`
		AssignmentID int `db:"assignment_id"`
	}

	Review struct {
		ID                 int    `db:"id"`
		ReviewAssignmentID int    `db:"review_assignment_id"`
		Grade              int    `db:"grade"`
		Text               string `db:"text"`
	}
)

func (u User) DisplayName() string {
	if u.Name.Valid && u.Name.String != "" {
		return u.Name.String
	}
	return strconv.FormatInt(u.ExternalID, 10)
}

// Joined views returned by the repository; rows are always decoded into
// structs at the store boundary, never passed upward as raw tuples.
type (
	// AnswerDetail couples an answer with the question it responds to.
	AnswerDetail struct {
		Answer   Answer   `db:"answer"`
		Question Question `db:"question"`
	}

	// ReviewDetail couples a review with the answer and question it covers.
	ReviewDetail struct {
		Review   Review   `db:"review"`
		Answer   Answer   `db:"answer"`
		Question Question `db:"question"`
	}

	AnswerStat struct {
		ExternalID      int64
		Name            null.String
		TotalAnswers    int
		AnsweredNumbers []int
	}

	ReviewStat struct {
		ExternalID          int64
		Name                null.String
		TotalReviews        int
		ReviewedAssignments []int
	}
)
