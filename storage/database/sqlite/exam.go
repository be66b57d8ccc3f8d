package sqliterepos

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/peerbot/peerbot/core/exam"
)

type examRepository struct {
	db  *sqlx.DB
	ext sqlx.Ext
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *sqlx.DB) *examRepository {
	return &examRepository{db: db, ext: db}
}

// Atomic binds a copy of the repository to one transaction for the duration
// of fn. Nested calls reuse the enclosing transaction.
func (repo examRepository) Atomic(fn func(repo exam.Repository) error) error {
	if _, ok := repo.ext.(*sqlx.Tx); ok {
		return fn(repo)
	}
	tx, err := repo.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err := fn(examRepository{db: repo.db, ext: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrap(rbErr, "rolling back transaction")
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// trapNoRowsErr maps sqlite "no rows" err to exam.ErrNotFound
func (repo examRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return exam.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// Users

func (repo examRepository) CreateUser(usr exam.User) (exam.User, error) {
	res, err := repo.ext.Exec(
		`INSERT INTO users (external_id, name, privilege) VALUES (?, ?, ?)`,
		usr.ExternalID, usr.Name, usr.Privilege,
	)
	if err != nil {
		return exam.User{}, errors.Wrap(err, "inserting user")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return exam.User{}, errors.Wrap(err, "getting user id")
	}
	usr.ID = int(id)
	return usr, nil
}

func (repo examRepository) UpdateUserName(id int, name string) error {
	_, err := repo.ext.Exec(`UPDATE users SET name = ? WHERE id = ?`, name, id)
	return errors.Wrap(err, "updating user")
}

func (repo examRepository) GetUserByExternalID(extID int64) (exam.User, error) {
	var usr exam.User
	if err := sqlx.Get(repo.ext, &usr, `SELECT * FROM users WHERE external_id = ?`, extID); err != nil {
		return exam.User{}, repo.trapNoRowsErr(err, "finding user by external id")
	}
	return usr, nil
}

func (repo examRepository) QueryAllUsers() ([]exam.User, error) {
	users := make([]exam.User, 0)
	if err := sqlx.Select(repo.ext, &users, `SELECT * FROM users ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return users, nil
}

func (repo examRepository) QueryRegularUsers() ([]exam.User, error) {
	users := make([]exam.User, 0)
	err := sqlx.Select(repo.ext, &users,
		`SELECT * FROM users WHERE privilege = ? ORDER BY id`, exam.Regular)
	if err != nil {
		return nil, errors.Wrap(err, "querying regular users")
	}
	return users, nil
}

func (repo examRepository) HasUsers() (bool, error) {
	var exists bool
	if err := sqlx.Get(repo.ext, &exists, `SELECT EXISTS (SELECT 1 FROM users)`); err != nil {
		return false, errors.Wrap(err, "checking users")
	}
	return exists, nil
}

// Questions

func (repo examRepository) UpsertQuestion(qst exam.Question) (exam.Question, error) {
	// the update arm keeps the row id stable so existing assignments survive a re-import
	_, err := repo.ext.Exec(
		`INSERT INTO questions (number, variant, text) VALUES (?, ?, ?)
		 ON CONFLICT (number, variant) DO UPDATE SET text = excluded.text`,
		qst.Number, qst.Variant, qst.Text,
	)
	if err != nil {
		return exam.Question{}, errors.Wrap(err, "upserting question")
	}
	return repo.GetQuestion(qst.Number, qst.Variant)
}

func (repo examRepository) GetQuestion(number, variant int) (exam.Question, error) {
	var qst exam.Question
	err := sqlx.Get(repo.ext, &qst,
		`SELECT * FROM questions WHERE number = ? AND variant = ?`, number, variant)
	if err != nil {
		return exam.Question{}, repo.trapNoRowsErr(err, "finding question")
	}
	return qst, nil
}

func (repo examRepository) GetQuestionByID(id int) (exam.Question, error) {
	var qst exam.Question
	if err := sqlx.Get(repo.ext, &qst, `SELECT * FROM questions WHERE id = ?`, id); err != nil {
		return exam.Question{}, repo.trapNoRowsErr(err, "finding question by id")
	}
	return qst, nil
}

func (repo examRepository) QueryAllQuestions() ([]exam.Question, error) {
	questions := make([]exam.Question, 0)
	err := sqlx.Select(repo.ext, &questions, `SELECT * FROM questions ORDER BY number, variant`)
	if err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	return questions, nil
}

func (repo examRepository) MaxQuestionNumber() (int, error) {
	var n int
	if err := sqlx.Get(repo.ext, &n, `SELECT COALESCE(MAX(number), 0) FROM questions`); err != nil {
		return 0, errors.Wrap(err, "counting question numbers")
	}
	return n, nil
}

func (repo examRepository) MaxQuestionVariant() (int, error) {
	var n int
	if err := sqlx.Get(repo.ext, &n, `SELECT COALESCE(MAX(variant), 0) FROM questions`); err != nil {
		return 0, errors.Wrap(err, "counting question variants")
	}
	return n, nil
}

func (repo examRepository) CountDistinctVariants() (int, error) {
	var n int
	if err := sqlx.Get(repo.ext, &n, `SELECT COUNT(DISTINCT variant) FROM questions`); err != nil {
		return 0, errors.Wrap(err, "counting distinct variants")
	}
	return n, nil
}

// Exams

func (repo examRepository) CreateExam(exm exam.Exam) (exam.Exam, error) {
	res, err := repo.ext.Exec(`INSERT INTO exams (phase, name) VALUES (?, ?)`, exm.Phase, exm.Name)
	if err != nil {
		return exam.Exam{}, errors.Wrap(err, "inserting exam")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return exam.Exam{}, errors.Wrap(err, "getting exam id")
	}
	exm.ID = int(id)
	return exm, nil
}

func (repo examRepository) GetExam() (exam.Exam, error) {
	var exm exam.Exam
	if err := sqlx.Get(repo.ext, &exm, `SELECT * FROM exams LIMIT 1`); err != nil {
		return exam.Exam{}, repo.trapNoRowsErr(err, "finding exam")
	}
	return exm, nil
}

func (repo examRepository) SetExamPhase(id int, phase exam.Phase) error {
	_, err := repo.ext.Exec(`UPDATE exams SET phase = ? WHERE id = ?`, phase, id)
	return errors.Wrap(err, "updating exam phase")
}

// Assignments

func (repo examRepository) GetOrCreateAssignment(asg exam.Assignment) (exam.Assignment, error) {
	_, err := repo.ext.Exec(
		`INSERT INTO assignments (exam_id, user_id, question_id) VALUES (?, ?, ?)
		 ON CONFLICT (exam_id, user_id, question_id) DO NOTHING`,
		asg.ExamID, asg.UserID, asg.QuestionID,
	)
	if err != nil {
		return exam.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	var out exam.Assignment
	err = sqlx.Get(repo.ext, &out,
		`SELECT * FROM assignments WHERE exam_id = ? AND user_id = ? AND question_id = ?`,
		asg.ExamID, asg.UserID, asg.QuestionID)
	if err != nil {
		return exam.Assignment{}, repo.trapNoRowsErr(err, "finding assignment")
	}
	return out, nil
}

func (repo examRepository) GetAssignmentByNumber(examID, userID, number int) (exam.Assignment, error) {
	var asg exam.Assignment
	err := sqlx.Get(repo.ext, &asg,
		`SELECT a.* FROM assignments a
		 INNER JOIN questions q ON q.id = a.question_id
		 WHERE a.exam_id = ? AND a.user_id = ? AND q.number = ?`,
		examID, userID, number)
	if err != nil {
		return exam.Assignment{}, repo.trapNoRowsErr(err, "finding assignment by number")
	}
	return asg, nil
}

// Answers

func (repo examRepository) UpsertAnswer(assignmentID int, text string) (exam.Answer, error) {
	_, err := repo.ext.Exec(
		`INSERT INTO answers (assignment_id, text) VALUES (?, ?)
		 ON CONFLICT (assignment_id) DO UPDATE SET text = excluded.text`,
		assignmentID, text,
	)
	if err != nil {
		return exam.Answer{}, errors.Wrap(err, "upserting answer")
	}
	return repo.GetAnswer(assignmentID)
}

func (repo examRepository) GetAnswer(assignmentID int) (exam.Answer, error) {
	var answ exam.Answer
	err := sqlx.Get(repo.ext, &answ, `SELECT * FROM answers WHERE assignment_id = ?`, assignmentID)
	if err != nil {
		return exam.Answer{}, repo.trapNoRowsErr(err, "finding answer")
	}
	return answ, nil
}

func (repo examRepository) QueryUserAnswers(userID int) ([]exam.AnswerDetail, error) {
	details := make([]exam.AnswerDetail, 0)
	err := sqlx.Select(repo.ext, &details,
		`SELECT a.id "answer.id", a.assignment_id "answer.assignment_id", a.text "answer.text",
		        q.id "question.id", q.number "question.number", q.variant "question.variant", q.text "question.text"
		 FROM answers a
		 INNER JOIN assignments asg ON asg.id = a.assignment_id
		 INNER JOIN questions q ON q.id = asg.question_id
		 WHERE asg.user_id = ?
		 ORDER BY q.number`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying user answers")
	}
	return details, nil
}

func (repo examRepository) QueryAnsweredUsers() ([]exam.User, error) {
	users := make([]exam.User, 0)
	err := sqlx.Select(repo.ext, &users,
		`SELECT DISTINCT u.* FROM users u
		 INNER JOIN assignments asg ON asg.user_id = u.id
		 INNER JOIN answers a ON a.assignment_id = asg.id
		 ORDER BY u.id`)
	if err != nil {
		return nil, errors.Wrap(err, "querying answered users")
	}
	return users, nil
}

// Review assignments

func (repo examRepository) GetOrCreateReviewAssignment(rasg exam.ReviewAssignment) (exam.ReviewAssignment, error) {
	_, err := repo.ext.Exec(
		`INSERT INTO review_assignments (reviewer_id, assignment_id) VALUES (?, ?)
		 ON CONFLICT (reviewer_id, assignment_id) DO NOTHING`,
		rasg.ReviewerID, rasg.AssignmentID,
	)
	if err != nil {
		return exam.ReviewAssignment{}, errors.Wrap(err, "inserting review assignment")
	}
	var out exam.ReviewAssignment
	err = sqlx.Get(repo.ext, &out,
		`SELECT * FROM review_assignments WHERE reviewer_id = ? AND assignment_id = ?`,
		rasg.ReviewerID, rasg.AssignmentID)
	if err != nil {
		return exam.ReviewAssignment{}, repo.trapNoRowsErr(err, "finding review assignment")
	}
	return out, nil
}

func (repo examRepository) GetReviewAssignment(id int) (exam.ReviewAssignment, error) {
	var rasg exam.ReviewAssignment
	err := sqlx.Get(repo.ext, &rasg, `SELECT * FROM review_assignments WHERE id = ?`, id)
	if err != nil {
		return exam.ReviewAssignment{}, repo.trapNoRowsErr(err, "finding review assignment by id")
	}
	return rasg, nil
}

func (repo examRepository) CountReviewAssignments(reviewerID int) (int, error) {
	var n int
	err := sqlx.Get(repo.ext, &n,
		`SELECT COUNT(*) FROM review_assignments WHERE reviewer_id = ?`, reviewerID)
	if err != nil {
		return 0, errors.Wrap(err, "counting review assignments")
	}
	return n, nil
}

// Reviews

func (repo examRepository) UpsertReview(reviewAssignmentID, grade int, text string) (exam.Review, error) {
	_, err := repo.ext.Exec(
		`INSERT INTO reviews (review_assignment_id, grade, text) VALUES (?, ?, ?)
		 ON CONFLICT (review_assignment_id) DO UPDATE SET grade = excluded.grade, text = excluded.text`,
		reviewAssignmentID, grade, text,
	)
	if err != nil {
		return exam.Review{}, errors.Wrap(err, "upserting review")
	}
	return repo.GetReview(reviewAssignmentID)
}

func (repo examRepository) GetReview(reviewAssignmentID int) (exam.Review, error) {
	var rev exam.Review
	err := sqlx.Get(repo.ext, &rev,
		`SELECT * FROM reviews WHERE review_assignment_id = ?`, reviewAssignmentID)
	if err != nil {
		return exam.Review{}, repo.trapNoRowsErr(err, "finding review")
	}
	return rev, nil
}

func (repo examRepository) QueryAnswerReviews(assignmentID int) ([]exam.Review, error) {
	reviews := make([]exam.Review, 0)
	err := sqlx.Select(repo.ext, &reviews,
		`SELECT r.* FROM reviews r
		 INNER JOIN review_assignments ra ON ra.id = r.review_assignment_id
		 WHERE ra.assignment_id = ?
		 ORDER BY r.id`, assignmentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying answer reviews")
	}
	return reviews, nil
}

func (repo examRepository) CountUserReviews(reviewerID int) (int, error) {
	var n int
	err := sqlx.Get(repo.ext, &n,
		`SELECT COUNT(*) FROM reviews r
		 INNER JOIN review_assignments ra ON ra.id = r.review_assignment_id
		 WHERE ra.reviewer_id = ?`, reviewerID)
	if err != nil {
		return 0, errors.Wrap(err, "counting user reviews")
	}
	return n, nil
}

func (repo examRepository) QueryUserReviews(reviewerID int) ([]exam.ReviewDetail, error) {
	details := make([]exam.ReviewDetail, 0)
	err := sqlx.Select(repo.ext, &details,
		`SELECT r.id "review.id", r.review_assignment_id "review.review_assignment_id",
		        r.grade "review.grade", r.text "review.text",
		        a.id "answer.id", a.assignment_id "answer.assignment_id", a.text "answer.text",
		        q.id "question.id", q.number "question.number", q.variant "question.variant", q.text "question.text"
		 FROM reviews r
		 INNER JOIN review_assignments ra ON ra.id = r.review_assignment_id
		 INNER JOIN assignments asg ON asg.id = ra.assignment_id
		 INNER JOIN answers a ON a.assignment_id = asg.id
		 INNER JOIN questions q ON q.id = asg.question_id
		 WHERE ra.reviewer_id = ?
		 ORDER BY r.id`, reviewerID)
	if err != nil {
		return nil, errors.Wrap(err, "querying user reviews")
	}
	return details, nil
}

// Stats

type answerStatRow struct {
	ExternalID      int64       `db:"external_id"`
	Name            null.String `db:"name"`
	TotalAnswers    int         `db:"total_answers"`
	AnsweredNumbers null.String `db:"answered_numbers"`
}

func (repo examRepository) UserAnswerStats() ([]exam.AnswerStat, error) {
	rows := make([]answerStatRow, 0)
	err := sqlx.Select(repo.ext, &rows,
		`SELECT u.external_id, u.name,
		        COUNT(a.id) AS total_answers,
		        GROUP_CONCAT(DISTINCT q.number) AS answered_numbers
		 FROM users u
		 INNER JOIN assignments asg ON asg.user_id = u.id
		 INNER JOIN answers a ON a.assignment_id = asg.id
		 INNER JOIN questions q ON q.id = asg.question_id
		 WHERE u.privilege = ?
		 GROUP BY u.id
		 ORDER BY u.id`, exam.Regular)
	if err != nil {
		return nil, errors.Wrap(err, "querying answer stats")
	}
	stats := make([]exam.AnswerStat, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, exam.AnswerStat{
			ExternalID:      row.ExternalID,
			Name:            row.Name,
			TotalAnswers:    row.TotalAnswers,
			AnsweredNumbers: splitInts(row.AnsweredNumbers.String),
		})
	}
	return stats, nil
}

type reviewStatRow struct {
	ExternalID          int64       `db:"external_id"`
	Name                null.String `db:"name"`
	TotalReviews        int         `db:"total_reviews"`
	ReviewedAssignments null.String `db:"reviewed_assignments"`
}

func (repo examRepository) UserReviewStats() ([]exam.ReviewStat, error) {
	rows := make([]reviewStatRow, 0)
	err := sqlx.Select(repo.ext, &rows,
		`SELECT u.external_id, u.name,
		        COUNT(r.id) AS total_reviews,
		        GROUP_CONCAT(DISTINCT ra.assignment_id) AS reviewed_assignments
		 FROM users u
		 INNER JOIN review_assignments ra ON ra.reviewer_id = u.id
		 INNER JOIN reviews r ON r.review_assignment_id = ra.id
		 WHERE u.privilege = ?
		 GROUP BY u.id
		 ORDER BY u.id`, exam.Regular)
	if err != nil {
		return nil, errors.Wrap(err, "querying review stats")
	}
	stats := make([]exam.ReviewStat, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, exam.ReviewStat{
			ExternalID:          row.ExternalID,
			Name:                row.Name,
			TotalReviews:        row.TotalReviews,
			ReviewedAssignments: splitInts(row.ReviewedAssignments.String),
		})
	}
	return stats, nil
}

// Maintenance

var allTables = []string{
	"reviews", "review_assignments", "answers", "assignments", "exams", "questions", "users",
}

// Reset drops all rows child-first and rewinds the id sequences, all in one
// transaction.
func (repo examRepository) Reset() error {
	return repo.Atomic(func(r exam.Repository) error {
		sub := r.(examRepository)
		for _, table := range allTables {
			if _, err := sub.ext.Exec(`DELETE FROM ` + table); err != nil {
				return errors.Wrapf(err, "clearing %s", table)
			}
		}
		_, err := sub.ext.Exec(
			`DELETE FROM sqlite_sequence WHERE name IN (?, ?, ?, ?, ?, ?, ?)`,
			"reviews", "review_assignments", "answers", "assignments", "exams", "questions", "users")
		return errors.Wrap(err, "resetting sequences")
	})
}

func splitInts(s string) []int {
	if s == "" {
		return []int{}
	}
	parts := strings.Split(s, ",")
	ints := make([]int, 0, len(parts))
	for _, part := range parts {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			ints = append(ints, n)
		}
	}
	return ints
}
