package exam

// Repository is the relational store backing the exam workflow. It exclusively
// owns all persisted rows; callers hold only transient, derived views.
// Lookups that match no row return ErrNotFound.
type Repository interface {
	// Atomic runs fn against a Repository bound to a single transaction;
	// fn returning an error rolls every statement back.
	Atomic(fn func(repo Repository) error) error

	// users
	CreateUser(usr User) (User, error)
	UpdateUserName(id int, name string) error
	GetUserByExternalID(extID int64) (User, error)
	QueryAllUsers() ([]User, error)
	QueryRegularUsers() ([]User, error)
	HasUsers() (bool, error)

	// questions
	UpsertQuestion(qst Question) (Question, error)
	GetQuestion(number, variant int) (Question, error)
	GetQuestionByID(id int) (Question, error)
	QueryAllQuestions() ([]Question, error)
	MaxQuestionNumber() (int, error)
	MaxQuestionVariant() (int, error)
	CountDistinctVariants() (int, error)

	// exam: at most one row may exist
	CreateExam(exm Exam) (Exam, error)
	GetExam() (Exam, error)
	SetExamPhase(id int, phase Phase) error

	// assignments
	GetOrCreateAssignment(asg Assignment) (Assignment, error)
	GetAssignmentByNumber(examID, userID, number int) (Assignment, error)

	// answers
	UpsertAnswer(assignmentID int, text string) (Answer, error)
	GetAnswer(assignmentID int) (Answer, error)
	QueryUserAnswers(userID int) ([]AnswerDetail, error)
	QueryAnsweredUsers() ([]User, error)

	// review assignments
	GetOrCreateReviewAssignment(rasg ReviewAssignment) (ReviewAssignment, error)
	GetReviewAssignment(id int) (ReviewAssignment, error)
	CountReviewAssignments(reviewerID int) (int, error)

	// reviews
	UpsertReview(reviewAssignmentID, grade int, text string) (Review, error)
	GetReview(reviewAssignmentID int) (Review, error)
	QueryAnswerReviews(assignmentID int) ([]Review, error)
	CountUserReviews(reviewerID int) (int, error)
	QueryUserReviews(reviewerID int) ([]ReviewDetail, error)

	// stats
	UserAnswerStats() ([]AnswerStat, error)
	UserReviewStats() ([]ReviewStat, error)

	// Reset drops all rows from all tables and resets the id counters,
	// within one transaction; used by tests between scenarios.
	Reset() error
}
