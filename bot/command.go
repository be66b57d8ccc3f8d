package bot

import "github.com/peerbot/peerbot/core/exam"

// Command enumerates every inbound command; routing is an exhaustive switch
// on this type, never on the raw command string.
type Command int

const (
	Unknown Command = iota
	Register
	Help
	Users
	Questions
	AddQuestion
	AddExam
	StartExam
	StopExam
	StartReview
	SetGrades
	AnswerStat
	AnswersOf
	ReviewStat
	ReviewsOf
	Exit
	Answer
	LookupQuestion
	LookupAnswer
	Review
	LookupReview
)

var (
	// commands available to unregistered callers
	baseCommands = map[string]Command{
		"register": Register,
		"help":     Help,
	}

	privilegedCommands = map[string]Command{
		"register":    Register,
		"help":        Help,
		"users":       Users,
		"questions":   Questions,
		"addquestion": AddQuestion,
		"addexam":     AddExam,
		"startexam":   StartExam,
		"stopexam":    StopExam,
		"startreview": StartReview,
		"setgrades":   SetGrades,
		"answerstat":  AnswerStat,
		"answersof":   AnswersOf,
		"reviewstat":  ReviewStat,
		"reviewsof":   ReviewsOf,
		"exit":        Exit,
	}

	regularCommands = map[string]Command{
		"register":        Register,
		"help":            Help,
		"answer":          Answer,
		"lookup_question": LookupQuestion,
		"lookup_answer":   LookupAnswer,
		"review":          Review,
		"lookup_review":   LookupReview,
	}
)

const (
	baseHelpText = `Available commands:
/register [name] - Register yourself as user
/help - Show this help`

	privilegedHelpText = `/addquestion n v text
/questions
/users
/addexam [name]
/startexam
/startreview
/setgrades
/stopexam
/answersof id
/answerstat
/reviewsof id
/reviewstat
/exit`

	regularHelpText = `/register [name] -- change your name.
/answer n text -- send answer to nth question in your exam ticket. Text can be multi-line.
/lookup_question n -- lookup your nth question.
/lookup_answer n -- lookup your answer to nth question.
/review r grade text -- send review assignment r, set grade (from 1 to 10), send explanation.
/lookup_review r -- lookup your review assignment in r's review.`
)

// commandsFor scopes the command set to the caller's tier.
func commandsFor(p exam.Privilege) map[string]Command {
	switch p {
	case exam.Privileged:
		return privilegedCommands
	case exam.Regular:
		return regularCommands
	default:
		return baseCommands
	}
}

func helpFor(p exam.Privilege) string {
	switch p {
	case exam.Privileged:
		return privilegedHelpText
	case exam.Regular:
		return regularHelpText
	default:
		return baseHelpText
	}
}
