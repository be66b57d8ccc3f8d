package bot

import (
	"fmt"
	"regexp"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/peerbot/peerbot/core"
	"github.com/peerbot/peerbot/core/exam"
)

const genericErrorText = "Something went wrong, please try again later"

var (
	messageRegex = regexp.MustCompile(`(?s)^/(\w+)\s*(.*)$`)

	// free-form trailing text: numeric fields followed by a free-text remainder
	addQuestionRegex = regexp.MustCompile(`(?s)^(\d+)\s+(\d+)\s+(.+)$`)
	answerRegex      = regexp.MustCompile(`(?s)^(\d+)\s+(.+)$`)
	reviewRegex      = regexp.MustCompile(`(?s)^(\d+)\s+(-?\d+)\s+(.+)$`)
	numberRegex      = regexp.MustCompile(`(\d+)`)
)

// Dispatcher routes one inbound message to the matching engine operation.
// Every operation-level error becomes a diagnostic reply plus a log entry;
// the dispatch loop itself never crashes.
type Dispatcher struct {
	svc    *exam.Service
	msgr   core.Messenger
	logger core.Logger
}

func NewDispatcher(svc *exam.Service, msgr core.Messenger, logger core.Logger) *Dispatcher {
	vala.BeginValidation().Validate(
		vala.IsNotNil(svc, "svc"),
		vala.IsNotNil(msgr, "msgr"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Dispatcher{svc: svc, msgr: msgr, logger: logger}
}

func (d *Dispatcher) reply(chatID int64, format string, args ...interface{}) {
	d.msgr.SendMessages(core.NewMessage(chatID, format, args...))
}

// Dispatch handles one inbound message and reports whether the caller
// requested shutdown.
func (d *Dispatcher) Dispatch(callerID int64, callerName, text string) (exit bool) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error(fmt.Sprintf("panic recovered: %v", rec), string(debug.Stack()))
			d.reply(callerID, genericErrorText)
			exit = false
		}
	}()

	d.logger.Debug("dispatch: " + text)
	if !strings.HasPrefix(text, "/") {
		return false
	}
	m := messageRegex.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	name, rest := m[1], m[2]

	caller, err := d.svc.ResolveCaller(callerID)
	if err != nil {
		caller.ExternalID = callerID
		d.handleError(caller, err)
		return false
	}
	d.logger.Debug(fmt.Sprintf("C: /%s from <%d> (%s) with rest <%s>", name, callerID, caller.Privilege, rest))

	cmd, ok := commandsFor(caller.Privilege)[name]
	if !ok {
		d.reply(callerID, "Unknown command /%s\n---\n%s", name, helpFor(caller.Privilege))
		return false
	}

	exit, err = d.invoke(cmd, caller, callerName, rest)
	if err != nil {
		d.handleError(caller, err)
	}
	return exit
}

func (d *Dispatcher) invoke(cmd Command, caller exam.User, callerName, rest string) (bool, error) {
	switch cmd {
	case Register:
		return false, d.svc.Register(caller.ExternalID, callerName, rest)
	case Help:
		d.reply(caller.ExternalID, helpFor(caller.Privilege))
		return false, nil
	case Users:
		return false, d.svc.ListUsers(caller)
	case Questions:
		return false, d.svc.ListQuestions(caller)
	case AddQuestion:
		m := addQuestionRegex.FindStringSubmatch(rest)
		if m == nil {
			return false, core.NewValidationError(
				errors.New("You need to specify question number, variant and question text"))
		}
		number, _ := strconv.Atoi(m[1])
		variant, _ := strconv.Atoi(m[2])
		return false, d.svc.AddQuestion(caller, exam.NewQuestion{Number: number, Variant: variant, Text: m[3]})
	case AddExam:
		return false, d.svc.AddExam(caller, rest)
	case StartExam:
		return false, d.svc.StartExam(caller)
	case StopExam:
		return false, d.svc.StopExam(caller)
	case StartReview:
		return false, d.svc.StartReview(caller)
	case SetGrades:
		return false, d.svc.SetGrades(caller)
	case AnswerStat:
		return false, d.svc.AnswerStats(caller)
	case AnswersOf:
		extID, err := parseCallerID(rest)
		if err != nil {
			return false, err
		}
		return false, d.svc.AnswersOf(caller, extID)
	case ReviewStat:
		return false, d.svc.ReviewStats(caller)
	case ReviewsOf:
		extID, err := parseCallerID(rest)
		if err != nil {
			return false, err
		}
		return false, d.svc.ReviewsOf(caller, extID)
	case Exit:
		return true, nil
	case Answer:
		m := answerRegex.FindStringSubmatch(rest)
		if m == nil {
			return false, core.NewValidationError(
				errors.New("You need to specify question number and answer text"))
		}
		number, _ := strconv.Atoi(m[1])
		return false, d.svc.SubmitAnswer(caller, exam.NewAnswer{Number: number, Text: m[2]})
	case LookupQuestion:
		number, err := parseNumber(rest)
		if err != nil {
			return false, err
		}
		return false, d.svc.LookupQuestion(caller, number)
	case LookupAnswer:
		number, err := parseNumber(rest)
		if err != nil {
			return false, err
		}
		return false, d.svc.LookupAnswer(caller, number)
	case Review:
		m := reviewRegex.FindStringSubmatch(rest)
		if m == nil {
			return false, core.NewValidationError(
				errors.New("You need to specify review number, grade and review text"))
		}
		id, _ := strconv.Atoi(m[1])
		grade, _ := strconv.Atoi(m[2])
		return false, d.svc.SubmitReview(caller, exam.NewReview{AssignmentID: id, Grade: grade, Text: m[3]})
	case LookupReview:
		id, err := parseNumber(rest)
		if err != nil {
			return false, err
		}
		return false, d.svc.LookupReview(caller, id)
	default:
		return false, core.NewValidationError(errors.New("Unknown command"))
	}
}

// handleError converts engine errors to user-facing replies. Validation and
// phase errors are routine and only replied; integrity and store errors are
// logged with full context and answered with a generic failure.
func (d *Dispatcher) handleError(caller exam.User, err error) {
	switch origErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		msgs := make([]string, 0, len(origErr))
		for _, vErr := range origErr {
			msgs = append(msgs, vErr.Translate(core.Translator))
		}
		d.reply(caller.ExternalID, strings.Join(msgs, "\n"))
	case *core.ValidationError:
		if len(origErr.Fields) > 0 {
			msgs := make([]string, 0, len(origErr.Fields))
			for _, fErr := range origErr.Fields {
				msgs = append(msgs, fmt.Sprintf("%s: %s", fErr.Field, fErr.Error))
			}
			d.reply(caller.ExternalID, strings.Join(msgs, "\n"))
		} else {
			d.reply(caller.ExternalID, origErr.Error())
		}
	case *exam.PhaseError:
		d.reply(caller.ExternalID, origErr.Error())
	case *exam.NotFoundError:
		d.reply(caller.ExternalID, origErr.Error())
	case *exam.IntegrityError:
		d.logger.Error("store integrity violation: "+err.Error(), err, caller)
		d.reply(caller.ExternalID, genericErrorText)
	default:
		d.logger.Error("command failed: "+err.Error(), err, caller)
		d.reply(caller.ExternalID, genericErrorText)
	}
}

func parseNumber(rest string) (int, error) {
	m := numberRegex.FindString(rest)
	if m == "" {
		return 0, core.NewValidationError(errors.New("Wrong command format: specify n"))
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, core.NewValidationError(errors.New("Wrong command format: specify n"))
	}
	return n, nil
}

func parseCallerID(rest string) (int64, error) {
	extID, err := strconv.ParseInt(core.CleanString(rest), 10, 64)
	if err != nil {
		return 0, core.NewValidationError(errors.New("Wrong command format: specify user id"))
	}
	return extID, nil
}
