package messengersvc

import (
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/peerbot/peerbot/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// sendgridMessenger forwards outbound messages to the operator's mailbox.
// It covers deployments where no chat transport is attached yet: the
// operator relays the notifications by hand and keeps an audit trail.
type sendgridMessenger struct {
	key        string
	from       *sgmail.Email
	to         *sgmail.Email
	subjPrefix string
	logger     core.Logger
}

var _ core.Messenger = (*sendgridMessenger)(nil)

func NewSendgridMessenger(conf *core.Config, logger core.Logger) *sendgridMessenger {
	return &sendgridMessenger{
		key:        conf.SendgridApiKey,
		from:       sgmail.NewEmail(conf.DefaultFromEmail.Name, conf.DefaultFromEmail.Address),
		to:         sgmail.NewEmail(conf.OperatorEmail.Name, conf.OperatorEmail.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

func (svc sendgridMessenger) SendMessages(messages ...*core.Message) {
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		msg := msg
		go svc.send(*msg)
	}
}

func (svc sendgridMessenger) prepare(msg core.Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = fmt.Sprintf("%smessage to %d", svc.subjPrefix, msg.ChatID)
	p.AddTos(svc.to)

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	return m
}

func (svc sendgridMessenger) send(msg core.Message) {
	req := sendgrid.GetRequest(svc.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(svc.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("sending message: %v", err), err)
	} else if res.StatusCode >= http.StatusBadRequest {
		svc.logger.Error(fmt.Sprintf("sending message - status: %d - Body: %s", res.StatusCode, res.Body))
	}
}
