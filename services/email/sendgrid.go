package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/academia/core"
)

const maxAttempts = 3

var retryDelay = 2 * time.Second // mockable

// sendgridService delivers login codes and password resets through the SendGrid v3 API.
type sendgridService struct {
	conf       *core.Config
	from       *sgmail.Email
	subjPrefix string
	logger     core.Logger
	send       func(*sgmail.SGMailV3) (*rest.Response, error)
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	from := conf.DefaultFromEmail()
	return &sendgridService{
		conf:       conf,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
		send:       sendgrid.NewSendClient(conf.SendgridApiKey).Send,
	}
}

func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go func(msg *core.EmailMessage) {
			if err := msg.Render(svc.conf); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering %q email: %v", msg.TemplateName, err), err)
				return
			}
			if msg.HasRecipients() && msg.HasContent() {
				svc.deliver(svc.compose(*msg))
			}
		}(msg)
	}
}

// compose gives every recipient a personalization of their own, so a code sent to
// several parents never shows the other addresses.
func (svc *sendgridService) compose(msg core.EmailMessage) *sgmail.SGMailV3 {
	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.Subject = svc.subjPrefix + msg.Subject
	if msg.TemplateName != "" {
		m.AddCategories(msg.TemplateName)
	}

	for _, to := range msg.To {
		p := sgmail.NewPersonalization()
		p.AddTos(sgEmail(to))
		for _, cc := range msg.Cc {
			p.AddCCs(sgEmail(cc))
		}
		for _, bcc := range msg.Bcc {
			p.AddBCCs(sgEmail(bcc))
		}
		m.AddPersonalizations(p)
	}

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return m
}

func sgEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

// deliver retries throttled and server-side failures. It reports whether SendGrid accepted m.
func (svc *sendgridService) deliver(m *sgmail.SGMailV3) bool {
	for attempt := 1; ; attempt++ {
		res, err := svc.send(m)
		switch {
		case err == nil && res.StatusCode < http.StatusBadRequest:
			return true
		case err == nil && res.StatusCode != http.StatusTooManyRequests && res.StatusCode < http.StatusInternalServerError:
			svc.logger.Error(fmt.Sprintf("sending %q email - status: %d - body: %s", m.Subject, res.StatusCode, res.Body))
			return false
		case attempt == maxAttempts:
			svc.logger.Error(fmt.Sprintf("sending %q email: giving up after %d attempts: %s", m.Subject, attempt, failure(res, err)), err)
			return false
		}
		svc.logger.Warn(fmt.Sprintf("sending %q email: attempt %d failed: %s", m.Subject, attempt, failure(res, err)))
		time.Sleep(time.Duration(attempt) * retryDelay)
	}
}

func failure(res *rest.Response, err error) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("status %d", res.StatusCode)
}
