package mailer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/linzell/authcore/internal/core/port"
	"github.com/linzell/authcore/internal/infra/config"
	"github.com/linzell/authcore/internal/infra/logger"
)

// Notifier implements port.Notifier over SMTP using gomail.
type Notifier struct {
	dialer    *gomail.Dialer
	templates *TemplateStore
	logger    *zap.Logger
}

// NewNotifier constructs an SMTP notifier from mailer settings.
func NewNotifier(cfg config.MailerSettings, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		dialer:    gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		templates: NewTemplateStore(cfg.TemplatesDir),
		logger:    log,
	}
}

// LoadTemplate returns the raw template body for name.
func (n *Notifier) LoadTemplate(name string) (string, error) {
	return n.templates.Load(name)
}

// BuildMessage assembles an outbound message.
func (n *Notifier) BuildMessage(from, to, subject, contentType, body string) port.Message {
	return port.Message{
		From:        from,
		To:          to,
		Subject:     subject,
		ContentType: contentType,
		Body:        body,
	}
}

// Send delivers the message over SMTP. gomail has no context support, so the
// ctx is only consulted before dialing.
func (n *Notifier) Send(ctx context.Context, msg port.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody(msg.ContentType, msg.Body)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	n.logger.Debug("mail sent",
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject))

	return nil
}

var _ port.Notifier = (*Notifier)(nil)
