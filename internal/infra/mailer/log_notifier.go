package mailer

import (
	"context"

	"go.uber.org/zap"

	"github.com/linzell/authcore/internal/core/port"
	"github.com/linzell/authcore/internal/infra/logger"
)

// LogNotifier logs messages instead of delivering them. Useful for
// development environments without an SMTP relay.
type LogNotifier struct {
	templates *TemplateStore
	logger    *zap.Logger
}

// NewLogNotifier constructs a notifier that only logs.
func NewLogNotifier(templatesDir string, log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{
		templates: NewTemplateStore(templatesDir),
		logger:    log,
	}
}

// LoadTemplate returns the raw template body for name.
func (n *LogNotifier) LoadTemplate(name string) (string, error) {
	return n.templates.Load(name)
}

// BuildMessage assembles an outbound message.
func (n *LogNotifier) BuildMessage(from, to, subject, contentType, body string) port.Message {
	return port.Message{
		From:        from,
		To:          to,
		Subject:     subject,
		ContentType: contentType,
		Body:        body,
	}
}

// Send logs the message.
func (n *LogNotifier) Send(_ context.Context, msg port.Message) error {
	n.logger.Info("mail suppressed",
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.Body)))
	return nil
}

var _ port.Notifier = (*LogNotifier)(nil)
