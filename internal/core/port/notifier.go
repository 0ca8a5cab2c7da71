package port

import "context"

// Message is an outbound notification assembled by BuildMessage and handed to Send.
type Message struct {
	From        string
	To          string
	Subject     string
	ContentType string
	Body        string
}

// Notifier is the outbound-messaging capability. Template placeholders follow
// the ${{TOKEN}} convention; callers substitute them before building the
// message.
type Notifier interface {
	LoadTemplate(name string) (string, error)
	BuildMessage(from, to, subject, contentType, body string) Message
	Send(ctx context.Context, msg Message) error
}
