package email

import (
	"context"

	"github.com/Domenick1991/appointments/internal/logger"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer hands a rendered message to an outbound transport.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of a mail server.
type LogSender struct {
	logg *logger.Logger
}

func NewSender(logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"to":      msg.To,
		"subject": msg.Subject,
	}), "email sent")
	return nil
}
