package mailer

import (
	"context"

	"github.com/rs/zerolog"
)

// LogMailer records messages instead of sending them. Used in development.
type LogMailer struct {
	logger zerolog.Logger
}

// NewLogMailer constructs a logging mailer.
func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With().Str("component", "log_mailer").Logger()}
}

// Send logs the envelope and returns nil.
func (l *LogMailer) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.Filename)
	}

	l.logger.Info().
		Int("recipients", len(msg.To)).
		Str("subject", msg.Subject).
		Strs("attachments", names).
		Int64("bytes", msg.Size()).
		Msg("mail delivery skipped by log driver")
	return nil
}
