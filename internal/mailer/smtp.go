package mailer

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseSSL   bool
	Timeout  time.Duration
}

// SMTPMailer delivers messages through an authenticated SMTP relay.
type SMTPMailer struct {
	client *mail.Client
	from   string
	logger zerolog.Logger
}

// NewSMTPMailer configures the relay client. No connection is opened until Send.
func NewSMTPMailer(cfg SMTPConfig, logger zerolog.Logger) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host must not be empty")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp from address must not be empty")
	}

	var opts []mail.Option
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.UseSSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to configure smtp client: %w", err)
	}

	return &SMTPMailer{
		client: client,
		from:   cfg.From,
		logger: logger.With().Str("component", "smtp_mailer").Logger(),
	}, nil
}

// Send implements Mailer.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	built, err := buildMessage(m.from, msg)
	if err != nil {
		return err
	}

	if err := m.client.DialAndSendWithContext(ctx, built); err != nil {
		return fmt.Errorf("smtp delivery failed: %w", err)
	}

	m.logger.Debug().
		Str("subject", msg.Subject).
		Int("attachments", len(msg.Attachments)).
		Int64("bytes", msg.Size()).
		Msg("mail delivered")
	return nil
}

func buildMessage(from string, msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipients
	}

	built := mail.NewMsg()
	if err := built.From(from); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := built.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	if msg.ReplyTo != "" {
		if err := built.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("invalid reply-to address: %w", err)
		}
	}

	built.Subject(msg.Subject)
	built.SetBodyString(mail.TypeTextPlain, msg.Body)

	for _, attachment := range msg.Attachments {
		built.AttachReadSeeker(attachment.Filename, bytes.NewReader(attachment.Data),
			mail.WithFileContentType(mail.ContentType(attachment.ContentType)))
	}

	return built, nil
}
