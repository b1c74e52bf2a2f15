// Package mailer delivers contest notifications.
package mailer

import (
	"context"
	"errors"
)

// ErrNoRecipients is returned when a message has nobody to go to.
var ErrNoRecipients = errors.New("mail message has no recipients")

// Attachment is a file carried by a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a plain text mail with optional attachments.
type Message struct {
	To          []string
	ReplyTo     string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Size returns the combined attachment payload in bytes.
func (m Message) Size() int64 {
	var total int64
	for _, a := range m.Attachments {
		total += int64(len(a.Data))
	}
	return total
}

// Mailer sends a message or reports why it could not.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
