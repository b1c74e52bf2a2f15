package mailer

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

func TestBuildMessageCarriesAttachments(t *testing.T) {
	msg := Message{
		To:      []string{"contest@dpu.edu.tr"},
		ReplyTo: "ayse.yilmaz@ogr.dpu.edu.tr",
		Subject: "New application",
		Body:    "details",
		Attachments: []Attachment{
			{Filename: "gun-batimi.jpg", ContentType: "image/jpeg", Data: []byte{0xFF, 0xD8, 0xFF}},
			{Filename: "kopru.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
		},
	}

	built, err := buildMessage("noreply@dpu.edu.tr", msg)
	require.NoError(t, err)

	attachments := built.GetAttachments()
	require.Len(t, attachments, 2)
	require.Equal(t, "gun-batimi.jpg", attachments[0].Name)
	require.Equal(t, "kopru.png", attachments[1].Name)

	require.Equal(t, []string{"New application"}, built.GetGenHeader(mail.HeaderSubject))
	require.Equal(t, int64(7), msg.Size())
}

func TestBuildMessageRejectsBadAddresses(t *testing.T) {
	_, err := buildMessage("noreply@dpu.edu.tr", Message{})
	require.ErrorIs(t, err, ErrNoRecipients)

	_, err = buildMessage("noreply@dpu.edu.tr", Message{To: []string{"not an address"}})
	require.Error(t, err)

	_, err = buildMessage("", Message{To: []string{"a@dpu.edu.tr"}})
	require.Error(t, err)
}

func TestNewSMTPMailerValidatesConfig(t *testing.T) {
	_, err := NewSMTPMailer(SMTPConfig{From: "a@b.c"}, zerolog.Nop())
	require.Error(t, err)

	_, err = NewSMTPMailer(SMTPConfig{Host: "smtp.example.com"}, zerolog.Nop())
	require.Error(t, err)

	m, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com", Username: "u", Password: "p"}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestLogMailer(t *testing.T) {
	m := NewLogMailer(zerolog.Nop())
	require.NoError(t, m.Send(context.Background(), Message{To: []string{"a@b.c"}}))
	require.ErrorIs(t, m.Send(context.Background(), Message{}), ErrNoRecipients)
}
