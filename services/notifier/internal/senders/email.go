package senders

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender delivers mail through a plain SMTP relay. Auth is optional:
// local relays like mailhog take none.
type SMTPSender struct {
	Host     string
	Port     string
	From     string
	Username string
	Password string
}

func (s *SMTPSender) Send(_ context.Context, to, subject, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	msg.WriteString(body)

	addr := s.Host + ":" + s.Port
	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}
	return smtp.SendMail(addr, auth, s.From, []string{to}, []byte(msg.String()))
}

// LogEmailSender is the dev fallback when no SMTP host is configured.
type LogEmailSender struct {
	Logger *slog.Logger
}

func (s *LogEmailSender) Send(_ context.Context, to, subject, _ string) error {
	s.Logger.Info("email suppressed (no SMTP configured)", "to", to, "subject", subject)
	return nil
}
