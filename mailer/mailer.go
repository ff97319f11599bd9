// Package mailer delivers the short transactional messages this core sends:
// verification and login codes. Delivery is fire-and-forget; failures are
// logged by the caller, never retried here.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Mailer sends a single plain-text message.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// SMTP sends mail through a plain-auth SMTP relay.
type SMTP struct {
	host     string
	port     string
	account  string
	password string
}

var _ Mailer = (*SMTP)(nil)

func NewSMTP(host, port, account, password string) *SMTP {
	return &SMTP{
		host:     host,
		port:     port,
		account:  account,
		password: password,
	}
}

func (s *SMTP) Send(ctx context.Context, recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.account, recipient, subject, body)

	auth := smtp.PlainAuth("", s.account, s.password, s.host)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	if err := smtp.SendMail(addr, auth, s.account, []string{recipient}, []byte(msg)); err != nil {
		return errors.Wrap(err, "[SMTP.Send] smtp.SendMail")
	}
	return nil
}

// Log writes messages to the log instead of delivering them. Used in
// development and tests.
type Log struct {
	logger zerolog.Logger
}

var _ Mailer = (*Log)(nil)

func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Send(_ context.Context, recipient, subject, body string) error {
	l.logger.Info().
		Str("recipient", recipient).
		Str("subject", subject).
		Str("body", body).
		Msg("mail (not delivered)")
	return nil
}
