// Package mailer sends the transactional emails of the auth flows.
package mailer

import (
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"
	"go.uber.org/zap"
)

// Sender delivers one message.  textBody may be empty.
type Sender interface {
	Send(to, subject, htmlBody, textBody string) error
}

// SMTPSender delivers through an SMTP relay.  go-mail negotiates STARTTLS
// when the server offers it; port 465 uses implicit TLS.
type SMTPSender struct {
	Host string
	Port int
	From string
	User string
	Pass string
	log  *zap.Logger
}

func NewSMTPSender(host string, port int, from, user, pass string, log *zap.Logger) *SMTPSender {
	return &SMTPSender{Host: host, Port: port, From: from, User: user, Pass: pass, log: log}
}

func (s *SMTPSender) Send(to, subject, htmlBody, textBody string) error {
	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	// multipart/alternative when both bodies exist
	if textBody != "" {
		m.SetBody("text/plain", textBody)
	}
	if htmlBody != "" {
		if textBody == "" {
			m.SetBody("text/html", htmlBody)
		} else {
			m.AddAlternative("text/html", htmlBody)
		}
	}

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.TLSConfig = &tls.Config{ServerName: s.Host}
	if s.Port == 465 {
		d.SSL = true
	}

	if err := d.DialAndSend(m); err != nil {
		s.log.Error("smtp send failed", zap.String("to", to), zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	s.log.Info("smtp send ok", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// LogSender only logs.  It stands in when SMTP is not configured so local
// development still shows the links that would have been mailed.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) Send(to, subject, _, textBody string) error {
	s.Log.Info("email not sent (smtp disabled)", zap.String("to", to), zap.String("subject", subject), zap.String("body", textBody))
	return nil
}
