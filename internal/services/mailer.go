package services

import (
	"context"
	"fmt"
	"log"
	"net/smtp"

	"github.com/example/bazaar/internal/config"
)

// SMTPMailer sends plain-text mail through a configured SMTP relay.
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSMTPMailer constructs an SMTPMailer from config.
func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &SMTPMailer{
		addr: cfg.SMTPHost + ":" + cfg.SMTPPort,
		from: cfg.MailFrom,
		auth: auth,
	}
}

// Send delivers one message to one recipient.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.from, to, subject, body)
	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		log.Printf("[Mail] send to %s failed: %v", to, err)
		return err
	}
	return nil
}

// LogMailer writes messages to the log instead of delivering them. Used
// when no SMTP host is configured.
type LogMailer struct{}

// Send logs the message.
func (LogMailer) Send(ctx context.Context, to, subject, body string) error {
	log.Printf("[Mail] to=%s subject=%q body=%q", to, subject, body)
	return nil
}
