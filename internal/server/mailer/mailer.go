// Package mailer sends transactional email over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/dmitrijs2005/harvesthub/internal/common"
)

// Sender delivers an email message.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// Email is a single outgoing message.
type Email struct {
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c Config) validate() error {
	if c.Host == "" {
		return errors.New("missing SMTP host")
	}
	if c.Port == 0 {
		return errors.New("missing SMTP port")
	}
	if c.From == "" {
		return errors.New("missing SMTP from address")
	}
	return nil
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer is the SMTP Sender.
type Mailer struct {
	from   string
	dialer dialer
}

func NewMailer(cfg Config) (*Mailer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Mailer{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

// Send delivers email. gomail has no context support, so the SMTP exchange
// runs in its own goroutine and Send returns when ctx is done; the exchange
// itself is not interrupted.
func (m *Mailer) Send(ctx context.Context, email Email) error {
	if len(email.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	msg := gomail.NewMessage()
	m.setEmailMessage(msg, email)

	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: smtp: %w", common.ErrInfrastructure, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: smtp: %w", common.ErrInfrastructure, ctx.Err())
	}
}

func (m *Mailer) setEmailMessage(msg *gomail.Message, email Email) {
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email.To...)
	msg.SetHeader("Subject", email.Subject)

	if email.HTMLBody != "" {
		msg.SetBody("text/html", email.HTMLBody)
		if email.Body != "" {
			msg.AddAlternative("text/plain", email.Body)
		}
	} else {
		msg.SetBody("text/plain", email.Body)
	}
}
