package mail

import (
	"context"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"strconv"

	"github.com/jordan-wright/email"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer delivers password reset links over plain SMTP.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, e *email.Email) error
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		cfg: cfg,
		send: func(addr string, a smtp.Auth, e *email.Email) error {
			return e.Send(addr, a)
		},
	}
}

func (m *SMTPMailer) SendResetLink(ctx context.Context, to, link string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, resetEmail(m.cfg.From, to, link)); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	return nil
}

func resetEmail(from, to, link string) *email.Email {
	e := email.NewEmail()
	e.From = from
	e.To = []string{to}
	e.Subject = "Reset your password"
	e.Text = []byte("Open " + link + " to reset your password.")
	e.HTML = []byte(fmt.Sprintf(`Click <a href="%s">here</a> to reset your password!`, html.EscapeString(link)))
	return e
}
