// Package mailer delivers one-time login codes.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

const otpSubject = "Your marketplace login code"

// SMTPMailer sends codes through an SMTP relay.
type SMTPMailer struct {
	send   func(...*gomail.Message) error
	from   string
	ttl    time.Duration
	logger *logger.Logger
}

func NewSMTPMailer(host string, port int, username, password, from string, ttl time.Duration, log *logger.Logger) *SMTPMailer {
	d := gomail.NewDialer(host, port, username, password)
	return &SMTPMailer{
		send:   d.DialAndSend,
		from:   from,
		ttl:    ttl,
		logger: log.Named("SMTPMailer"),
	}
}

func newMailerWithSender(sender gomail.Sender, from string, ttl time.Duration, log *logger.Logger) *SMTPMailer {
	return &SMTPMailer{
		send:   func(m ...*gomail.Message) error { return gomail.Send(sender, m...) },
		from:   from,
		ttl:    ttl,
		logger: log.Named("SMTPMailer"),
	}
}

func (m *SMTPMailer) SendOTP(ctx context.Context, email, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", otpSubject)
	msg.SetBody("text/plain", fmt.Sprintf(
		"Your login code is %s.\nIt expires in %s. If you did not request it, ignore this email.\n",
		code, m.ttl.Round(time.Second)))
	msg.AddAlternative("text/html", fmt.Sprintf(
		"<p>Your login code is <b>%s</b>.</p><p>It expires in %s. If you did not request it, ignore this email.</p>",
		code, m.ttl.Round(time.Second)))

	if err := m.send(msg); err != nil {
		m.logger.Error("Failed to send login code", zap.String("to", email), zap.Error(err))
		return fmt.Errorf("send login code: %w", err)
	}
	m.logger.Info("Login code sent", zap.String("to", email))
	return nil
}

// LogMailer writes codes to the log instead of sending them. Used when no SMTP
// host is configured.
type LogMailer struct {
	logger *logger.Logger
}

func NewLogMailer(log *logger.Logger) *LogMailer {
	return &LogMailer{logger: log.Named("LogMailer")}
}

func (m *LogMailer) SendOTP(ctx context.Context, email, code string) error {
	m.logger.Warn("SMTP is not configured, login code written to log", zap.String("to", email), zap.String("code", code))
	return nil
}
