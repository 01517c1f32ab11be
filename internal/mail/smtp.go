package mail

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/plantmetrics/plant/internal/config"
)

var ErrInvalidRecipient = errors.New("invalid_recipient")

// SMTPSender sends mail through the configured SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
	log    *zap.Logger
}

func NewSMTPSender(cfg config.Config, log *zap.Logger) *SMTPSender {
	dialer := gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
	return &SMTPSender{
		dialer: dialer,
		from:   cfg.SMTP.From,
		log:    log.Named("mail.smtp"),
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	to := strings.TrimSpace(msg.To)
	if to == "" || !strings.Contains(to, "@") {
		return ErrInvalidRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", msg.Subject)
	if msg.HTML {
		m.SetBody("text/html", msg.Body)
	} else {
		m.SetBody("text/plain", msg.Body)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		s.log.Warn("smtp delivery failed", zap.String("to", to), zap.Error(err))
		return err
	}
	return nil
}
