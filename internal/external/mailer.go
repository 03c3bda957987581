package external

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-mail/mail/v2"
	"github.com/google/uuid"
)

type MailerConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
	Timeout  time.Duration
}

// Mailer sends HTML mail through an SMTP relay
type Mailer struct {
	dialer *mail.Dialer
	sender string
}

func NewMailer(cfg MailerConfig) *Mailer {
	dialer := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.Timeout > 0 {
		dialer.Timeout = cfg.Timeout
	}

	return &Mailer{
		dialer: dialer,
		sender: cfg.Sender,
	}
}

// Send delivers one message and returns its Message-ID
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", errors.New("mail recipient is empty")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	domain := "localhost"
	if at := strings.LastIndex(m.sender, "@"); at >= 0 {
		domain = m.sender[at+1:]
	}
	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), domain)

	msg := mail.NewMessage()
	msg.SetAddressHeader("From", m.sender, "TicketShow")
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetHeader("Message-ID", messageID)
	msg.SetDateHeader("Date", time.Now())
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return "", fmt.Errorf("failed to send mail: %w", err)
	}

	return messageID, nil
}
