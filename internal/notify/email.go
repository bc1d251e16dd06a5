package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"providence/internal/config"
)

// EmailSender delivers batches to rule recipients over SMTP.
// Params: relay endpoint and sender identity from config.
// Returns: email channel sender.
type EmailSender struct {
	cfg  config.EmailConfig
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailSender creates an SMTP sender.
// Params: email config with host, port, and from address.
// Returns: initialized sender.
func NewEmailSender(cfg config.EmailConfig) *EmailSender {
	return &EmailSender{cfg: cfg, send: smtp.SendMail}
}

// Channel returns the sender channel name.
// Params: none.
// Returns: static channel key.
func (s *EmailSender) Channel() string {
	return "email"
}

// Send renders and mails one batch to the rule's recipients.
// Params: context and collected batch.
// Returns: render or SMTP error; batches without recipients are skipped.
func (s *EmailSender) Send(ctx context.Context, batch Batch) error {
	if len(batch.EmailAddresses) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := batch.Render()
	if err != nil {
		return err
	}

	var message strings.Builder
	fmt.Fprintf(&message, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&message, "To: %s\r\n", strings.Join(batch.EmailAddresses, ", "))
	fmt.Fprintf(&message, "Subject: %s\r\n", batch.Subject())
	message.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	message.WriteString(body)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.send(addr, auth, s.cfg.From, batch.EmailAddresses, []byte(message.String())); err != nil {
		return fmt.Errorf("smtp send via %s: %w", addr, err)
	}
	return nil
}
