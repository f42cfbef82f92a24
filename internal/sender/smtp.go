// Package sender delivers rendered reminders over SMTP.
package sender

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"remind/internal/domain"
)

type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string

	From     string
	FromName string
	ReplyTo  string
}

func (s *SMTP) addr() string { return net.JoinHostPort(s.Host, s.Port) }

// Deliver sends one plain-text mail. The context bounds the whole SMTP
// conversation via the connection deadline.
func (s *SMTP) Deliver(ctx context.Context, rcpt domain.Recipient, subject, body string) error {
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", s.addr())
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.Host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if s.Username != "" {
		auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(s.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(rcpt.Email); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(s.message(rcpt, subject, body)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return c.Quit()
}

func (s *SMTP) message(rcpt domain.Recipient, subject, body string) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s <%s>\r\n", s.FromName, s.From)
	if rcpt.Name != "" {
		fmt.Fprintf(&sb, "To: %s <%s>\r\n", rcpt.Name, rcpt.Email)
	} else {
		fmt.Fprintf(&sb, "To: %s\r\n", rcpt.Email)
	}
	if s.ReplyTo != "" {
		fmt.Fprintf(&sb, "Reply-To: %s\r\n", s.ReplyTo)
	}
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	fmt.Fprintf(&sb, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	sb.WriteString("\r\n")
	return []byte(sb.String())
}
