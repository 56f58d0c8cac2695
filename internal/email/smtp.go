package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"
)

const smtpDialTimeout = 30 * time.Second

// ErrNotConfigured is returned by Send when no SMTP host is configured.
var ErrNotConfigured = errors.New("email transport not configured")

// deliverFunc hands a composed message to the transport.
type deliverFunc func(ctx context.Context, cfg SMTPConfig, from string, rcpts []string, msg []byte) error

// Sender delivers notification emails.
type Sender struct {
	cfg     Config
	logger  *slog.Logger
	deliver deliverFunc
}

// NewSender creates a Sender over SMTP.
func NewSender(cfg Config, logger *slog.Logger) *Sender {
	return &Sender{
		cfg:     cfg,
		logger:  logger.With("component", "email"),
		deliver: SendMail,
	}
}

// Send composes and delivers one notification and returns the address
// it was actually delivered to, which differs from to when a receiver
// override is configured.
func (s *Sender) Send(ctx context.Context, to, subject, body string) (string, error) {
	if !s.cfg.Configured() {
		return "", ErrNotConfigured
	}

	recipient := to
	if s.cfg.ReceiverOverride != "" {
		recipient = s.cfg.ReceiverOverride
	}

	n := Notification{
		From:    s.cfg.From,
		To:      []string{recipient},
		Subject: subject,
		Body:    body,
	}
	if s.cfg.BccOwner != "" {
		n.Bcc = []string{s.cfg.BccOwner}
	}

	msg, err := ComposeMessage(n)
	if err != nil {
		return "", fmt.Errorf("compose: %w", err)
	}

	rcpts, err := envelopeRecipients(n.To, n.Bcc)
	if err != nil {
		return "", err
	}
	if err := s.deliver(ctx, s.cfg.SMTP, bareAddress(s.cfg.From), rcpts, msg); err != nil {
		return "", fmt.Errorf("deliver: %w", err)
	}

	s.logger.Info("notification sent",
		"to", recipient,
		"subject", subject,
		"overridden", recipient != to,
	)
	return recipient, nil
}

// SendMail opens a connection, authenticates when credentials are set,
// and delivers msg. Each call uses its own connection.
func SendMail(ctx context.Context, cfg SMTPConfig, from string, rcpts []string, msg []byte) error {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	timeout := smtpDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	dialer := &net.Dialer{Timeout: timeout}

	var conn net.Conn
	var err error
	if cfg.StartTLS {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: cfg.Host})
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake with %s: %w", addr, err)
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("EHLO: %w", err)
	}
	if cfg.StartTLS {
		if err := client.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
			return fmt.Errorf("STARTTLS: %w", err)
		}
	}
	if cfg.Username != "" && cfg.Password != "" {
		if err := client.Auth(smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)); err != nil {
			return fmt.Errorf("AUTH: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, r := range rcpts {
		if err := client.Rcpt(r); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", r, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close DATA: %w", err)
	}
	return client.Quit()
}

// bareAddress strips a display name, returning s unchanged when it does
// not parse.
func bareAddress(s string) string {
	a, err := mail.ParseAddress(s)
	if err != nil {
		return s
	}
	return a.Address
}

// envelopeRecipients flattens and dedupes the RCPT TO list.
func envelopeRecipients(lists ...[]string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		addrs, err := parseAddresses(list)
		if err != nil {
			return nil, err
		}
		for _, a := range addrs {
			if !seen[a.Address] {
				seen[a.Address] = true
				out = append(out, a.Address)
			}
		}
	}
	return out, nil
}
