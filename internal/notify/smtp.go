package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"time"

	"assistant/internal/booking"
)

var ErrNotConfigured = errors.New("email credentials not configured")

type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	PasswordEnv string
	From        string
	Timeout     time.Duration
}

// SMTPNotifier sends confirmation emails, upgrading to TLS with STARTTLS
// whenever the server offers it.
type SMTPNotifier struct {
	host     string
	addr     string
	from     string
	username string
	password string
	timeout  time.Duration
}

func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		cfg.Host = "smtp.gmail.com"
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.From == "" {
		return nil, ErrNotConfigured
	}
	password := ""
	if cfg.PasswordEnv != "" {
		password = os.Getenv(cfg.PasswordEnv)
	}
	if cfg.Username != "" && password == "" {
		return nil, fmt.Errorf("%w: missing password in env %s", ErrNotConfigured, cfg.PasswordEnv)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPNotifier{
		host:     cfg.Host,
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from:     cfg.From,
		username: cfg.Username,
		password: password,
		timeout:  cfg.Timeout,
	}, nil
}

func (n *SMTPNotifier) NotifyBookingConfirmed(ctx context.Context, b *booking.CompletedBooking) error {
	if b.Email == "" {
		return errors.New("booking has no email address")
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", n.addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, err := smtp.NewClient(conn, n.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: n.host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if n.username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", n.username, n.password, n.host)); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}
	if err := c.Mail(n.from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(b.Email); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(n.message(b)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	return c.Quit()
}

func (n *SMTPNotifier) message(b *booking.CompletedBooking) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", n.from)
	fmt.Fprintf(&buf, "To: %s\r\n", b.Email)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", Subject(b)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	buf.WriteString(Body(b))
	return buf.Bytes()
}
