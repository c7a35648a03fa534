package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/securebank/backoffice/config"
)

// SMTPDeliverer sends codes by email through a STARTTLS-capable relay.
type SMTPDeliverer struct {
	host     string
	port     int
	username string
	password string
	from     string
	validity time.Duration
}

func NewSMTPDeliverer(cfg config.SMTPConfig, validity time.Duration) *SMTPDeliverer {
	return &SMTPDeliverer{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		validity: validity,
	}
}

func (d *SMTPDeliverer) Deliver(ctx context.Context, address, code, username string) error {
	addr := net.JoinHostPort(d.host, strconv.Itoa(d.port))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, d.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: d.host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if d.username != "" {
		if err := client.Auth(smtp.PlainAuth("", d.username, d.password, d.host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(d.from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(address); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(d.message(address, code, username)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return client.Quit()
}

func (d *SMTPDeliverer) message(address, code, username string) []byte {
	var b strings.Builder
	b.WriteString("From: " + d.from + "\r\n")
	b.WriteString("To: " + address + "\r\n")
	b.WriteString("Subject: " + codeSubject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(composeBody(username, code, d.validity), "\n", "\r\n"))
	return []byte(b.String())
}
