package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/clustermon/cluster-email-alerts/internal/config"
)

// SMTPProvider sends email through a plain SMTP server. Port 587 uses
// STARTTLS, 465 implicit TLS, anything else an unencrypted session
// (typical for an internal relay).
type SMTPProvider struct {
	host     string
	port     int
	user     string
	password string
}

// NewSMTPProvider builds the smtp backend from configuration.
func NewSMTPProvider(cfg config.SMTPConfig) *SMTPProvider {
	return &SMTPProvider{
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.User,
		password: cfg.Password(),
	}
}

func (p *SMTPProvider) Name() string { return "smtp" }

func (p *SMTPProvider) IsConfigured() bool { return p.host != "" }

// Send delivers one email over SMTP.
func (p *SMTPProvider) Send(ctx context.Context, req *Request) error {
	if len(req.To) == 0 {
		return fmt.Errorf("smtp: no recipients")
	}

	msg := buildMessage(req)
	addr := fmt.Sprintf("%s:%d", p.host, p.port)

	switch p.port {
	case 465, 587:
		return p.sendTLS(ctx, addr, req.From, req.To, msg)
	default:
		var auth smtp.Auth
		if p.user != "" && p.password != "" {
			auth = smtp.PlainAuth("", p.user, p.password, p.host)
		}
		if err := smtp.SendMail(addr, auth, req.From, req.To, msg); err != nil {
			return fmt.Errorf("smtp: send via %s: %w", addr, err)
		}
		return nil
	}
}

// sendTLS runs an explicit SMTP session: implicit TLS on 465, STARTTLS
// otherwise.
func (p *SMTPProvider) sendTLS(ctx context.Context, addr, from string, to []string, msg []byte) error {
	tlsCfg := &tls.Config{ServerName: p.host}
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	var client *smtp.Client
	if p.port == 465 {
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
		if err != nil {
			return fmt.Errorf("smtp: tls dial %s: %w", addr, err)
		}
		client, err = smtp.NewClient(conn, p.host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp: handshake with %s: %w", addr, err)
		}
	} else {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("smtp: dial %s: %w", addr, err)
		}
		client, err = smtp.NewClient(conn, p.host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp: handshake with %s: %w", addr, err)
		}
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsCfg); err != nil {
				client.Close()
				return fmt.Errorf("smtp: starttls: %w", err)
			}
		}
	}
	defer client.Close()

	if p.user != "" && p.password != "" {
		auth := smtp.PlainAuth("", p.user, p.password, p.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp: auth: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp: mail from %s: %w", from, err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp: rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp: data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("smtp: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp: close body: %w", err)
	}
	return client.Quit()
}

// buildMessage assembles the RFC 822 message with HTML content.
func buildMessage(req *Request) []byte {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", req.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(req.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", req.Subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(req.HTML)
	return msg.Bytes()
}
