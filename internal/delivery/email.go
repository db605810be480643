package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/unearthedapp/unearthed-server/internal/config"
)

// Mailer sends the daily reflection email over SMTP with STARTTLS.
type Mailer struct {
	cfg config.EmailConfig
}

// NewMailer creates a mailer from the SMTP configuration.
func NewMailer(cfg config.EmailConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Configured reports whether the mailer has enough settings to send.
func (m *Mailer) Configured() bool {
	return m.cfg.Host != "" && m.cfg.From != ""
}

// ReflectionEmail is the content of one daily reflection message.
type ReflectionEmail struct {
	To          string
	Title       string
	Author      string
	Quote       string
	Note        string
	LogicalDate string
}

// Send renders the reflection into a multipart message and delivers it.
func (m *Mailer) Send(ctx context.Context, email ReflectionEmail) error {
	if !m.Configured() {
		return fmt.Errorf("smtp is not configured")
	}
	if strings.TrimSpace(email.To) == "" {
		return fmt.Errorf("recipient address is empty")
	}

	subject := "Daily reflection: " + email.Title
	textBody := buildReflectionText(email)
	htmlBody, err := buildReflectionHTML(email)
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}

	msg, err := buildMessage(m.cfg.From, email.To, subject, textBody, htmlBody)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	return m.sendSMTP(ctx, email.To, msg)
}

func buildReflectionText(email ReflectionEmail) string {
	var b strings.Builder
	b.WriteString(email.Quote)
	b.WriteString("\n\n")
	b.WriteString("- " + email.Title)
	if email.Author != "" {
		b.WriteString(", " + email.Author)
	}
	b.WriteString("\n")
	if email.Note != "" {
		b.WriteString("\nYour note:\n")
		b.WriteString(email.Note)
		b.WriteString("\n")
	}
	if email.LogicalDate != "" {
		b.WriteString("\n" + email.LogicalDate + "\n")
	}
	return b.String()
}

// buildReflectionHTML renders the message body. The quote is escaped as plain
// text; the note is treated as markdown and rendered through goldmark.
func buildReflectionHTML(email ReflectionEmail) (string, error) {
	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString("<blockquote><p>" + html.EscapeString(email.Quote) + "</p></blockquote>")
	b.WriteString("<p>&mdash; <strong>" + html.EscapeString(email.Title) + "</strong>")
	if email.Author != "" {
		b.WriteString(", " + html.EscapeString(email.Author))
	}
	b.WriteString("</p>")
	if email.Note != "" {
		var note bytes.Buffer
		if err := goldmark.Convert([]byte(email.Note), &note); err != nil {
			return "", err
		}
		b.WriteString("<hr><p>Your note:</p>")
		b.Write(note.Bytes())
	}
	if email.LogicalDate != "" {
		b.WriteString("<p><small>" + html.EscapeString(email.LogicalDate) + "</small></p>")
	}
	b.WriteString("</body></html>")
	return b.String(), nil
}

// buildMessage assembles a multipart/alternative MIME message with
// quoted-printable text and HTML parts.
func buildMessage(from, to, subject, textBody, htmlBody string) ([]byte, error) {
	var buf bytes.Buffer
	boundary := fmt.Sprintf("b%d", time.Now().UnixNano())

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
	if err := writeQuotedPrintable(&buf, textBody); err != nil {
		return nil, err
	}
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
	if err := writeQuotedPrintable(&buf, htmlBody); err != nil {
		return nil, err
	}
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes(), nil
}

func writeQuotedPrintable(buf *bytes.Buffer, body string) error {
	w := quotedprintable.NewWriter(buf)
	if _, err := w.Write([]byte(body)); err != nil {
		return err
	}
	return w.Close()
}

// sendSMTP dials the server, upgrades to TLS with STARTTLS, authenticates
// when credentials are configured, and submits the message.
func (m *Mailer) sendSMTP(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsCfg := &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: m.cfg.Host,
		}
		if err := client.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return client.Quit()
}
