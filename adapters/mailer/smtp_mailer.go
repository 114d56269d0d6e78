package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"sync"

	"github.com/KARTIKEY-KATYAL/EZ/ports"
)

var verifyTemplate = template.Must(template.New("verify").Parse(`<html>
<body>
  <h2>Welcome to the Secure File Sharing System</h2>
  <p>Hello {{.Username}},</p>
  <p>Thank you for signing up! Please click the link below to verify your email address:</p>
  <p><a href="{{.VerifyURL}}">Verify Email</a></p>
  <p>If you didn't sign up for this account, please ignore this email.</p>
  <p>Best regards,<br>File Sharing Team</p>
</body>
</html>`))

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer implements the Mailer interface over plain SMTP with
// STARTTLS-capable auth.
type SMTPMailer struct {
	cfg Config
}

// NewSMTPMailer creates a new SMTP mailer.
func NewSMTPMailer(cfg Config) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// SendVerification sends the address-verification message.
func (m *SMTPMailer) SendVerification(ctx context.Context, to, username, verifyURL string) error {
	var body bytes.Buffer
	err := verifyTemplate.Execute(&body, struct {
		Username  string
		VerifyURL string
	}{Username: username, VerifyURL: verifyURL})
	if err != nil {
		return fmt.Errorf("failed to render verification email: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: Verify Your Email - Secure File Sharing\r\n")
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	msg.Write(body.Bytes())

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}

var _ ports.Mailer = (*SMTPMailer)(nil)

// TestMessage is one delivery captured by the TestMailer.
type TestMessage struct {
	To        string
	Username  string
	VerifyURL string
}

// TestMailer records deliveries instead of sending them. Intended for tests.
type TestMailer struct {
	mu       sync.Mutex
	messages []TestMessage
}

// NewTestMailer creates a new capturing mailer.
func NewTestMailer() *TestMailer {
	return &TestMailer{}
}

// SendVerification records the message.
func (m *TestMailer) SendVerification(ctx context.Context, to, username, verifyURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, TestMessage{To: to, Username: username, VerifyURL: verifyURL})
	return nil
}

// Messages returns a copy of everything sent so far.
func (m *TestMailer) Messages() []TestMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TestMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

var _ ports.Mailer = (*TestMailer)(nil)
