package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"dontcare/internal/logger"
)

// Mailer sends transactional email
type Mailer interface {
	Send(to, subject, body string) error
}

// Config holds SMTP settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through a plain-auth SMTP relay
type SMTPMailer struct {
	config Config
}

// NewSMTPMailer creates an SMTP mailer
func NewSMTPMailer(config Config) *SMTPMailer {
	return &SMTPMailer{config: config}
}

// Send delivers a single text message
func (m *SMTPMailer) Send(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)

	msg := strings.Join([]string{
		"From: " + m.config.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	if err := smtp.SendMail(addr, auth, m.config.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}

	logger.WithField("to", to).Info("Email sent")
	return nil
}

// OTPSubject and OTPBody format the verification mail
func OTPSubject(purpose string) string {
	if purpose == "password_reset" {
		return "Password reset verification code"
	}
	return "Signup verification code"
}

// OTPBody renders the verification mail body
func OTPBody(code string) string {
	return fmt.Sprintf("Your verification code is %s.\nIt expires in 10 minutes.", code)
}
