package mailer

import (
	"fmt"
	"log"
	"net/smtp"
	"os"
)

// Mailer sends the email verification message. Delivery failures are
// non-fatal for signup; the handler logs and moves on.
type Mailer interface {
	SendVerification(to, username, verificationURL string) error
}

// FromEnv returns an SMTP mailer when SMTP_HOST is configured and a
// log-only mailer otherwise, so local development works without a mail
// server.
func FromEnv() Mailer {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return LogMailer{}
	}
	port := os.Getenv("SMTP_PORT")
	if port == "" {
		port = "587"
	}
	return &SMTPMailer{
		addr:     host + ":" + port,
		host:     host,
		username: os.Getenv("SMTP_USERNAME"),
		password: os.Getenv("SMTP_PASSWORD"),
		from:     os.Getenv("SMTP_FROM"),
	}
}

type SMTPMailer struct {
	addr     string
	host     string
	username string
	password string
	from     string
}

func (m *SMTPMailer) SendVerification(to, username, verificationURL string) error {
	body := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Verify your email address\r\n\r\n"+
			"Hi %s,\r\n\r\n"+
			"Please click the link below to verify your email address:\r\n%s\r\n\r\n"+
			"This link will expire in 24 hours.\r\n\r\n"+
			"Best regards,\r\nDocument Exchange Team\r\n",
		m.from, to, username, verificationURL,
	)

	var a smtp.Auth
	if m.username != "" {
		a = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if err := smtp.SendMail(m.addr, a, m.from, []string{to}, []byte(body)); err != nil {
		return fmt.Errorf("send verification mail to %s: %w", to, err)
	}
	return nil
}

// LogMailer just logs the verification URL.
type LogMailer struct{}

func (LogMailer) SendVerification(to, username, verificationURL string) error {
	log.Printf("verification mail for %s (%s): %s", username, to, verificationURL)
	return nil
}
