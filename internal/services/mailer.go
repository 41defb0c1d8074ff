package services

import (
	"fmt"
	"net/smtp"
	"os"
)

// SendEmail delivers a plain-text email through the SMTP server configured
// via SMTP_SERVER / SMTP_PORT / SMTP_USERNAME / SMTP_PASSWORD. When SMTP is
// not configured it reports (false, nil) and does nothing; notification
// delivery never depends on email succeeding.
func SendEmail(to string, subject string, body string) (bool, error) {
	server := os.Getenv("SMTP_SERVER")
	username := os.Getenv("SMTP_USERNAME")
	password := os.Getenv("SMTP_PASSWORD")

	if server == "" || username == "" || password == "" {
		return false, nil
	}

	port := os.Getenv("SMTP_PORT")

	if port == "" {
		port = "587"
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		username, to, subject, body)

	auth := smtp.PlainAuth("", username, password, server)

	if err := smtp.SendMail(server+":"+port, auth, username, []string{to}, []byte(msg)); err != nil {
		return false, fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	return true, nil
}
