package mail

import (
	"fmt"
	"net/smtp"

	"github.com/gofiber/fiber/v2/log"

	"github.com/greenfoldhq/greenfold/internal/pkg/env"
)

// buildMessage assembles the RFC 5322 message. Template output is HTML, so
// the body is declared as such.
func buildMessage(sender, to, subject, body string) []byte {
	return []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		sender, to, subject, body,
	))
}

// SendMail delivers a message through the configured SMTP relay. Without
// SMTP_HOST the message is logged and dropped, so local environments work
// without a mail server.
func SendMail(to, subject, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	if host == "" {
		log.Infof("mail delivery disabled, would send %q to %s", subject, to)
		return nil
	}

	port := env.GetEnv("SMTP_PORT", "587")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "no-reply@greenfold.local")

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	if err := smtp.SendMail(host+":"+port, auth, sender, []string{to}, buildMessage(sender, to, subject, body)); err != nil {
		log.Errorf("smtp send to %s failed: %v", to, err)
		return err
	}
	return nil
}
