package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/BotPilotHQ/botpilot/internal/pkg/env"
)

// SendMail sends an email via SMTP
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// SendActivationMail sends the account activation link to a new user.
func SendActivationMail(to, userName, activationToken string) error {
	base := env.GetEnv("PUBLIC_DOMAIN", "http://localhost:"+env.GetEnv("APP_PORT", "4000"))
	link := fmt.Sprintf("%s/activate?token=%s", base, activationToken)

	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>welcome to BotPilot! Please confirm your email address to activate your account:</p>"+
			"<p><a href=\"%s\">Activate account</a></p>"+
			"<p>If you did not sign up, you can ignore this email.</p>",
		userName, link,
	)
	return SendMail(to, "Activate your BotPilot account", body)
}

// SendCrashNotification informs a bot owner that their bot entered the
// error state. Sent only when the owner enabled crash notifications.
func SendCrashNotification(to, userName, botName, lastError string) error {
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>your bot <strong>%s</strong> stopped with an error:</p><pre>%s</pre>"+
			"<p>You can inspect the logs on your dashboard.</p>",
		userName, botName, lastError,
	)
	return SendMail(to, fmt.Sprintf("Your bot %s crashed", botName), body)
}
