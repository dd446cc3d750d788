package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/eencloud/goeen/log"
)

// EmailSettings configures the SMTP sender. Empty Host disables email.
type EmailSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	AdminTo  []string
}

// EmailSender delivers plain-text notification mail over SMTP. The pack has
// no mail library, so this stays on net/smtp.
type EmailSender struct {
	settings EmailSettings
	logger   *log.Logger

	// Swappable for tests
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailSender(settings EmailSettings, logger *log.Logger) *EmailSender {
	return &EmailSender{
		settings: settings,
		logger:   logger,
		sendMail: smtp.SendMail,
	}
}

// Enabled reports whether SMTP is configured.
func (e *EmailSender) Enabled() bool {
	return e.settings.Host != ""
}

// Send delivers one message to the admin recipients.
func (e *EmailSender) Send(subject, body string) error {
	if !e.Enabled() {
		return nil
	}
	if len(e.settings.AdminTo) == 0 {
		return fmt.Errorf("no admin recipients configured")
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", e.settings.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(e.settings.AdminTo, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", e.settings.Host, e.settings.Port)
	var auth smtp.Auth
	if e.settings.Username != "" {
		auth = smtp.PlainAuth("", e.settings.Username, e.settings.Password, e.settings.Host)
	}

	if err := e.sendMail(addr, auth, e.settings.From, e.settings.AdminTo, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	e.logger.Debugf("Email sent: %s", subject)
	return nil
}
