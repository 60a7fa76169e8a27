package alerts

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/tradefin-io/tradefingo/internal/config"
	"github.com/tradefin-io/tradefingo/internal/models"
)

// EmailNotifier sends alert emails to the configured admin recipients over
// SMTP with STARTTLS.
type EmailNotifier struct {
	cfg config.AlertConfig
}

// NewEmailNotifier creates an email notifier. Misconfiguration is reported
// once at startup; Notify then degrades to a log line.
func NewEmailNotifier(cfg config.AlertConfig) *EmailNotifier {
	if cfg.Enabled && cfg.SMTPUser == "" {
		log.Println("⚠️ Email alerts enabled but SMTP_USER is not configured; alerts will be logged only")
	}
	return &EmailNotifier{cfg: cfg}
}

// Notify sends one alert email. Returns an error only for actual SMTP
// failures; a disabled or unconfigured notifier is a silent no-op.
func (n *EmailNotifier) Notify(alert *models.IntegrityAlert) error {
	if !n.cfg.Enabled {
		return nil
	}
	if n.cfg.SMTPUser == "" || len(n.cfg.AdminEmails) == 0 {
		log.Printf("📭 Alert %s logged only (SMTP or recipients not configured)", alert.ID)
		return nil
	}

	subject := fmt.Sprintf("🚨 Trade Finance Integrity Alert: %s (%s)", alert.AlertType, alert.Severity)
	body := fmt.Sprintf(
		"Document: %s\r\nType: %s\r\nSeverity: %s\r\nDetail:\r\n%s\r\n",
		alert.DocumentID, alert.AlertType, alert.Severity, alert.Detail,
	)

	msg := strings.Join([]string{
		"From: " + n.cfg.EmailFrom,
		"To: " + strings.Join(n.cfg.AdminEmails, ", "),
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	addr := n.cfg.SMTPHost + ":" + n.cfg.SMTPPort
	auth := smtp.PlainAuth("", n.cfg.SMTPUser, n.cfg.SMTPPass, n.cfg.SMTPHost)
	if err := smtp.SendMail(addr, auth, n.cfg.EmailFrom, n.cfg.AdminEmails, []byte(msg)); err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}
	log.Printf("✅ Alert email sent to %s", strings.Join(n.cfg.AdminEmails, ", "))
	return nil
}
