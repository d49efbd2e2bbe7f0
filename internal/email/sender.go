package email

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/config"
)

// Message is one outbound email. Ref is a diagnostic label (the event type or
// "test") carried through for mock senders and logs; it is not transmitted.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Ref     string
}

// Sender is the outbound delivery gateway. Send returns a provider message id
// on success.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// SMTPSender implements Sender using net/smtp.
type SMTPSender struct {
	cfg  *config.Config
	auth smtp.Auth
	addr string
}

// NewSMTPSender creates a new SMTPSender. When no SMTP host is configured it
// falls back to a logging sender so development setups still work.
func NewSMTPSender(cfg *config.Config) Sender {
	if cfg.SmtpHost == "" {
		log.Println("SMTP host not configured, using logging email sender.")
		return &LoggingSender{cfg: cfg}
	}

	auth := smtp.PlainAuth(
		"", // identity
		cfg.SmtpUsername,
		cfg.SmtpPassword,
		cfg.SmtpHost,
	)
	addr := fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort)

	return &SMTPSender{
		cfg:  cfg,
		auth: auth,
		addr: addr,
	}
}

// buildRawMessage assembles the full RFC 5322 message, headers included.
func buildRawMessage(msg Message, messageID string) []byte {
	from := msg.From
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", from))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	sb.WriteString(fmt.Sprintf("Message-ID: <%s>\r\n", messageID))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(msg.HTML)
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

// Send sends an email using SMTP and returns the generated message id.
func (s *SMTPSender) Send(ctx context.Context, msg Message) (string, error) {
	from := msg.From
	if from == "" {
		from = s.cfg.SmtpFromAddress
	}
	msg.From = from

	messageID := fmt.Sprintf("%s@%s", uuid.NewString(), s.cfg.SmtpHost)
	rawMessage := buildRawMessage(msg, messageID)

	if err := smtp.SendMail(s.addr, s.auth, from, msg.To, rawMessage); err != nil {
		log.Printf("Failed to send email via SMTP to %v: %v", msg.To, err)
		return "", fmt.Errorf("smtp error: %w", err)
	}
	log.Printf("Email sent successfully via SMTP to %v (Subject: %s)", msg.To, msg.Subject)
	return messageID, nil
}

// LoggingSender is a mock implementation that just logs email details.
// Useful for development or when SMTP isn't configured.
type LoggingSender struct {
	cfg *config.Config
}

// Send logs the email details instead of sending.
func (s *LoggingSender) Send(ctx context.Context, msg Message) (string, error) {
	messageID := "logged-" + uuid.NewString()
	log.Printf("--- Sending Email (Logged) ---")
	log.Printf("To: %v", msg.To)
	log.Printf("From: %s (configured: %s)", msg.From, s.cfg.SmtpFromAddress)
	log.Printf("Subject: %s", msg.Subject)
	log.Printf("Ref: %s", msg.Ref)
	log.Println("--- Body ---")
	log.Println(msg.HTML)
	log.Println("--- End Email ---")
	return messageID, nil
}
