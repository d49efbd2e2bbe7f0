package email

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileSender implements the Sender interface by appending email content to a
// log file. Typically added as a secondary sender behind the primary one.
type FileSender struct {
	filePath string
}

// NewFileSender creates a new FileSender, ensuring the directory for the log
// file exists.
func NewFileSender(filePath string) (Sender, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("email log file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for email log file '%s': %w", dir, err)
	}

	return &FileSender{filePath: filePath}, nil
}

// Send writes the email to the configured file.
func (s *FileSender) Send(ctx context.Context, msg Message) (string, error) {
	messageID := "file-" + uuid.NewString()
	timestamp := time.Now().Format(time.RFC3339Nano)

	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("FileSender: Failed to open log file '%s': %v", s.filePath, err)
		return "", fmt.Errorf("failed to open email log file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("--- Email Logged at %s (To: %v, Ref: %s, Subject: %s) ---\n", timestamp, msg.To, msg.Ref, msg.Subject))
	sb.WriteString(msg.HTML)
	sb.WriteString("\n--- End Logged Email ---\n\n")

	if _, err := file.WriteString(sb.String()); err != nil {
		log.Printf("FileSender: Failed to write to log file '%s': %v", s.filePath, err)
		return "", fmt.Errorf("failed to write email to log file: %w", err)
	}

	log.Printf("FileSender: Email to %v (Subject: %s) logged to %s", msg.To, msg.Subject, s.filePath)
	return messageID, nil
}
