package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/config"
)

// RedisSender implements the Sender interface by storing emails in Redis
// instead of transmitting them. Integration tests fetch the stored message
// back out through the service API.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
}

// NewRedisSender creates a new RedisSender.
func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{
		client: client,
		cfg:    cfg,
	}
}

// Send stores a JSON representation of the email under a per-recipient key.
// Each recipient gets its own key so per-recipient assertions work.
func (s *RedisSender) Send(ctx context.Context, msg Message) (string, error) {
	messageID := "mock-" + uuid.NewString()
	ref := msg.Ref
	if ref == "" {
		ref = "unknown"
	}

	from := msg.From
	if from == "" {
		from = s.cfg.SmtpFromAddress
	}

	emailData := map[string]interface{}{
		"to":         strings.Join(msg.To, ", "),
		"from":       from,
		"subject":    msg.Subject,
		"body":       msg.HTML,
		"message_id": messageID,
		"ref":        ref,
		"sent_at":    time.Now().UTC().Format(time.RFC3339Nano),
	}

	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal email data: %w", err)
	}

	ttl := 5 * time.Minute
	for _, to := range msg.To {
		key := fmt.Sprintf("mockemail:%s:%s", to, ref)
		if err := s.client.Set(ctx, key, jsonData, ttl).Err(); err != nil {
			return "", fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
		}
	}

	log.Printf("Mock email stored in Redis (TTL: %v, To: %s, Ref: %s, Subject: %s)", ttl, strings.Join(msg.To, ", "), ref, msg.Subject)
	return messageID, nil
}
