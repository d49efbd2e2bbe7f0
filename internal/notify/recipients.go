package notify

import (
	"context"
	"log"
	"strings"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/models"
)

// UserDirectory is the identity collaborator the resolver expands admin and
// all-user policies through. Implementations must isolate per-user lookup
// failures: a user whose email cannot be resolved is dropped, not fatal.
type UserDirectory interface {
	ListAdminEmails(ctx context.Context) ([]string, error)
	ListActiveUserEmails(ctx context.Context) ([]string, error)
}

// Resolver turns a recipient policy plus event payload into a concrete,
// de-duplicated list of destination addresses.
type Resolver struct {
	users UserDirectory
}

// NewResolver creates a recipient resolver backed by the given directory.
func NewResolver(users UserDirectory) *Resolver {
	return &Resolver{users: users}
}

// Resolve expands the recipient config into addresses. An unknown policy type
// or an unresolvable submitter yields an empty list, never an error; the
// dispatcher treats an empty set as "skip this trigger".
func (r *Resolver) Resolve(ctx context.Context, cfg models.RecipientConfig, eventData map[string]interface{}) []string {
	switch cfg.Type {
	case models.RecipientSubmitter:
		return dedupeEmails(submitterEmails(eventData))

	case models.RecipientAllAdmins:
		emails, err := r.users.ListAdminEmails(ctx)
		if err != nil {
			log.Printf("Recipient resolution (all_admins) failed: %v", err)
			return nil
		}
		return dedupeEmails(emails)

	case models.RecipientAllUsers:
		emails, err := r.users.ListActiveUserEmails(ctx)
		if err != nil {
			log.Printf("Recipient resolution (all_users) failed: %v", err)
			return nil
		}
		return dedupeEmails(emails)

	case models.RecipientSpecific:
		return dedupeEmails(cfg.Emails)

	default:
		log.Printf("Unknown recipient config type %q; resolving to no recipients", cfg.Type)
		return nil
	}
}

// submitterEmails extracts the submitter address from the event payload,
// preferring userEmail and falling back to commenterEmail.
func submitterEmails(eventData map[string]interface{}) []string {
	for _, key := range []string{"userEmail", "commenterEmail"} {
		if v, ok := eventData[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return []string{s}
			}
		}
	}
	return nil
}

// dedupeEmails case-normalizes addresses and removes duplicates while
// preserving first-appearance order. Blank entries are dropped.
func dedupeEmails(emails []string) []string {
	seen := make(map[string]bool, len(emails))
	var out []string
	for _, e := range emails {
		normalized := strings.ToLower(strings.TrimSpace(e))
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
	}
	return out
}
