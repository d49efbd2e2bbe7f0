package email

import (
	"context"
	"fmt"
	"strings"
)

// CompositeSender implements the Sender interface and delegates sending to
// multiple Senders. The first sender is the primary one; its message id is
// the one returned.
type CompositeSender struct {
	senders []Sender
}

// NewCompositeSender creates a new CompositeSender.
func NewCompositeSender(senders ...Sender) *CompositeSender {
	return &CompositeSender{senders: senders}
}

// AddSender adds a sender to the composite sender's list.
func (cs *CompositeSender) AddSender(sender Sender) {
	if sender != nil {
		cs.senders = append(cs.senders, sender)
	}
}

// Send iterates through all registered senders and calls their Send method.
// It collects all errors encountered and returns them as a single error.
func (cs *CompositeSender) Send(ctx context.Context, msg Message) (string, error) {
	if len(cs.senders) == 0 {
		return "", fmt.Errorf("no senders configured in CompositeSender")
	}

	var primaryID string
	var allErrors []string
	for i, sender := range cs.senders {
		id, err := sender.Send(ctx, msg)
		if err != nil {
			allErrors = append(allErrors, err.Error())
			continue
		}
		if i == 0 || primaryID == "" {
			primaryID = id
		}
	}

	if len(allErrors) > 0 {
		return primaryID, fmt.Errorf("composite email send failed: [ %s ]", strings.Join(allErrors, "; "))
	}
	return primaryID, nil
}
