package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/email"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/models"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

// Envelope is the (eventType, eventData) pair a business action hands to the
// dispatcher. It is constructed transiently and never persisted.
type Envelope struct {
	EventType models.EventType       `json:"eventType" binding:"required"`
	EventData map[string]interface{} `json:"eventData"`
}

// DeliveryResult is the per-(trigger, recipient) outcome. Failures are data,
// not errors: a failed recipient never aborts its siblings.
type DeliveryResult struct {
	Recipient string `json:"recipient"`
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TriggerSource supplies enabled triggers joined with their templates. A
// trigger whose template has been deleted is returned with a nil Template,
// never as an error.
type TriggerSource interface {
	ListEnabledByEvent(ctx context.Context, eventType models.EventType) ([]models.TriggerWithTemplate, error)
	FindWithTemplate(ctx context.Context, triggerID utils.SixID) (*models.TriggerWithTemplate, error)
}

// TemplateSource supplies templates for the manual test-send path.
type TemplateSource interface {
	FindTemplateByID(ctx context.Context, id utils.SixID) (*models.EmailTemplate, error)
}

// DelayedEnqueuer schedules a single-trigger dispatch to run after a delay.
// Implemented by the background task layer.
type DelayedEnqueuer interface {
	EnqueueTriggerDispatch(ctx context.Context, triggerID utils.SixID, eventType models.EventType, eventData map[string]interface{}, delay time.Duration) error
}

// Dispatcher drives the event notification pipeline: trigger lookup, recipient
// resolution, payload normalization, rendering and delivery, with failures
// isolated per trigger and per recipient. It is the failure boundary: business
// actions above it never roll back on notification failure.
type Dispatcher struct {
	triggers  TriggerSource
	templates TemplateSource
	resolver  *Resolver
	sender    email.Sender
	settings  SettingsProvider
	enqueuer  DelayedEnqueuer
}

// NewDispatcher creates a dispatcher. The delayed enqueuer is wired separately
// via SetDelayedEnqueuer because the task layer depends on the dispatcher.
func NewDispatcher(triggers TriggerSource, templates TemplateSource, resolver *Resolver, sender email.Sender, settings SettingsProvider) *Dispatcher {
	return &Dispatcher{
		triggers:  triggers,
		templates: templates,
		resolver:  resolver,
		sender:    sender,
		settings:  settings,
	}
}

// SetDelayedEnqueuer wires the background task client. Without one, triggers
// with a delay are processed inline.
func (d *Dispatcher) SetDelayedEnqueuer(e DelayedEnqueuer) {
	d.enqueuer = e
}

// Dispatch runs the full pipeline for one event. The returned error is
// reserved for infrastructure failure (trigger store unreachable); everything
// below that degrades to per-recipient results. Zero matching triggers is
// success with an empty result list.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType models.EventType, eventData map[string]interface{}) ([]DeliveryResult, error) {
	settings := d.settings.NotifySettings()
	if !settings.Enabled {
		log.Printf("Notifications disabled; skipping dispatch for event %q", eventType)
		return []DeliveryResult{}, nil
	}

	joined, err := d.triggers.ListEnabledByEvent(ctx, eventType)
	if err != nil {
		return nil, fmt.Errorf("failed to load triggers for event %q: %w", eventType, err)
	}

	results := []DeliveryResult{}
	for _, twt := range joined {
		if d.enqueuer != nil && twt.Trigger.DelayMinutes > 0 {
			delay := time.Duration(twt.Trigger.DelayMinutes) * time.Minute
			if err := d.enqueuer.EnqueueTriggerDispatch(ctx, twt.Trigger.ID, eventType, eventData, delay); err != nil {
				// Deferral failure falls back to inline processing so the
				// notification still goes out.
				log.Printf("Failed to defer trigger %s by %v (%v); dispatching inline", twt.Trigger.ID, delay, err)
				results = append(results, d.runTrigger(ctx, twt, eventType, eventData, settings)...)
			} else {
				log.Printf("Deferred trigger %s for event %q by %v", twt.Trigger.ID, eventType, delay)
			}
			continue
		}
		results = append(results, d.runTrigger(ctx, twt, eventType, eventData, settings)...)
	}

	return results, nil
}

// DispatchTrigger runs the pipeline for a single trigger, used by the
// background worker when a deferred dispatch comes due. A trigger that has
// been deleted or disabled in the meantime is a no-op.
func (d *Dispatcher) DispatchTrigger(ctx context.Context, triggerID utils.SixID, eventType models.EventType, eventData map[string]interface{}) ([]DeliveryResult, error) {
	settings := d.settings.NotifySettings()
	if !settings.Enabled {
		log.Printf("Notifications disabled; skipping deferred trigger %s", triggerID)
		return []DeliveryResult{}, nil
	}

	twt, err := d.triggers.FindWithTemplate(ctx, triggerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trigger %s: %w", triggerID, err)
	}
	if twt == nil || !twt.Trigger.IsEnabled {
		log.Printf("Deferred trigger %s no longer exists or is disabled; skipping", triggerID)
		return []DeliveryResult{}, nil
	}

	return d.runTrigger(ctx, *twt, eventType, eventData, settings), nil
}

// runTrigger executes steps b-e of the pipeline for one trigger. A missing or
// inactive template and an empty recipient set are normal no-ops, logged at
// low severity.
func (d *Dispatcher) runTrigger(ctx context.Context, twt models.TriggerWithTemplate, eventType models.EventType, eventData map[string]interface{}, settings Settings) []DeliveryResult {
	trigger := twt.Trigger

	if twt.Template == nil {
		log.Printf("Trigger %s for event %q references a missing template; skipping", trigger.ID, eventType)
		return nil
	}
	if !twt.Template.IsActive {
		log.Printf("Trigger %s for event %q references inactive template %q; skipping", trigger.ID, eventType, twt.Template.Name)
		return nil
	}

	recipients := d.resolver.Resolve(ctx, trigger.RecipientConfig, eventData)
	if len(recipients) == 0 {
		log.Printf("Trigger %s for event %q resolved no recipients; skipping", trigger.ID, eventType)
		return nil
	}

	vars := Normalize(eventType, eventData, settings)
	subject := Render(twt.Template.SubjectTemplate, vars)
	body := Render(twt.Template.BodyTemplate, vars)

	results := make([]DeliveryResult, 0, len(recipients))
	for _, recipient := range recipients {
		results = append(results, d.deliver(ctx, recipient, subject, body, string(eventType), settings))
	}
	return results
}

// deliver sends to one recipient, converting any failure into a recorded
// result instead of an error.
func (d *Dispatcher) deliver(ctx context.Context, recipient, subject, body, ref string, settings Settings) DeliveryResult {
	messageID, err := d.sender.Send(ctx, email.Message{
		From:    settings.FromAddress,
		To:      []string{recipient},
		Subject: subject,
		HTML:    body,
		Ref:     ref,
	})
	if err != nil {
		log.Printf("Delivery to %s failed: %v", recipient, err)
		return DeliveryResult{Recipient: recipient, Success: false, Error: err.Error()}
	}
	return DeliveryResult{Recipient: recipient, Success: true, MessageID: messageID}
}

// SendTest is the administrator-invoked path: it targets operator-chosen
// addresses directly with one chosen template, bypassing the trigger registry
// and the recipient resolver. Variables come from the template's preview data
// overlaid with any custom data. Inactive templates may be tested.
func (d *Dispatcher) SendTest(ctx context.Context, templateID utils.SixID, recipients []string, customData map[string]string) ([]DeliveryResult, error) {
	settings := d.settings.NotifySettings()

	tmpl, err := d.templates.FindTemplateByID(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", templateID, err)
	}

	targets := dedupeEmails(recipients)
	if len(targets) == 0 {
		return nil, fmt.Errorf("no recipients given for test send")
	}

	vars := map[string]string{
		"siteName": settings.SiteName,
		"siteUrl":  settings.BaseURL,
	}
	for k, v := range tmpl.PreviewData {
		vars[k] = v
	}
	for k, v := range customData {
		vars[k] = v
	}

	subject := Render(tmpl.SubjectTemplate, vars)
	body := Render(tmpl.BodyTemplate, vars)

	results := make([]DeliveryResult, 0, len(targets))
	for _, recipient := range targets {
		results = append(results, d.deliver(ctx, recipient, subject, body, "test", settings))
	}
	return results, nil
}
