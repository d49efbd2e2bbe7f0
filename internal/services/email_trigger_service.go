package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/db"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/models"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

// IEmailTriggerService defines the interface for email trigger operations.
type IEmailTriggerService interface {
	FindTriggerByID(ctx context.Context, id utils.SixID) (*models.EmailTrigger, error)
	ListTriggers(ctx context.Context) ([]models.EmailTrigger, error)
	ListEnabledByEvent(ctx context.Context, eventType models.EventType) ([]models.TriggerWithTemplate, error)
	FindWithTemplate(ctx context.Context, id utils.SixID) (*models.TriggerWithTemplate, error)
	CreateTrigger(ctx context.Context, trigger *models.EmailTrigger) error
	UpdateTrigger(ctx context.Context, id utils.SixID, updates map[string]interface{}) (*models.EmailTrigger, error)
	DeleteTrigger(ctx context.Context, id utils.SixID) error
	CountOtherEnabled(ctx context.Context, eventType models.EventType, excludeID utils.SixID) (int64, error)
}

const emailTriggersCollection = "email_triggers"

// EmailTriggerService handles operations related to email triggers.
type EmailTriggerService struct {
	db              *mongo.Database
	templateService IEmailTemplateService
}

// NewEmailTriggerService creates a new instance of EmailTriggerService.
func NewEmailTriggerService(database *mongo.Database, templateService IEmailTemplateService) *EmailTriggerService {
	return &EmailTriggerService{
		db:              database,
		templateService: templateService,
	}
}

// FindTriggerByID retrieves a trigger by its id.
func (s *EmailTriggerService) FindTriggerByID(ctx context.Context, id utils.SixID) (*models.EmailTrigger, error) {
	collection := s.db.Collection(emailTriggersCollection)

	var trigger models.EmailTrigger
	err := collection.FindOne(ctx, bson.M{"_id": id}).Decode(&trigger)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("trigger not found: %s", id)
		}
		return nil, fmt.Errorf("error retrieving trigger: %w", err)
	}

	return &trigger, nil
}

// ListTriggers returns all triggers sorted by event type.
func (s *EmailTriggerService) ListTriggers(ctx context.Context) ([]models.EmailTrigger, error) {
	collection := s.db.Collection(emailTriggersCollection)

	opts := options.Find().SetSort(bson.D{{Key: "event_type", Value: 1}, {Key: "created_at", Value: 1}})
	cursor, err := collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing triggers: %w", err)
	}
	defer cursor.Close(ctx)

	var triggers []models.EmailTrigger
	if err := cursor.All(ctx, &triggers); err != nil {
		return nil, fmt.Errorf("error decoding triggers: %w", err)
	}
	return triggers, nil
}

// ListEnabledByEvent returns the enabled triggers for an event type, each
// joined with its template. A trigger whose template has been deleted is
// still returned, with a nil Template, so the dispatcher can report the skip.
func (s *EmailTriggerService) ListEnabledByEvent(ctx context.Context, eventType models.EventType) ([]models.TriggerWithTemplate, error) {
	collection := s.db.Collection(emailTriggersCollection)

	cursor, err := collection.Find(ctx, bson.M{"event_type": eventType, "is_enabled": true})
	if err != nil {
		return nil, fmt.Errorf("error querying triggers for event %s: %w", eventType, err)
	}
	defer cursor.Close(ctx)

	var triggers []models.EmailTrigger
	if err := cursor.All(ctx, &triggers); err != nil {
		return nil, fmt.Errorf("error decoding triggers for event %s: %w", eventType, err)
	}

	result := make([]models.TriggerWithTemplate, 0, len(triggers))
	for _, trigger := range triggers {
		joined := models.TriggerWithTemplate{Trigger: trigger}
		template, err := s.templateService.FindTemplateByID(ctx, trigger.TemplateID)
		if err != nil {
			log.Printf("Trigger %s references missing template %s: %v", trigger.ID, trigger.TemplateID, err)
		} else {
			joined.Template = template
		}
		result = append(result, joined)
	}

	return result, nil
}

// FindWithTemplate retrieves a single trigger joined with its template.
func (s *EmailTriggerService) FindWithTemplate(ctx context.Context, id utils.SixID) (*models.TriggerWithTemplate, error) {
	trigger, err := s.FindTriggerByID(ctx, id)
	if err != nil {
		return nil, err
	}

	joined := &models.TriggerWithTemplate{Trigger: *trigger}
	template, err := s.templateService.FindTemplateByID(ctx, trigger.TemplateID)
	if err != nil {
		log.Printf("Trigger %s references missing template %s: %v", trigger.ID, trigger.TemplateID, err)
	} else {
		joined.Template = template
	}
	return joined, nil
}

// CreateTrigger validates and inserts a new trigger. The referenced template
// must exist; the recipient configuration must be well formed.
func (s *EmailTriggerService) CreateTrigger(ctx context.Context, trigger *models.EmailTrigger) error {
	if !models.IsKnownEventType(trigger.EventType) {
		return fmt.Errorf("unknown event type: %s", trigger.EventType)
	}
	if err := trigger.RecipientConfig.Validate(); err != nil {
		return err
	}
	if trigger.DelayMinutes < 0 {
		return fmt.Errorf("delay_minutes cannot be negative")
	}
	if _, err := s.templateService.FindTemplateByID(ctx, trigger.TemplateID); err != nil {
		return fmt.Errorf("trigger references unknown template: %w", err)
	}

	now := time.Now().UTC()
	trigger.CreatedAt = now
	trigger.UpdatedAt = now

	collection := s.db.Collection(emailTriggersCollection)
	return db.Try(func() error {
		trigger.GenID()
		_, err := collection.InsertOne(ctx, trigger)
		return err
	})
}

// UpdateTrigger applies a partial update and returns the updated trigger.
func (s *EmailTriggerService) UpdateTrigger(ctx context.Context, id utils.SixID, updates map[string]interface{}) (*models.EmailTrigger, error) {
	collection := s.db.Collection(emailTriggersCollection)

	setFields := bson.M{"updated_at": time.Now().UTC()}

	if val, ok := updates["event_type"]; ok {
		eventType, isString := val.(string)
		if !isString || !models.IsKnownEventType(models.EventType(eventType)) {
			return nil, fmt.Errorf("unknown event type: %v", val)
		}
		setFields["event_type"] = eventType
	}
	if val, ok := updates["template_id"]; ok {
		templateID, err := utils.ParseSixID(fmt.Sprintf("%v", val))
		if err != nil {
			return nil, fmt.Errorf("invalid template_id: %w", err)
		}
		if _, err := s.templateService.FindTemplateByID(ctx, templateID); err != nil {
			return nil, fmt.Errorf("trigger references unknown template: %w", err)
		}
		setFields["template_id"] = templateID
	}
	if val, ok := updates["recipient_config"]; ok {
		recipients, isConfig := val.(models.RecipientConfig)
		if !isConfig {
			return nil, fmt.Errorf("invalid recipients configuration")
		}
		if err := recipients.Validate(); err != nil {
			return nil, err
		}
		setFields["recipient_config"] = recipients
	}
	if val, ok := updates["is_enabled"]; ok {
		setFields["is_enabled"] = val
	}
	if val, ok := updates["delay_minutes"]; ok {
		minutes, isInt := val.(int)
		if !isInt || minutes < 0 {
			return nil, fmt.Errorf("delay_minutes must be a non-negative integer")
		}
		setFields["delay_minutes"] = minutes
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.EmailTrigger
	err := collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": setFields}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("trigger not found: %s", id)
		}
		return nil, fmt.Errorf("error updating trigger: %w", err)
	}

	return &updated, nil
}

// DeleteTrigger removes a trigger.
func (s *EmailTriggerService) DeleteTrigger(ctx context.Context, id utils.SixID) error {
	collection := s.db.Collection(emailTriggersCollection)

	result, err := collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("error deleting trigger: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("trigger not found: %s", id)
	}
	return nil
}

// CountOtherEnabled counts enabled triggers for an event type other than the
// given one. Used to warn admins when saving a trigger would make the event
// fan out through multiple triggers.
func (s *EmailTriggerService) CountOtherEnabled(ctx context.Context, eventType models.EventType, excludeID utils.SixID) (int64, error) {
	collection := s.db.Collection(emailTriggersCollection)

	filter := bson.M{
		"event_type": eventType,
		"is_enabled": true,
		"_id":        bson.M{"$ne": excludeID},
	}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("error counting triggers for event %s: %w", eventType, err)
	}
	return count, nil
}
