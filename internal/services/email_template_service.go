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
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/notify"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

// ErrSystemTemplate is returned when an attempt is made to delete a system template.
var ErrSystemTemplate = errors.New("system templates cannot be deleted")

// builtinTemplates is the fixed set of system templates backfilled into the
// database on startup. Admins can edit them but not delete them.
var builtinTemplates = []models.EmailTemplate{
	{
		Name:            "user_registered_welcome",
		DisplayName:     "Welcome email",
		SubjectTemplate: "Welcome to {{siteName}}",
		BodyTemplate:    "<p>Hi {{userName}},</p><p>Thanks for joining {{siteName}}. You can now document defects and submit evidence at {{siteUrl}}.</p>",
		Category:        "account",
		IsActive:        true,
		IsSystem:        true,
		PreviewData:     map[string]string{"userName": "Alex Example"},
	},
	{
		Name:            "evidence_submitted_receipt",
		DisplayName:     "Evidence submission receipt",
		SubjectTemplate: "We received your evidence: {{evidenceTitle}}",
		BodyTemplate:    "<p>Hi {{userName}},</p><p>Your evidence \"{{evidenceTitle}}\" ({{evidenceCategory}}) was received on {{submittedAt}} and is awaiting review.</p>",
		Category:        "evidence",
		IsActive:        true,
		IsSystem:        true,
		PreviewData:     map[string]string{"userName": "Alex Example", "evidenceTitle": "Damp in hallway", "evidenceCategory": "damp"},
	},
	{
		Name:            "evidence_approved_submitter",
		DisplayName:     "Evidence approved",
		SubjectTemplate: "Your evidence has been published: {{evidenceTitle}}",
		BodyTemplate:    "<p>Hi {{userName}},</p><p>Your evidence \"{{evidenceTitle}}\" was approved and is now public: <a href=\"{{evidenceUrl}}\">{{evidenceUrl}}</a></p>",
		Category:        "evidence",
		IsActive:        true,
		IsSystem:        true,
		PreviewData:     map[string]string{"userName": "Alex Example", "evidenceTitle": "Damp in hallway"},
	},
	{
		Name:            "evidence_rejected_submitter",
		DisplayName:     "Evidence rejected",
		SubjectTemplate: "Re: {{evidenceTitle}}",
		BodyTemplate:    "<p>Hi {{userName}},</p><p>Your evidence \"{{evidenceTitle}}\" could not be published.</p><p>Reason: {{rejectionReason}}</p>",
		Category:        "evidence",
		IsActive:        true,
		IsSystem:        true,
		PreviewData:     map[string]string{"userName": "Alex Example", "evidenceTitle": "Damp in hallway", "rejectionReason": "Photo too blurry to assess"},
	},
	{
		Name:            "claim_submitted_admins",
		DisplayName:     "New claim (admin notice)",
		SubjectTemplate: "New claim submitted: {{claimSummary}}",
		BodyTemplate:    "<p>{{userName}} submitted a new claim on {{submittedAt}}:</p><p>{{claimSummary}}</p>",
		Category:        "claims",
		IsActive:        true,
		IsSystem:        true,
		PreviewData:     map[string]string{"userName": "Alex Example", "claimSummary": "Persistent damp across ground floor"},
	},
	{
		Name:            "glo_registered_confirmation",
		DisplayName:     "GLO registration confirmation",
		SubjectTemplate: "Your group litigation registration",
		BodyTemplate:    "<p>Hi {{userName}},</p><p>We recorded your interest in the group litigation for {{development}} on {{registeredAt}}. We will be in touch.</p>",
		Category:        "claims",
		IsActive:        true,
		IsSystem:        true,
		PreviewData:     map[string]string{"userName": "Alex Example", "development": "Meadow Rise"},
	},
	{
		Name:            "comment_submitted_admins",
		DisplayName:     "New comment (admin notice)",
		SubjectTemplate: "New comment on {{evidenceTitle}}",
		BodyTemplate:    "<p>{{commenterName}} commented on \"{{evidenceTitle}}\":</p><blockquote>{{commentBody}}</blockquote><p><a href=\"{{approveUrl}}\">Approve</a> | <a href=\"{{declineUrl}}\">Decline</a> | <a href=\"{{viewUrl}}\">View</a></p>",
		Category:        "moderation",
		IsActive:        true,
		IsSystem:        true,
		PreviewData:     map[string]string{"commenterName": "A visitor", "evidenceTitle": "Damp in hallway", "commentBody": "Same issue on our plot."},
	},
}

// IEmailTemplateService defines the interface for email template operations.
type IEmailTemplateService interface {
	FindTemplateByID(ctx context.Context, id utils.SixID) (*models.EmailTemplate, error)
	FindTemplateByName(ctx context.Context, name string) (*models.EmailTemplate, error)
	ListTemplates(ctx context.Context) ([]models.EmailTemplate, error)
	CreateTemplate(ctx context.Context, tmpl *models.EmailTemplate) error
	UpdateTemplate(ctx context.Context, id utils.SixID, updates map[string]interface{}) (*models.EmailTemplate, error)
	DeleteTemplate(ctx context.Context, id utils.SixID) error
	EnsureBuiltinTemplates(ctx context.Context) error
}

const emailTemplatesCollection = "email_templates"

// EmailTemplateService handles operations related to email templates.
type EmailTemplateService struct {
	db *mongo.Database
}

// NewEmailTemplateService creates a new instance of EmailTemplateService.
func NewEmailTemplateService(database *mongo.Database) *EmailTemplateService {
	return &EmailTemplateService{
		db: database,
	}
}

// FindTemplateByID retrieves a template by its id.
func (s *EmailTemplateService) FindTemplateByID(ctx context.Context, id utils.SixID) (*models.EmailTemplate, error) {
	collection := s.db.Collection(emailTemplatesCollection)

	var template models.EmailTemplate
	err := collection.FindOne(ctx, bson.M{"_id": id}).Decode(&template)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("template not found: %s", id)
		}
		return nil, fmt.Errorf("error retrieving template: %w", err)
	}

	return &template, nil
}

// FindTemplateByName retrieves a template by its stable slug.
func (s *EmailTemplateService) FindTemplateByName(ctx context.Context, name string) (*models.EmailTemplate, error) {
	collection := s.db.Collection(emailTemplatesCollection)

	var template models.EmailTemplate
	err := collection.FindOne(ctx, bson.M{"name": name}).Decode(&template)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("template not found: %s", name)
		}
		return nil, fmt.Errorf("error retrieving template: %w", err)
	}

	return &template, nil
}

// ListTemplates returns all templates, system ones first, then by name.
func (s *EmailTemplateService) ListTemplates(ctx context.Context) ([]models.EmailTemplate, error) {
	collection := s.db.Collection(emailTemplatesCollection)

	opts := options.Find().SetSort(bson.D{{Key: "is_system", Value: -1}, {Key: "name", Value: 1}})
	cursor, err := collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing templates: %w", err)
	}
	defer cursor.Close(ctx)

	var templates []models.EmailTemplate
	if err := cursor.All(ctx, &templates); err != nil {
		return nil, fmt.Errorf("error decoding templates: %w", err)
	}
	return templates, nil
}

// CreateTemplate inserts a new template. When the author hasn't declared a
// variable set, it is auto-detected from the placeholders present in the
// subject and body.
func (s *EmailTemplateService) CreateTemplate(ctx context.Context, tmpl *models.EmailTemplate) error {
	if tmpl.Name == "" {
		return fmt.Errorf("template name is required")
	}

	collection := s.db.Collection(emailTemplatesCollection)

	count, err := collection.CountDocuments(ctx, bson.M{"name": tmpl.Name})
	if err != nil {
		return fmt.Errorf("error checking template name uniqueness: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("template with name %q already exists", tmpl.Name)
	}

	now := time.Now().UTC()
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now
	if len(tmpl.Variables) == 0 {
		tmpl.Variables = notify.ExtractVariables(tmpl.SubjectTemplate, tmpl.BodyTemplate)
	}

	return db.Try(func() error {
		tmpl.GenID()
		_, err := collection.InsertOne(ctx, tmpl)
		return err
	})
}

// UpdateTemplate applies a partial update and returns the updated document.
// Subject/body changes re-detect the variable set unless the update supplies
// one explicitly.
func (s *EmailTemplateService) UpdateTemplate(ctx context.Context, id utils.SixID, updates map[string]interface{}) (*models.EmailTemplate, error) {
	collection := s.db.Collection(emailTemplatesCollection)

	setFields := bson.M{"updated_at": time.Now().UTC()}
	allowed := []string{"display_name", "subject_template", "body_template", "variables", "category", "is_active", "preview_data"}
	for _, key := range allowed {
		if val, ok := updates[key]; ok {
			setFields[key] = val
		}
	}

	_, subjectChanged := updates["subject_template"]
	_, bodyChanged := updates["body_template"]
	_, variablesGiven := updates["variables"]

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.EmailTemplate
	err := collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": setFields}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("template not found: %s", id)
		}
		return nil, fmt.Errorf("error updating template: %w", err)
	}

	if (subjectChanged || bodyChanged) && !variablesGiven {
		updated.Variables = notify.ExtractVariables(updated.SubjectTemplate, updated.BodyTemplate)
		if _, err := collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"variables": updated.Variables}}); err != nil {
			log.Printf("Warning: failed to persist re-detected variables for template %s: %v", id, err)
		}
	}

	return &updated, nil
}

// DeleteTemplate removes a template. System templates are protected; disable
// them via is_active instead.
func (s *EmailTemplateService) DeleteTemplate(ctx context.Context, id utils.SixID) error {
	tmpl, err := s.FindTemplateByID(ctx, id)
	if err != nil {
		return err
	}
	if tmpl.IsSystem {
		return ErrSystemTemplate
	}

	collection := s.db.Collection(emailTemplatesCollection)
	if _, err := collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("error deleting template: %w", err)
	}
	return nil
}

// EnsureBuiltinTemplates backfills the built-in system templates that are not
// yet present in the database. Existing documents are left untouched so admin
// edits survive restarts.
func (s *EmailTemplateService) EnsureBuiltinTemplates(ctx context.Context) error {
	collection := s.db.Collection(emailTemplatesCollection)

	for _, builtin := range builtinTemplates {
		count, err := collection.CountDocuments(ctx, bson.M{"name": builtin.Name})
		if err != nil {
			return fmt.Errorf("error checking builtin template %q: %w", builtin.Name, err)
		}
		if count > 0 {
			continue
		}

		tmpl := builtin
		now := time.Now().UTC()
		tmpl.CreatedAt = now
		tmpl.UpdatedAt = now
		tmpl.Variables = notify.ExtractVariables(tmpl.SubjectTemplate, tmpl.BodyTemplate)

		err = db.Try(func() error {
			tmpl.GenID()
			_, err := collection.InsertOne(ctx, &tmpl)
			return err
		})
		if err != nil {
			return fmt.Errorf("error backfilling builtin template %q: %w", builtin.Name, err)
		}
		log.Printf("Backfilled builtin email template %q", builtin.Name)
	}

	return nil
}
