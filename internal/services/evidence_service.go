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

// ErrNotPending is returned when a moderation decision targets an evidence
// item that has already been decided.
var ErrNotPending = errors.New("evidence item is not pending review")

// IEvidenceService defines the interface for evidence operations.
type IEvidenceService interface {
	SubmitEvidence(ctx context.Context, evidence *models.Evidence) error
	FindEvidenceByID(ctx context.Context, id utils.SixID) (*models.Evidence, error)
	ListEvidence(ctx context.Context, status models.EvidenceStatus) ([]models.Evidence, error)
	ApproveEvidence(ctx context.Context, id utils.SixID) (*models.Evidence, error)
	RejectEvidence(ctx context.Context, id utils.SixID, reason string) (*models.Evidence, error)
	AddPhotoKey(ctx context.Context, id utils.SixID, key string) error
}

const evidenceCollection = "evidence"

type evidenceService struct {
	db *mongo.Database
}

// NewEvidenceService creates a new EvidenceService.
func NewEvidenceService(database *mongo.Database) IEvidenceService {
	return &evidenceService{db: database}
}

// SubmitEvidence inserts a new evidence item in pending state.
func (s *evidenceService) SubmitEvidence(ctx context.Context, evidence *models.Evidence) error {
	if evidence.Title == "" {
		return fmt.Errorf("evidence title is required")
	}
	if evidence.Description == "" {
		return fmt.Errorf("evidence description is required")
	}

	now := time.Now().UTC()
	evidence.Status = models.EvidencePending
	evidence.RejectionReason = ""
	evidence.CreatedAt = now
	evidence.UpdatedAt = now
	evidence.Deleted = false

	collection := s.db.Collection(evidenceCollection)
	err := db.Try(func() error {
		evidence.GenID()
		_, err := collection.InsertOne(ctx, evidence)
		return err
	})
	if err != nil {
		return fmt.Errorf("error submitting evidence: %w", err)
	}

	log.Printf("Evidence %s submitted by user %s", evidence.ID, evidence.UserID)
	return nil
}

// FindEvidenceByID retrieves a non-deleted evidence item by id.
func (s *evidenceService) FindEvidenceByID(ctx context.Context, id utils.SixID) (*models.Evidence, error) {
	var evidence models.Evidence
	collection := s.db.Collection(evidenceCollection)

	err := collection.FindOne(ctx, bson.M{"_id": id, "deleted": false}).Decode(&evidence)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding evidence %s: %w", id, err)
	}
	return &evidence, nil
}

// ListEvidence returns evidence items, optionally filtered by status, newest first.
func (s *evidenceService) ListEvidence(ctx context.Context, status models.EvidenceStatus) ([]models.Evidence, error) {
	collection := s.db.Collection(evidenceCollection)

	filter := bson.M{"deleted": false}
	if status != "" {
		filter["status"] = status
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing evidence: %w", err)
	}
	defer cursor.Close(ctx)

	var items []models.Evidence
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("error decoding evidence items: %w", err)
	}
	return items, nil
}

// ApproveEvidence publishes a pending evidence item.
func (s *evidenceService) ApproveEvidence(ctx context.Context, id utils.SixID) (*models.Evidence, error) {
	return s.decide(ctx, id, bson.M{
		"status":           models.EvidenceApproved,
		"rejection_reason": "",
		"updated_at":       time.Now().UTC(),
	})
}

// RejectEvidence declines a pending evidence item with a reason.
func (s *evidenceService) RejectEvidence(ctx context.Context, id utils.SixID, reason string) (*models.Evidence, error) {
	return s.decide(ctx, id, bson.M{
		"status":           models.EvidenceRejected,
		"rejection_reason": reason,
		"updated_at":       time.Now().UTC(),
	})
}

func (s *evidenceService) decide(ctx context.Context, id utils.SixID, setFields bson.M) (*models.Evidence, error) {
	collection := s.db.Collection(evidenceCollection)

	filter := bson.M{"_id": id, "deleted": false, "status": models.EvidencePending}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Evidence
	err := collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": setFields}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Distinguish "not found" from "already decided"
			if _, findErr := s.FindEvidenceByID(ctx, id); findErr == nil {
				return nil, ErrNotPending
			}
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error updating evidence %s: %w", id, err)
	}
	return &updated, nil
}

// AddPhotoKey attaches a processed photo's S3 key to an evidence item.
func (s *evidenceService) AddPhotoKey(ctx context.Context, id utils.SixID, key string) error {
	collection := s.db.Collection(evidenceCollection)

	update := bson.M{
		"$addToSet": bson.M{"photo_keys": key},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := collection.UpdateOne(ctx, bson.M{"_id": id, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("error attaching photo to evidence %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
