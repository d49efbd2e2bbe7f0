package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/db"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/models"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

// ICommentService defines the interface for comment operations.
type ICommentService interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	FindCommentByID(ctx context.Context, id utils.SixID) (*models.Comment, error)
	ListCommentsForEvidence(ctx context.Context, evidenceID utils.SixID, approvedOnly bool) ([]models.Comment, error)
	ApproveComment(ctx context.Context, id utils.SixID) error
	DeclineComment(ctx context.Context, id utils.SixID) error
}

const commentsCollection = "comments"

type commentService struct {
	db *mongo.Database
}

// NewCommentService creates a new CommentService.
func NewCommentService(database *mongo.Database) ICommentService {
	return &commentService{db: database}
}

// CreateComment inserts a new comment pending moderation. The referenced
// evidence item must exist.
func (s *commentService) CreateComment(ctx context.Context, comment *models.Comment) error {
	if comment.Body == "" {
		return fmt.Errorf("comment body is required")
	}

	evidenceCount, err := s.db.Collection(evidenceCollection).CountDocuments(ctx, bson.M{"_id": comment.EvidenceID, "deleted": false})
	if err != nil {
		return fmt.Errorf("error checking evidence for comment: %w", err)
	}
	if evidenceCount == 0 {
		return mongo.ErrNoDocuments
	}

	comment.Approved = false
	comment.CreatedAt = time.Now().UTC()
	comment.Deleted = false

	collection := s.db.Collection(commentsCollection)
	return db.Try(func() error {
		comment.GenID()
		_, err := collection.InsertOne(ctx, comment)
		return err
	})
}

// FindCommentByID retrieves a non-deleted comment by id.
func (s *commentService) FindCommentByID(ctx context.Context, id utils.SixID) (*models.Comment, error) {
	var comment models.Comment
	collection := s.db.Collection(commentsCollection)

	err := collection.FindOne(ctx, bson.M{"_id": id, "deleted": false}).Decode(&comment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding comment %s: %w", id, err)
	}
	return &comment, nil
}

// ListCommentsForEvidence returns comments on an evidence item, oldest first.
func (s *commentService) ListCommentsForEvidence(ctx context.Context, evidenceID utils.SixID, approvedOnly bool) ([]models.Comment, error) {
	collection := s.db.Collection(commentsCollection)

	filter := bson.M{"evidence_id": evidenceID, "deleted": false}
	if approvedOnly {
		filter["approved"] = true
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing comments: %w", err)
	}
	defer cursor.Close(ctx)

	var comments []models.Comment
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("error decoding comments: %w", err)
	}
	return comments, nil
}

// ApproveComment marks a comment approved for public display.
func (s *commentService) ApproveComment(ctx context.Context, id utils.SixID) error {
	return s.setApproved(ctx, id, true)
}

// DeclineComment soft-deletes a comment.
func (s *commentService) DeclineComment(ctx context.Context, id utils.SixID) error {
	collection := s.db.Collection(commentsCollection)

	result, err := collection.UpdateOne(ctx, bson.M{"_id": id, "deleted": false}, bson.M{"$set": bson.M{"deleted": true}})
	if err != nil {
		return fmt.Errorf("error declining comment %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *commentService) setApproved(ctx context.Context, id utils.SixID, approved bool) error {
	collection := s.db.Collection(commentsCollection)

	result, err := collection.UpdateOne(ctx, bson.M{"_id": id, "deleted": false}, bson.M{"$set": bson.M{"approved": approved}})
	if err != nil {
		return fmt.Errorf("error updating comment %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
