package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/db"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/models"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

// ErrAlreadyRegistered is returned when an email registers for the group
// litigation a second time.
var ErrAlreadyRegistered = errors.New("email already registered for the group litigation")

// IClaimService defines the interface for claim and GLO registration operations.
type IClaimService interface {
	SubmitClaim(ctx context.Context, claim *models.Claim) error
	FindClaimByID(ctx context.Context, id utils.SixID) (*models.Claim, error)
	ListClaims(ctx context.Context) ([]models.Claim, error)
	RegisterGlo(ctx context.Context, registration *models.GloRegistration) error
	ListGloRegistrations(ctx context.Context) ([]models.GloRegistration, error)
}

const (
	claimsCollection = "claims"
	gloCollection    = "glo_registrations"
)

type claimService struct {
	db *mongo.Database
}

// NewClaimService creates a new ClaimService.
func NewClaimService(database *mongo.Database) IClaimService {
	return &claimService{db: database}
}

// SubmitClaim inserts a new claim.
func (s *claimService) SubmitClaim(ctx context.Context, claim *models.Claim) error {
	if claim.Summary == "" {
		return fmt.Errorf("claim summary is required")
	}

	claim.CreatedAt = time.Now().UTC()
	claim.Deleted = false

	collection := s.db.Collection(claimsCollection)
	return db.Try(func() error {
		claim.GenID()
		_, err := collection.InsertOne(ctx, claim)
		return err
	})
}

// FindClaimByID retrieves a non-deleted claim by id.
func (s *claimService) FindClaimByID(ctx context.Context, id utils.SixID) (*models.Claim, error) {
	var claim models.Claim
	collection := s.db.Collection(claimsCollection)

	err := collection.FindOne(ctx, bson.M{"_id": id, "deleted": false}).Decode(&claim)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding claim %s: %w", id, err)
	}
	return &claim, nil
}

// ListClaims returns all claims, newest first.
func (s *claimService) ListClaims(ctx context.Context) ([]models.Claim, error) {
	collection := s.db.Collection(claimsCollection)

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := collection.Find(ctx, bson.M{"deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing claims: %w", err)
	}
	defer cursor.Close(ctx)

	var claims []models.Claim
	if err := cursor.All(ctx, &claims); err != nil {
		return nil, fmt.Errorf("error decoding claims: %w", err)
	}
	return claims, nil
}

// RegisterGlo records a homeowner's interest in the group litigation. One
// registration per email.
func (s *claimService) RegisterGlo(ctx context.Context, registration *models.GloRegistration) error {
	registration.UserEmail = strings.ToLower(strings.TrimSpace(registration.UserEmail))
	if registration.UserEmail == "" {
		return fmt.Errorf("email is required")
	}
	if registration.UserName == "" {
		return fmt.Errorf("name is required")
	}

	collection := s.db.Collection(gloCollection)

	count, err := collection.CountDocuments(ctx, bson.M{"user_email": registration.UserEmail})
	if err != nil {
		return fmt.Errorf("error checking existing GLO registration: %w", err)
	}
	if count > 0 {
		return ErrAlreadyRegistered
	}

	registration.CreatedAt = time.Now().UTC()

	return db.Try(func() error {
		registration.GenID()
		_, err := collection.InsertOne(ctx, registration)
		return err
	})
}

// ListGloRegistrations returns all GLO registrations, newest first.
func (s *claimService) ListGloRegistrations(ctx context.Context) ([]models.GloRegistration, error) {
	collection := s.db.Collection(gloCollection)

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing GLO registrations: %w", err)
	}
	defer cursor.Close(ctx)

	var registrations []models.GloRegistration
	if err := cursor.All(ctx, &registrations); err != nil {
		return nil, fmt.Errorf("error decoding GLO registrations: %w", err)
	}
	return registrations, nil
}
