package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/auth"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/db"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/models"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

// ErrEmailExists is returned when an attempt is made to use an email that already exists.
var ErrEmailExists = errors.New("email already in use by another account")

// ErrInvalidCredentials is returned on a failed login attempt.
var ErrInvalidCredentials = errors.New("invalid email or password")

// IUserService defines the interface for user-related operations.
// This allows for easier mocking in tests.
type IUserService interface {
	Register(ctx context.Context, name, email, password, development, plotNumber string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, userID utils.SixID) (*models.User, error)
	SuspendUser(ctx context.Context, userID utils.SixID) error
	ListAdminEmails(ctx context.Context) ([]string, error)
	ListActiveUserEmails(ctx context.Context) ([]string, error)
}

const usersCollection = "users"

// userService implements IUserService.
type userService struct {
	db *mongo.Database
}

// NewUserService creates a new UserService.
func NewUserService(db *mongo.Database) IUserService {
	return &userService{db: db}
}

// Register creates a new activated user account. The email must not be in use
// by another non-deleted account.
func (s *userService) Register(ctx context.Context, name, email, password, development, plotNumber string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	collection := s.db.Collection(usersCollection)

	count, err := collection.CountDocuments(ctx, bson.M{"email": email, "deleted": false})
	if err != nil {
		return nil, fmt.Errorf("error checking email uniqueness for %s: %w", email, err)
	}
	if count > 0 {
		return nil, ErrEmailExists
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	now := time.Now().UTC()
	var newUser *models.User

	operation := func() error {
		newUser = &models.User{
			Name:         name,
			Email:        email,
			PasswordHash: hash,
			IsAdmin:      false,
			Activated:    true,
			Suspended:    false,
			Development:  development,
			PlotNumber:   plotNumber,
			CreatedAt:    now,
			UpdatedAt:    now,
			Deleted:      false,
		}
		newUser.GenID()
		_, err := collection.InsertOne(ctx, newUser)
		return err
	}

	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("error creating user %s: %w", email, err)
	}

	log.Printf("Registered user %s (%s)", newUser.ID, email)
	return newUser, nil
}

// Authenticate verifies a user's credentials for login.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Suspended {
		return nil, ErrInvalidCredentials
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// FindByEmail finds a non-deleted user by their email address.
// Returns nil and mongo.ErrNoDocuments if not found.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(usersCollection)
	filter := bson.M{"email": email, "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

// FindByID finds a non-deleted user by id.
func (s *userService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(usersCollection)
	filter := bson.M{"_id": userID, "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by ID %s: %w", userID, err)
	}
	return &user, nil
}

// SuspendUser marks a user account suspended.
func (s *userService) SuspendUser(ctx context.Context, userID utils.SixID) error {
	collection := s.db.Collection(usersCollection)
	update := bson.M{"$set": bson.M{"suspended": true, "updated_at": time.Now().UTC()}}

	result, err := collection.UpdateOne(ctx, bson.M{"_id": userID, "deleted": false}, update)
	if err != nil {
		return fmt.Errorf("error suspending user %s: %w", userID, err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListAdminEmails returns the email addresses of all active admin accounts.
// A record that fails to decode is logged and skipped rather than failing the
// whole listing.
func (s *userService) ListAdminEmails(ctx context.Context) ([]string, error) {
	return s.listEmails(ctx, bson.M{
		"is_admin":  true,
		"activated": true,
		"suspended": false,
		"deleted":   false,
	})
}

// ListActiveUserEmails returns the email addresses of every activated,
// non-suspended account.
func (s *userService) ListActiveUserEmails(ctx context.Context) ([]string, error) {
	return s.listEmails(ctx, bson.M{
		"activated": true,
		"suspended": false,
		"deleted":   false,
	})
}

func (s *userService) listEmails(ctx context.Context, filter bson.M) ([]string, error) {
	collection := s.db.Collection(usersCollection)

	opts := options.Find().SetProjection(bson.M{"email": 1})
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing user emails: %w", err)
	}
	defer cursor.Close(ctx)

	var emails []string
	for cursor.Next(ctx) {
		var doc struct {
			ID    utils.SixID `bson:"_id"`
			Email string      `bson:"email"`
		}
		if err := cursor.Decode(&doc); err != nil {
			log.Printf("Skipping undecodable user record while listing emails: %v", err)
			continue
		}
		if doc.Email != "" {
			emails = append(emails, doc.Email)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user emails: %w", err)
	}
	return emails, nil
}
