package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/w3joe/eloquentai/domain/entities"
	"github.com/w3joe/eloquentai/domain/repositories"
)

// profileKey is the fixed identifier the single profile record is stored
// under, mirroring the app's one-profile-per-install model.
const profileKey = "profile"

type ProfileRepository struct {
	collection *mongo.Collection
}

// NewProfileRepository creates a new MongoDB profile repository
func NewProfileRepository(db *mongo.Database) repositories.ProfileRepository {
	return &ProfileRepository{
		collection: db.Collection("profiles"),
	}
}

// Save upserts the profile under the fixed key.
func (r *ProfileRepository) Save(ctx context.Context, profile *entities.UserProfile) error {
	if profile == nil {
		return errors.New("profile cannot be nil")
	}

	profile.ID = profileKey
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": profileKey}, profile, opts); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Get returns the stored profile, or nil when none was saved yet.
func (r *ProfileRepository) Get(ctx context.Context) (*entities.UserProfile, error) {
	var profile entities.UserProfile
	err := r.collection.FindOne(ctx, bson.M{"_id": profileKey}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}
