package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/w3joe/eloquentai/domain/entities"
	"github.com/w3joe/eloquentai/domain/repositories"
)

type FeedbackRepository struct {
	collection *mongo.Collection
}

// NewFeedbackRepository creates a new MongoDB feedback repository
func NewFeedbackRepository(db *mongo.Database) repositories.FeedbackRepository {
	return &FeedbackRepository{
		collection: db.Collection("sessions"),
	}
}

// Save implements repositories.FeedbackRepository
func (r *FeedbackRepository) Save(ctx context.Context, record *entities.FeedbackRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}

	if record.ID == "" {
		record.ID = primitive.NewObjectID().Hex()
	}

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to save feedback record: %w", err)
	}
	return nil
}

// List returns all session records, newest first.
func (r *FeedbackRepository) List(ctx context.Context) ([]entities.FeedbackRecord, error) {
	opts := options.Find().SetSort(bson.M{"date": -1})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback records: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]entities.FeedbackRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode feedback records: %w", err)
	}
	return records, nil
}

// GetLatest returns the most recent session record, or nil when the
// history is empty.
func (r *FeedbackRepository) GetLatest(ctx context.Context) (*entities.FeedbackRecord, error) {
	opts := options.FindOne().SetSort(bson.M{"date": -1})

	var record entities.FeedbackRecord
	err := r.collection.FindOne(ctx, bson.M{}, opts).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest feedback record: %w", err)
	}
	return &record, nil
}
