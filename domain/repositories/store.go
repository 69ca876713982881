package repositories

import (
	"context"

	"github.com/w3joe/eloquentai/domain/entities"
)

// ProfileRepository persists the learner profile as a single opaque record.
type ProfileRepository interface {
	Save(ctx context.Context, profile *entities.UserProfile) error
	Get(ctx context.Context) (*entities.UserProfile, error)
}

// FeedbackRepository persists session feedback records. The only guarantees
// are that a saved record appears in List afterwards and that List returns
// records newest first.
type FeedbackRepository interface {
	Save(ctx context.Context, record *entities.FeedbackRecord) error
	List(ctx context.Context) ([]entities.FeedbackRecord, error)
	GetLatest(ctx context.Context) (*entities.FeedbackRecord, error)
}
