package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/w3joe/eloquentai/domain/entities"
)

// Store keeps profile and session history in memory. Used when no MongoDB
// is configured and throughout the tests. Records are copied on the way in
// and out so callers cannot mutate stored state.
type Store struct {
	mu      sync.RWMutex
	profile *entities.UserProfile
	records []entities.FeedbackRecord // newest first
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{}
}

// SaveProfile stores the learner profile.
func (s *Store) SaveProfile(ctx context.Context, profile *entities.UserProfile) error {
	if profile == nil {
		return errors.New("profile cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *profile
	s.profile = &clone
	return nil
}

// GetProfile returns the stored profile, or nil when none was saved.
func (s *Store) GetProfile(ctx context.Context) (*entities.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil, nil
	}
	clone := *s.profile
	return &clone, nil
}

// SaveRecord prepends a feedback record to the history.
func (s *Store) SaveRecord(ctx context.Context, record *entities.FeedbackRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	s.records = append([]entities.FeedbackRecord{*record}, s.records...)
	return nil
}

// ListRecords returns the history, newest first.
func (s *Store) ListRecords(ctx context.Context) ([]entities.FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.FeedbackRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// GetLatestRecord returns the most recent record, or nil when empty.
func (s *Store) GetLatestRecord(ctx context.Context) (*entities.FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil, nil
	}
	clone := s.records[0]
	return &clone, nil
}

// ProfileRepository adapts Store to repositories.ProfileRepository.
type ProfileRepository struct{ *Store }

func (r ProfileRepository) Save(ctx context.Context, profile *entities.UserProfile) error {
	return r.SaveProfile(ctx, profile)
}

func (r ProfileRepository) Get(ctx context.Context) (*entities.UserProfile, error) {
	return r.GetProfile(ctx)
}

// FeedbackRepository adapts Store to repositories.FeedbackRepository.
type FeedbackRepository struct{ *Store }

func (r FeedbackRepository) Save(ctx context.Context, record *entities.FeedbackRecord) error {
	return r.SaveRecord(ctx, record)
}

func (r FeedbackRepository) List(ctx context.Context) ([]entities.FeedbackRecord, error) {
	return r.ListRecords(ctx)
}

func (r FeedbackRepository) GetLatest(ctx context.Context) (*entities.FeedbackRecord, error) {
	return r.GetLatestRecord(ctx)
}
