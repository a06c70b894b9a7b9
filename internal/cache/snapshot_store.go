package cache

import (
	"context"
	"time"

	"github.com/classward/attempt-engine/internal/models"
)

const (
	snapshotKeyPrefix = "attempt:snapshot:"
	snapshotTTL       = 24 * time.Hour
)

// SnapshotStore keeps the latest view of every live attempt so a
// reconnecting client can see where it left off. Entries expire on their
// own if an attempt is never finished.
type SnapshotStore struct {
	cache CacheService
}

func NewSnapshotStore(cache CacheService) *SnapshotStore {
	return &SnapshotStore{cache: cache}
}

func (s *SnapshotStore) Save(ctx context.Context, view models.AttemptView) error {
	return s.cache.Set(ctx, snapshotKeyPrefix+view.AttemptID, view, snapshotTTL)
}

func (s *SnapshotStore) Load(ctx context.Context, attemptID string) (models.AttemptView, error) {
	var view models.AttemptView
	if err := s.cache.Get(ctx, snapshotKeyPrefix+attemptID, &view); err != nil {
		return models.AttemptView{}, err
	}
	return view, nil
}

func (s *SnapshotStore) Delete(ctx context.Context, attemptID string) error {
	return s.cache.Delete(ctx, snapshotKeyPrefix+attemptID)
}
