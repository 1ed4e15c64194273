package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinAlert/internal/domain/models"
	"FinAlert/internal/domain/repository"
	"FinAlert/pkg/cache"
)

// CacheHistoryStore keeps the history snapshot under a single cache key.
type CacheHistoryStore struct {
	cache cache.Service
	key   string
	ttl   time.Duration
}

// NewCacheHistoryStore creates a store; ttl <= 0 keeps the snapshot indefinitely.
func NewCacheHistoryStore(c cache.Service, key string, ttl time.Duration) *CacheHistoryStore {
	if key == "" {
		key = "alerts:history"
	}
	return &CacheHistoryStore{cache: c, key: key, ttl: ttl}
}

func (s *CacheHistoryStore) Save(ctx context.Context, snapshot []models.Alert) error {
	if err := s.cache.Set(ctx, s.key, snapshot, s.ttl); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// Load returns the persisted snapshot, or nil when none exists.
func (s *CacheHistoryStore) Load(ctx context.Context) ([]models.Alert, error) {
	var snapshot []models.Alert
	if err := s.cache.Get(ctx, s.key, &snapshot); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("load history: %w", err)
	}
	return snapshot, nil
}

func (s *CacheHistoryStore) Clear(ctx context.Context) error {
	return s.cache.Delete(ctx, s.key)
}

var _ repository.HistoryStore = (*CacheHistoryStore)(nil)
