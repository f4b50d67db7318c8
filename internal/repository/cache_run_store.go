package repository

import (
	"context"
	"errors"
	"time"

	"DemandCast/internal/domain/models"
	"DemandCast/pkg/cache"
)

const (
	runLockKey   = "run:lock"
	runLatestKey = "run:latest"
)

// CacheRunStore keeps run snapshots and the single-run lock in a cache.Service.
// Redis in production; the memory cache serves local runs.
type CacheRunStore struct {
	cache     cache.Service
	statusTTL time.Duration
	lockTTL   time.Duration
}

func NewCacheRunStore(c cache.Service, statusTTL, lockTTL time.Duration) *CacheRunStore {
	if statusTTL <= 0 {
		statusTTL = 72 * time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = 6 * time.Hour
	}
	return &CacheRunStore{cache: c, statusTTL: statusTTL, lockTTL: lockTTL}
}

func runKey(runID string) string {
	return cache.Key("run", runID)
}

func (s *CacheRunStore) SaveSnapshot(ctx context.Context, snap models.RunSnapshot) error {
	if err := s.cache.Set(ctx, runKey(snap.RunID), snap, s.statusTTL); err != nil {
		return err
	}
	return s.cache.Set(ctx, runLatestKey, snap.RunID, s.statusTTL)
}

// Snapshot returns nil, nil when the run is unknown or expired.
func (s *CacheRunStore) Snapshot(ctx context.Context, runID string) (*models.RunSnapshot, error) {
	var snap models.RunSnapshot
	if err := s.cache.Get(ctx, runKey(runID), &snap); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &snap, nil
}

func (s *CacheRunStore) Latest(ctx context.Context) (*models.RunSnapshot, error) {
	var id string
	if err := s.cache.Get(ctx, runLatestKey, &id); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return s.Snapshot(ctx, id)
}

// AcquireRunLock succeeds when no run holds the lock or runID already holds it.
func (s *CacheRunStore) AcquireRunLock(ctx context.Context, runID string) (bool, error) {
	return s.cache.TryLock(ctx, runLockKey, runID, s.lockTTL)
}

func (s *CacheRunStore) ReleaseRunLock(ctx context.Context, runID string) error {
	return s.cache.Unlock(ctx, runLockKey, runID)
}
