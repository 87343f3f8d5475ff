package store

import (
	"context"
	"errors"
	"time"

	"github.com/taskmate/backend/internal/models"
)

// AcquireLock claims (name, key) for owner until ttl elapses. It returns
// false when another owner holds an unexpired lock.
func (g *GormGateway) AcquireLock(ctx context.Context, name, key, owner string, ttl time.Duration) (bool, error) {
	db := g.db.WithContext(ctx)
	ts := now()

	if err := db.Where("lock_name = ? AND lock_key = ? AND expires_at < ?", name, key, ts).
		Delete(&models.SchedulerLock{}).Error; err != nil {
		return false, err
	}

	lock := models.SchedulerLock{
		LockName:  name,
		LockKey:   key,
		LockedBy:  owner,
		LockedAt:  ts,
		ExpiresAt: ts.Add(ttl),
	}
	err := translate(db.Create(&lock).Error)
	if errors.Is(err, ErrDuplicate) {
		return false, nil
	}
	return err == nil, err
}
