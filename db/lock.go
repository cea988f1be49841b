package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RenewalLock is a TTL-bounded mutual-exclusion row keyed by operation name.
type RenewalLock struct {
	Name      string    `gorm:"primaryKey;size:100" json:"name"`
	Owner     string    `gorm:"size:100;not null" json:"owner"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
}

// LockRepository stores renewal locks in the relational database so that
// every process sharing the database sees the same lock.
type LockRepository interface {
	// TryAcquire inserts the lock row if it is absent or expired. It returns
	// false with a nil error when another owner holds an unexpired lock.
	TryAcquire(ctx context.Context, name, owner string, ttl time.Duration, now time.Time) (bool, error)
	// Release deletes the lock row if it is still held by owner.
	Release(ctx context.Context, name, owner string) error
	Get(ctx context.Context, name string) (*RenewalLock, error)
}

type gormLockRepo struct{ db *gorm.DB }

// NewLockRepository creates a LockRepository. Accepts *gorm.DB to avoid global access.
func NewLockRepository(db *gorm.DB) LockRepository { return &gormLockRepo{db: db} }

func (r *gormLockRepo) TryAcquire(ctx context.Context, name, owner string, ttl time.Duration, now time.Time) (bool, error) {
	if r.db == nil {
		return false, fmt.Errorf("repository not initialized")
	}
	if ttl <= 0 {
		return false, fmt.Errorf("ttl must be > 0")
	}

	acquired := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("name = ? AND expires_at <= ?", name, now.UTC()).Delete(&RenewalLock{}).Error; err != nil {
			return err
		}
		row := &RenewalLock{Name: name, Owner: owner, ExpiresAt: now.Add(ttl).UTC()}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
		if res.Error != nil {
			return res.Error
		}
		acquired = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		// Another writer holds the database; treat it like a held lock.
		if isSQLiteBusy(err) {
			return false, nil
		}
		return false, err
	}
	return acquired, nil
}

func (r *gormLockRepo) Release(ctx context.Context, name, owner string) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	return r.db.WithContext(ctx).Where("name = ? AND owner = ?", name, owner).Delete(&RenewalLock{}).Error
}

func (r *gormLockRepo) Get(ctx context.Context, name string) (*RenewalLock, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var l RenewalLock
	err := r.db.WithContext(ctx).First(&l, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func isSQLiteBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}
