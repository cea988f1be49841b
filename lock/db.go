package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/habedi/sparkdoor/db"
	"github.com/habedi/sparkdoor/pkg/metrics"
	"github.com/rs/zerolog/log"
)

// DBLocker keeps locks in the relational database, so every process sharing
// the database contends for the same rows. Each DBLocker has its own owner
// id and can only release locks it acquired.
type DBLocker struct {
	repo    db.LockRepository
	owner   string
	clock   func() time.Time
	metrics *metrics.Metrics
}

// NewDBLocker creates a DBLocker with a fresh owner id.
func NewDBLocker(repo db.LockRepository, m *metrics.Metrics) *DBLocker {
	return &DBLocker{
		repo:    repo,
		owner:   uuid.NewString(),
		clock:   time.Now,
		metrics: metrics.OrNop(m),
	}
}

// Owner returns the id written into lock rows held by this locker.
func (l *DBLocker) Owner() string { return l.owner }

func (l *DBLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.repo.TryAcquire(ctx, key, l.owner, ttl, l.clock())
	switch {
	case err != nil:
		l.metrics.LockTotal.WithLabelValues("acquire", "fail").Inc()
		log.Error().Err(err).Str("key", key).Msg("Failed to acquire renewal lock")
		return false, err
	case !ok:
		l.metrics.LockTotal.WithLabelValues("acquire", "busy").Inc()
		log.Debug().Str("key", key).Msg("Renewal lock is held elsewhere")
		return false, nil
	}
	l.metrics.LockTotal.WithLabelValues("acquire", "success").Inc()
	log.Debug().Str("key", key).Str("owner", l.owner).Dur("ttl", ttl).Msg("Renewal lock acquired")
	return true, nil
}

func (l *DBLocker) Release(ctx context.Context, key string) error {
	if err := l.repo.Release(ctx, key, l.owner); err != nil {
		l.metrics.LockTotal.WithLabelValues("release", "fail").Inc()
		return err
	}
	l.metrics.LockTotal.WithLabelValues("release", "success").Inc()
	return nil
}
