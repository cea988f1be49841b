package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/habedi/sparkdoor/pkg/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// NATSLocker keeps locks in a NATS JetStream key-value bucket. Acquisition
// uses the bucket's create-if-absent operation. Expiry is the bucket TTL,
// fixed when the bucket is created; the ttl passed to TryAcquire must not
// exceed it.
type NATSLocker struct {
	nc      *nats.Conn
	kv      jetstream.KeyValue
	ttl     time.Duration
	owner   string
	metrics *metrics.Metrics

	mu   sync.Mutex
	revs map[string]uint64
}

// DialNATS connects to natsURL and opens (or creates) the lock bucket.
func DialNATS(ctx context.Context, natsURL, bucket string, ttl time.Duration, m *metrics.Metrics) (*NATSLocker, error) {
	nc, err := nats.Connect(natsURL, nats.Name("sparkdoor"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	l, err := NewNATSLocker(ctx, nc, bucket, ttl, m)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return l, nil
}

// NewNATSLocker opens (or creates) the lock bucket on an existing connection.
func NewNATSLocker(ctx context.Context, nc *nats.Conn, bucket string, ttl time.Duration, m *metrics.Metrics) (*NATSLocker, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "sparkdoor renewal locks",
		History:     1,
		TTL:         ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create KV bucket: %w", err)
	}

	return &NATSLocker{
		nc:      nc,
		kv:      kv,
		ttl:     ttl,
		owner:   uuid.NewString(),
		metrics: metrics.OrNop(m),
		revs:    make(map[string]uint64),
	}, nil
}

func (l *NATSLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl > l.ttl {
		return false, fmt.Errorf("ttl %s exceeds bucket ttl %s", ttl, l.ttl)
	}

	rev, err := l.kv.Create(ctx, key, []byte(l.owner))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			l.metrics.LockTotal.WithLabelValues("acquire", "busy").Inc()
			return false, nil
		}
		l.metrics.LockTotal.WithLabelValues("acquire", "fail").Inc()
		return false, fmt.Errorf("failed to create lock key %s: %w", key, err)
	}

	l.mu.Lock()
	l.revs[key] = rev
	l.mu.Unlock()

	l.metrics.LockTotal.WithLabelValues("acquire", "success").Inc()
	log.Debug().Str("key", key).Uint64("revision", rev).Msg("Renewal lock acquired")
	return true, nil
}

// Release deletes the key only if it is still at the revision this locker
// wrote, so a lock that expired and was taken over is left alone.
func (l *NATSLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	rev, ok := l.revs[key]
	delete(l.revs, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	err := l.kv.Delete(ctx, key, jetstream.LastRevision(rev))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) && !errors.Is(err, jetstream.ErrKeyExists) {
		l.metrics.LockTotal.WithLabelValues("release", "fail").Inc()
		return fmt.Errorf("failed to delete lock key %s: %w", key, err)
	}
	l.metrics.LockTotal.WithLabelValues("release", "success").Inc()
	return nil
}

// Close closes the NATS connection.
func (l *NATSLocker) Close() error {
	l.nc.Close()
	return nil
}
