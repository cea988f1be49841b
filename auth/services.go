package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/habedi/sparkdoor/db"
	"github.com/habedi/sparkdoor/lock"
	"github.com/habedi/sparkdoor/pkg/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// LockKey names the renewal lock shared by every process.
const LockKey = "refresh_access_token"

// DefaultRenewWindow is how long before expiry a token is renewed.
const DefaultRenewWindow = 24 * time.Hour

// DefaultPollInterval is how often a caller without any token checks the
// store while another process holds the renewal lock.
const DefaultPollInterval = 250 * time.Millisecond

var (
	// ErrCredentialsInvalid is returned when discovery and renewal both failed
	// because the cloud rejected the service credentials.
	ErrCredentialsInvalid = errors.New("cloud credentials invalid")
	// ErrTokenUnavailable is returned when another process holds the renewal
	// lock, no token has ever been recorded, and none appeared within the
	// lock TTL.
	ErrTokenUnavailable = errors.New("no access token available")
)

// State is the lifecycle state of the stored token.
type State int

const (
	NoToken State = iota
	HasValidToken
	ExpiringSoon
)

func (s State) String() string {
	switch s {
	case NoToken:
		return "no_token"
	case HasValidToken:
		return "valid"
	case ExpiringSoon:
		return "expiring_soon"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the service account and timing used for renewal.
type Config struct {
	Username    string
	Password    string
	RenewWindow time.Duration

	// LockTTL bounds one renewal, and the wait for another process's renewal.
	LockTTL      time.Duration
	PollInterval time.Duration
}

// Service keeps a valid cloud access token available. It orchestrates the
// credential store, the cloud and the renewal lock.
type Service struct {
	Store  CredentialStore
	Issuer TokenIssuer
	Locker lock.Locker

	cfg     Config
	metrics *metrics.Metrics
	group   singleflight.Group
	now     func() time.Time
}

// NewService is the constructor for the token manager.
func NewService(store CredentialStore, issuer TokenIssuer, locker lock.Locker, cfg Config, m *metrics.Metrics) *Service {
	if cfg.RenewWindow <= 0 {
		cfg.RenewWindow = DefaultRenewWindow
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = lock.DefaultTTL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if locker == nil {
		locker = lock.NewMemory()
	}
	return &Service{
		Store:   store,
		Issuer:  issuer,
		Locker:  locker,
		cfg:     cfg,
		metrics: metrics.OrNop(m),
		now:     time.Now,
	}
}

// RenewWindow returns the configured renewal lead time.
func (s *Service) RenewWindow() time.Duration { return s.cfg.RenewWindow }

// State reports the lifecycle state of the current token without touching the cloud.
func (s *Service) State(ctx context.Context) (State, *db.Credential, error) {
	now := s.now()
	cur, err := s.Store.Current(ctx, now)
	if err != nil {
		return NoToken, nil, fmt.Errorf("failed to retrieve current credential: %w", err)
	}
	if cur == nil {
		return NoToken, nil, nil
	}
	if cur.ExpiresSoon(now, s.cfg.RenewWindow) {
		return ExpiringSoon, cur, nil
	}
	return HasValidToken, cur, nil
}

// Login obtains a token with the given credentials and records it,
// bypassing discovery. It is the operator's manual path.
func (s *Service) Login(ctx context.Context, username, password string) (*db.Credential, error) {
	grant, err := s.Issuer.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCredentialsInvalid, err)
	}
	cred, err := s.Store.Record(ctx, grant.Token, grant.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	return cred, nil
}

// Prune removes credentials that expired more than olderThan ago.
func (s *Service) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := s.Store.Prune(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to prune credentials: %w", err)
	}
	s.metrics.CredentialsPruned.Add(float64(n))
	if n > 0 {
		log.Info().Int64("removed", n).Msg("Pruned expired credentials")
	}
	return n, nil
}
