package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/habedi/sparkdoor/client"
	"github.com/habedi/sparkdoor/db"
	"github.com/rs/zerolog/log"
)

// Refresh returns a token that is valid beyond the renewal window,
// discovering or renewing one when needed. Concurrent callers in this
// process share one renewal. Callers in other processes that find the
// renewal lock held get the best token already known, or wait for the
// holder's token when none has been recorded yet.
func (s *Service) Refresh(ctx context.Context) (string, error) {
	cur, err := s.fresh(ctx)
	if err != nil {
		return "", err
	}
	if cur != nil {
		s.metrics.RefreshTotal.WithLabelValues("cached").Inc()
		return cur.Token, nil
	}

	// The flight outlives the caller that started it; joined callers must
	// not fail because that caller went away.
	ch := s.group.DoChan(LockKey, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.LockTTL)
		defer cancel()
		return s.refreshLocked(fctx)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			log.Debug().Msg("Joined in-flight token refresh")
		}
		return res.Val.(string), nil
	}
}

// fresh returns the current credential if it is not expiring soon.
func (s *Service) fresh(ctx context.Context) (*db.Credential, error) {
	now := s.now()
	cur, err := s.Store.Current(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve current credential: %w", err)
	}
	if cur == nil || cur.ExpiresSoon(now, s.cfg.RenewWindow) {
		return nil, nil
	}
	return cur, nil
}

func (s *Service) refreshLocked(ctx context.Context) (string, error) {
	ok, err := s.Locker.TryAcquire(ctx, LockKey, s.cfg.LockTTL)
	if err != nil {
		s.metrics.RefreshTotal.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("failed to acquire renewal lock: %w", err)
	}
	if !ok {
		s.metrics.RefreshTotal.WithLabelValues("busy").Inc()
		log.Info().Msg("Token renewal already in progress elsewhere; using best known token")
		return s.bestKnown(ctx)
	}
	defer func() {
		if err := s.Locker.Release(context.WithoutCancel(ctx), LockKey); err != nil {
			log.Warn().Err(err).Msg("Failed to release renewal lock")
		}
	}()

	// Another process may have renewed between our first check and the lock.
	if cur, err := s.fresh(ctx); err != nil {
		return "", err
	} else if cur != nil {
		s.metrics.RefreshTotal.WithLabelValues("cached").Inc()
		return cur.Token, nil
	}

	start := time.Now()
	defer func() {
		s.metrics.RefreshLatencyMS.Observe(float64(time.Since(start).Milliseconds()))
	}()

	grant, err := s.Issuer.DiscoverTokens(ctx, s.cfg.Username, s.cfg.Password)
	switch {
	case err == nil && !s.expiresSoon(grant):
		if _, err := s.Store.Record(ctx, grant.Token, grant.ExpiresAt); err != nil {
			s.metrics.RefreshTotal.WithLabelValues("failed").Inc()
			return "", fmt.Errorf("failed to save discovered token: %w", err)
		}
		s.metrics.RefreshTotal.WithLabelValues("discovered").Inc()
		log.Info().Str("token", db.TokenPrefix(grant.Token)).Time("expires_at", grant.ExpiresAt).Msg("Using discovered access token")
		return grant.Token, nil
	case err == nil:
		log.Info().Time("expires_at", grant.ExpiresAt).Msg("Discovered access token expires soon; renewing")
	case errors.Is(err, client.ErrNotFound):
		log.Info().Msg("No usable access token on account; renewing")
	default:
		log.Warn().Err(err).Msg("Token discovery failed; renewing")
	}

	grant, err = s.Issuer.Login(ctx, s.cfg.Username, s.cfg.Password)
	if err != nil {
		s.metrics.RefreshTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("Token renewal rejected")
		return "", fmt.Errorf("%w: %w", ErrCredentialsInvalid, err)
	}
	if _, err := s.Store.Record(ctx, grant.Token, grant.ExpiresAt); err != nil {
		s.metrics.RefreshTotal.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("failed to save renewed token: %w", err)
	}
	s.metrics.RefreshTotal.WithLabelValues("renewed").Inc()
	log.Info().Str("token", db.TokenPrefix(grant.Token)).Time("expires_at", grant.ExpiresAt).Msg("Access token renewed")
	return grant.Token, nil
}

// bestKnown returns the current token even if it is expiring soon, else the
// latest recorded token even if expired.
func (s *Service) bestKnown(ctx context.Context) (string, error) {
	cur, err := s.Store.Current(ctx, s.now())
	if err != nil {
		return "", fmt.Errorf("failed to retrieve current credential: %w", err)
	}
	if cur != nil {
		return cur.Token, nil
	}
	latest, err := s.Store.Latest(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve latest credential: %w", err)
	}
	if latest != nil {
		return latest.Token, nil
	}
	return s.awaitToken(ctx)
}

// awaitToken polls the store for the token the lock holder is renewing,
// for at most the lock TTL.
func (s *Service) awaitToken(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.LockTTL)
	defer cancel()
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	log.Info().Dur("timeout", s.cfg.LockTTL).Msg("No token recorded yet; waiting for the renewal in progress")
	for {
		select {
		case <-ctx.Done():
			return "", ErrTokenUnavailable
		case <-ticker.C:
		}
		cur, err := s.Store.Current(ctx, s.now())
		if err != nil {
			if ctx.Err() != nil {
				return "", ErrTokenUnavailable
			}
			return "", fmt.Errorf("failed to retrieve current credential: %w", err)
		}
		if cur != nil {
			s.metrics.RefreshTotal.WithLabelValues("awaited").Inc()
			return cur.Token, nil
		}
	}
}

func (s *Service) expiresSoon(g client.Grant) bool {
	return !g.ExpiresAt.After(s.now().Add(s.cfg.RenewWindow))
}
