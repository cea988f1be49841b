// Package scheduler runs token renewal and credential housekeeping on a
// cron schedule, optionally serving Prometheus metrics while it runs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSpec runs the jobs daily at 03:00. The first field is seconds.
const DefaultSpec = "0 0 3 * * *"

// DefaultJobTimeout bounds one run of the jobs.
const DefaultJobTimeout = 5 * time.Minute

// TokenKeeper is what the jobs drive. *auth.Service satisfies it.
type TokenKeeper interface {
	Refresh(ctx context.Context) (string, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Config controls the schedule.
type Config struct {
	Spec       string
	PruneAfter time.Duration
	JobTimeout time.Duration
	// MetricsAddr enables a /metrics listener when set.
	MetricsAddr string
}

// Scheduler owns the cron runner and the metrics listener.
type Scheduler struct {
	keeper   TokenKeeper
	cfg      Config
	cron     *cron.Cron
	gatherer prometheus.Gatherer

	mu       sync.Mutex
	listener net.Listener
}

// New validates the schedule and registers the jobs. gatherer may be nil
// when MetricsAddr is empty.
func New(keeper TokenKeeper, cfg Config, gatherer prometheus.Gatherer) (*Scheduler, error) {
	if keeper == nil {
		return nil, errors.New("scheduler requires a token keeper")
	}
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	s := &Scheduler{keeper: keeper, cfg: cfg, cron: c, gatherer: gatherer}
	if _, err := c.AddFunc(cfg.Spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Spec, err)
	}
	return s, nil
}

// RunOnce performs the jobs immediately: renew the token, then prune old
// credentials when PruneAfter is set. A renewal failure does not skip pruning.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	if _, err := s.keeper.Refresh(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduled token refresh failed")
		errs = append(errs, fmt.Errorf("refresh: %w", err))
	} else {
		log.Info().Msg("Scheduled token refresh completed")
	}
	if s.cfg.PruneAfter > 0 {
		if _, err := s.keeper.Prune(ctx, s.cfg.PruneAfter); err != nil {
			log.Error().Err(err).Msg("Scheduled credential prune failed")
			errs = append(errs, fmt.Errorf("prune: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()
	_ = s.RunOnce(ctx)
}

// Next returns the next scheduled run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	// The runner fills in Next only once started.
	if entries[0].Next.IsZero() {
		return entries[0].Schedule.Next(time.Now())
	}
	return entries[0].Next
}

// MetricsAddr returns the bound metrics address once Run has started the
// listener, or "".
func (s *Scheduler) MetricsAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run starts the cron runner and blocks until ctx is cancelled. Running
// jobs are allowed to finish before it returns.
func (s *Scheduler) Run(ctx context.Context) error {
	var srv *http.Server
	if s.cfg.MetricsAddr != "" {
		ln, err := net.Listen("tcp", s.cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.MetricsAddr, err)
		}
		s.mu.Lock()
		s.listener = ln
		s.mu.Unlock()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
		srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			// Serve returns http.ErrServerClosed on graceful shutdown.
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Metrics server error")
			}
		}()
		log.Info().Str("addr", ln.Addr().String()).Msg("Metrics server listening")
	}

	s.cron.Start()
	log.Info().Str("spec", s.cfg.Spec).Time("next", s.Next()).Msg("Scheduler started")

	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}
	log.Info().Msg("Scheduler stopped")
	return nil
}

// cronLogger routes cron's own messages to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
