package cmd

import (
	"context"
	"fmt"

	"github.com/habedi/sparkdoor/apps"
	"github.com/habedi/sparkdoor/apps/door"
	"github.com/habedi/sparkdoor/auth"
	"github.com/habedi/sparkdoor/client"
	"github.com/habedi/sparkdoor/db"
	"github.com/habedi/sparkdoor/device"
	"github.com/habedi/sparkdoor/lock"
	"github.com/habedi/sparkdoor/pkg/clierr"
	"github.com/habedi/sparkdoor/pkg/config"
	"github.com/habedi/sparkdoor/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// appRegistry lists the device apps compiled into sparkdoor, keyed by the
// app_name the firmware reports.
func appRegistry(doors db.DoorRepository) *apps.Registry {
	return apps.NewRegistry(map[string]apps.Factory{
		door.AppName: door.NewFactory(doors),
	})
}

// stack is everything a command needs, wired from the configuration and
// the open database.
type stack struct {
	cfg       config.Config
	cloud     *client.Client
	tokens    *auth.Service
	creds     db.CredentialRepository
	devices   db.DeviceRepository
	doors     db.DoorRepository
	locks     db.LockRepository // nil when the renewal lock lives in NATS
	registry  *apps.Registry
	registrar *device.Registrar
	metrics   *metrics.Metrics
	closers   []func() error
}

// loadStack builds the stack. reg receives the metrics collectors and may be nil.
func loadStack(ctx context.Context, reg prometheus.Registerer) (*stack, error) {
	cfg := config.Load()
	gdb := db.GetDB()
	if gdb == nil {
		return nil, clierr.New(clierr.Internal, "Database is not initialized.", nil)
	}

	m := metrics.New(reg)
	s := &stack{
		cfg:     cfg,
		cloud:   client.NewClient(cfg.CloudAPIURI, cfg.HTTPTimeout, cfg.RateLimit),
		creds:   db.NewCredentialRepository(gdb),
		devices: db.NewDeviceRepository(gdb),
		doors:   db.NewDoorRepository(gdb),
		metrics: m,
	}

	var locker lock.Locker
	if cfg.NATSURL != "" {
		nl, err := lock.DialNATS(ctx, cfg.NATSURL, cfg.NATSBucket, cfg.LockTTL, m)
		if err != nil {
			return nil, clierr.New(clierr.Unreachable, fmt.Sprintf("Failed to connect to NATS at %s.", cfg.NATSURL), err)
		}
		s.closers = append(s.closers, nl.Close)
		locker = nl
		log.Debug().Str("url", cfg.NATSURL).Str("bucket", cfg.NATSBucket).Msg("Using NATS renewal lock")
	} else {
		s.locks = db.NewLockRepository(gdb)
		locker = lock.NewDBLocker(s.locks, m)
		log.Debug().Msg("Using database renewal lock")
	}

	s.tokens = auth.NewService(s.creds, s.cloud, locker, auth.Config{
		Username:    cfg.CloudUsername,
		Password:    cfg.CloudPassword,
		RenewWindow: cfg.RenewWindow,
		LockTTL:     cfg.LockTTL,
	}, m)
	s.registry = appRegistry(s.doors)
	s.registrar = device.NewRegistrar(s.devices, s.tokens, s.cloud)
	return s, nil
}

// proxy returns a device proxy sharing the stack's token manager.
func (s *stack) proxy(deviceID string) *device.Proxy {
	return device.New(deviceID, s.tokens, s.cloud, s.metrics)
}

// app resolves the app of a registered device. Unregistered devices get
// the default app.
func (s *stack) app(ctx context.Context, deviceID string) (apps.App, *db.Device, error) {
	d, err := s.devices.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, nil, clierr.New(clierr.Internal, "Failed to read the device registry.", err)
	}
	appName := ""
	if d != nil {
		appName = d.AppName
	}
	return s.registry.For(appName, s.proxy(deviceID)), d, nil
}

func (s *stack) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("Failed to close resource")
		}
	}
}
