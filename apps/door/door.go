// Package door is the app for door controller devices: it opens the door,
// checks RFID cards and shareable passes, and reports usage.
package door

import (
	"context"
	"fmt"
	"time"

	"github.com/habedi/sparkdoor/apps"
	"github.com/habedi/sparkdoor/db"
	"github.com/habedi/sparkdoor/pkg/validation"
	"github.com/rs/zerolog/log"
)

// AppName is the value door firmware reports in its app_name variable.
const AppName = "door"

// OpenFunction is the firmware function that releases the door.
const OpenFunction = "open"

const (
	ActionOpen   = "open"
	ActionIDCard = "idcard"
	ActionInvite = "invite"
	ActionPass   = "pass"
	ActionStats  = "stats"
)

var actionNames = []string{ActionOpen, ActionIDCard, ActionInvite, ActionPass, ActionStats}

// App drives one door device.
type App struct {
	dev   apps.Device
	store db.DoorRepository
	now   func() time.Time
}

// NewFactory returns the apps.Factory for door devices backed by store.
func NewFactory(store db.DoorRepository) apps.Factory {
	return func(dev apps.Device) apps.App {
		return &App{dev: dev, store: store, now: time.Now}
	}
}

func (a *App) ActionNames() []string {
	return append([]string(nil), actionNames...)
}

func (a *App) Action(ctx context.Context, name string, args apps.Args) (any, error) {
	if !apps.HasAction(a, name) {
		return nil, apps.UnknownAction(name)
	}
	if args == nil {
		args = apps.Args{}
	}
	switch name {
	case ActionOpen:
		return a.open(ctx, args)
	case ActionIDCard:
		return a.idCard(ctx, args)
	case ActionInvite:
		return a.invite(ctx, args)
	case ActionPass:
		return a.pass(ctx, args)
	case ActionStats:
		return a.stats(ctx)
	}
	return nil, apps.UnknownAction(name)
}

func (a *App) Render(rc apps.Context) (apps.Representation, error) {
	out := apps.BaseRepresentation(a.dev, rc)
	out["app"] = AppName
	out["actions"] = a.ActionNames()
	return out, nil
}

func (a *App) open(ctx context.Context, args apps.Args) (any, error) {
	rv, err := a.dev.Call(ctx, OpenFunction, args["args"])
	if err != nil {
		return nil, err
	}
	a.record(ctx, db.EventOpen, "")
	return map[string]any{"return_value": rv}, nil
}

// idCard opens the door when uid is a card registered for this device.
func (a *App) idCard(ctx context.Context, args apps.Args) (any, error) {
	uid, ok := args.String("uid")
	if !ok {
		return nil, apps.Invalid(ActionIDCard, "uid", "is required")
	}
	if err := validation.ValidateCardUID(uid); err != nil {
		return nil, apps.Invalid(ActionIDCard, "uid", err.Error())
	}

	allowed, err := a.store.HasIDCard(ctx, a.dev.ID(), uid)
	if err != nil {
		return nil, fmt.Errorf("failed to look up id card: %w", err)
	}
	if !allowed {
		log.Info().Str("device", a.dev.ID()).Str("uid", uid).Msg("Unknown id card rejected")
		return map[string]any{"allowed": false}, nil
	}
	if _, err := a.dev.Call(ctx, OpenFunction); err != nil {
		return nil, err
	}
	a.record(ctx, db.EventUseCard, uid)
	return map[string]any{"allowed": true}, nil
}

// invite creates a pass. expires_in is in seconds; use_limit 0 means unlimited.
func (a *App) invite(ctx context.Context, args apps.Args) (any, error) {
	var expiresAt *time.Time
	secs, present, err := args.Int("expires_in")
	if err != nil {
		return nil, apps.Invalid(ActionInvite, "", err.Error())
	}
	if present {
		if secs <= 0 {
			return nil, apps.Invalid(ActionInvite, "expires_in", "must be positive")
		}
		t := a.now().Add(time.Duration(secs) * time.Second)
		expiresAt = &t
	}

	var useLimit *int
	limit, present, err := args.Int("use_limit")
	if err != nil {
		return nil, apps.Invalid(ActionInvite, "", err.Error())
	}
	if present {
		if err := validation.ValidateUseLimit(limit); err != nil {
			return nil, apps.Invalid(ActionInvite, "use_limit", err.Error())
		}
		useLimit = &limit
	}

	pass, err := a.store.CreatePass(ctx, a.dev.ID(), expiresAt, useLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to create pass: %w", err)
	}
	log.Info().Str("device", a.dev.ID()).Msg("Door pass created")
	return map[string]any{"token": pass.Token, "expires_at": pass.ExpiresAt, "use_limit": pass.UseLimit}, nil
}

// pass opens the door for a valid pass issued for this device.
func (a *App) pass(ctx context.Context, args apps.Args) (any, error) {
	token, ok := args.String("token")
	if !ok {
		return nil, apps.Invalid(ActionPass, "token", "is required")
	}

	p, err := a.store.GetPass(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to look up pass: %w", err)
	}
	if p == nil || p.DeviceID != a.dev.ID() || p.Expired(a.now()) {
		return map[string]any{"allowed": false}, nil
	}
	// Take the use before opening so concurrent requests cannot exceed the limit.
	used, err := a.store.UsePass(ctx, token, a.dev.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to use pass: %w", err)
	}
	if !used {
		return map[string]any{"allowed": false}, nil
	}
	if _, err := a.dev.Call(ctx, OpenFunction); err != nil {
		if rerr := a.store.ReturnPass(context.WithoutCancel(ctx), token); rerr != nil {
			log.Error().Err(rerr).Str("device", a.dev.ID()).Msg("Failed to return pass use")
		}
		return nil, err
	}
	a.record(ctx, db.EventUsePass, token)
	return map[string]any{"allowed": true}, nil
}

func (a *App) stats(ctx context.Context) (any, error) {
	counts, err := a.store.EventCounts(ctx, a.dev.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	for _, ev := range []string{db.EventOpen, db.EventUseCard, db.EventUsePass} {
		if _, ok := counts[ev]; !ok {
			counts[ev] = 0
		}
	}
	return counts, nil
}

// record logs event failures instead of failing the action; the door has
// already opened at this point.
func (a *App) record(ctx context.Context, event, data string) {
	if err := a.store.RecordEvent(ctx, a.dev.ID(), event, data, a.now()); err != nil {
		log.Error().Err(err).Str("device", a.dev.ID()).Str("event", event).Msg("Failed to record door event")
	}
}
