// Package apps maps a device's declared app name to the handler that knows
// which actions the device supports and how to present it.
package apps

import (
	"context"
	"maps"
	"slices"
)

// Args are the arguments of an action request.
type Args map[string]any

// Context is the caller-supplied data handed to Render.
type Context map[string]any

// Representation is what Render produces.
type Representation map[string]any

// Device is the subset of *device.Proxy an app uses.
type Device interface {
	ID() string
	Call(ctx context.Context, funcName string, args ...any) (int32, error)
	Read(ctx context.Context, name string) (any, error)
}

// App is the server side counterpart of the firmware running on a device.
type App interface {
	ActionNames() []string
	Action(ctx context.Context, name string, args Args) (any, error)
	Render(rc Context) (Representation, error)
}

// Factory builds the app for one device.
type Factory func(dev Device) App

// Registry resolves app names to factories. It is built once and never
// mutated, so it is safe for concurrent use.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry copies factories into a new registry. Nil factories are ignored.
func NewRegistry(factories map[string]Factory) *Registry {
	r := &Registry{factories: make(map[string]Factory, len(factories))}
	for name, f := range factories {
		if f != nil {
			r.factories[name] = f
		}
	}
	return r
}

// Resolve returns the factory registered for appName, or the DefaultApp
// factory when there is none.
func (r *Registry) Resolve(appName string) Factory {
	if r != nil {
		if f, ok := r.factories[appName]; ok {
			return f
		}
	}
	return NewDefaultApp
}

// Registered reports whether appName has its own handler.
func (r *Registry) Registered(appName string) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[appName]
	return ok
}

// Names returns the registered app names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return []string{}
	}
	return slices.Sorted(maps.Keys(r.factories))
}

// For builds the app for dev based on appName.
func (r *Registry) For(appName string, dev Device) App {
	return r.Resolve(appName)(dev)
}

// HasAction reports whether app lists name among its actions.
func HasAction(app App, name string) bool {
	return slices.Contains(app.ActionNames(), name)
}
