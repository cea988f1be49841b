package apps_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/habedi/sparkdoor/apps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct{ id string }

func (d fakeDevice) ID() string { return d.id }
func (d fakeDevice) Call(context.Context, string, ...any) (int32, error) {
	return 1, nil
}
func (d fakeDevice) Read(context.Context, string) (any, error) { return nil, nil }

type echoApp struct{ dev apps.Device }

func (a *echoApp) ActionNames() []string { return []string{"echo"} }
func (a *echoApp) Action(_ context.Context, name string, args apps.Args) (any, error) {
	if !apps.HasAction(a, name) {
		return nil, apps.UnknownAction(name)
	}
	return args["value"], nil
}
func (a *echoApp) Render(rc apps.Context) (apps.Representation, error) {
	return apps.BaseRepresentation(a.dev, rc), nil
}

func TestResolve_UnregisteredNameFallsBackToDefault(t *testing.T) {
	registry := apps.NewRegistry(map[string]apps.Factory{
		"echo": func(dev apps.Device) apps.App { return &echoApp{dev: dev} },
	})

	for _, name := range []string{"", "thermostat", "ECHO"} {
		app := registry.Resolve(name)(fakeDevice{id: "dev-1"})
		require.NotNil(t, app)
		_, isDefault := app.(*apps.DefaultApp)
		assert.True(t, isDefault, "app name %q", name)
		assert.False(t, registry.Registered(name))
	}
}

func TestResolve_NilRegistry(t *testing.T) {
	var registry *apps.Registry
	app := registry.For("door", fakeDevice{id: "dev-1"})
	_, isDefault := app.(*apps.DefaultApp)
	assert.True(t, isDefault)
	assert.Empty(t, registry.Names())
}

func TestResolve_RegisteredApp(t *testing.T) {
	registry := apps.NewRegistry(map[string]apps.Factory{
		"echo": func(dev apps.Device) apps.App { return &echoApp{dev: dev} },
		"nil":  nil,
	})

	assert.Equal(t, []string{"echo"}, registry.Names())
	app := registry.For("echo", fakeDevice{id: "dev-1"})
	out, err := app.Action(context.Background(), "echo", apps.Args{"value": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)

	_, err = app.Action(context.Background(), "shout", nil)
	assert.ErrorIs(t, err, apps.ErrUnknownAction)
}

func TestRegistry_IsolatedFromSourceMap(t *testing.T) {
	src := map[string]apps.Factory{
		"echo": func(dev apps.Device) apps.App { return &echoApp{dev: dev} },
	}
	registry := apps.NewRegistry(src)
	delete(src, "echo")

	assert.True(t, registry.Registered("echo"))
}

func TestDefaultApp(t *testing.T) {
	app := apps.NewDefaultApp(fakeDevice{id: "dev-9"})

	assert.Empty(t, app.ActionNames())
	_, err := app.Action(context.Background(), "open", apps.Args{})
	assert.ErrorIs(t, err, apps.ErrUnknownAction)

	out, err := app.Render(apps.Context{"user": "ann"})
	require.NoError(t, err)
	assert.Equal(t, apps.Representation{"user": "ann", "device_id": "dev-9"}, out)
}

func TestInvalidRequestError(t *testing.T) {
	err := apps.Invalid("idcard", "uid", "is required")

	assert.True(t, errors.Is(err, apps.ErrInvalidRequest))
	assert.False(t, errors.Is(err, apps.ErrUnknownAction))
	var ire *apps.InvalidRequestError
	require.True(t, errors.As(err, &ire))
	assert.Equal(t, "uid", ire.Field)
	assert.Equal(t, "invalid idcard request: uid is required", err.Error())
}

func TestArgs(t *testing.T) {
	args := apps.Args{
		"name":   "front",
		"empty":  "",
		"count":  float64(3),
		"frac":   2.5,
		"text":   "7",
		"bad":    "seven",
		"number": json.Number("12"),
		"native": 4,
	}

	s, ok := args.String("name")
	assert.True(t, ok)
	assert.Equal(t, "front", s)
	_, ok = args.String("empty")
	assert.False(t, ok)
	_, ok = args.String("count")
	assert.False(t, ok)

	tests := []struct {
		key     string
		want    int
		present bool
		wantErr bool
	}{
		{"count", 3, true, false},
		{"text", 7, true, false},
		{"number", 12, true, false},
		{"native", 4, true, false},
		{"frac", 0, true, true},
		{"bad", 0, true, true},
		{"missing", 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			n, present, err := args.Int(tt.key)
			assert.Equal(t, tt.present, present)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}
