package apps

import "context"

// DefaultApp is used for devices whose app name has no registered handler.
// It exposes no actions and renders only the base context.
type DefaultApp struct {
	dev Device
}

// NewDefaultApp is a Factory.
func NewDefaultApp(dev Device) App { return &DefaultApp{dev: dev} }

func (a *DefaultApp) ActionNames() []string { return []string{} }

func (a *DefaultApp) Action(_ context.Context, name string, _ Args) (any, error) {
	return nil, UnknownAction(name)
}

func (a *DefaultApp) Render(rc Context) (Representation, error) {
	return BaseRepresentation(a.dev, rc), nil
}

// BaseRepresentation copies rc and adds the device id.
func BaseRepresentation(dev Device, rc Context) Representation {
	out := make(Representation, len(rc)+1)
	for k, v := range rc {
		out[k] = v
	}
	if dev != nil {
		out["device_id"] = dev.ID()
	}
	return out
}
