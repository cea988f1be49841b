// Package device provides a per-device façade over the cloud client and the
// flow that registers devices.
package device

import (
	"context"
	"net/http"

	"github.com/habedi/sparkdoor/client"
	"github.com/habedi/sparkdoor/pkg/metrics"
	"github.com/rs/zerolog/log"
)

// TokenSource yields a usable cloud access token. *auth.Service satisfies it.
type TokenSource interface {
	Refresh(ctx context.Context) (string, error)
}

// Cloud is the part of the cloud client the proxy uses. *client.Client satisfies it.
type Cloud interface {
	GetDevice(ctx context.Context, token, deviceID string) (*client.CloudDevice, bool)
	CallFunction(ctx context.Context, token, deviceID, funcName string, args ...any) (int32, error)
	ReadVariable(ctx context.Context, token, deviceID, name string, typ client.VariableType) (any, error)
}

// Proxy calls functions and reads variables on one device. The descriptor
// is fetched on first use and kept for the lifetime of the Proxy.
// A Proxy must not be shared between goroutines.
type Proxy struct {
	deviceID string
	tokens   TokenSource
	cloud    Cloud
	metrics  *metrics.Metrics

	descriptor *client.CloudDevice
	fetched    bool
}

// New creates a proxy for deviceID.
func New(deviceID string, tokens TokenSource, cloud Cloud, m *metrics.Metrics) *Proxy {
	return &Proxy{
		deviceID: deviceID,
		tokens:   tokens,
		cloud:    cloud,
		metrics:  metrics.OrNop(m),
	}
}

// ID returns the device identifier.
func (p *Proxy) ID() string { return p.deviceID }

// Call invokes funcName on the device and returns its integer result.
func (p *Proxy) Call(ctx context.Context, funcName string, args ...any) (int32, error) {
	token, err := p.token(ctx, "call")
	if err != nil {
		return 0, err
	}
	rv, err := p.cloud.CallFunction(ctx, token, p.deviceID, funcName, args...)
	if err != nil {
		p.metrics.DeviceOpsTotal.WithLabelValues("call", "unreachable").Inc()
		log.Warn().Err(err).Str("device", p.deviceID).Str("function", funcName).Msg("Device call failed")
		return 0, unreachable(p.deviceID, err)
	}
	p.metrics.DeviceOpsTotal.WithLabelValues("call", "success").Inc()
	return rv, nil
}

// Read returns the value of a device variable decoded by its declared type.
// The type is inferred from the value only for undeclared variables.
func (p *Proxy) Read(ctx context.Context, name string) (any, error) {
	vars, err := p.Variables(ctx)
	if err != nil {
		return nil, err
	}
	return p.ReadAs(ctx, name, vars[name])
}

// ReadAs returns the value of a device variable decoded as typ.
func (p *Proxy) ReadAs(ctx context.Context, name string, typ client.VariableType) (any, error) {
	token, err := p.token(ctx, "read")
	if err != nil {
		return nil, err
	}
	v, err := p.cloud.ReadVariable(ctx, token, p.deviceID, name, typ)
	if err != nil {
		p.metrics.DeviceOpsTotal.WithLabelValues("read", "unreachable").Inc()
		log.Warn().Err(err).Str("device", p.deviceID).Str("variable", name).Msg("Device read failed")
		return nil, unreachable(p.deviceID, err)
	}
	p.metrics.DeviceOpsTotal.WithLabelValues("read", "success").Inc()
	return v, nil
}

// Descriptor returns the cloud-reported metadata of the device. The first
// call performs one cloud lookup; a device the cloud does not return is
// cached as an empty descriptor.
func (p *Proxy) Descriptor(ctx context.Context) (*client.CloudDevice, error) {
	if p.fetched {
		return p.descriptor, nil
	}
	token, err := p.token(ctx, "describe")
	if err != nil {
		return nil, err
	}

	d, ok := p.cloud.GetDevice(ctx, token, p.deviceID)
	if !ok {
		p.metrics.DeviceOpsTotal.WithLabelValues("describe", "unreachable").Inc()
		d = &client.CloudDevice{ID: p.deviceID}
	} else {
		p.metrics.DeviceOpsTotal.WithLabelValues("describe", "success").Inc()
	}
	p.descriptor = d
	p.fetched = true
	return d, nil
}

// Variables returns the declared variables of the device.
func (p *Proxy) Variables(ctx context.Context) (map[string]client.VariableType, error) {
	d, err := p.Descriptor(ctx)
	if err != nil {
		return nil, err
	}
	if d.Variables == nil {
		return map[string]client.VariableType{}, nil
	}
	return d.Variables, nil
}

// Functions returns the function names the device exposes, in cloud order.
func (p *Proxy) Functions(ctx context.Context) ([]string, error) {
	d, err := p.Descriptor(ctx)
	if err != nil {
		return nil, err
	}
	if d.Functions == nil {
		return []string{}, nil
	}
	return d.Functions, nil
}

func (p *Proxy) token(ctx context.Context, op string) (string, error) {
	token, err := p.tokens.Refresh(ctx)
	if err != nil {
		p.metrics.DeviceOpsTotal.WithLabelValues(op, "unreachable").Inc()
		return "", &DeviceUnreachableError{DeviceID: p.deviceID, StatusCode: http.StatusUnauthorized, Err: err}
	}
	return token, nil
}
