package device

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/habedi/sparkdoor/client"
	"github.com/habedi/sparkdoor/db"
	"github.com/rs/zerolog/log"
)

// AppNameVariable is the device variable that declares which app drives it.
const AppNameVariable = "app_name"

// Registrar adds cloud devices to the local registry.
type Registrar struct {
	Devices db.DeviceRepository
	Tokens  TokenSource
	Cloud   Cloud
}

// NewRegistrar is the constructor for the registration flow.
func NewRegistrar(devices db.DeviceRepository, tokens TokenSource, cloud Cloud) *Registrar {
	return &Registrar{Devices: devices, Tokens: tokens, Cloud: cloud}
}

// Register records deviceID for ownerID. The device must not be registered
// yet and must exist in the cloud. Its app is taken from the app_name
// variable when the device declares one. An empty name defaults to the
// cloud name.
func (r *Registrar) Register(ctx context.Context, deviceID, name, ownerID string) (*db.Device, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, fmt.Errorf("device id cannot be empty")
	}

	exists, err := r.Devices.Exists(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to check device registry: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", db.ErrDeviceExists, deviceID)
	}

	token, err := r.Tokens.Refresh(ctx)
	if err != nil {
		return nil, &DeviceUnreachableError{DeviceID: deviceID, StatusCode: http.StatusUnauthorized, Err: err}
	}
	desc, ok := r.Cloud.GetDevice(ctx, token, deviceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInCloud, deviceID)
	}

	appName := ""
	if _, declared := desc.Variables[AppNameVariable]; declared {
		v, err := r.Cloud.ReadVariable(ctx, token, deviceID, AppNameVariable, client.VarString)
		if err != nil {
			return nil, unreachable(deviceID, err)
		}
		appName, _ = v.(string)
	}

	if name == "" {
		name = desc.Name
	}
	dev := &db.Device{DeviceID: deviceID, Name: name, OwnerID: ownerID, AppName: appName}
	if err := r.Devices.Create(ctx, dev); err != nil {
		return nil, err
	}
	log.Info().Str("device", deviceID).Str("app", appName).Str("owner", ownerID).Msg("Device registered")
	return dev, nil
}
