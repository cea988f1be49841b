package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

var errMissingToken = errors.New("missing access token")

// ListDevices returns the devices visible to token. A missing token or a
// failed request yields an empty list.
func (c *Client) ListDevices(ctx context.Context, token string) []CloudDevice {
	devices := []CloudDevice{}
	if token == "" {
		return devices
	}

	req, err := c.createRequest(ctx, http.MethodGet, "/v1/devices", url.Values{"access_token": {token}}, nil)
	if err != nil {
		return devices
	}
	if err := c.doJSON(req, &devices); err != nil {
		log.Warn().Err(err).Msg("Failed to list devices; returning empty list")
		return []CloudDevice{}
	}
	return devices
}

// GetDevice fetches the descriptor of one device. It reports false when the
// token is missing or the device is not found or unreachable.
func (c *Client) GetDevice(ctx context.Context, token, deviceID string) (*CloudDevice, bool) {
	if token == "" || deviceID == "" {
		return nil, false
	}

	req, err := c.createRequest(ctx, http.MethodGet, devicePath(deviceID), url.Values{"access_token": {token}}, nil)
	if err != nil {
		return nil, false
	}
	var d CloudDevice
	if err := c.doJSON(req, &d); err != nil {
		log.Warn().Err(err).Str("device", deviceID).Msg("Failed to fetch device")
		return nil, false
	}
	return &d, true
}

// CallFunction invokes a device function. Arguments are stringified and
// joined with commas.
func (c *Client) CallFunction(ctx context.Context, token, deviceID, funcName string, args ...any) (int32, error) {
	if token == "" {
		return 0, &ServiceError{StatusCode: http.StatusUnauthorized, Err: errMissingToken}
	}

	form := url.Values{
		"access_token": {token},
		"args":         {FormatArgs(args...)},
	}
	req, err := c.createRequest(ctx, http.MethodPost, devicePath(deviceID, funcName), nil, form)
	if err != nil {
		return 0, &ServiceError{StatusCode: http.StatusBadGateway, Err: err}
	}

	var result functionResponse
	if err := c.doJSON(req, &result); err != nil {
		return 0, err
	}
	log.Debug().Str("device", deviceID).Str("function", funcName).Int32("return_value", result.ReturnValue).Msg("Device function called")
	return result.ReturnValue, nil
}

// ReadVariable reads a device variable and decodes it according to typ.
func (c *Client) ReadVariable(ctx context.Context, token, deviceID, name string, typ VariableType) (any, error) {
	if token == "" {
		return nil, &ServiceError{StatusCode: http.StatusUnauthorized, Err: errMissingToken}
	}

	req, err := c.createRequest(ctx, http.MethodGet, devicePath(deviceID, name), url.Values{"access_token": {token}}, nil)
	if err != nil {
		return nil, &ServiceError{StatusCode: http.StatusBadGateway, Err: err}
	}

	var result variableResponse
	if err := c.doJSON(req, &result); err != nil {
		return nil, err
	}
	if len(result.Result) == 0 {
		return nil, &ServiceError{StatusCode: http.StatusBadGateway, Err: fmt.Errorf("variable %q has no result", name)}
	}
	v, err := decodeVariable(result.Result, typ)
	if err != nil {
		return nil, &ServiceError{StatusCode: http.StatusBadGateway, Err: fmt.Errorf("failed to decode variable %q: %w", name, err)}
	}
	return v, nil
}

// FormatArgs renders function arguments in the wire format: each value
// stringified, nil values dropped, slices flattened, joined with commas.
func FormatArgs(args ...any) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		switch v := a.(type) {
		case nil:
			continue
		case string:
			parts = append(parts, v)
		case []string:
			parts = append(parts, v...)
		case []any:
			if s := FormatArgs(v...); s != "" {
				parts = append(parts, s)
			}
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, ",")
}

func devicePath(deviceID string, rest ...string) string {
	p := "/v1/devices/" + url.PathEscape(deviceID)
	for _, r := range rest {
		p += "/" + url.PathEscape(r)
	}
	return p
}
