package client

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// AccessTokenTimeLayout is the timestamp format used by the access token list endpoint.
const AccessTokenTimeLayout = "2006-01-02T15:04:05.000000Z"

// Grant is an access token issued by the cloud.
type Grant struct {
	Token     string
	ExpiresAt time.Time
}

// VariableType is the type tag a device declares for one of its variables.
type VariableType string

const (
	VarInt32  VariableType = "int32"
	VarDouble VariableType = "double"
	VarString VariableType = "string"
)

// CloudDevice is the cloud-reported metadata of a device.
type CloudDevice struct {
	ID        string                  `json:"id"`
	Name      string                  `json:"name"`
	Connected bool                    `json:"connected"`
	LastHeard *time.Time              `json:"last_heard,omitempty"`
	LastApp   string                  `json:"last_app,omitempty"`
	Variables map[string]VariableType `json:"variables,omitempty"`
	Functions []string                `json:"functions,omitempty"`
}

type loginResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

type tokenEntry struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type functionResponse struct {
	ReturnValue int32 `json:"return_value"`
}

type variableResponse struct {
	Result json.RawMessage `json:"result"`
}

// parseTokenExpiry parses an expires_at value from the token list endpoint.
func parseTokenExpiry(s string) (time.Time, error) {
	if t, err := time.Parse(AccessTokenTimeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid token expiry %q: %w", s, err)
	}
	return t.UTC(), nil
}

// decodeVariable converts a raw variable result according to typ. An empty
// or unknown typ infers the type from the JSON value.
func decodeVariable(raw json.RawMessage, typ VariableType) (any, error) {
	switch typ {
	case VarInt32:
		var v int32
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case VarDouble:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case VarString:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if f, ok := v.(float64); ok && f >= math.MinInt32 && f <= math.MaxInt32 && f == math.Trunc(f) {
		return int32(f), nil
	}
	return v, nil
}
