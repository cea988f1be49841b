package device

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/habedi/sparkdoor/client"
)

// ErrNotInCloud is returned when registering a device the cloud does not know.
var ErrNotInCloud = errors.New("device not found in cloud")

// DeviceUnreachableError is the normalized failure of every proxy operation.
// StatusCode is the upstream HTTP status, 401 when no token could be
// obtained, or 502 when no response was received.
type DeviceUnreachableError struct {
	DeviceID   string
	StatusCode int
	Err        error
}

func (e *DeviceUnreachableError) Error() string {
	msg := fmt.Sprintf("device %s unreachable (status %d)", e.DeviceID, e.StatusCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DeviceUnreachableError) Unwrap() error { return e.Err }

// StatusOf returns the status code carried by a DeviceUnreachableError in
// err's chain, or 0 if there is none.
func StatusOf(err error) int {
	var de *DeviceUnreachableError
	if errors.As(err, &de) {
		return de.StatusCode
	}
	return 0
}

func unreachable(deviceID string, err error) *DeviceUnreachableError {
	var se *client.ServiceError
	status := http.StatusBadGateway
	if errors.As(err, &se) {
		status = se.StatusCode
	}
	return &DeviceUnreachableError{DeviceID: deviceID, StatusCode: status, Err: err}
}
