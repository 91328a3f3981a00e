package session

import (
	"errors"

	"klutch/screen"
)

// Failure classes the controller routes on. Permission and protocol
// failures are terminal; everything else feeds the reconnect path or
// is handled locally.
var (
	ErrPermissionDenied  = errors.New("device permission denied")
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrTransportClosed   = errors.New("transport closed")
	ErrTransportError    = errors.New("transport error")
)

// classifyDeviceErr maps device-layer failures onto the controller's
// taxonomy. Anything that is not an explicit permission refusal is
// treated as a transient device problem.
func classifyDeviceErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, screen.ErrPermissionDenied) {
		return errors.Join(ErrPermissionDenied, err)
	}
	return errors.Join(ErrDeviceUnavailable, err)
}

// IsTerminal reports whether err requires an explicit user restart
// rather than an automatic reconnect.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrTransportError)
}
