// Package bridge carries turn requests from the panel to the background host
// and streams the resulting events back, over a named port.
package bridge

import "errors"

var (
	// Port errors
	ErrPortClosed      = errors.New("port closed")
	ErrInvalidPortName = errors.New("invalid port name")
	ErrListenerClosed  = errors.New("listener closed")

	// Connection errors
	ErrNotConnected     = errors.New("not connected to NATS")
	ErrConnectionFailed = errors.New("failed to connect to NATS")
	ErrNoHost           = errors.New("no host is serving the port")

	// Message errors
	ErrInvalidEnvelope = errors.New("invalid envelope")
	ErrNoHandler       = errors.New("no handler for message")
)
