package nobo

import (
	"errors"
	"fmt"
)

var (
	ErrNoHubReachable   = errors.New("no hub reachable")
	ErrHandshakeFailed  = errors.New("handshake failed")
	ErrUnknownCode      = errors.New("unknown response code")
	ErrValidation       = errors.New("validation failed")
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrUnknownZone      = errors.New("unknown zone")
)

// HubError is an error reported by the hub itself (response code E00).
type HubError struct {
	Code    string
	Message string
}

func (e *HubError) Error() string {
	return fmt.Sprintf("hub error %s: %s", e.Code, e.Message)
}
