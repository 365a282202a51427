package ping

import "errors"

var (
	ErrDeliveryFailed      = errors.New("failed to deliver ping")
	ErrConfirmationTimeout = errors.New("no confirmation received in time")
)
