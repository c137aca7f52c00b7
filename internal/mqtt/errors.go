package mqtt

import "errors"

var (
	ErrUnsupportedFeature = errors.New("feature not supported by this printer")
	ErrNotConnected       = errors.New("not connected")
	ErrPublishFailed      = errors.New("publish failed")
	ErrProbeTimeout       = errors.New("no version report before timeout")
	ErrClosed             = errors.New("client closed")
	ErrAuthRefused        = errors.New("broker refused credentials")
)
