package app

import "errors"

// Application errors.
var (
	// ErrInvalidConfiguration is returned by OnDataReceived when the config
	// validator refuses the configuration assembly contents.
	ErrInvalidConfiguration = errors.New("invalid configuration data")

	ErrNotInitialized     = errors.New("device not initialized")
	ErrAlreadyInitialized = errors.New("device already initialized")
)
