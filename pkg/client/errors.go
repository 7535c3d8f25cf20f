package client

import "errors"

var (
	// ErrServerNotRunning is returned when the lattice server is not running
	ErrServerNotRunning = errors.New("server not running")

	// ErrPermissionDenied is returned when the user does not have permission to open the socket
	ErrPermissionDenied = errors.New("permission denied")
)
