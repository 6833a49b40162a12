package uci

import "errors"

var (
	// ErrProcessSpawnFailed is returned when the engine binary could not be
	// started. The session stays uninitialized and may be retried.
	ErrProcessSpawnFailed = errors.New("engine process spawn failed")

	// ErrEngineCrashed rejects every pending request when the engine exits
	// without being asked to.
	ErrEngineCrashed = errors.New("engine crashed")

	// ErrSessionClosed is returned for requests made after Terminate.
	ErrSessionClosed = errors.New("engine session closed")

	// ErrCancelled rejects requests still pending when Terminate is called.
	ErrCancelled = errors.New("engine request cancelled")

	// ErrInvalidPosition is returned for FEN strings that cannot be sent
	// to the engine.
	ErrInvalidPosition = errors.New("invalid position")
)
