package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrDataUnavailable       = errors.New("market data unavailable")
	ErrInvalidTransferParams = errors.New("invalid transfer parameters")
	ErrParticipantTimeout    = errors.New("participant timed out")
	ErrNoQuorum              = errors.New("no votes received")
	ErrNoProviderAvailable   = errors.New("no bridge provider available")
	ErrExecutionFailed       = errors.New("execution failed")
	ErrPoolExhausted         = errors.New("agent pool at capacity")
	ErrLockHeld              = errors.New("lock already held")
)
