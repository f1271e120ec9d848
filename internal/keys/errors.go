package keys

import "errors"

// Sentinel errors returned by key operations.
var (
	// ErrInvalidTier indicates a duration outside the tier table.
	ErrInvalidTier = errors.New("keys: invalid tier")
	// ErrInvalidCount indicates a batch count below one.
	ErrInvalidCount = errors.New("keys: count must be at least 1")
	// ErrInvalidDeviceLimit indicates a device limit below one.
	ErrInvalidDeviceLimit = errors.New("keys: device limit must be at least 1")
	// ErrInvalidGame indicates an unsupported game value.
	ErrInvalidGame = errors.New("keys: invalid game")
	// ErrDuplicateKey indicates the requested custom key string is in use.
	ErrDuplicateKey = errors.New("keys: key string already in use")
	// ErrKeyNotFound indicates the key does not exist.
	ErrKeyNotFound = errors.New("keys: key not found")
	// ErrKeyRevoked indicates the key was revoked.
	ErrKeyRevoked = errors.New("keys: key revoked")
	// ErrKeyExpired indicates the key passed its expiry.
	ErrKeyExpired = errors.New("keys: key expired")
	// ErrDeviceLimitExceeded indicates no free device slot remains.
	ErrDeviceLimitExceeded = errors.New("keys: device limit exceeded")
	// ErrNotAuthorized indicates the actor may not act on the key.
	ErrNotAuthorized = errors.New("keys: not authorized")
)
