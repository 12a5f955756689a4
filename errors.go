package compcache

import (
	"errors"

	"github.com/meigma/compcache/internal/location"
)

var (
	// ErrDisabled is returned by every operation on a disabled cache.
	ErrDisabled = errors.New("compcache: cache disabled")

	// ErrEmptyBinary is returned when asked to cache zero bytes.
	ErrEmptyBinary = errors.New("compcache: empty binary")

	// ErrTooLarge is returned when a binary is larger than the whole quota.
	ErrTooLarge = errors.New("compcache: binary exceeds cache size limit")

	// ErrInvalidHash is returned when a hash cannot name an entry file.
	ErrInvalidHash = errors.New("compcache: invalid hash")

	// ErrNotFound is returned when no entry exists for a hash.
	ErrNotFound = errors.New("compcache: entry not found")

	// ErrLockFailed is returned when the size file cannot be opened or locked.
	ErrLockFailed = errors.New("compcache: cannot lock size file")

	// ErrEvictionFailed is returned when the cache directory cannot be listed
	// for eviction.
	ErrEvictionFailed = errors.New("compcache: eviction failed")

	// ErrQuotaExceeded is returned when eviction did not free enough space.
	ErrQuotaExceeded = errors.New("compcache: quota exceeded")

	// ErrWriteFailed is returned when the entry file cannot be published.
	ErrWriteFailed = errors.New("compcache: write failed")

	// ErrNoCacheDir is returned when no cache directory can be resolved.
	ErrNoCacheDir = location.ErrNotFound
)
