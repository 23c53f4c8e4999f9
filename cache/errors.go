package cache

// Error is a sentinel error type, mirroring the taxonomy the rest of
// this module uses instead of ad-hoc error types.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrCacheBusy is returned when a per-file advisory lock could not
	// be acquired before AccessTimeout elapsed. Callers treat it the
	// same as a cache miss: fall through to origin.
	ErrCacheBusy Error = "cache: entry busy"

	// ErrCacheCorrupt is returned when a policy or sysvalue file's
	// version tag does not match what this build writes. Callers
	// treat it as a miss, never a crash (spec §4.7 Integrity).
	ErrCacheCorrupt Error = "cache: corrupt or incompatible entry"

	// ErrOriginFailed wraps a non-2xx or transport-level failure
	// fetching from origin.
	ErrOriginFailed Error = "cache: origin fetch failed"
)
