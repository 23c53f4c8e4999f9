package cache

import (
	"os"
	"path/filepath"
	"time"
)

// semPath is the advisory lock file per spec §6: its mere presence
// means the lock is held. Used only around eviction/sweep, never
// around routine per-file reads or writes (those use retryIO below).
func semPath(root string) string { return filepath.Join(root, "cache.sem") }

// acquireSem creates root/cache.sem exclusively, retrying with the
// same backoff as retryIO (the wait grows by 50ms per attempt), until timeout
// elapses (timeout<=0 means wait forever). The returned release func
// removes the lock file.
func acquireSem(root string, timeout time.Duration) (release func(), err error) {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	wait := 50 * time.Millisecond
	for {
		f, err := os.OpenFile(semPath(root), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			f.Close()
			return func() { os.Remove(semPath(root)) }, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		if !deadline.IsZero() && time.Now().Add(wait).After(deadline) {
			return nil, ErrCacheBusy
		}
		time.Sleep(wait)
		wait += 50 * time.Millisecond
	}
}

// retryIO runs op repeatedly with the same 50ms-incrementing backoff
// used for the semaphore, swallowing only "file in use"-shaped
// transient errors (os.IsExist / os.IsPermission / os.IsTimeout), until it succeeds
// or timeout elapses (timeout<=0 waits forever); any other error is
// returned immediately, and a persistent conflict becomes
// ErrCacheBusy (spec §4.7: "per-file reads/writes use a retry loop...
// translate a persistent conflict into CacheBusy").
func retryIO(timeout time.Duration, op func() error) error {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	wait := 50 * time.Millisecond
	for {
		err := op()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		if !deadline.IsZero() && time.Now().Add(wait).After(deadline) {
			return ErrCacheBusy
		}
		time.Sleep(wait)
		wait += 50 * time.Millisecond
	}
}

func isTransient(err error) bool {
	return os.IsExist(err) || os.IsPermission(err) || os.IsTimeout(err)
}
