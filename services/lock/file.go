// Package locksvc implements the dispatch lock on a local file or on Redis.
package locksvc

import (
	"context"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/dispatch"
)

const retryDelay = 50 * time.Millisecond

// FileLock is an advisory lock on a local file; it only guards processes of the same host.
type FileLock struct {
	path    string
	timeout time.Duration
}

var _ dispatch.Locker = (*FileLock)(nil)

func NewFileLock(path string, timeout time.Duration) *FileLock {
	return &FileLock{path: path, timeout: timeout}
}

func (l *FileLock) Acquire(ctx context.Context) (func() error, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	fl := flock.New(l.path)
	ok, err := fl.TryLockContext(ctx, retryDelay)
	if !ok {
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, dispatch.ErrLocked
		}
		return nil, errors.Wrapf(err, "locking %s", l.path)
	}
	return fl.Unlock, nil
}

// NewLocker returns the lock backend selected by conf.Scheduler.LockBackend.
func NewLocker(conf *core.Config) dispatch.Locker {
	if conf.Scheduler.LockBackend == "redis" {
		return NewRedisLock(NewRedisClient(conf), "memoraid:dispatch", conf.Scheduler.LockTTL, conf.Scheduler.LockTimeout)
	}
	return NewFileLock(conf.Scheduler.LockPath, conf.Scheduler.LockTimeout)
}
