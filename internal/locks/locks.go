package locks

import "context"

// Holder represents an acquired lock. Closing it releases the lock; Close
// is safe to call more than once.
type Holder interface {
	Close() error
}

// Service provides cross-process mutual exclusion for named keys.
//
// TryLock never blocks: it returns a nil Holder when the lock is held
// elsewhere. Lock blocks until the lock is acquired or ctx is done; callers
// bound the wait through the context.
type Service interface {
	TryLock(ctx context.Context, key string) (Holder, error)
	Lock(ctx context.Context, key string) (Holder, error)
}
