package locks

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// MemoryService implements the lock contract within a single process. It is
// used with sqlite/mysql backends and in tests, where cross-process
// exclusion is not available.
type MemoryService struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

// NewMemoryService constructs an in-process lock service.
func NewMemoryService() *MemoryService {
	return &MemoryService{held: make(map[string]chan struct{})}
}

// TryLock attempts a non-blocking acquire; nil Holder means already held.
func (s *MemoryService) TryLock(ctx context.Context, key string) (Holder, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("locks: key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.held[key]; ok {
		return nil, nil
	}

	released := make(chan struct{})
	s.held[key] = released
	return &memoryHolder{svc: s, key: key, released: released}, nil
}

// Lock blocks until the key is free or ctx is done.
func (s *MemoryService) Lock(ctx context.Context, key string) (Holder, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		holder, err := s.TryLock(ctx, key)
		if err != nil {
			return nil, err
		}
		if holder != nil {
			return holder, nil
		}

		s.mu.Lock()
		released := s.held[strings.TrimSpace(key)]
		s.mu.Unlock()

		if released == nil {
			continue
		}

		select {
		case <-released:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

type memoryHolder struct {
	svc      *MemoryService
	key      string
	released chan struct{}
	once     sync.Once
}

// Close releases the lock and wakes blocked waiters.
func (h *memoryHolder) Close() error {
	h.once.Do(func() {
		h.svc.mu.Lock()
		delete(h.svc.held, h.key)
		h.svc.mu.Unlock()
		close(h.released)
	})
	return nil
}
