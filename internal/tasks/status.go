package tasks

import "sync"

// StatusService tracks the running state of named tasks in process memory.
// The map is mutex-guarded because scheduler ticks and ad-hoc invocations
// may touch it concurrently.
type StatusService struct {
	mu      sync.RWMutex
	running map[string]bool
}

// NewStatusService constructs an empty status map.
func NewStatusService() *StatusService {
	return &StatusService{running: make(map[string]bool)}
}

// SetInitialState records the state only when the task is not yet known.
// The first write wins; later initial registrations are ignored.
func (s *StatusService) SetInitialState(name string, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.running[name]; !ok {
		s.running[name] = running
	}
}

// SetRunning unconditionally overwrites the state for a task.
func (s *StatusService) SetRunning(name string, running bool) {
	s.mu.Lock()
	s.running[name] = running
	s.mu.Unlock()
}

// IsRunning reports the last recorded state for a task.
func (s *StatusService) IsRunning(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.running[name]
}
