package mcpserver

import (
	"context"
	"errors"
	"sync"

	"stride/pkg/logging"
)

// releaseEntry is one acquired resource and the function that releases it.
type releaseEntry struct {
	name    string
	release func() error
}

// releaseStack holds acquired resources (spawned process handle, open pipes)
// and releases them in strict reverse acquisition order. A mutex plus a
// released flag guard against concurrent or repeated release: only the first
// call executes the closers, every later call is a no-op.
type releaseStack struct {
	mu       sync.Mutex
	released bool
	entries  []releaseEntry
}

func newReleaseStack() *releaseStack {
	return &releaseStack{}
}

// Push records a resource to release. Pushing onto an already-released stack
// releases the resource immediately so nothing leaks on racy teardown.
func (s *releaseStack) Push(name string, release func() error) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		logging.Warn("ReleaseStack", "Resource %s acquired after release, closing immediately", name)
		if err := release(); err != nil {
			logging.Warn("ReleaseStack", "Closing %s: %v", name, err)
		}
		return
	}
	s.entries = append(s.entries, releaseEntry{name: name, release: release})
	s.mu.Unlock()
}

// Release closes every recorded resource in reverse order. Cancellation
// signals surfacing from closers are expected during shutdown and are logged
// rather than returned; all other errors are collected without
// short-circuiting.
func (s *releaseStack) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	entries := s.entries
	s.entries = nil
	s.mu.Unlock()

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		err := entry.release()
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logging.Warn("ReleaseStack", "Releasing %s interrupted by cancellation: %v", entry.name, err)
			continue
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
