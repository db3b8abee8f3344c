package internal

import (
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultLockStripes is the stripe count used by NewPathLocker when given 0.
const DefaultLockStripes = 256

// PathLocker serializes writers of the same destination path. Two bundles
// extracted concurrently may place chunks into the same file; each
// open-seek-write-flush sequence on a path runs under that path's stripe.
// Distinct paths may share a stripe, which costs contention but never
// correctness since a caller holds at most one stripe at a time.
type PathLocker struct {
	stripes []sync.Mutex
}

// NewPathLocker creates a locker with n stripes.
func NewPathLocker(n int) *PathLocker {
	if n <= 0 {
		n = DefaultLockStripes
	}
	return &PathLocker{stripes: make([]sync.Mutex, n)}
}

func (l *PathLocker) stripe(path string) *sync.Mutex {
	key := filepath.Clean(path)
	return &l.stripes[xxhash.Sum64String(key)%uint64(len(l.stripes))]
}

// Lock acquires the stripe guarding path and returns its release function.
func (l *PathLocker) Lock(path string) func() {
	mu := l.stripe(path)
	mu.Lock()
	return mu.Unlock
}

// WithLock runs fn while holding the stripe guarding path.
func (l *PathLocker) WithLock(path string, fn func() error) error {
	unlock := l.Lock(path)
	defer unlock()
	return fn()
}
