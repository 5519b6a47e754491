package publish

import "sync"

// Latest is an overwrite-latest handoff buffer: the writer replaces the
// stored snapshot every frame, a slow reader only ever sees the most
// recent one. Generation increments on every store so a reader can tell
// whether anything changed since its last look.
type Latest struct {
	mu         sync.Mutex
	snapshot   *Snapshot
	generation uint64
}

// Store replaces the buffered snapshot.
func (l *Latest) Store(s *Snapshot) {
	l.mu.Lock()
	l.snapshot = s
	l.generation++
	l.mu.Unlock()
}

// Load returns the most recent snapshot (nil before the first store)
// and its generation.
func (l *Latest) Load() (*Snapshot, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot, l.generation
}
