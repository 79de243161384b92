package counting

import "sync"

// DirtySet tracks which files currently have a trigger sitting in the
// change-event queue. The bridge marks a file before enqueueing and skips
// files already marked, so the queue holds at most one trigger per file and
// a burst for one file can never crowd out another file's only trigger. The
// engine unmarks a file when it dequeues its trigger.
type DirtySet struct {
	mu    sync.Mutex
	paths map[string]bool
}

func NewDirtySet() *DirtySet {
	return &DirtySet{paths: make(map[string]bool)}
}

// MarkIfClean marks path and reports whether it was not already marked.
// A false return means a trigger for path is already queued.
func (s *DirtySet) MarkIfClean(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paths[path] {
		return false
	}
	s.paths[path] = true
	return true
}

// Clear unmarks path so its next trigger can be enqueued again.
func (s *DirtySet) Clear(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paths, path)
}
