package counting

import "time"

// ChangeEvent is a qualifying modification of a watched file, produced by
// the filesystem bridge and consumed exactly once by the engine.
type ChangeEvent struct {
	Path      string
	Timestamp time.Time
}

// Sink receives count updates for presentation. Both methods are called from
// engine goroutines; implementations own any thread-affinity concerns.
type Sink interface {
	OnCountChanged(path, display string, count int)
	OnTotalChanged(total int)
}
