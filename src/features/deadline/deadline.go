package deadline

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Layout is the config timestamp format for the deadline.
const Layout = "2006-01-02 15:04"

// Expired is shown once the deadline has passed.
const Expired = "time's up"

// Parse reads a deadline in the config layout, in local time.
func Parse(s string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid deadline %q (want %s): %w", s, Layout, err)
	}
	return t, nil
}

// Remaining formats the time left until ddl, degrading to the largest
// nonzero unit: "3d 02h 05m 09s", "02h 05m 09s", "05m 09s", "09s".
func Remaining(ddl, now time.Time) string {
	td := ddl.Sub(now)
	if td <= 0 {
		return Expired
	}
	days := int(td.Hours()) / 24
	hh := int(td.Hours()) % 24
	mm := int(td.Minutes()) % 60
	ss := int(td.Seconds()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %02dh %02dm %02ds", days, hh, mm, ss)
	case hh > 0:
		return fmt.Sprintf("%02dh %02dm %02ds", hh, mm, ss)
	case mm > 0:
		return fmt.Sprintf("%02dm %02ds", mm, ss)
	default:
		return fmt.Sprintf("%02ds", ss)
	}
}

// Countdown refreshes the formatted remaining time once a second so the
// presentation layer can read it without recomputing.
type Countdown struct {
	ddl time.Time

	mu      sync.RWMutex
	current string
}

func NewCountdown(ddl time.Time) *Countdown {
	return &Countdown{ddl: ddl, current: Remaining(ddl, time.Now())}
}

// Deadline returns the configured deadline.
func (c *Countdown) Deadline() time.Time {
	return c.ddl
}

// Current returns the most recently formatted remaining time.
func (c *Countdown) Current() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Run ticks once a second until ctx is cancelled.
func (c *Countdown) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.mu.Lock()
			c.current = Remaining(c.ddl, now)
			c.mu.Unlock()
		}
	}
}
