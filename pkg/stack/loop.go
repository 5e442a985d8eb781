package stack

import (
	"context"
	"time"
)

// Scan runs one processing cycle: watchdogs, production, then the
// application poll.
func (h *Host) Scan(now time.Time) {
	if h.app == nil {
		return
	}
	h.Process(now)
	h.app.PollTick()
	h.scans++
}

// Run scans every interval until ctx is done. Functions submitted with Do
// run between scans.
func (h *Host) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-h.work:
			fn()
		case <-ticker.C:
			h.Scan(h.config.Now())
		}
	}
}

// Do runs fn on the goroutine executing Run and waits for it to finish.
func (h *Host) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case h.work <- func() {
		defer close(done)
		fn()
	}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
