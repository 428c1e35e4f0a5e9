package authcore

import (
	"context"
	"strconv"
	"time"
)

// startSweeper launches the periodic expiry sweep over the in-process
// stores. Redis-backed stores report zero; their keys carry TTLs.
func (e *Engine) startSweeper(interval time.Duration) {
	e.sweepStop = make(chan struct{})
	e.sweepWG.Add(1)

	go func() {
		defer e.sweepWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.sweepOnce(context.Background())
			case <-e.sweepStop:
				return
			}
		}
	}()
}

func (e *Engine) sweepOnce(ctx context.Context) {
	now := e.now()
	removed := e.lockouts.Sweep(ctx, now)
	removed += e.ipAttempts.Sweep(ctx, now)
	removed += e.challenges.Sweep(ctx, now)
	if removed > 0 {
		e.Log(ctx, AuditEvent{
			EventType: "store_sweep",
			IP:        "system",
			UserAgent: "system",
			Severity:  SeverityLow,
			Success:   true,
			Details:   map[string]string{"removed": strconv.Itoa(removed)},
		})
	}
}
