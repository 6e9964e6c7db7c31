package archive

import (
	"context"
	"time"
)

// sleepOrDone waits for d or ctx cancellation, whichever comes first.
// Reports false if ctx was the reason it returned.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
