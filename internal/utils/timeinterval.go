package utils

import (
	"sync"
	"time"
)

type IntervalTimer interface {
	Stop()
}

type timeInterval struct {
	quit     chan struct{}
	stopOnce sync.Once
}

// Stop ends the timer. It may be called more than once.
func (t *timeInterval) Stop() {
	t.stopOnce.Do(func() { close(t.quit) })
}

// SetIntervalTimer calls function every duration until stopped. A
// non-positive duration yields a timer that never fires.
func SetIntervalTimer(duration time.Duration, function func()) IntervalTimer {
	quit := make(chan struct{})
	if duration <= 0 {
		return &timeInterval{quit: quit}
	}

	ticker := time.NewTicker(duration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				function()
			case <-quit:
				return
			}
		}
	}()
	return &timeInterval{quit: quit}
}
