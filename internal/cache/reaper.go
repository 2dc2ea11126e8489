// internal/cache/reaper.go
package cache

import (
	"time"
)

// StartReaper evicts idle handles on a fixed interval until stop is
// closed. Eviction never runs inline with request handling, so the reaper
// adds no latency to the hot path.
func (c *ConnectionCache) StartReaper(interval, maxIdle time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.EvictIdle(maxIdle)
			case <-stop:
				return
			}
		}
	}()
}
