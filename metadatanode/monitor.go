package metadatanode

import (
	"context"
	"log"
	"time"
)

// Monitor sweeps the registry every interval until ctx is done.
func (self *Registry) Monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if evicted := self.Sweep(); len(evicted) > 0 {
			log.Println("Monitor evicted", len(evicted), "nodes,", self.Len(), "remain")
		}
	}
}
