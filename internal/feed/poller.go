package feed

import (
	"context"
	"log"
	"time"

	"buttonstats/internal/reporting"
)

// ClickSource yields clicks newer than a given time, oldest first.
type ClickSource interface {
	ClicksSince(since time.Time, limit int) ([]reporting.Click, error)
}

// Poller periodically asks the source for clicks it has not broadcast yet
// and pushes them to the hub. Starts from "now": subscribers see only clicks
// recorded after the poller began.
type Poller struct {
	Source   ClickSource
	Hub      *Hub
	Interval time.Duration
}

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.Hub.Count() == 0 {
				continue
			}
			clicks, err := p.Source.ClicksSince(last, 100)
			if err != nil {
				log.Printf("[Feed] poll error: %v\n", err)
				continue
			}
			for _, c := range clicks {
				p.Hub.Broadcast(c)
			}
			if len(clicks) > 0 {
				last = clicks[len(clicks)-1].ClickTime
			}
		}
	}
}
