package pipeline

import (
	"context"
	"time"

	"golang.org/x/net/html"
)

// Mutations is a stream of "nodes added" batches from whatever owns the live
// document. Senders close the channel when the document stops mutating.
type Mutations interface {
	Added() <-chan []*html.Node
}

// Observe consumes the mutation stream until it closes or ctx is cancelled.
// Bursts of notifications within the debounce window collapse into one drain
// of the pending set. Added nodes are always tracked, even while disabled:
// the enabled check is applied per node at render time, so toggling on later
// retroactively affects content added while off.
func (p *Pipeline) Observe(ctx context.Context, m Mutations, debounce time.Duration) {
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	var pending []*html.Node
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	drain := func() {
		if len(pending) == 0 {
			return
		}
		batch := pending
		pending = nil
		p.Process(ctx, batch)
	}

	for {
		select {
		case <-ctx.Done():
			if armed && !timer.Stop() {
				<-timer.C
			}
			drain()
			return

		case added, ok := <-m.Added():
			if !ok {
				if armed && !timer.Stop() {
					<-timer.C
				}
				drain()
				return
			}
			pending = append(pending, added...)
			if armed && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(debounce)
			armed = true

		case <-timer.C:
			armed = false
			drain()
		}
	}
}
