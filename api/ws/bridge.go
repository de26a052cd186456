package ws

import (
	"sync"

	"github.com/kilianp07/smartcharge/core/events"
	"github.com/kilianp07/smartcharge/infra/logger"
)

// Bridge subscribes to the service event feed and rebroadcasts every event
// as a typed envelope. It stops once the feed is closed.
type Bridge struct {
	hub *Hub
	log logger.Logger
	wg  sync.WaitGroup
}

// NewBridge starts pumping the feed into the hub.
func NewBridge(hub *Hub, feed *events.Feed) *Bridge {
	b := &Bridge{hub: hub, log: logger.New("ws-bridge")}
	b.wg.Add(4)
	go pump(b, feed.Decisions.Subscribe(), TypeDecision)
	go pump(b, feed.Prices.Subscribe(), TypePrices)
	go pump(b, feed.Overrides.Subscribe(), TypeOverride)
	go pump(b, feed.Sessions.Subscribe(), TypeSession)
	return b
}

// Wait blocks until the feed is closed and all pumps have drained.
func (b *Bridge) Wait() {
	b.wg.Wait()
}

func pump[T any](b *Bridge, ch <-chan T, msgType string) {
	defer b.wg.Done()
	for e := range ch {
		msg, err := NewEnvelope(msgType, e)
		if err != nil {
			b.log.Errorf("marshal %s: %v", msgType, err)
			continue
		}
		b.hub.Broadcast(msg)
	}
}
