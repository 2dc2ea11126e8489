// internal/events/invalidator.go
package events

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/streadway/amqp"

	"clinica-cloud/internal/model"
)

// HandleCache is the slice of the connection cache the invalidator needs.
type HandleCache interface {
	Invalidate(tenantKey string) bool
}

// Invalidator consumes tenant events and drops cached handles the moment a
// tenant stops being active, instead of waiting for the idle reaper.
type Invalidator struct {
	channel  *amqp.Channel
	StopChan chan struct{}
	DoneChan chan struct{}
}

// StartInvalidator binds an exclusive queue to the events exchange and
// consumes until Stop is called.
func StartInvalidator(conn *amqp.Connection, cache HandleCache) (*Invalidator, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Exclusive auto-named queue: each console instance gets its own copy
	// of the fanout stream and the queue dies with the connection.
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare invalidation queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", Exchange, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("bind invalidation queue: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	inv := &Invalidator{
		channel:  ch,
		StopChan: make(chan struct{}),
		DoneChan: make(chan struct{}),
	}
	go inv.consumeLoop(msgs, cache)

	log.Printf("[Events] Invalidation consumer started on queue %s", q.Name)
	return inv, nil
}

func (i *Invalidator) consumeLoop(msgs <-chan amqp.Delivery, cache HandleCache) {
	defer close(i.DoneChan)

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				log.Printf("[Events] Invalidation delivery channel closed")
				return
			}

			var ev Event
			if err := json.Unmarshal(msg.Body, &ev); err != nil {
				log.Printf("[Events] Dropping malformed event: %v", err)
				continue
			}
			if ev.Type == TypeStatusChanged && ev.Status != model.StatusActive {
				if cache.Invalidate(ev.Subdomain) {
					log.Printf("[Events] Dropped cached handle for %s (now %s)", ev.Subdomain, ev.Status)
				}
			}

		case <-i.StopChan:
			return
		}
	}
}

// Stop signals the consumer to stop and waits for cleanup.
func (i *Invalidator) Stop() {
	close(i.StopChan)
	<-i.DoneChan
	_ = i.channel.Close()
}
