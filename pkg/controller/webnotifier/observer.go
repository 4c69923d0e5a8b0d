/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"encoding/json"
	"sync"

	"github.com/hyperledger/aries-agent-go/pkg/controller/command"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/event"
)

const observerQueueSize = 100

type notification struct {
	topic   string
	payload []byte
}

// Observer forwards events published on the bus to a notifier.
type Observer struct {
	bus      *event.Bus
	notifier command.Notifier

	mu     sync.Mutex
	subs   []*event.Subscription
	queue  chan notification
	done   chan struct{}
	closed bool
}

// NewObserver returns an observer delivering to notifier the events of bus.
func NewObserver(bus *event.Bus, notifier command.Notifier) *Observer {
	o := &Observer{
		bus:      bus,
		notifier: notifier,
		queue:    make(chan notification, observerQueueSize),
		done:     make(chan struct{}),
	}

	go o.run()

	return o
}

// Register forwards the events of topic. Payloads are sent as JSON.
func (o *Observer) Register(topic event.Topic) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}

	o.subs = append(o.subs, o.bus.Subscribe(topic, o.enqueue))
}

func (o *Observer) enqueue(e event.Event) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		logger.Errorf("observer: marshal %s payload: %v", e.Topic, err)

		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}

	select {
	case o.queue <- notification{topic: string(e.Topic), payload: payload}:
	default:
		logger.Warnf("observer: queue full, dropping %s notification", e.Topic)
	}
}

func (o *Observer) run() {
	defer close(o.done)

	for n := range o.queue {
		if err := o.notifier.Notify(n.topic, n.payload); err != nil {
			logger.Warnf("observer: notify %s: %v", n.topic, err)
		}
	}
}

// Stop unsubscribes from the bus and waits for queued notifications to be sent.
func (o *Observer) Stop() {
	o.mu.Lock()

	if o.closed {
		o.mu.Unlock()

		return
	}

	o.closed = true

	for _, sub := range o.subs {
		o.bus.Unsubscribe(sub)
	}

	close(o.queue)
	o.mu.Unlock()

	<-o.done
}
