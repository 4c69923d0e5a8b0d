/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package event provides the agent event bus and the wait-for-event primitive
// that turns asynchronous protocol exchanges into blocking calls.
package event

import (
	"container/list"
	"sync"

	"github.com/hyperledger/aries-framework-go/component/log"
)

var logger = log.New("aries-agent/event")

// Topic identifies a family of events.
type Topic string

// Event is published on the bus. Payload type is fixed per topic by the publishing package.
type Event struct {
	Topic   Topic
	Payload interface{}
}

// Listener receives events of the topics it subscribed to.
type Listener func(Event)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	topic Topic
	elem  *list.Element
}

// Bus is a synchronous publish/subscribe channel. Publish delivers to the
// listeners of the event topic in subscription order, on the caller's goroutine.
type Bus struct {
	mu        sync.RWMutex
	listeners map[Topic]*list.List
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[Topic]*list.List)}
}

// Subscribe registers listener for topic.
func (b *Bus) Subscribe(topic Topic, listener Listener) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.listeners[topic]
	if !ok {
		l = list.New()
		b.listeners[topic] = l
	}

	return &Subscription{topic: topic, elem: l.PushBack(listener)}
}

// Unsubscribe removes the listener. Unsubscribing twice is a no-op.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.listeners[sub.topic]
	if !ok || sub.elem == nil {
		return
	}

	l.Remove(sub.elem)
	sub.elem = nil
}

// Publish delivers e to the listeners registered when Publish is called.
// Listeners may subscribe or unsubscribe from within their callback.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()

	var snapshot []Listener

	if l, ok := b.listeners[e.Topic]; ok {
		snapshot = make([]Listener, 0, l.Len())

		for el := l.Front(); el != nil; el = el.Next() {
			snapshot = append(snapshot, el.Value.(Listener))
		}
	}

	b.mu.RUnlock()

	logger.Debugf("publishing %s to %d listeners", e.Topic, len(snapshot))

	for _, listener := range snapshot {
		listener(e)
	}
}
