/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrTimeout is returned when no matching event arrives before the deadline.
var ErrTimeout = errors.New("timeout waiting for event")

// WaitForEvent subscribes to topic, runs trigger and blocks until an event
// satisfying predicate is published, timeout elapses or ctx is done. The
// listener is registered before trigger runs, so a reply published while
// trigger is still executing is observed. A timeout <= 0 waits on ctx only.
// Exactly one outcome is returned; a match published after the wait ended is ignored.
func WaitForEvent(ctx context.Context, bus *Bus, topic Topic, trigger func() error,
	predicate func(Event) bool, timeout time.Duration) (Event, error) {
	matched := make(chan Event, 1)

	var (
		once sync.Once
		sub  *Subscription
	)

	sub = bus.Subscribe(topic, func(e Event) {
		if !predicate(e) {
			return
		}

		once.Do(func() {
			matched <- e
		})
	})

	defer bus.Unsubscribe(sub)

	if trigger != nil {
		if err := trigger(); err != nil {
			return Event{}, err
		}
	}

	var deadline <-chan time.Time

	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		deadline = timer.C
	}

	select {
	case e := <-matched:
		return e, nil
	case <-deadline:
		return Event{}, fmt.Errorf("wait for %s after %s: %w", topic, timeout, ErrTimeout)
	case <-ctx.Done():
		return Event{}, fmt.Errorf("wait for %s: %w", topic, ctx.Err())
	}
}
