/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/event"
)

type recordingNotifier struct {
	mu     sync.Mutex
	topics []string
	msgs   [][]byte
	err    error
}

func (n *recordingNotifier) Notify(topic string, message []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.topics = append(n.topics, topic)
	n.msgs = append(n.msgs, message)

	return n.err
}

func TestObserver(t *testing.T) {
	const topic event.Topic = "StateChanged"

	type payload struct {
		State string `json:"state"`
	}

	t.Run("forwards registered topics", func(t *testing.T) {
		bus := event.NewBus()
		notifier := &recordingNotifier{}

		obs := NewObserver(bus, notifier)
		obs.Register(topic)

		bus.Publish(event.Event{Topic: topic, Payload: &payload{State: "invited"}})
		bus.Publish(event.Event{Topic: "Other", Payload: &payload{State: "ignored"}})
		bus.Publish(event.Event{Topic: topic, Payload: &payload{State: "completed"}})

		obs.Stop()

		require.Equal(t, []string{string(topic), string(topic)}, notifier.topics)
		require.JSONEq(t, `{"state":"invited"}`, string(notifier.msgs[0]))
		require.JSONEq(t, `{"state":"completed"}`, string(notifier.msgs[1]))
	})

	t.Run("stopped observer ignores events", func(t *testing.T) {
		bus := event.NewBus()
		notifier := &recordingNotifier{}

		obs := NewObserver(bus, notifier)
		obs.Register(topic)
		obs.Stop()
		obs.Stop()

		obs.Register(topic)
		bus.Publish(event.Event{Topic: topic, Payload: &payload{State: "invited"}})

		require.Empty(t, notifier.topics)
	})

	t.Run("unmarshalable payload and notifier error", func(t *testing.T) {
		bus := event.NewBus()
		notifier := &recordingNotifier{err: errors.New("unreachable")}

		obs := NewObserver(bus, notifier)
		obs.Register(topic)

		bus.Publish(event.Event{Topic: topic, Payload: make(chan int)})
		bus.Publish(event.Event{Topic: topic, Payload: &payload{State: "invited"}})

		obs.Stop()

		require.Len(t, notifier.msgs, 1)
	})
}

func TestPrepareTopicMessage(t *testing.T) {
	msg, err := PrepareTopicMessage("connections", []byte(`{"state":"invited"}`))
	require.NoError(t, err)
	require.Contains(t, string(msg), `"topic":"connections"`)
	require.Contains(t, string(msg), `"message":{"state":"invited"}`)

	_, err = PrepareTopicMessage("connections", []byte("{"))
	require.Error(t, err)
}
