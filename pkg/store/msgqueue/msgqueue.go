/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package msgqueue keeps undeliverable envelopes per recipient key until they are picked up.
package msgqueue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/pkg/errors"

	"github.com/hyperledger/aries-agent-go/pkg/internal/lockbox"
)

// Namespace is the name of the queue store.
const Namespace = "mailbox"

var logger = log.New("aries-agent/store/msgqueue")

// Message is a queued envelope.
type Message struct {
	ID        string    `json:"id"`
	AddedTime time.Time `json:"added_time"`
	Message   []byte    `json:"msg,omitempty"`
}

// Status summarizes a queue.
type Status struct {
	MessageCount      int
	LastAddedTime     time.Time
	LastDeliveredTime time.Time
	LastRemovedTime   time.Time
	TotalSize         int
}

type inbox struct {
	Key               string          `json:"key"`
	MessageCount      int             `json:"message_count"`
	LastAddedTime     time.Time       `json:"last_added_time,omitempty"`
	LastDeliveredTime time.Time       `json:"last_delivered_time,omitempty"`
	LastRemovedTime   time.Time       `json:"last_removed_time,omitempty"`
	TotalSize         int             `json:"total_size,omitempty"`
	Messages          json.RawMessage `json:"messages"`
}

func (r *inbox) decodeMessages() ([]*Message, error) {
	var out []*Message

	var err error

	if r.Messages != nil {
		err = json.Unmarshal(r.Messages, &out)
	}

	return out, err
}

func (r *inbox) encodeMessages(msgs []*Message) error {
	d, err := json.Marshal(msgs)
	if err != nil {
		return errors.Wrap(err, "unable to marshal")
	}

	r.Messages = d
	r.MessageCount = len(msgs)
	r.TotalSize = len(d)

	return nil
}

// Queue is a FIFO of envelopes per key. Operations on one key are serialized;
// operations on different keys run concurrently.
type Queue struct {
	store storage.Store
	locks *lockbox.Lockbox
}

// New opens the queue store.
func New(p storage.Provider) (*Queue, error) {
	store, err := p.OpenStore(Namespace)
	if err != nil {
		return nil, errors.Wrap(err, "open mailbox store")
	}

	return &Queue{store: store, locks: lockbox.New()}, nil
}

// Add appends an envelope to the queue of key.
func (q *Queue) Add(key string, envelope []byte) error {
	q.locks.Lock(key)
	defer q.locks.Unlock(key)

	box, err := q.getInbox(key)
	if err != nil {
		return errors.Wrap(err, "unable to pull messages")
	}

	msgs, err := box.decodeMessages()
	if err != nil {
		return errors.Wrap(err, "unable to decode messages")
	}

	msgs = append(msgs, &Message{
		ID:        uuid.New().String(),
		AddedTime: time.Now(),
		Message:   envelope,
	})

	box.LastAddedTime = time.Now()

	err = box.encodeMessages(msgs)
	if err != nil {
		return errors.Wrap(err, "unable to encode messages")
	}

	err = q.putInbox(key, box)
	if err != nil {
		return errors.Wrap(err, "unable to put messages")
	}

	logger.Debugf("queued message for %s, %d pending", key, box.MessageCount)

	return nil
}

// Take removes and returns up to max envelopes of key, oldest first. An empty queue yields an empty slice.
func (q *Queue) Take(key string, max int) ([]*Message, error) {
	q.locks.Lock(key)
	defer q.locks.Unlock(key)

	box, err := q.getInbox(key)
	if err != nil {
		return nil, errors.Wrap(err, "take get inbox")
	}

	msgs, err := box.decodeMessages()
	if err != nil {
		return nil, errors.Wrap(err, "take decode")
	}

	end := len(msgs)
	if max >= 0 && max < end {
		end = max
	}

	if end == 0 {
		return []*Message{}, nil
	}

	box.LastDeliveredTime = time.Now()
	box.LastRemovedTime = box.LastDeliveredTime

	err = box.encodeMessages(msgs[end:])
	if err != nil {
		return nil, errors.Wrap(err, "take encode")
	}

	err = q.putInbox(key, box)
	if err != nil {
		return nil, errors.Wrap(err, "take put inbox")
	}

	return msgs[:end], nil
}

// Status returns the counters of the queue of key.
func (q *Queue) Status(key string) (*Status, error) {
	q.locks.Lock(key)
	defer q.locks.Unlock(key)

	box, err := q.getInbox(key)
	if err != nil {
		return nil, errors.Wrap(err, "status get inbox")
	}

	return &Status{
		MessageCount:      box.MessageCount,
		LastAddedTime:     box.LastAddedTime,
		LastDeliveredTime: box.LastDeliveredTime,
		LastRemovedTime:   box.LastRemovedTime,
		TotalSize:         box.TotalSize,
	}, nil
}

func (q *Queue) getInbox(key string) (*inbox, error) {
	box := &inbox{Key: key}

	b, err := q.store.Get(key)
	if errors.Is(err, storage.ErrDataNotFound) {
		return box, nil
	}

	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(b, box)
	if err != nil {
		return nil, err
	}

	return box, nil
}

func (q *Queue) putInbox(key string, box *inbox) error {
	b, err := json.Marshal(box)
	if err != nil {
		return err
	}

	return q.store.Put(key, b)
}
