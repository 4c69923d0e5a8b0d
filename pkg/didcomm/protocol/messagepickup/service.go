/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package messagepickup serves and requests queued messages (Aries RFC 0212).
package messagepickup

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/pkg/errors"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-agent-go/pkg/store/connection"
	"github.com/hyperledger/aries-agent-go/pkg/store/msgqueue"
)

// ErrNoQueue is returned by a pickup request to an agent that does not queue messages.
var ErrNoQueue = errors.New("agent does not queue messages")

var logger = log.New("aries-agent/messagepickup")

type provider interface {
	// MessageQueue is nil when the agent does not queue messages.
	MessageQueue() *msgqueue.Queue
	OutboundDispatcher() dispatcher.Outbound
}

// Service for the messagepickup protocol.
type Service struct {
	queue    *msgqueue.Queue
	outbound dispatcher.Outbound
}

// New returns the message pickup service.
func New(prov provider) *Service {
	return &Service{
		queue:    prov.MessageQueue(),
		outbound: prov.OutboundDispatcher(),
	}
}

// Name implements dispatcher.Handler.
func (s *Service) Name() string {
	return MessagePickup
}

// SupportedMessageTypes implements dispatcher.Handler.
func (s *Service) SupportedMessageTypes() []string {
	return []string{BatchPickupMsgType, BatchMsgType, StatusRequestMsgType, StatusMsgType}
}

// Handle implements dispatcher.Handler. Batch and status replies need no
// handling here: callers waiting in BatchPickup and StatusRequest consume them.
func (s *Service) Handle(_ context.Context, msgCtx *service.InboundContext) (*service.OutboundMessage, error) {
	switch msgCtx.Message.Type {
	case BatchPickupMsgType:
		return s.handleBatchPickup(msgCtx)
	case StatusRequestMsgType:
		return s.handleStatusRequest(msgCtx)
	case BatchMsgType, StatusMsgType:
		return nil, nil
	default:
		return nil, fmt.Errorf("%s: %w", msgCtx.Message.Type, service.ErrNoHandler)
	}
}

func (s *Service) handleBatchPickup(msgCtx *service.InboundContext) (*service.OutboundMessage, error) {
	conn, err := s.assertQueue(msgCtx)
	if err != nil {
		return nil, err
	}

	request := &BatchPickup{}

	err = msgCtx.Message.Decode(request)
	if err != nil {
		return nil, errors.Wrap(err, "batch pickup message unmarshal")
	}

	queued, err := s.queue.Take(conn.TheirKey(), request.BatchSize)
	if err != nil {
		return nil, errors.Wrap(err, "batch pickup")
	}

	logger.Debugf("delivering %d queued messages to connection %s", len(queued), conn.ID)

	batch := &Batch{Header: service.NewHeader(BatchMsgType), Messages: make([]*Message, 0, len(queued))}
	batch.SetThread(request.ID)

	for _, m := range queued {
		batch.Messages = append(batch.Messages, &Message{ID: m.ID, Message: m.Message})
	}

	return &service.OutboundMessage{Connection: conn, Payload: batch}, nil
}

func (s *Service) handleStatusRequest(msgCtx *service.InboundContext) (*service.OutboundMessage, error) {
	conn, err := s.assertQueue(msgCtx)
	if err != nil {
		return nil, err
	}

	status, err := s.queue.Status(conn.TheirKey())
	if err != nil {
		return nil, errors.Wrap(err, "status request")
	}

	resp := &Status{
		Header:            service.NewHeader(StatusMsgType),
		MessageCount:      status.MessageCount,
		LastAddedTime:     timeOrNil(status.LastAddedTime),
		LastDeliveredTime: timeOrNil(status.LastDeliveredTime),
		LastRemovedTime:   timeOrNil(status.LastRemovedTime),
		TotalSize:         status.TotalSize,
	}
	resp.SetThread(msgCtx.Message.ID)

	if !status.LastDeliveredTime.IsZero() {
		resp.DurationWaited = int(time.Since(status.LastDeliveredTime).Seconds())
	}

	return &service.OutboundMessage{Connection: conn, Payload: resp}, nil
}

func (s *Service) assertQueue(msgCtx *service.InboundContext) (*connection.Record, error) {
	conn, err := msgCtx.AssertReadyConnection()
	if err != nil {
		return nil, err
	}

	if s.queue == nil {
		return nil, fmt.Errorf("%s: %w", msgCtx.Message.Type, ErrNoQueue)
	}

	return conn, nil
}

// BatchPickup asks the peer of conn for at most batchSize queued messages and
// waits for the batch. An empty queue yields an empty batch.
func (s *Service) BatchPickup(ctx context.Context, conn *connection.Record, batchSize int,
	timeout time.Duration) ([]*Message, error) {
	reply, err := s.outbound.SendAndReceive(ctx, &service.OutboundMessage{
		Connection: conn,
		Payload:    NewBatchPickup(batchSize),
	}, BatchMsgType, timeout)
	if err != nil {
		return nil, fmt.Errorf("batch pickup: %w", err)
	}

	batch := &Batch{}

	err = reply.Message.Decode(batch)
	if err != nil {
		return nil, errors.Wrap(err, "batch message unmarshal")
	}

	return batch.Messages, nil
}

// StatusRequest asks the peer of conn how many messages it holds.
func (s *Service) StatusRequest(ctx context.Context, conn *connection.Record, timeout time.Duration) (*Status, error) {
	reply, err := s.outbound.SendAndReceive(ctx, &service.OutboundMessage{
		Connection: conn,
		Payload:    NewStatusRequest(),
	}, StatusMsgType, timeout)
	if err != nil {
		return nil, fmt.Errorf("status request: %w", err)
	}

	status := &Status{}

	err = reply.Message.Decode(status)
	if err != nil {
		return nil, errors.Wrap(err, "status message unmarshal")
	}

	return status, nil
}

// Envelopes returns the queued envelopes of a batch in order.
func Envelopes(msgs []*Message) [][]byte {
	envelopes := make([][]byte, 0, len(msgs))

	for _, m := range msgs {
		envelopes = append(envelopes, m.Message)
	}

	return envelopes
}
