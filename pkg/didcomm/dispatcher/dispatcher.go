/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package dispatcher routes received messages to the protocol handler
// registered for their type and delivers the handler's reply.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport/session"
	"github.com/hyperledger/aries-agent-go/pkg/store/connection"
)

// TopicAgentMessageProcessed carries a *service.InboundContext once its handler returned without error.
const TopicAgentMessageProcessed event.Topic = "AgentMessageProcessed"

var logger = log.New("aries-agent/dispatcher")

// Handler is a protocol service handling a fixed set of message types.
type Handler interface {
	Name() string
	// SupportedMessageTypes lists the exact @type values the handler accepts.
	SupportedMessageTypes() []string
	// Handle processes one message. A non-nil result is the reply to deliver to the peer.
	Handle(ctx context.Context, msgCtx *service.InboundContext) (*service.OutboundMessage, error)
}

// Outbound delivers messages to the peers of connections.
type Outbound interface {
	Send(ctx context.Context, msg *service.OutboundMessage) error
	// PackDirect packs msg for the peer without forwarding, for a reply on the inbound channel.
	PackDirect(msg *service.OutboundMessage) ([]byte, error)
	// Forward delivers an envelope packed by another agent to the peer of conn.
	Forward(ctx context.Context, conn *connection.Record, envelope []byte) error
	// SendAndReceive sends msg and waits for a reply of replyType on its thread.
	SendAndReceive(ctx context.Context, msg *service.OutboundMessage, replyType string,
		timeout time.Duration) (*service.InboundContext, error)
}

// Inbound dispatches received messages.
type Inbound interface {
	Dispatch(ctx context.Context, msgCtx *service.InboundContext) ([]byte, error)
}

type provider interface {
	EventBus() *event.Bus
	OutboundDispatcher() Outbound
	SessionRegistry() *session.Registry
	MetricsRegisterer() prometheus.Registerer
}

// Dispatcher maps message types to handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	sender   Outbound
	sessions *session.Registry
	bus      *event.Bus
	metrics  *metrics
}

// New creates a dispatcher without handlers.
func New(prov provider) (*Dispatcher, error) {
	m, err := newMetrics(prov.MetricsRegisterer())
	if err != nil {
		return nil, fmt.Errorf("register dispatcher metrics: %w", err)
	}

	return &Dispatcher{
		handlers: make(map[string]Handler),
		sender:   prov.OutboundDispatcher(),
		sessions: prov.SessionRegistry(),
		bus:      prov.EventBus(),
		metrics:  m,
	}, nil
}

// Register adds handlers. When two handlers declare the same message type the
// one registered first keeps it.
func (d *Dispatcher) Register(handlers ...Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, h := range handlers {
		for _, t := range h.SupportedMessageTypes() {
			if existing, ok := d.handlers[t]; ok {
				logger.Warnf("message type %s already handled by %s, ignoring %s", t, existing.Name(), h.Name())

				continue
			}

			d.handlers[t] = h
		}
	}
}

// Handler returns the handler registered for msgType.
func (d *Dispatcher) Handler(msgType string) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	h, ok := d.handlers[msgType]

	return h, ok
}

// Dispatch runs the handler of the message. When the handler replies, the
// message arrived on a session and asked for return routing on the reply's
// thread, the packed reply is returned for the transport to write back;
// otherwise the reply is sent through the Sender and nil is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, msgCtx *service.InboundContext) ([]byte, error) {
	msgType := msgCtx.Message.Type

	h, ok := d.Handler(msgType)
	if !ok {
		d.metrics.observe(msgType, OutcomeNoHandler)

		return nil, fmt.Errorf("%s: %w", msgType, service.ErrNoHandler)
	}

	logger.Debugf("dispatching %s (id %s) to %s", msgType, msgCtx.Message.ID, h.Name())

	out, err := h.Handle(ctx, msgCtx)
	if err != nil {
		d.metrics.observe(msgType, OutcomeError)

		return nil, fmt.Errorf("%s handler: %w", h.Name(), err)
	}

	d.bus.Publish(event.Event{Topic: TopicAgentMessageProcessed, Payload: msgCtx})

	if out == nil {
		d.metrics.observe(msgType, OutcomeNoReply)

		return nil, nil
	}

	header := out.Payload.MsgHeader()

	if out.Connection != nil && !d.sessions.Has(out.Connection.ID) {
		header.SetReturnRoute(decorator.TransportReturnRouteAll)
	}

	if msgCtx.SessionID != "" && msgCtx.Message.HasReturnRouting(header.ThreadID()) {
		packed, err := d.sender.PackDirect(out)
		if err != nil {
			d.metrics.observe(msgType, OutcomeError)

			return nil, fmt.Errorf("pack reply to %s: %w", msgType, err)
		}

		d.metrics.observe(msgType, OutcomeReply)

		return packed, nil
	}

	err = d.sender.Send(ctx, out)
	if err != nil {
		d.metrics.observe(msgType, OutcomeError)

		return nil, fmt.Errorf("send reply to %s: %w", msgType, err)
	}

	d.metrics.observe(msgType, OutcomeSent)

	return nil, nil
}
