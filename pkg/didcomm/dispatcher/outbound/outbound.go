/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package outbound resolves where a message for a connection goes and delivers it.
package outbound

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport/session"
	"github.com/hyperledger/aries-agent-go/pkg/store/connection"
	"github.com/hyperledger/aries-agent-go/pkg/store/msgqueue"
	"github.com/hyperledger/aries-agent-go/pkg/wallet"
)

var logger = log.New("aries-agent/dispatcher/outbound")

// Route label values of the sent messages counter.
const (
	RouteSession   = "session"
	RouteQueue     = "queue"
	RouteTransport = "transport"
)

type provider interface {
	Wallet() wallet.Wallet
	OutboundTransports() []transport.OutboundTransport
	SessionRegistry() *session.Registry
	// MessageQueue is nil when the agent does not queue messages.
	MessageQueue() *msgqueue.Queue
	EventBus() *event.Bus
	// Endpoint is the agent's own inbound endpoint.
	Endpoint() string
	MetricsRegisterer() prometheus.Registerer
}

// Sender delivers outbound messages. Resolution order: an open session of the
// connection, then the peer's preferred service, wrapped in forwards when the
// service lists routing keys; a queue endpoint puts the envelope in the
// message queue.
type Sender struct {
	wallet     wallet.Wallet
	transports []transport.OutboundTransport
	sessions   *session.Registry
	queue      *msgqueue.Queue
	bus        *event.Bus
	endpoint   string
	sent       *prometheus.CounterVec
}

// NewSender creates a Sender.
func NewSender(prov provider) (*Sender, error) {
	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aries_agent",
		Subsystem: "sender",
		Name:      "messages_total",
		Help:      "Outbound envelopes delivered, by route.",
	}, []string{"route"})

	c, err := dispatcher.RegisterCollector(prov.MetricsRegisterer(), sent)
	if err != nil {
		return nil, fmt.Errorf("register sender metrics: %w", err)
	}

	return &Sender{
		wallet:     prov.Wallet(),
		transports: prov.OutboundTransports(),
		sessions:   prov.SessionRegistry(),
		queue:      prov.MessageQueue(),
		bus:        prov.EventBus(),
		endpoint:   prov.Endpoint(),
		sent:       c.(*prometheus.CounterVec),
	}, nil
}

// Send delivers msg to the peer of its connection.
func (o *Sender) Send(ctx context.Context, msg *service.OutboundMessage) error {
	conn := msg.Connection
	if conn == nil {
		return fmt.Errorf("send %s: %w", msg.Payload.MsgHeader().Type, service.ErrMissingConnection)
	}

	header := msg.Payload.MsgHeader()

	// without an endpoint of our own, replies can only come back on the channel we open
	if o.endpoint == transport.QueueEndpoint || o.endpoint == "" {
		header.SetReturnRoute(decorator.TransportReturnRouteAll)
	}

	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("send: marshal %s: %w", header.Type, err)
	}

	if s, ok := o.sessions.FindForThread(conn.ID, header.ThreadID()); ok {
		packed, e := o.packDirect(conn, payload)
		if e != nil {
			return e
		}

		e = s.Send(ctx, packed)
		if e == nil {
			logger.Debugf("sent %s to connection %s over session %s", header.Type, conn.ID, s.ID())
			o.sent.WithLabelValues(RouteSession).Inc()

			return nil
		}

		logger.Warnf("session %s of connection %s failed, resolving endpoint: %s", s.ID(), conn.ID, e)
		o.sessions.Remove(conn.ID)
	}

	svc := msg.Service
	if svc == nil {
		svc, err = session.ResolvePreferredService(conn, o.Schemes())
		if err != nil {
			return fmt.Errorf("send %s to connection %s: %w", header.Type, conn.ID, err)
		}
	}

	dest := service.DestinationFromService(svc)

	packed, err := o.wallet.Pack(payload, dest.RecipientKeys, conn.Verkey)
	if err != nil {
		return fmt.Errorf("send: pack %s: %w", header.Type, err)
	}

	packed, err = o.createForwardMessage(packed, dest)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}

	logger.Debugf("sending %s to connection %s at %s", header.Type, conn.ID, dest.ServiceEndpoint)

	return o.deliver(ctx, conn, dest.ServiceEndpoint, packed)
}

// Forward delivers an envelope packed by someone else to the peer of conn,
// over its session when one is open.
func (o *Sender) Forward(ctx context.Context, conn *connection.Record, envelope []byte) error {
	if s, ok := o.sessions.Find(conn.ID); ok {
		err := s.Send(ctx, envelope)
		if err == nil {
			o.sent.WithLabelValues(RouteSession).Inc()

			return nil
		}

		logger.Warnf("session %s of connection %s failed: %s", s.ID(), conn.ID, err)
		o.sessions.Remove(conn.ID)
	}

	svc, err := session.ResolvePreferredService(conn, o.Schemes())
	if err != nil {
		return fmt.Errorf("forward to connection %s: %w", conn.ID, err)
	}

	return o.deliver(ctx, conn, svc.ServiceEndpoint, envelope)
}

// PackDirect packs msg for the recipient keys of the peer, without forwarding.
func (o *Sender) PackDirect(msg *service.OutboundMessage) ([]byte, error) {
	if msg.Connection == nil {
		return nil, fmt.Errorf("pack %s: %w", msg.Payload.MsgHeader().Type, service.ErrMissingConnection)
	}

	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("pack: marshal %s: %w", msg.Payload.MsgHeader().Type, err)
	}

	return o.packDirect(msg.Connection, payload)
}

// SendAndReceive sends msg asking for return routing and waits for a message
// of replyType on the same thread.
func (o *Sender) SendAndReceive(ctx context.Context, msg *service.OutboundMessage, replyType string,
	timeout time.Duration) (*service.InboundContext, error) {
	header := msg.Payload.MsgHeader()
	header.SetReturnRoute(decorator.TransportReturnRouteAll)

	threadID := header.ThreadID()

	e, err := event.WaitForEvent(ctx, o.bus, dispatcher.TopicAgentMessageProcessed,
		func() error {
			return o.Send(ctx, msg)
		},
		func(e event.Event) bool {
			msgCtx, ok := e.Payload.(*service.InboundContext)

			return ok && msgCtx.Message.Type == replyType && msgCtx.Message.ThreadID() == threadID
		}, timeout)
	if err != nil {
		return nil, err
	}

	return e.Payload.(*service.InboundContext), nil
}

// Schemes lists the endpoint schemes of the configured outbound transports.
func (o *Sender) Schemes() []string {
	var schemes []string

	for _, t := range o.transports {
		schemes = append(schemes, t.Schemes()...)
	}

	return schemes
}

func (o *Sender) packDirect(conn *connection.Record, payload []byte) ([]byte, error) {
	keys := theirRecipientKeys(conn)
	if len(keys) == 0 {
		return nil, fmt.Errorf("pack for connection %s: no recipient keys: %w", conn.ID, service.ErrNoEndpoint)
	}

	packed, err := o.wallet.Pack(payload, keys, conn.Verkey)
	if err != nil {
		return nil, fmt.Errorf("pack for connection %s: %w", conn.ID, err)
	}

	return packed, nil
}

func (o *Sender) deliver(ctx context.Context, conn *connection.Record, endpoint string, envelope []byte) error {
	if endpoint == transport.QueueEndpoint {
		if o.queue == nil {
			return fmt.Errorf("connection %s has a queue endpoint and no queue is configured: %w",
				conn.ID, service.ErrNoEndpoint)
		}

		err := o.queue.Add(conn.TheirKey(), envelope)
		if err != nil {
			return fmt.Errorf("queue message for connection %s: %w", conn.ID, err)
		}

		o.sent.WithLabelValues(RouteQueue).Inc()

		return nil
	}

	t := o.transportFor(endpoint)
	if t == nil {
		return fmt.Errorf("no outbound transport for endpoint %s: %w", endpoint, service.ErrNoEndpoint)
	}

	err := t.Send(ctx, envelope, endpoint)
	if err != nil {
		return fmt.Errorf("outbound transport send to %s: %w", endpoint, err)
	}

	o.sent.WithLabelValues(RouteTransport).Inc()

	return nil
}

func (o *Sender) transportFor(endpoint string) transport.OutboundTransport {
	scheme := endpoint
	if i := strings.Index(endpoint, ":"); i >= 0 {
		scheme = endpoint[:i]
	}

	for _, t := range o.transports {
		for _, s := range t.Schemes() {
			if strings.EqualFold(s, scheme) {
				return t
			}
		}
	}

	return nil
}

// createForwardMessage wraps msg in one forward per routing key, innermost
// addressed to the first recipient key. Every forward is packed anonymously
// for the next routing key.
func (o *Sender) createForwardMessage(msg []byte, dest *service.Destination) ([]byte, error) {
	if len(dest.RoutingKeys) == 0 {
		return msg, nil
	}

	fwdKeys := append([]string{dest.RecipientKeys[0]}, dest.RoutingKeys...)

	for i := 0; i+1 < len(fwdKeys); i++ {
		forward, err := json.Marshal(model.NewForward(fwdKeys[i], msg))
		if err != nil {
			return nil, fmt.Errorf("marshal forward: %w", err)
		}

		msg, err = o.wallet.Pack(forward, []string{fwdKeys[i+1]}, "")
		if err != nil {
			return nil, fmt.Errorf("pack forward for %s: %w", fwdKeys[i+1], err)
		}
	}

	return msg, nil
}

func theirRecipientKeys(conn *connection.Record) []string {
	if services := conn.TheirDIDDoc.DIDCommServices(); len(services) > 0 {
		return services[0].RecipientKeys
	}

	svc, ok, err := conn.InvitationService()
	if err != nil || !ok {
		return nil
	}

	return svc.RecipientKeys
}
