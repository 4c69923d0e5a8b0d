/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transport

import (
	"context"
	"errors"
)

const (
	// QueueEndpoint is the endpoint of agents without an inbound transport. Messages
	// for it are queued by a mediator until the agent picks them up.
	QueueEndpoint = "didcomm:transport/queue"

	// MediaTypeDIDCommEnvelope is the content type of packed envelopes over HTTP.
	MediaTypeDIDCommEnvelope = "application/didcomm-envelope-enc"
)

// ErrSessionClosed is returned when sending on a session that can no longer carry messages.
var ErrSessionClosed = errors.New("transport session closed")

// Session is an open inbound channel that can carry messages back to the peer
// without a new outbound connection.
type Session interface {
	ID() string
	// Send pushes a packed envelope to the peer.
	Send(ctx context.Context, envelope []byte) error
}

// InboundMessageHandler processes a received envelope. The returned envelope, if
// any, is the immediate reply the transport writes back on session.
type InboundMessageHandler func(ctx context.Context, envelope []byte, session Session) ([]byte, error)

// Provider gives transports access to the agent.
type Provider interface {
	InboundMessageHandler() InboundMessageHandler
	// SessionClosed is called when session can no longer carry messages.
	SessionClosed(session Session)
}

// InboundTransport receives envelopes from other agents.
type InboundTransport interface {
	Start(prov Provider) error
	Stop() error
	// Endpoint is the externally reachable address advertised in DID Documents.
	Endpoint() string
}

// OutboundTransport delivers envelopes to other agents. Envelopes received in
// reply are handed to the provider's inbound message handler.
type OutboundTransport interface {
	Start(prov Provider) error
	Stop() error
	// Schemes lists the endpoint URI schemes the transport can deliver to.
	Schemes() []string
	Send(ctx context.Context, envelope []byte, endpoint string) error
}
