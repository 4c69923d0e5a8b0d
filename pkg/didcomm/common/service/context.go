/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import (
	"errors"
	"fmt"

	"github.com/hyperledger/aries-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-agent-go/pkg/store/connection"
)

var (
	// ErrMissingConnection is returned when a message requires a connection and none owns its recipient key.
	ErrMissingConnection = errors.New("no connection for message")
	// ErrNoHandler is returned when no handler is registered for the message type.
	ErrNoHandler = errors.New("no handler for message type")
	// ErrNoEndpoint is returned when an outbound message has no deliverable destination.
	ErrNoEndpoint = errors.New("no endpoint for outbound message")
)

// InboundContext bundles a received message with what is known about its origin. It is not modified after creation.
type InboundContext struct {
	Message *DIDCommMsg
	// Connection is nil when no connection owns RecipientKey.
	Connection   *connection.Record
	SenderKey    string
	RecipientKey string
	// SessionID identifies the transport session that delivered the message, if it can carry replies.
	SessionID string
}

// AssertReadyConnection returns the connection when it exists and has completed the response step.
func (c *InboundContext) AssertReadyConnection() (*connection.Record, error) {
	if c.Connection == nil {
		return nil, fmt.Errorf("%s for key %s: %w", c.Message.Type, c.RecipientKey, ErrMissingConnection)
	}

	if !c.Connection.IsReady() {
		return nil, fmt.Errorf("%s: %w", c.Message.Type,
			c.Connection.AssertState(connection.StateResponded, connection.StateComplete))
	}

	return c.Connection, nil
}

// OutboundMessage is a message addressed to a connection's peer.
type OutboundMessage struct {
	Connection *connection.Record
	Payload    Message
	// Service, when set, is used instead of the peer services of the connection.
	Service *did.Service
}

// Destination is a resolved delivery target.
type Destination struct {
	RecipientKeys   []string
	ServiceEndpoint string
	RoutingKeys     []string
}

// DestinationFromService converts a DID Doc service entry.
func DestinationFromService(s *did.Service) *Destination {
	return &Destination{
		RecipientKeys:   s.RecipientKeys,
		ServiceEndpoint: s.ServiceEndpoint,
		RoutingKeys:     s.RoutingKeys,
	}
}
