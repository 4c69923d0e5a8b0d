/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"errors"
	"fmt"

	"nhooyr.io/websocket"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport"
)

// OutboundClient websocket outbound. Sockets are kept open per endpoint so the
// remote agent can return messages on them.
type OutboundClient struct {
	pool *connPool
}

// NewOutbound creates a client for Outbound WS transport.
func NewOutbound() *OutboundClient {
	return &OutboundClient{}
}

// Start implements transport.OutboundTransport.
func (cs *OutboundClient) Start(prov transport.Provider) error {
	if prov == nil {
		return errors.New("websocket outbound: provider is mandatory")
	}

	cs.pool = newConnPool(prov)

	return nil
}

// Stop closes the open sockets.
func (cs *OutboundClient) Stop() error {
	if cs.pool != nil {
		cs.pool.closeAll()
	}

	return nil
}

// Schemes implements transport.OutboundTransport.
func (cs *OutboundClient) Schemes() []string {
	return []string{"ws", "wss"}
}

// Send sends a2a data via WS, reusing the open socket to url if there is one.
func (cs *OutboundClient) Send(ctx context.Context, envelope []byte, url string) error {
	if url == "" {
		return errors.New("url is mandatory")
	}

	if cs.pool == nil {
		return errors.New("websocket outbound: transport not started")
	}

	if s := cs.pool.fetch(url); s != nil {
		err := s.Send(ctx, envelope)
		if err == nil {
			return nil
		}

		logger.Debugf("pooled socket to %s unusable, redialing: %v", url, err)
		cs.pool.remove(url, s)
	}

	conn, _, err := websocket.Dial(ctx, url, nil) //nolint:bodyclose
	if err != nil {
		return fmt.Errorf("websocket client : %w", err)
	}

	s := newOutboundSession(conn)

	cs.pool.add(url, s)

	go cs.pool.listener(url, s)

	err = s.Send(ctx, envelope)
	if err != nil {
		return fmt.Errorf("websocket write message : %w", err)
	}

	return nil
}
