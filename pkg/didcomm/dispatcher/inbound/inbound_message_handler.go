/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package inbound turns received envelopes into dispatched messages.
package inbound

import (
	"context"
	"fmt"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport/session"
	"github.com/hyperledger/aries-agent-go/pkg/store/connection"
	"github.com/hyperledger/aries-agent-go/pkg/wallet"
)

var logger = log.New("aries-agent/dispatcher/inbound")

type provider interface {
	Wallet() wallet.Wallet
	ConnectionStore() *connection.Store
	SessionRegistry() *session.Registry
	InboundDispatcher() dispatcher.Inbound
}

// MessageHandler unpacks envelopes, resolves their connection and dispatches
// them. It is the transport.Provider handed to every transport.
type MessageHandler struct {
	wallet      wallet.Wallet
	connections *connection.Store
	sessions    *session.Registry
	dispatcher  dispatcher.Inbound
}

// NewInboundMessageHandler creates an inbound message handler.
func NewInboundMessageHandler(p provider) *MessageHandler {
	return &MessageHandler{
		wallet:      p.Wallet(),
		connections: p.ConnectionStore(),
		sessions:    p.SessionRegistry(),
		dispatcher:  p.InboundDispatcher(),
	}
}

// InboundMessageHandler implements transport.Provider.
func (h *MessageHandler) InboundMessageHandler() transport.InboundMessageHandler {
	return h.Receive
}

// SessionClosed implements transport.Provider.
func (h *MessageHandler) SessionClosed(s transport.Session) {
	h.sessions.RemoveSession(s.ID())
}

// Receive unpacks envelope and dispatches the message. s is the channel
// the envelope arrived on, nil when it cannot carry replies. The result is the
// packed reply to write back on s, if any.
func (h *MessageHandler) Receive(ctx context.Context, envelope []byte, s transport.Session) ([]byte, error) {
	unpacked, err := h.wallet.Unpack(envelope)
	if err != nil {
		return nil, fmt.Errorf("inbound: unpack: %w", err)
	}

	msg, err := service.ParseDIDCommMsg(unpacked.Message)
	if err != nil {
		return nil, fmt.Errorf("inbound: %w", err)
	}

	conn, _, err := h.connections.FindByVerkey(unpacked.RecipientKey)
	if err != nil {
		return nil, fmt.Errorf("inbound: find connection for key %s: %w", unpacked.RecipientKey, err)
	}

	msgCtx := &service.InboundContext{
		Message:      msg,
		Connection:   conn,
		SenderKey:    unpacked.SenderKey,
		RecipientKey: unpacked.RecipientKey,
	}

	if s != nil {
		msgCtx.SessionID = s.ID()

		if conn != nil && msg.Transport != nil {
			err = h.sessions.Add(conn.ID, s, msg.Transport.ReturnRoute, msg.Transport.ReturnRouteThread)
			if err != nil {
				logger.Warnf("ignoring return route of %s: %s", msg.ID, err)
			}
		}
	}

	logger.Debugf("received %s (id %s) for key %s", msg.Type, msg.ID, unpacked.RecipientKey)

	return h.dispatcher.Dispatch(ctx, msgCtx)
}
