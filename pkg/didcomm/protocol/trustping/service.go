/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package trustping answers pings on established connections.
package trustping

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-agent-go/pkg/store/connection"
)

var logger = log.New("aries-agent/trustping")

type provider interface {
	OutboundDispatcher() dispatcher.Outbound
}

// Service handles trust ping messages.
type Service struct {
	outbound dispatcher.Outbound
}

// New returns the trust ping service.
func New(prov provider) *Service {
	return &Service{outbound: prov.OutboundDispatcher()}
}

// Name implements dispatcher.Handler.
func (s *Service) Name() string {
	return Name
}

// SupportedMessageTypes implements dispatcher.Handler.
func (s *Service) SupportedMessageTypes() []string {
	return []string{PingMsgType, PingResponseMsgType}
}

// Handle implements dispatcher.Handler.
func (s *Service) Handle(_ context.Context, msgCtx *service.InboundContext) (*service.OutboundMessage, error) {
	conn, err := msgCtx.AssertReadyConnection()
	if err != nil {
		return nil, err
	}

	switch msgCtx.Message.Type {
	case PingMsgType:
		ping := &Ping{}

		if err = msgCtx.Message.Decode(ping); err != nil {
			return nil, fmt.Errorf("decode ping: %w", err)
		}

		if !ping.WantsResponse() {
			return nil, nil
		}

		return &service.OutboundMessage{Connection: conn, Payload: NewPingResponse(ping.ID)}, nil
	default:
		logger.Debugf("ping response %s received on connection %s", msgCtx.Message.ID, conn.ID)

		return nil, nil
	}
}

// Ping sends a ping on conn and waits for the response.
func (s *Service) Ping(ctx context.Context, conn *connection.Record, timeout time.Duration) error {
	_, err := s.outbound.SendAndReceive(ctx, &service.OutboundMessage{
		Connection: conn,
		Payload:    NewPing(true),
	}, PingResponseMsgType, timeout)
	if err != nil {
		return fmt.Errorf("ping connection %s: %w", conn.ID, err)
	}

	return nil
}
