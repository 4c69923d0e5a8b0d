/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package basicmessage sends, receives and stores basic messages.
package basicmessage

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-agent-go/pkg/store/connection"
	"github.com/hyperledger/aries-agent-go/pkg/store/record"
)

var logger = log.New("aries-agent/basicmessage")

type provider interface {
	StorageProvider() storage.Provider
	EventBus() *event.Bus
	OutboundDispatcher() dispatcher.Outbound
}

// Service handles basic messages.
type Service struct {
	records  *record.Repository[*Record]
	bus      *event.Bus
	outbound dispatcher.Outbound
}

// New returns the basic message service.
func New(prov provider) (*Service, error) {
	records, err := record.NewRepository[*Record](prov.StorageProvider(), func() *Record { return &Record{} })
	if err != nil {
		return nil, fmt.Errorf("new basic message service: %w", err)
	}

	return &Service{
		records:  records,
		bus:      prov.EventBus(),
		outbound: prov.OutboundDispatcher(),
	}, nil
}

// Name implements dispatcher.Handler.
func (s *Service) Name() string {
	return Name
}

// SupportedMessageTypes implements dispatcher.Handler.
func (s *Service) SupportedMessageTypes() []string {
	return []string{MessageMsgType}
}

// Handle implements dispatcher.Handler.
func (s *Service) Handle(_ context.Context, msgCtx *service.InboundContext) (*service.OutboundMessage, error) {
	conn, err := msgCtx.AssertReadyConnection()
	if err != nil {
		return nil, err
	}

	msg := &Message{}

	err = msgCtx.Message.Decode(msg)
	if err != nil {
		return nil, fmt.Errorf("decode basic message: %w", err)
	}

	rec := &Record{
		BaseRecord:   record.BaseRecord{ID: msg.ID},
		ConnectionID: conn.ID,
		Role:         RoleReceiver,
		Content:      msg.Content,
		SentTime:     msg.SentTime,
	}

	err = s.records.Save(rec)
	if err != nil {
		return nil, fmt.Errorf("save basic message: %w", err)
	}

	logger.Debugf("basic message %s received on connection %s", msg.ID, conn.ID)

	s.bus.Publish(event.Event{Topic: TopicBasicMessageReceived, Payload: &ReceivedEvent{Message: msg, Record: rec}})

	return nil, nil
}

// SendMessage sends content to the peer of conn and stores it.
func (s *Service) SendMessage(ctx context.Context, conn *connection.Record, content string) (*Record, error) {
	if !conn.IsReady() {
		return nil, fmt.Errorf("send basic message: %w",
			conn.AssertState(connection.StateResponded, connection.StateComplete))
	}

	msg := &Message{
		Header:   service.NewHeader(MessageMsgType),
		Content:  content,
		SentTime: time.Now().UTC(),
	}

	err := s.outbound.Send(ctx, &service.OutboundMessage{Connection: conn, Payload: msg})
	if err != nil {
		return nil, fmt.Errorf("send basic message: %w", err)
	}

	rec := &Record{
		BaseRecord:   record.BaseRecord{ID: msg.ID},
		ConnectionID: conn.ID,
		Role:         RoleSender,
		Content:      content,
		SentTime:     msg.SentTime,
	}

	err = s.records.Save(rec)
	if err != nil {
		return nil, fmt.Errorf("save basic message: %w", err)
	}

	return rec, nil
}

// Messages returns the basic messages exchanged on the connection connID.
func (s *Service) Messages(connID string) ([]*Record, error) {
	return s.records.FindByQuery(record.Query{tagConnectionID: connID})
}
