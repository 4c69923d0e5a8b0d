/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mediator implements the mediator side of coordinate mediation
// (Aries RFC 0211) and routes forward messages to the recipients it serves.
package mediator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-agent-go/pkg/internal/lockbox"
	"github.com/hyperledger/aries-agent-go/pkg/store/connection"
	"github.com/hyperledger/aries-agent-go/pkg/store/mediation"
	"github.com/hyperledger/aries-agent-go/pkg/store/msgqueue"
	"github.com/hyperledger/aries-agent-go/pkg/store/record"
)

var logger = log.New("aries-agent/mediator")

type provider interface {
	MediationStore() *mediation.Store
	ConnectionStore() *connection.Store
	// MessageQueue is nil when the agent does not queue messages.
	MessageQueue() *msgqueue.Queue
	EventBus() *event.Bus
	OutboundDispatcher() dispatcher.Outbound
	Endpoint() string
	AutoGrantMediation() bool
}

// Service serves mediation requests, key list updates and forwards.
type Service struct {
	mediations  *mediation.Store
	connections *connection.Store
	queue       *msgqueue.Queue
	bus         *event.Bus
	outbound    dispatcher.Outbound
	endpoint    string
	autoGrant   bool
	locks       *lockbox.Lockbox
	// keysMu makes the ownership check and the update of a recipient key atomic.
	keysMu sync.Mutex
}

// New returns the mediator service.
func New(prov provider) *Service {
	return &Service{
		mediations:  prov.MediationStore(),
		connections: prov.ConnectionStore(),
		queue:       prov.MessageQueue(),
		bus:         prov.EventBus(),
		outbound:    prov.OutboundDispatcher(),
		endpoint:    prov.Endpoint(),
		autoGrant:   prov.AutoGrantMediation(),
		locks:       lockbox.New(),
	}
}

// Name implements dispatcher.Handler.
func (s *Service) Name() string {
	return Coordination
}

// SupportedMessageTypes implements dispatcher.Handler.
func (s *Service) SupportedMessageTypes() []string {
	return []string{RequestMsgType, KeylistUpdateMsgType, model.ForwardMsgType}
}

// Handle implements dispatcher.Handler.
func (s *Service) Handle(ctx context.Context, msgCtx *service.InboundContext) (*service.OutboundMessage, error) {
	switch msgCtx.Message.Type {
	case RequestMsgType:
		return s.handleRequest(msgCtx)
	case KeylistUpdateMsgType:
		return s.handleKeylistUpdate(msgCtx)
	case model.ForwardMsgType:
		return nil, s.handleForward(ctx, msgCtx)
	default:
		return nil, fmt.Errorf("%s: %w", msgCtx.Message.Type, service.ErrNoHandler)
	}
}

func (s *Service) handleRequest(msgCtx *service.InboundContext) (*service.OutboundMessage, error) {
	conn, err := msgCtx.AssertReadyConnection()
	if err != nil {
		return nil, fmt.Errorf("mediation request: %w", err)
	}

	rec, err := s.saveRequest(conn, msgCtx.Message.ThreadID())
	if err != nil {
		return nil, err
	}

	switch rec.State {
	case mediation.StateGranted:
		logger.Debugf("connection %s is already granted mediation %s", conn.ID, rec.ID)

		grant := s.newGrant(rec)
		grant.SetThread(msgCtx.Message.ThreadID())

		return &service.OutboundMessage{Connection: conn, Payload: grant}, nil
	case mediation.StateDenied:
		logger.Debugf("connection %s was denied mediation %s", conn.ID, rec.ID)

		return &service.OutboundMessage{Connection: conn, Payload: newDeny(msgCtx.Message.ThreadID())}, nil
	}

	if !s.autoGrant {
		return nil, nil
	}

	grant, rec, err := s.grant(rec.ID)
	if err != nil {
		return nil, err
	}

	logger.Infof("mediation %s granted to connection %s", rec.ID, conn.ID)

	return &service.OutboundMessage{Connection: conn, Payload: grant}, nil
}

// saveRequest records a request in state requested. A repeated request on a
// connection reuses its record; a granted or denied record is returned unchanged.
func (s *Service) saveRequest(conn *connection.Record, threadID string) (*mediation.Record, error) {
	s.locks.Lock(conn.ID)
	defer s.locks.Unlock(conn.ID)

	rec, found, err := s.mediations.FindByConnectionID(conn.ID)
	if err != nil {
		return nil, fmt.Errorf("mediation request: %w", err)
	}

	if !found {
		rec = &mediation.Record{
			BaseRecord:   record.BaseRecord{ID: uuid.New().String()},
			State:        mediation.StateRequested,
			Role:         mediation.RoleMediator,
			ConnectionID: conn.ID,
			ThreadID:     threadID,
		}

		err = s.mediations.Save(rec)
		if err != nil {
			return nil, fmt.Errorf("mediation request: save: %w", err)
		}

		PublishStateChanged(s.bus, rec, "")

		return rec, nil
	}

	if err = rec.AssertRole(mediation.RoleMediator); err != nil {
		return nil, fmt.Errorf("mediation request: %w", err)
	}

	if rec.State != mediation.StateRequested {
		return rec, nil
	}

	rec.ThreadID = threadID

	err = s.mediations.Update(rec)
	if err != nil {
		return nil, fmt.Errorf("mediation request: update: %w", err)
	}

	return rec, nil
}

// GrantMediation grants a pending request and sends the grant to the recipient.
func (s *Service) GrantMediation(ctx context.Context, mediationID string) (*mediation.Record, error) {
	grant, rec, err := s.grant(mediationID)
	if err != nil {
		return nil, err
	}

	return rec, s.send(ctx, rec, grant)
}

// DenyMediation denies a pending request and notifies the recipient.
func (s *Service) DenyMediation(ctx context.Context, mediationID string) (*mediation.Record, error) {
	rec, err := s.pending(mediationID, func(rec *mediation.Record) error {
		return s.transition(rec, mediation.StateDenied)
	})
	if err != nil {
		return nil, fmt.Errorf("deny mediation: %w", err)
	}

	return rec, s.send(ctx, rec, newDeny(rec.ThreadID))
}

func newDeny(threadID string) *Deny {
	deny := &Deny{Header: service.NewHeader(DenyMsgType)}
	deny.SetThread(threadID)

	return deny
}

func (s *Service) grant(mediationID string) (*Grant, *mediation.Record, error) {
	var grant *Grant

	rec, err := s.pending(mediationID, func(rec *mediation.Record) error {
		s.keysMu.Lock()
		defer s.keysMu.Unlock()

		conn, err := s.connections.GetByID(rec.ConnectionID)
		if err != nil {
			return err
		}

		rec.Endpoint = s.endpoint
		rec.RoutingKeys = []string{conn.Verkey}

		if key := conn.TheirKey(); key != "" {
			owner, found, e := s.mediations.FindByRecipientKey(key)
			if e != nil {
				return e
			}

			if found && owner.ID != rec.ID {
				return fmt.Errorf("recipient key %s is routed by mediation %s: %w", key, owner.ID, record.ErrRecordDuplicate)
			}

			rec.AddRecipientKey(key)
		}

		grant = s.newGrant(rec)

		return s.transition(rec, mediation.StateGranted)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("grant mediation: %w", err)
	}

	return grant, rec, nil
}

// pending runs apply on the requested mediator-side record mediationID, under its connection lock.
func (s *Service) pending(mediationID string, apply func(*mediation.Record) error) (*mediation.Record, error) {
	rec, err := s.mediations.GetByID(mediationID)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(rec.ConnectionID)
	defer s.locks.Unlock(rec.ConnectionID)

	rec, err = s.mediations.GetByID(mediationID)
	if err != nil {
		return nil, err
	}

	if err = rec.AssertRole(mediation.RoleMediator); err != nil {
		return nil, err
	}

	if err = rec.AssertState(mediation.StateRequested); err != nil {
		return nil, err
	}

	return rec, apply(rec)
}

func (s *Service) newGrant(rec *mediation.Record) *Grant {
	grant := &Grant{
		Header:      service.NewHeader(GrantMsgType),
		Endpoint:    rec.Endpoint,
		RoutingKeys: rec.RoutingKeys,
	}
	grant.SetThread(rec.ThreadID)

	return grant
}

func (s *Service) handleKeylistUpdate(msgCtx *service.InboundContext) (*service.OutboundMessage, error) {
	conn, err := msgCtx.AssertReadyConnection()
	if err != nil {
		return nil, fmt.Errorf("keylist update: %w", err)
	}

	update := &KeylistUpdate{}

	err = msgCtx.Message.Decode(update)
	if err != nil {
		return nil, fmt.Errorf("route key list update message unmarshal : %w", err)
	}

	s.keysMu.Lock()
	defer s.keysMu.Unlock()

	rec, found, err := s.mediations.FindByConnectionID(conn.ID)
	if err != nil {
		return nil, fmt.Errorf("keylist update: %w", err)
	}

	if !found {
		return nil, fmt.Errorf("keylist update: connection %s has no mediation: %w", conn.ID, mediation.ErrInvalidState)
	}

	if err = rec.AssertRole(mediation.RoleMediator); err != nil {
		return nil, fmt.Errorf("keylist update: %w", err)
	}

	if err = rec.AssertState(mediation.StateGranted); err != nil {
		return nil, fmt.Errorf("keylist update: %w", err)
	}

	updated := make([]UpdateResponse, 0, len(update.Updates))

	for _, u := range update.Updates {
		updated = append(updated, UpdateResponse{
			RecipientKey: u.RecipientKey,
			Action:       u.Action,
			Result:       s.applyUpdate(rec, u),
		})
	}

	err = s.mediations.Update(rec)
	if err != nil {
		logger.Errorf("failed to store the key list of mediation %s : %s", rec.ID, err)

		for i := range updated {
			if updated[i].Result == ResultSuccess {
				updated[i].Result = ResultServerError
			}
		}
	}

	resp := &KeylistUpdateResponse{Header: service.NewHeader(KeylistUpdateResponseMsgType), Updated: updated}
	resp.SetThread(update.ID)

	return &service.OutboundMessage{Connection: conn, Payload: resp}, nil
}

func (s *Service) applyUpdate(rec *mediation.Record, u Update) string {
	switch u.Action {
	case ActionAdd:
		owner, found, err := s.mediations.FindByRecipientKey(u.RecipientKey)
		if err != nil {
			logger.Errorf("failed to look up the owner of key %s : %s", u.RecipientKey, err)

			return ResultServerError
		}

		if found && owner.ID != rec.ID {
			return ResultClientError
		}

		if !rec.AddRecipientKey(u.RecipientKey) {
			return ResultNoChange
		}

		return ResultSuccess
	case ActionRemove:
		if !rec.RemoveRecipientKey(u.RecipientKey) {
			return ResultNoChange
		}

		return ResultSuccess
	default:
		return ResultClientError
	}
}

// handleForward delivers the forwarded envelope to the recipient owning forward.To.
// Undeliverable envelopes are queued for pickup.
func (s *Service) handleForward(ctx context.Context, msgCtx *service.InboundContext) error {
	forward := &model.Forward{}

	err := msgCtx.Message.Decode(forward)
	if err != nil {
		return fmt.Errorf("forward message unmarshal : %w", err)
	}

	rec, found, err := s.mediations.FindByRecipientKey(forward.To)
	if err != nil {
		return fmt.Errorf("forward: %w", err)
	}

	if !found || !rec.IsReady() {
		return fmt.Errorf("forward: no granted mediation for key %s: %w", forward.To, service.ErrMissingConnection)
	}

	conn, err := s.connections.GetByID(rec.ConnectionID)
	if err != nil {
		return fmt.Errorf("forward: %w", err)
	}

	err = s.outbound.Forward(ctx, conn, forward.Msg)
	if err != nil && s.queue != nil {
		logger.Debugf("forward to connection %s failed, queueing: %s", conn.ID, err)

		return s.queue.Add(conn.TheirKey(), forward.Msg)
	}

	return err
}

func (s *Service) send(ctx context.Context, rec *mediation.Record, msg service.Message) error {
	conn, err := s.connections.GetByID(rec.ConnectionID)
	if err != nil {
		return fmt.Errorf("mediation %s: %w", rec.ID, err)
	}

	err = s.outbound.Send(ctx, &service.OutboundMessage{Connection: conn, Payload: msg})
	if err != nil {
		return fmt.Errorf("mediation %s: send %s: %w", rec.ID, msg.MsgHeader().Type, err)
	}

	return nil
}

func (s *Service) transition(rec *mediation.Record, next mediation.State) error {
	if err := rec.AssertTransition(next); err != nil {
		return err
	}

	previous := rec.State
	rec.State = next

	err := s.mediations.Update(rec)
	if err != nil {
		rec.State = previous

		return fmt.Errorf("update mediation %s: %w", rec.ID, err)
	}

	logger.Debugf("mediation %s (%s): %s -> %s", rec.ID, rec.Role, previous, next)

	PublishStateChanged(s.bus, rec, previous)

	return nil
}
