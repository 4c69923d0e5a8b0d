/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package recipient implements the recipient side of coordinate mediation:
// requesting mediation, registering keys with the default mediator and
// downloading queued messages.
package recipient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"
	"go.uber.org/multierr"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/mediator"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/messagepickup"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-agent-go/pkg/internal/lockbox"
	"github.com/hyperledger/aries-agent-go/pkg/store/connection"
	"github.com/hyperledger/aries-agent-go/pkg/store/mediation"
	"github.com/hyperledger/aries-agent-go/pkg/store/msgqueue"
	"github.com/hyperledger/aries-agent-go/pkg/store/record"
)

const (
	// Name of the recipient side of coordinate mediation.
	Name = "coordinate-mediation-recipient"

	// BatchSize is the number of messages DownloadMessages asks for.
	BatchSize = 10

	updateTimeout   = 10 * time.Second
	downloadTimeout = 10 * time.Second
)

var (
	// ErrMediationDenied is returned when the mediator denies a mediation request.
	ErrMediationDenied = errors.New("mediation denied")
	// ErrNoDefaultMediator is returned when an operation needs the default mediator and none is set.
	ErrNoDefaultMediator = errors.New("no default mediator")
)

var errAlreadyGranted = errors.New("mediation already granted")

var logger = log.New("aries-agent/recipient")

type provider interface {
	MediationStore() *mediation.Store
	ConnectionStore() *connection.Store
	MessageQueue() *msgqueue.Queue
	EventBus() *event.Bus
	OutboundDispatcher() dispatcher.Outbound
	Endpoint() string
	Receiver() transport.InboundMessageHandler
}

// Service is the recipient side of coordinate mediation.
type Service struct {
	mediations  *mediation.Store
	connections *connection.Store
	bus         *event.Bus
	outbound    dispatcher.Outbound
	pickup      *messagepickup.Service
	endpoint    string
	receive     transport.InboundMessageHandler
	locks       *lockbox.Lockbox
}

// New returns the recipient service.
func New(prov provider) *Service {
	return &Service{
		mediations:  prov.MediationStore(),
		connections: prov.ConnectionStore(),
		bus:         prov.EventBus(),
		outbound:    prov.OutboundDispatcher(),
		pickup:      messagepickup.New(prov),
		endpoint:    prov.Endpoint(),
		receive:     prov.Receiver(),
		locks:       lockbox.New(),
	}
}

// Name implements dispatcher.Handler.
func (s *Service) Name() string {
	return Name
}

// SupportedMessageTypes implements dispatcher.Handler.
func (s *Service) SupportedMessageTypes() []string {
	return []string{mediator.GrantMsgType, mediator.DenyMsgType, mediator.KeylistUpdateResponseMsgType}
}

// Handle implements dispatcher.Handler.
func (s *Service) Handle(_ context.Context, msgCtx *service.InboundContext) (*service.OutboundMessage, error) {
	switch msgCtx.Message.Type {
	case mediator.GrantMsgType:
		return nil, s.handleGrant(msgCtx)
	case mediator.DenyMsgType:
		return nil, s.handleDeny(msgCtx)
	case mediator.KeylistUpdateResponseMsgType:
		return nil, s.handleKeylistUpdateResponse(msgCtx)
	default:
		return nil, fmt.Errorf("%s: %w", msgCtx.Message.Type, service.ErrNoHandler)
	}
}

func (s *Service) handleGrant(msgCtx *service.InboundContext) error {
	grant := &mediator.Grant{}

	err := msgCtx.Message.Decode(grant)
	if err != nil {
		return fmt.Errorf("mediation grant unmarshal: %w", err)
	}

	return s.answered(msgCtx, func(rec *mediation.Record) error {
		rec.Endpoint = grant.Endpoint
		rec.RoutingKeys = grant.RoutingKeys

		return s.transition(rec, mediation.StateGranted)
	})
}

func (s *Service) handleDeny(msgCtx *service.InboundContext) error {
	return s.answered(msgCtx, func(rec *mediation.Record) error {
		return s.transition(rec, mediation.StateDenied)
	})
}

// answered applies the answer of the mediator to the requested record of its thread.
func (s *Service) answered(msgCtx *service.InboundContext, apply func(*mediation.Record) error) error {
	conn, err := msgCtx.AssertReadyConnection()
	if err != nil {
		return err
	}

	s.locks.Lock(conn.ID)
	defer s.locks.Unlock(conn.ID)

	rec, err := s.mediations.GetByThreadID(msgCtx.Message.ThreadID())
	if err != nil {
		return fmt.Errorf("%s: %w", msgCtx.Message.Type, err)
	}

	if rec.ConnectionID != conn.ID {
		return fmt.Errorf("%s: mediation %s belongs to another connection: %w",
			msgCtx.Message.Type, rec.ID, mediation.ErrInvalidState)
	}

	if err = rec.AssertRole(mediation.RoleRecipient); err != nil {
		return err
	}

	if err = rec.AssertState(mediation.StateRequested); err != nil {
		return err
	}

	return apply(rec)
}

func (s *Service) handleKeylistUpdateResponse(msgCtx *service.InboundContext) error {
	conn, err := msgCtx.AssertReadyConnection()
	if err != nil {
		return err
	}

	resp := &mediator.KeylistUpdateResponse{}

	err = msgCtx.Message.Decode(resp)
	if err != nil {
		return fmt.Errorf("keylist update response unmarshal: %w", err)
	}

	s.locks.Lock(conn.ID)
	defer s.locks.Unlock(conn.ID)

	rec, found, err := s.mediations.FindByConnectionID(conn.ID)
	if err != nil {
		return fmt.Errorf("keylist update response: %w", err)
	}

	if !found {
		return fmt.Errorf("keylist update response: connection %s has no mediation: %w",
			conn.ID, mediation.ErrInvalidState)
	}

	for _, u := range resp.Updated {
		if u.Result != mediator.ResultSuccess && u.Result != mediator.ResultNoChange {
			logger.Warnf("mediator rejected %s of key %s: %s", u.Action, u.RecipientKey, u.Result)

			continue
		}

		switch u.Action {
		case mediator.ActionAdd:
			rec.AddRecipientKey(u.RecipientKey)
		case mediator.ActionRemove:
			rec.RemoveRecipientKey(u.RecipientKey)
		}
	}

	return s.mediations.Update(rec)
}

// RequestMediation asks the peer of conn to mediate for this agent. The
// returned record is in state requested, or granted when the peer already
// mediates for this agent. A denied mediation fails with ErrMediationDenied.
func (s *Service) RequestMediation(ctx context.Context, conn *connection.Record) (*mediation.Record, error) {
	id, err := s.mediationID(conn)
	if err != nil {
		return nil, err
	}

	rec, _, err := s.requestMediation(ctx, conn, id)

	return rec, err
}

// RequestAndAwaitGrant requests mediation and waits until the mediator grants
// or denies it. A denial is returned as ErrMediationDenied.
func (s *Service) RequestAndAwaitGrant(ctx context.Context, conn *connection.Record,
	timeout time.Duration) (*mediation.Record, error) {
	id, err := s.mediationID(conn)
	if err != nil {
		return nil, err
	}

	var granted *mediation.Record

	e, err := event.WaitForEvent(ctx, s.bus, mediator.TopicMediationStateChanged,
		func() error {
			rec, sent, err := s.requestMediation(ctx, conn, id)
			if err != nil {
				return err
			}

			if !sent {
				granted = rec

				return errAlreadyGranted
			}

			return nil
		},
		func(e event.Event) bool {
			changed, ok := e.Payload.(*mediator.StateChangedEvent)

			return ok && changed.Record.ID == id &&
				changed.PreviousState == mediation.StateRequested &&
				(changed.Record.State == mediation.StateGranted || changed.Record.State == mediation.StateDenied)
		},
		timeout)

	switch {
	case errors.Is(err, errAlreadyGranted):
		return granted, nil
	case err != nil:
		return nil, fmt.Errorf("request mediation: %w", err)
	}

	rec := e.Payload.(*mediator.StateChangedEvent).Record
	if rec.State == mediation.StateDenied {
		return rec, fmt.Errorf("connection %s: %w", conn.ID, ErrMediationDenied)
	}

	return rec, nil
}

// mediationID returns the id of the mediation record of conn, existing or to be created.
func (s *Service) mediationID(conn *connection.Record) (string, error) {
	if !conn.IsReady() {
		return "", fmt.Errorf("request mediation: %w",
			conn.AssertState(connection.StateResponded, connection.StateComplete))
	}

	rec, found, err := s.mediations.FindByConnectionID(conn.ID)
	if err != nil {
		return "", fmt.Errorf("request mediation: %w", err)
	}

	if !found {
		return uuid.New().String(), nil
	}

	if err = rec.AssertRole(mediation.RoleRecipient); err != nil {
		return "", fmt.Errorf("request mediation: %w", err)
	}

	return rec.ID, nil
}

// requestMediation sends a request unless the mediation id is already
// granted, reporting whether a request was sent.
func (s *Service) requestMediation(ctx context.Context, conn *connection.Record,
	id string) (*mediation.Record, bool, error) {
	req := mediator.NewRequest()

	rec, pending, err := s.saveRequest(conn, id, req.ID)
	if err != nil || !pending {
		return rec, false, err
	}

	err = s.outbound.Send(ctx, &service.OutboundMessage{Connection: conn, Payload: req})
	if err != nil {
		return nil, false, fmt.Errorf("send mediation request: %w", err)
	}

	logger.Debugf("requested mediation %s on connection %s", rec.ID, conn.ID)

	return rec, true, nil
}

// saveRequest stores the requested record of id on thread threadID. A granted
// record is returned unchanged and reported as not pending.
func (s *Service) saveRequest(conn *connection.Record, id, threadID string) (*mediation.Record, bool, error) {
	s.locks.Lock(conn.ID)
	defer s.locks.Unlock(conn.ID)

	rec, found, err := s.mediations.FindByID(id)
	if err != nil {
		return nil, false, fmt.Errorf("request mediation: %w", err)
	}

	if found {
		switch rec.State {
		case mediation.StateGranted:
			return rec, false, nil
		case mediation.StateDenied:
			return nil, false, fmt.Errorf("connection %s: %w", conn.ID, ErrMediationDenied)
		}

		rec.ThreadID = threadID

		err = s.mediations.Update(rec)
		if err != nil {
			return nil, false, fmt.Errorf("request mediation: update: %w", err)
		}

		return rec, true, nil
	}

	rec = &mediation.Record{
		BaseRecord:   record.BaseRecord{ID: id},
		State:        mediation.StateRequested,
		Role:         mediation.RoleRecipient,
		ConnectionID: conn.ID,
		ThreadID:     threadID,
	}

	err = s.mediations.Save(rec)
	if err != nil {
		return nil, false, fmt.Errorf("request mediation: save: %w", err)
	}

	mediator.PublishStateChanged(s.bus, rec, "")

	return rec, true, nil
}

// SetDefaultMediator makes the granted mediation mediationID the default one.
func (s *Service) SetDefaultMediator(mediationID string) (*mediation.Record, error) {
	rec, err := s.mediations.GetByID(mediationID)
	if err != nil {
		return nil, fmt.Errorf("set default mediator: %w", err)
	}

	if err = rec.AssertRole(mediation.RoleRecipient); err != nil {
		return nil, fmt.Errorf("set default mediator: %w", err)
	}

	if err = rec.AssertState(mediation.StateGranted); err != nil {
		return nil, fmt.Errorf("set default mediator: %w", err)
	}

	return rec, s.mediations.SetDefaultMediator(rec)
}

// ClearDefaultMediator removes the default mediator.
func (s *Service) ClearDefaultMediator() error {
	return s.mediations.ClearDefaultMediator()
}

// GetDefaultMediator returns the default mediation record, if any.
func (s *Service) GetDefaultMediator() (*mediation.Record, bool, error) {
	return s.mediations.GetDefaultMediator()
}

// GetDefaultMediatorConnection returns the connection to the default mediator, if any.
func (s *Service) GetDefaultMediatorConnection() (*connection.Record, bool, error) {
	rec, found, err := s.mediations.GetDefaultMediator()
	if err != nil || !found {
		return nil, false, err
	}

	conn, err := s.connections.GetByID(rec.ConnectionID)
	if err != nil {
		return nil, false, fmt.Errorf("default mediator connection: %w", err)
	}

	return conn, true, nil
}

// Config returns the endpoint and routing keys peers use to reach this agent:
// the default mediator's when there is one, the agent's own endpoint otherwise.
func (s *Service) Config() (*mediator.Config, error) {
	rec, found, err := s.mediations.GetDefaultMediator()
	if err != nil {
		return nil, fmt.Errorf("routing config: %w", err)
	}

	if !found {
		return mediator.NewConfig(s.endpoint, nil), nil
	}

	return mediator.NewConfig(rec.Endpoint, rec.RoutingKeys), nil
}

// AddRoute implements connection.RouteProvider. With a default mediator the
// key is registered with it and the mediator endpoint is returned.
func (s *Service) AddRoute(ctx context.Context, verkey string) (string, []string, error) {
	conn, found, err := s.GetDefaultMediatorConnection()
	if err != nil {
		return "", nil, fmt.Errorf("add route: %w", err)
	}

	if found {
		err = s.updateKeys(ctx, conn, mediator.Update{RecipientKey: verkey, Action: mediator.ActionAdd})
		if err != nil {
			return "", nil, fmt.Errorf("add route: %w", err)
		}
	}

	cfg, err := s.Config()
	if err != nil {
		return "", nil, err
	}

	return cfg.Endpoint(), cfg.Keys(), nil
}

// RemoveRoute removes verkey from the key list of the default mediator.
func (s *Service) RemoveRoute(ctx context.Context, verkey string) error {
	conn, found, err := s.GetDefaultMediatorConnection()
	if err != nil {
		return fmt.Errorf("remove route: %w", err)
	}

	if !found {
		return ErrNoDefaultMediator
	}

	return s.updateKeys(ctx, conn, mediator.Update{RecipientKey: verkey, Action: mediator.ActionRemove})
}

func (s *Service) updateKeys(ctx context.Context, conn *connection.Record, updates ...mediator.Update) error {
	reply, err := s.outbound.SendAndReceive(ctx, &service.OutboundMessage{
		Connection: conn,
		Payload:    mediator.NewKeylistUpdate(updates...),
	}, mediator.KeylistUpdateResponseMsgType, updateTimeout)
	if err != nil {
		return fmt.Errorf("keylist update: %w", err)
	}

	resp := &mediator.KeylistUpdateResponse{}

	err = reply.Message.Decode(resp)
	if err != nil {
		return fmt.Errorf("keylist update response unmarshal: %w", err)
	}

	for _, u := range resp.Updated {
		if u.Result != mediator.ResultSuccess && u.Result != mediator.ResultNoChange {
			return fmt.Errorf("keylist update: %s of key %s failed: %s", u.Action, u.RecipientKey, u.Result)
		}
	}

	return nil
}

// DownloadMessages picks up queued messages from the mediator at the other end
// of conn, the default mediator when conn is nil, and feeds them to the
// receiver. It returns the number of messages picked up.
func (s *Service) DownloadMessages(ctx context.Context, conn *connection.Record) (int, error) {
	if conn == nil {
		var (
			found bool
			err   error
		)

		conn, found, err = s.GetDefaultMediatorConnection()
		if err != nil {
			return 0, fmt.Errorf("download messages: %w", err)
		}

		if !found {
			return 0, fmt.Errorf("download messages: %w", ErrNoDefaultMediator)
		}
	}

	msgs, err := s.pickup.BatchPickup(ctx, conn, BatchSize, downloadTimeout)
	if err != nil {
		return 0, fmt.Errorf("download messages: %w", err)
	}

	var errs error

	for _, envelope := range messagepickup.Envelopes(msgs) {
		_, err = s.receive(ctx, envelope, nil)
		if err != nil {
			logger.Warnf("failed to process a message picked up from connection %s : %s", conn.ID, err)

			errs = multierr.Append(errs, err)
		}
	}

	return len(msgs), errs
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

	mediator.PublishStateChanged(s.bus, rec, previous)

	return nil
}
