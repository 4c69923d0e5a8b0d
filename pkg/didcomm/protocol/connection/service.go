/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package connection implements the connection protocol (Aries RFC 0160) state machine.
package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/trustping"
	"github.com/hyperledger/aries-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-agent-go/pkg/internal/lockbox"
	connectionstore "github.com/hyperledger/aries-agent-go/pkg/store/connection"
	"github.com/hyperledger/aries-agent-go/pkg/store/record"
	"github.com/hyperledger/aries-agent-go/pkg/wallet"
)

var logger = log.New("aries-agent/connection")

var errAlreadyComplete = errors.New("connection already complete")

// RouteProvider supplies where peers should send messages for a new key.
type RouteProvider interface {
	// AddRoute registers verkey with the default mediator, if any, and returns
	// the endpoint and routing keys to advertise for it.
	AddRoute(ctx context.Context, verkey string) (endpoint string, routingKeys []string, err error)
}

type provider interface {
	Wallet() wallet.Wallet
	ConnectionStore() *connectionstore.Store
	EventBus() *event.Bus
	RouteProvider() RouteProvider
	Label() string
	AutoAcceptConnections() bool
}

// Options of a new connection record.
type Options struct {
	Alias string
	// AutoAccept overrides the agent-wide auto-accept policy for the connection.
	AutoAccept *bool
}

// Service drives connection records through invited, requested, responded and
// complete. Mutations of one record are serialized.
type Service struct {
	wallet      wallet.Wallet
	connections *connectionstore.Store
	bus         *event.Bus
	routes      RouteProvider
	label       string
	autoAccept  bool
	locks       *lockbox.Lockbox
	sub         *event.Subscription
}

// New returns the connection service.
func New(prov provider) *Service {
	s := &Service{
		wallet:      prov.Wallet(),
		connections: prov.ConnectionStore(),
		bus:         prov.EventBus(),
		routes:      prov.RouteProvider(),
		label:       prov.Label(),
		autoAccept:  prov.AutoAcceptConnections(),
		locks:       lockbox.New(),
	}

	s.sub = s.bus.Subscribe(dispatcher.TopicAgentMessageProcessed, s.onMessageProcessed)

	return s
}

// Close stops listening for processed messages.
func (s *Service) Close() {
	s.bus.Unsubscribe(s.sub)
}

// Name implements dispatcher.Handler.
func (s *Service) Name() string {
	return Name
}

// SupportedMessageTypes implements dispatcher.Handler.
func (s *Service) SupportedMessageTypes() []string {
	return []string{RequestMsgType, ResponseMsgType, model.AckMsgType}
}

// Handle implements dispatcher.Handler. With auto-accept a request is answered
// with a response and a response with a trust ping.
func (s *Service) Handle(ctx context.Context, msgCtx *service.InboundContext) (*service.OutboundMessage, error) {
	switch msgCtx.Message.Type {
	case RequestMsgType:
		rec, err := s.ProcessRequest(ctx, msgCtx)
		if err != nil {
			return nil, err
		}

		if !rec.ShouldAutoAccept(s.autoAccept) {
			return nil, nil
		}

		resp, rec, err := s.CreateResponse(ctx, rec.ID)
		if err != nil {
			return nil, err
		}

		return &service.OutboundMessage{Connection: rec, Payload: resp}, nil
	case ResponseMsgType:
		rec, err := s.ProcessResponse(ctx, msgCtx)
		if err != nil {
			return nil, err
		}

		if !rec.ShouldAutoAccept(s.autoAccept) {
			return nil, nil
		}

		ping, rec, err := s.CreateTrustPing(ctx, rec.ID, false)
		if err != nil {
			return nil, err
		}

		return &service.OutboundMessage{Connection: rec, Payload: ping}, nil
	case model.AckMsgType:
		_, err := s.ProcessAck(ctx, msgCtx)

		return nil, err
	default:
		return nil, fmt.Errorf("%s: %w", msgCtx.Message.Type, service.ErrNoHandler)
	}
}

// newRecord creates the pairwise DID of a new connection, routed through the
// default mediator when one is set, and returns the record in state invited.
func (s *Service) newRecord(ctx context.Context, role connectionstore.Role, opts Options) (*connectionstore.Record, error) {
	didID, verkey, err := s.wallet.CreateDID()
	if err != nil {
		return nil, err
	}

	endpoint, routingKeys, err := s.routes.AddRoute(ctx, verkey)
	if err != nil {
		return nil, err
	}

	return &connectionstore.Record{
		BaseRecord:           record.BaseRecord{ID: uuid.New().String()},
		State:                connectionstore.StateInvited,
		Role:                 role,
		DID:                  didID,
		DIDDoc:               did.NewDoc(didID, verkey, endpoint, routingKeys),
		Verkey:               verkey,
		AutoAcceptConnection: opts.AutoAccept,
		Alias:                opts.Alias,
	}, nil
}

// CreateInvitation creates an inviter record in state invited and the invitation for it.
func (s *Service) CreateInvitation(ctx context.Context, opts Options) (*Invitation, *connectionstore.Record, error) {
	rec, err := s.newRecord(ctx, connectionstore.RoleInviter, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("create invitation: %w", err)
	}

	svc, ok := did.LookupService(rec.DIDDoc, did.DIDCommServiceType)
	if !ok {
		return nil, nil, fmt.Errorf("create invitation: %w", did.ErrNoDIDCommService)
	}

	inv := &Invitation{
		Header:          service.NewHeader(InvitationMsgType),
		Label:           s.label,
		RecipientKeys:   []string{rec.Verkey},
		ServiceEndpoint: svc.ServiceEndpoint,
		RoutingKeys:     svc.RoutingKeys,
	}

	err = s.connections.Save(rec)
	if err != nil {
		return nil, nil, fmt.Errorf("create invitation: save connection: %w", err)
	}

	s.publish(rec, "")

	return inv, rec, nil
}

// ProcessInvitation creates an invitee record in state invited, with its own
// DID like the record of CreateInvitation. The first recipient key of the
// invitation is the key the response must be signed with.
func (s *Service) ProcessInvitation(ctx context.Context, inv *Invitation, opts Options) (*connectionstore.Record, error) {
	if len(inv.RecipientKeys) == 0 || inv.ServiceEndpoint == "" {
		return nil, errors.New("process invitation: recipient keys and service endpoint are mandatory")
	}

	raw, err := json.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("process invitation: marshal: %w", err)
	}

	rec, err := s.newRecord(ctx, connectionstore.RoleInvitee, opts)
	if err != nil {
		return nil, fmt.Errorf("process invitation: %w", err)
	}

	rec.TheirLabel = inv.Label
	rec.Invitation = raw
	rec.SetTag(connectionstore.TagInvitationKey, inv.RecipientKeys[0])

	err = s.connections.Save(rec)
	if err != nil {
		return nil, fmt.Errorf("process invitation: save connection: %w", err)
	}

	s.publish(rec, "")

	return rec, nil
}

// CreateRequest creates the request carrying the invitee's DID.
func (s *Service) CreateRequest(_ context.Context, connID string) (*Request, *connectionstore.Record, error) {
	s.locks.Lock(connID)
	defer s.locks.Unlock(connID)

	rec, err := s.connections.GetByID(connID)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	if err = rec.AssertRole(connectionstore.RoleInvitee); err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	if err = rec.AssertState(connectionstore.StateInvited); err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	req := &Request{
		Header:     service.NewHeader(RequestMsgType),
		Label:      s.label,
		Connection: &Connection{DID: rec.DID, DIDDoc: rec.DIDDoc},
	}

	rec.ThreadID = req.ID

	err = s.transition(rec, connectionstore.StateRequested)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}

	return req, rec, nil
}

// ProcessRequest records the invitee's DID from a request received on an invitation key.
func (s *Service) ProcessRequest(_ context.Context, msgCtx *service.InboundContext) (*connectionstore.Record, error) {
	if msgCtx.Connection == nil {
		return nil, fmt.Errorf("process request for key %s: %w", msgCtx.RecipientKey, service.ErrMissingConnection)
	}

	connID := msgCtx.Connection.ID

	s.locks.Lock(connID)
	defer s.locks.Unlock(connID)

	rec, err := s.connections.GetByID(connID)
	if err != nil {
		return nil, fmt.Errorf("process request: %w", err)
	}

	if err = rec.AssertRole(connectionstore.RoleInviter); err != nil {
		return nil, fmt.Errorf("process request: %w", err)
	}

	if err = rec.AssertState(connectionstore.StateInvited); err != nil {
		return nil, fmt.Errorf("process request: %w", err)
	}

	req := &Request{}

	err = msgCtx.Message.Decode(req)
	if err != nil {
		return nil, fmt.Errorf("process request: decode: %w", err)
	}

	if req.Connection == nil || req.Connection.DIDDoc == nil {
		return nil, errors.New("process request: request has no connection block")
	}

	rec.TheirDID = req.Connection.DID
	rec.TheirDIDDoc = req.Connection.DIDDoc
	rec.TheirLabel = req.Label
	rec.ThreadID = req.ThreadID()

	err = s.transition(rec, connectionstore.StateRequested)
	if err != nil {
		return nil, fmt.Errorf("process request: %w", err)
	}

	return rec, nil
}

// CreateResponse signs the inviter's DID for the connection with the invitation key.
func (s *Service) CreateResponse(_ context.Context, connID string) (*Response, *connectionstore.Record, error) {
	s.locks.Lock(connID)
	defer s.locks.Unlock(connID)

	rec, err := s.connections.GetByID(connID)
	if err != nil {
		return nil, nil, fmt.Errorf("create response: %w", err)
	}

	if err = rec.AssertRole(connectionstore.RoleInviter); err != nil {
		return nil, nil, fmt.Errorf("create response: %w", err)
	}

	if err = rec.AssertState(connectionstore.StateRequested); err != nil {
		return nil, nil, fmt.Errorf("create response: %w", err)
	}

	sig, err := signConnection(s.wallet, &Connection{DID: rec.DID, DIDDoc: rec.DIDDoc}, rec.Verkey)
	if err != nil {
		return nil, nil, fmt.Errorf("create response: %w", err)
	}

	resp := &Response{
		Header:              service.NewHeader(ResponseMsgType),
		ConnectionSignature: sig,
	}
	resp.SetThread(rec.ThreadID)

	err = s.transition(rec, connectionstore.StateResponded)
	if err != nil {
		return nil, nil, fmt.Errorf("create response: %w", err)
	}

	return resp, rec, nil
}

// ProcessResponse verifies the inviter's signed DID. The record stays requested
// when the signer is not the invitation key.
func (s *Service) ProcessResponse(_ context.Context, msgCtx *service.InboundContext) (*connectionstore.Record, error) {
	if msgCtx.Connection == nil {
		return nil, fmt.Errorf("process response for key %s: %w", msgCtx.RecipientKey, service.ErrMissingConnection)
	}

	connID := msgCtx.Connection.ID

	s.locks.Lock(connID)
	defer s.locks.Unlock(connID)

	rec, err := s.connections.GetByID(connID)
	if err != nil {
		return nil, fmt.Errorf("process response: %w", err)
	}

	if err = rec.AssertRole(connectionstore.RoleInvitee); err != nil {
		return nil, fmt.Errorf("process response: %w", err)
	}

	if err = rec.AssertState(connectionstore.StateRequested); err != nil {
		return nil, fmt.Errorf("process response: %w", err)
	}

	resp := &Response{}

	err = msgCtx.Message.Decode(resp)
	if err != nil {
		return nil, fmt.Errorf("process response: decode: %w", err)
	}

	if resp.ThreadID() != rec.ThreadID {
		return nil, fmt.Errorf("process response: thread %s does not match request thread %s",
			resp.ThreadID(), rec.ThreadID)
	}

	conn, err := verifyConnection(s.wallet, resp.ConnectionSignature)
	if err != nil {
		return nil, fmt.Errorf("process response: %w", err)
	}

	if resp.ConnectionSignature.SignVerKey != rec.InvitationKey() {
		return nil, fmt.Errorf("process response: signer %s, invitation key %s: %w",
			resp.ConnectionSignature.SignVerKey, rec.InvitationKey(), ErrSignerMismatch)
	}

	if conn.DIDDoc == nil {
		return nil, errors.New("process response: signed connection has no DID document")
	}

	rec.TheirDID = conn.DID
	rec.TheirDIDDoc = conn.DIDDoc

	err = s.transition(rec, connectionstore.StateResponded)
	if err != nil {
		return nil, fmt.Errorf("process response: %w", err)
	}

	return rec, nil
}

// CreateTrustPing returns a ping for the connection and marks a responded connection complete.
func (s *Service) CreateTrustPing(_ context.Context, connID string,
	responseRequested bool) (*trustping.Ping, *connectionstore.Record, error) {
	s.locks.Lock(connID)
	defer s.locks.Unlock(connID)

	rec, err := s.connections.GetByID(connID)
	if err != nil {
		return nil, nil, fmt.Errorf("create trust ping: %w", err)
	}

	if err = rec.AssertState(connectionstore.StateResponded, connectionstore.StateComplete); err != nil {
		return nil, nil, fmt.Errorf("create trust ping: %w", err)
	}

	if rec.State == connectionstore.StateResponded {
		err = s.transition(rec, connectionstore.StateComplete)
		if err != nil {
			return nil, nil, fmt.Errorf("create trust ping: %w", err)
		}
	}

	return trustping.NewPing(responseRequested), rec, nil
}

// ProcessAck completes a responded inviter connection.
func (s *Service) ProcessAck(_ context.Context, msgCtx *service.InboundContext) (*connectionstore.Record, error) {
	conn, err := msgCtx.AssertReadyConnection()
	if err != nil {
		return nil, fmt.Errorf("process ack: %w", err)
	}

	return s.complete(conn.ID)
}

// ReturnWhenIsConnected waits until the connection connID is complete. It
// returns at once when the connection already is.
func (s *Service) ReturnWhenIsConnected(ctx context.Context, connID string,
	timeout time.Duration) (*connectionstore.Record, error) {
	var done *connectionstore.Record

	e, err := event.WaitForEvent(ctx, s.bus, TopicConnectionStateChanged,
		func() error {
			rec, err := s.connections.GetByID(connID)
			if err != nil {
				return err
			}

			if rec.State == connectionstore.StateComplete {
				done = rec

				return errAlreadyComplete
			}

			return nil
		},
		func(e event.Event) bool {
			changed, ok := e.Payload.(*StateChangedEvent)

			return ok && changed.Record.ID == connID && changed.Record.State == connectionstore.StateComplete
		}, timeout)

	switch {
	case errors.Is(err, errAlreadyComplete):
		return done, nil
	case err != nil:
		return nil, fmt.Errorf("wait for connection %s: %w", connID, err)
	default:
		return e.Payload.(*StateChangedEvent).Record, nil
	}
}

// complete advances a responded inviter to complete. Other records are returned unchanged.
func (s *Service) complete(connID string) (*connectionstore.Record, error) {
	s.locks.Lock(connID)
	defer s.locks.Unlock(connID)

	rec, err := s.connections.GetByID(connID)
	if err != nil {
		return nil, err
	}

	if rec.Role != connectionstore.RoleInviter || rec.State != connectionstore.StateResponded {
		return rec, nil
	}

	err = s.transition(rec, connectionstore.StateComplete)
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// onMessageProcessed completes a responded inviter on the first message that follows the response.
func (s *Service) onMessageProcessed(e event.Event) {
	msgCtx, ok := e.Payload.(*service.InboundContext)
	if !ok || msgCtx.Connection == nil {
		return
	}

	conn := msgCtx.Connection
	if conn.Role != connectionstore.RoleInviter || conn.State != connectionstore.StateResponded {
		return
	}

	if _, err := s.complete(conn.ID); err != nil {
		logger.Warnf("complete connection %s after %s: %s", conn.ID, msgCtx.Message.Type, err)
	}
}

func (s *Service) transition(rec *connectionstore.Record, next connectionstore.State) error {
	previous := rec.State
	rec.State = next

	err := s.connections.Update(rec)
	if err != nil {
		rec.State = previous

		return fmt.Errorf("update connection %s: %w", rec.ID, err)
	}

	logger.Debugf("connection %s (%s): %s -> %s", rec.ID, rec.Role, previous, next)

	s.publish(rec, previous)

	return nil
}

func (s *Service) publish(rec *connectionstore.Record, previous connectionstore.State) {
	s.bus.Publish(event.Event{
		Topic:   TopicConnectionStateChanged,
		Payload: &StateChangedEvent{Record: rec, PreviousState: previous},
	})
}
