/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/model"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/trustping"
	connectionstore "github.com/hyperledger/aries-agent-go/pkg/store/connection"
	"github.com/hyperledger/aries-agent-go/pkg/store/record"
	"github.com/hyperledger/aries-agent-go/pkg/wallet"
	"github.com/hyperledger/aries-agent-go/pkg/wallet/localwallet"
)

type staticRoutes struct {
	endpoint string
	keys     []string
	err      error
}

func (r *staticRoutes) AddRoute(_ context.Context, verkey string) (string, []string, error) {
	if r.err != nil {
		return "", nil, r.err
	}

	r.keys = append(r.keys, verkey)

	return r.endpoint, nil, nil
}

type testProvider struct {
	wallet      wallet.Wallet
	connections *connectionstore.Store
	bus         *event.Bus
	routes      *staticRoutes
	label       string
	autoAccept  bool
}

func (p *testProvider) Wallet() wallet.Wallet                   { return p.wallet }
func (p *testProvider) ConnectionStore() *connectionstore.Store { return p.connections }
func (p *testProvider) EventBus() *event.Bus                    { return p.bus }
func (p *testProvider) RouteProvider() RouteProvider            { return p.routes }
func (p *testProvider) Label() string                           { return p.label }
func (p *testProvider) AutoAcceptConnections() bool             { return p.autoAccept }

func newTestProvider(t *testing.T, label string) *testProvider {
	t.Helper()

	w, err := localwallet.New(mem.NewProvider())
	require.NoError(t, err)

	connections, err := connectionstore.NewStore(mem.NewProvider())
	require.NoError(t, err)

	return &testProvider{
		wallet:      w,
		connections: connections,
		bus:         event.NewBus(),
		routes:      &staticRoutes{endpoint: "http://" + label + ".example.com"},
		label:       label,
	}
}

func newService(t *testing.T, label string) (*Service, *testProvider) {
	t.Helper()

	prov := newTestProvider(t, label)
	svc := New(prov)
	t.Cleanup(svc.Close)

	return svc, prov
}

// deliver builds the inbound context the receiver would build for msg arriving at verkey.
func deliver(t *testing.T, prov *testProvider, msg service.Message, verkey string) *service.InboundContext {
	t.Helper()

	didCommMsg, err := service.NewDIDCommMsg(msg)
	require.NoError(t, err)

	conn, _, err := prov.connections.FindByVerkey(verkey)
	require.NoError(t, err)

	return &service.InboundContext{Message: didCommMsg, Connection: conn, RecipientKey: verkey}
}

type handshake struct {
	alice, bob         *Service
	aliceProv, bobProv *testProvider
	inv                *Invitation
	aliceRec, bobRec   *connectionstore.Record
}

// upToRequested runs invitation and request.
func upToRequested(t *testing.T) *handshake {
	t.Helper()

	h := &handshake{}
	h.alice, h.aliceProv = newService(t, "alice")
	h.bob, h.bobProv = newService(t, "bob")

	var err error

	h.inv, h.aliceRec, err = h.alice.CreateInvitation(context.Background(), Options{Alias: "bob"})
	require.NoError(t, err)

	h.bobRec, err = h.bob.ProcessInvitation(context.Background(), h.inv, Options{})
	require.NoError(t, err)

	req, bobRec, err := h.bob.CreateRequest(context.Background(), h.bobRec.ID)
	require.NoError(t, err)

	h.bobRec = bobRec

	h.aliceRec, err = h.alice.ProcessRequest(context.Background(), deliver(t, h.aliceProv, req, h.inv.RecipientKeys[0]))
	require.NoError(t, err)

	return h
}

func TestService_Handshake(t *testing.T) {
	h := upToRequested(t)

	require.Equal(t, connectionstore.StateRequested, h.aliceRec.State)
	require.Equal(t, connectionstore.StateRequested, h.bobRec.State)
	require.Equal(t, h.inv.RecipientKeys[0], h.bobRec.InvitationKey())
	require.Equal(t, "bob", h.aliceRec.TheirLabel)
	require.Equal(t, "alice", h.bobRec.TheirLabel)
	require.Equal(t, h.bobRec.ThreadID, h.aliceRec.ThreadID)
	require.Equal(t, []string{h.bobRec.Verkey}, h.bobProv.routes.keys)

	resp, aliceRec, err := h.alice.CreateResponse(context.Background(), h.aliceRec.ID)
	require.NoError(t, err)
	require.Equal(t, connectionstore.StateResponded, aliceRec.State)
	require.Equal(t, h.bobRec.ThreadID, resp.ThreadID())

	bobRec, err := h.bob.ProcessResponse(context.Background(), deliver(t, h.bobProv, resp, h.bobRec.Verkey))
	require.NoError(t, err)
	require.Equal(t, connectionstore.StateResponded, bobRec.State)

	ping, bobRec, err := h.bob.CreateTrustPing(context.Background(), bobRec.ID, false)
	require.NoError(t, err)
	require.Equal(t, connectionstore.StateComplete, bobRec.State)
	require.False(t, ping.WantsResponse())

	aliceRec, err = h.alice.ProcessAck(context.Background(),
		deliver(t, h.aliceProv, model.NewAck(resp.ThreadID(), model.AckStatusOK), aliceRec.Verkey))
	require.NoError(t, err)
	require.Equal(t, connectionstore.StateComplete, aliceRec.State)

	require.Equal(t, bobRec.DID, aliceRec.TheirDID)
	require.Equal(t, aliceRec.DID, bobRec.TheirDID)
	require.Equal(t, bobRec.Verkey, aliceRec.TheirKey())
	require.Equal(t, aliceRec.Verkey, bobRec.TheirKey())
	require.Equal(t, bobRec.DIDDoc, aliceRec.TheirDIDDoc)
	require.Equal(t, aliceRec.DIDDoc, bobRec.TheirDIDDoc)
}

func TestService_ProcessInvitation(t *testing.T) {
	alice, _ := newService(t, "alice")
	bob, bobProv := newService(t, "bob")

	inv, _, err := alice.CreateInvitation(context.Background(), Options{})
	require.NoError(t, err)

	var published []*connectionstore.Record

	bobProv.bus.Subscribe(TopicConnectionStateChanged, func(e event.Event) {
		published = append(published, e.Payload.(*StateChangedEvent).Record)
	})

	rec, err := bob.ProcessInvitation(context.Background(), inv, Options{})
	require.NoError(t, err)
	require.Equal(t, connectionstore.StateInvited, rec.State)
	require.Equal(t, connectionstore.RoleInvitee, rec.Role)
	require.NotEmpty(t, rec.DID)
	require.NotEmpty(t, rec.Verkey)
	require.NotNil(t, rec.DIDDoc)
	require.Equal(t, rec.DID, rec.DIDDoc.ID)
	require.Equal(t, []string{rec.Verkey}, bobProv.routes.keys)
	require.Len(t, published, 1)
	require.Equal(t, rec.DID, published[0].DID)

	stored, err := bobProv.connections.GetByID(rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.DID, stored.DID)
	require.Equal(t, rec.Verkey, stored.Verkey)

	req, rec, err := bob.CreateRequest(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, stored.DID, req.Connection.DID)
	require.Equal(t, stored.DID, rec.DID)
	require.Equal(t, stored.Verkey, rec.Verkey)
	require.Len(t, bobProv.routes.keys, 1)

	t.Run("route failure", func(t *testing.T) {
		bobProv.routes.err = errors.New("mediator unreachable")
		defer func() { bobProv.routes.err = nil }()

		_, err := bob.ProcessInvitation(context.Background(), inv, Options{})
		require.Error(t, err)
		require.Contains(t, err.Error(), "mediator unreachable")
	})
}

func TestService_ProcessResponse_SignerMismatch(t *testing.T) {
	h := upToRequested(t)

	resp, _, err := h.alice.CreateResponse(context.Background(), h.aliceRec.ID)
	require.NoError(t, err)

	mallory, err := localwallet.New(mem.NewProvider())
	require.NoError(t, err)

	malloryDID, malloryKey, err := mallory.CreateDID()
	require.NoError(t, err)

	resp.ConnectionSignature, err = signConnection(mallory, &Connection{DID: malloryDID}, malloryKey)
	require.NoError(t, err)

	_, err = h.bob.ProcessResponse(context.Background(), deliver(t, h.bobProv, resp, h.bobRec.Verkey))
	require.True(t, errors.Is(err, ErrSignerMismatch))

	rec, err := h.bobProv.connections.GetByID(h.bobRec.ID)
	require.NoError(t, err)
	require.Equal(t, connectionstore.StateRequested, rec.State)
	require.Empty(t, rec.TheirDID)
}

func TestService_Assertions(t *testing.T) {
	t.Run("inviter cannot respond before a request", func(t *testing.T) {
		alice, _ := newService(t, "alice")

		_, rec, err := alice.CreateInvitation(context.Background(), Options{})
		require.NoError(t, err)

		_, _, err = alice.CreateResponse(context.Background(), rec.ID)
		require.True(t, errors.Is(err, connectionstore.ErrInvalidState))

		_, _, err = alice.CreateRequest(context.Background(), rec.ID)
		require.True(t, errors.Is(err, connectionstore.ErrInvalidRole))

		_, _, err = alice.CreateTrustPing(context.Background(), rec.ID, true)
		require.True(t, errors.Is(err, connectionstore.ErrInvalidState))
	})

	t.Run("request twice", func(t *testing.T) {
		h := upToRequested(t)

		_, _, err := h.bob.CreateRequest(context.Background(), h.bobRec.ID)
		require.True(t, errors.Is(err, connectionstore.ErrInvalidState))

		_, _, err = h.bob.CreateResponse(context.Background(), h.bobRec.ID)
		require.True(t, errors.Is(err, connectionstore.ErrInvalidRole))
	})

	t.Run("request without connection", func(t *testing.T) {
		alice, prov := newService(t, "alice")

		req := &Request{Header: service.NewHeader(RequestMsgType), Label: "bob"}

		_, err := alice.ProcessRequest(context.Background(), deliver(t, prov, req, "unknown"))
		require.True(t, errors.Is(err, service.ErrMissingConnection))
	})

	t.Run("request without connection block", func(t *testing.T) {
		alice, prov := newService(t, "alice")

		inv, _, err := alice.CreateInvitation(context.Background(), Options{})
		require.NoError(t, err)

		req := &Request{Header: service.NewHeader(RequestMsgType), Label: "bob"}

		_, err = alice.ProcessRequest(context.Background(), deliver(t, prov, req, inv.RecipientKeys[0]))
		require.Error(t, err)
		require.Contains(t, err.Error(), "no connection block")
	})

	t.Run("response on another thread", func(t *testing.T) {
		h := upToRequested(t)

		resp, _, err := h.alice.CreateResponse(context.Background(), h.aliceRec.ID)
		require.NoError(t, err)

		resp.SetThread("other")

		_, err = h.bob.ProcessResponse(context.Background(), deliver(t, h.bobProv, resp, h.bobRec.Verkey))
		require.Error(t, err)
		require.Contains(t, err.Error(), "does not match")
	})

	t.Run("invalid invitation", func(t *testing.T) {
		bob, _ := newService(t, "bob")

		_, err := bob.ProcessInvitation(context.Background(), &Invitation{ServiceEndpoint: "http://a"}, Options{})
		require.Error(t, err)
	})

	t.Run("route failure", func(t *testing.T) {
		alice, prov := newService(t, "alice")
		prov.routes.err = errors.New("mediator unreachable")

		_, _, err := alice.CreateInvitation(context.Background(), Options{})
		require.Error(t, err)
		require.Contains(t, err.Error(), "mediator unreachable")
	})
}

func TestService_Handle(t *testing.T) {
	t.Run("auto accept answers request and response", func(t *testing.T) {
		alice, aliceProv := newService(t, "alice")
		bob, bobProv := newService(t, "bob")
		alice.autoAccept = true

		accept := true

		inv, _, err := alice.CreateInvitation(context.Background(), Options{})
		require.NoError(t, err)

		bobRec, err := bob.ProcessInvitation(context.Background(), inv, Options{AutoAccept: &accept})
		require.NoError(t, err)

		req, bobRec, err := bob.CreateRequest(context.Background(), bobRec.ID)
		require.NoError(t, err)

		out, err := alice.Handle(context.Background(), deliver(t, aliceProv, req, inv.RecipientKeys[0]))
		require.NoError(t, err)
		require.NotNil(t, out)
		require.Equal(t, connectionstore.StateResponded, out.Connection.State)

		resp, ok := out.Payload.(*Response)
		require.True(t, ok)

		out, err = bob.Handle(context.Background(), deliver(t, bobProv, resp, bobRec.Verkey))
		require.NoError(t, err)
		require.NotNil(t, out)
		require.Equal(t, connectionstore.StateComplete, out.Connection.State)

		_, ok = out.Payload.(*trustping.Ping)
		require.True(t, ok)
	})

	t.Run("without auto accept", func(t *testing.T) {
		h := upToRequested(t)

		resp, _, err := h.alice.CreateResponse(context.Background(), h.aliceRec.ID)
		require.NoError(t, err)

		out, err := h.bob.Handle(context.Background(), deliver(t, h.bobProv, resp, h.bobRec.Verkey))
		require.NoError(t, err)
		require.Nil(t, out)
	})

	t.Run("unsupported type", func(t *testing.T) {
		alice, prov := newService(t, "alice")

		_, err := alice.Handle(context.Background(), deliver(t, prov, trustping.NewPing(true), "key"))
		require.True(t, errors.Is(err, service.ErrNoHandler))
	})
}

func TestService_CompletesOnLaterMessage(t *testing.T) {
	h := upToRequested(t)

	_, aliceRec, err := h.alice.CreateResponse(context.Background(), h.aliceRec.ID)
	require.NoError(t, err)

	msgCtx := deliver(t, h.aliceProv, trustping.NewPing(false), aliceRec.Verkey)
	h.aliceProv.bus.Publish(event.Event{Topic: dispatcher.TopicAgentMessageProcessed, Payload: msgCtx})

	rec, err := h.aliceProv.connections.GetByID(aliceRec.ID)
	require.NoError(t, err)
	require.Equal(t, connectionstore.StateComplete, rec.State)
}

func TestService_ReturnWhenIsConnected(t *testing.T) {
	t.Run("already complete", func(t *testing.T) {
		alice, prov := newService(t, "alice")

		rec := &connectionstore.Record{
			BaseRecord: record.BaseRecord{ID: "conn-1"},
			State:      connectionstore.StateComplete,
			Role:       connectionstore.RoleInviter,
		}
		require.NoError(t, prov.connections.Save(rec))

		got, err := alice.ReturnWhenIsConnected(context.Background(), "conn-1", 50*time.Millisecond)
		require.NoError(t, err)
		require.Equal(t, "conn-1", got.ID)
	})

	t.Run("completes while waiting", func(t *testing.T) {
		h := upToRequested(t)

		_, aliceRec, err := h.alice.CreateResponse(context.Background(), h.aliceRec.ID)
		require.NoError(t, err)

		completeErr := make(chan error, 1)

		go func() {
			time.Sleep(20 * time.Millisecond)

			_, e := h.alice.complete(aliceRec.ID)
			completeErr <- e
		}()

		got, err := h.alice.ReturnWhenIsConnected(context.Background(), aliceRec.ID, 5*time.Second)
		require.NoError(t, err)
		require.Equal(t, connectionstore.StateComplete, got.State)
		require.NoError(t, <-completeErr)
	})

	t.Run("timeout", func(t *testing.T) {
		h := upToRequested(t)

		_, err := h.alice.ReturnWhenIsConnected(context.Background(), h.aliceRec.ID, 50*time.Millisecond)
		require.True(t, errors.Is(err, event.ErrTimeout))
	})

	t.Run("unknown connection", func(t *testing.T) {
		alice, _ := newService(t, "alice")

		_, err := alice.ReturnWhenIsConnected(context.Background(), "missing", time.Second)
		require.True(t, errors.Is(err, record.ErrRecordNotFound))
	})
}

func TestService_StateEvents(t *testing.T) {
	alice, prov := newService(t, "alice")

	var events []*StateChangedEvent

	prov.bus.Subscribe(TopicConnectionStateChanged, func(e event.Event) {
		events = append(events, e.Payload.(*StateChangedEvent))
	})

	_, rec, err := alice.CreateInvitation(context.Background(), Options{})
	require.NoError(t, err)

	require.Len(t, events, 1)
	require.Equal(t, rec.ID, events[0].Record.ID)
	require.Empty(t, events[0].PreviousState)
	require.Equal(t, connectionstore.StateInvited, events[0].Record.State)
}
