/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package aries

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	connclient "github.com/hyperledger/aries-agent-go/pkg/client/connection"
	mediatorclient "github.com/hyperledger/aries-agent-go/pkg/client/mediator"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/basicmessage"
	connectionstore "github.com/hyperledger/aries-agent-go/pkg/store/connection"
	"github.com/hyperledger/aries-agent-go/pkg/store/mediation"
)

const waitTimeout = 5 * time.Second

func createInvitationURL(t *testing.T, agent *Aries) string {
	t.Helper()

	u, _, err := connectionClient(t, agent).CreateInvitationURL(context.Background(), "https://example.com/invite")
	require.NoError(t, err)

	return u
}

func connectionClient(t *testing.T, agent *Aries) *connclient.Client {
	t.Helper()

	ctx, err := agent.Context()
	require.NoError(t, err)

	c, err := connclient.New(ctx)
	require.NoError(t, err)

	return c
}

func mediatorClient(t *testing.T, agent *Aries) *mediatorclient.Client {
	t.Helper()

	ctx, err := agent.Context()
	require.NoError(t, err)

	c, err := mediatorclient.New(ctx)
	require.NoError(t, err)

	return c
}

func basicMessageService(t *testing.T, agent *Aries) *basicmessage.Service {
	t.Helper()

	ctx, err := agent.Context()
	require.NoError(t, err)

	svc, err := ctx.Service(basicmessage.Name)
	require.NoError(t, err)

	bm, ok := svc.(*basicmessage.Service)
	require.True(t, ok)

	return bm
}

func TestAgents_Connection(t *testing.T) {
	board := newSwitchboard()
	registry := prometheus.NewRegistry()

	alice, err := New(
		WithLabel("alice"),
		WithInboundTransport(board.inbound("alice")),
		WithOutboundTransports(board.outbound()),
		WithAutoAcceptConnections(true),
		WithMetricsRegisterer(registry),
	)
	require.NoError(t, err)

	defer func() { require.NoError(t, alice.Close()) }()

	bob, err := New(
		WithLabel("bob"),
		WithInboundTransport(board.inbound("bob")),
		WithOutboundTransports(board.outbound()),
		WithAutoAcceptConnections(true),
	)
	require.NoError(t, err)

	defer func() { require.NoError(t, bob.Close()) }()

	ctx := context.Background()
	aliceConnections := connectionClient(t, alice)
	bobConnections := connectionClient(t, bob)

	invitationURL, aliceConn, err := aliceConnections.CreateInvitationURL(ctx, "https://alice.example.com")
	require.NoError(t, err)
	require.Equal(t, connectionstore.StateInvited, aliceConn.State)

	bobConn, err := bobConnections.ReceiveInvitationFromURL(ctx, invitationURL)
	require.NoError(t, err)

	bobConn, err = bobConnections.ReturnWhenIsConnected(ctx, bobConn.ID, waitTimeout)
	require.NoError(t, err)
	require.Equal(t, connectionstore.StateComplete, bobConn.State)
	require.Equal(t, "alice", bobConn.TheirLabel)

	aliceConn, err = aliceConnections.ReturnWhenIsConnected(ctx, aliceConn.ID, waitTimeout)
	require.NoError(t, err)
	require.Equal(t, connectionstore.StateComplete, aliceConn.State)
	require.Equal(t, "bob", aliceConn.TheirLabel)
	require.Equal(t, bobConn.DID, aliceConn.TheirDID)
	require.Equal(t, aliceConn.DID, bobConn.TheirDID)

	t.Run("basic message", func(t *testing.T) {
		sent, err := basicMessageService(t, bob).SendMessage(ctx, bobConn, "hello alice")
		require.NoError(t, err)

		received, err := basicMessageService(t, alice).Messages(aliceConn.ID)
		require.NoError(t, err)
		require.Len(t, received, 1)
		require.Equal(t, sent.ID, received[0].ID)
		require.Equal(t, "hello alice", received[0].Content)
		require.Equal(t, basicmessage.RoleReceiver, received[0].Role)
	})

	t.Run("dispatcher metrics", func(t *testing.T) {
		families, err := registry.Gather()
		require.NoError(t, err)

		var found bool

		for _, f := range families {
			if f.GetName() == "aries_agent_dispatcher_messages_total" {
				found = true

				require.NotEmpty(t, f.GetMetric())
			}
		}

		require.True(t, found)
	})
}

func TestAgents_Mediation(t *testing.T) {
	board := newSwitchboard()
	ctx := context.Background()

	mediatorAgent, err := New(
		WithLabel("mediator"),
		WithInboundTransport(board.inbound("mediator")),
		WithOutboundTransports(board.outbound()),
		WithAutoAcceptConnections(true),
		WithAutoGrantMediation(true),
	)
	require.NoError(t, err)

	defer func() { require.NoError(t, mediatorAgent.Close()) }()

	mediatorInvitationURL := createInvitationURL(t, mediatorAgent)

	// no inbound transport: the recipient is reachable only through the mediator
	recipientAgent, err := New(
		WithLabel("recipient"),
		WithOutboundTransports(board.outbound()),
		WithMediatorConnectionsInvite(mediatorInvitationURL),
		WithMediatorProvisionTimeout(waitTimeout),
	)
	require.NoError(t, err)

	defer func() { require.NoError(t, recipientAgent.Close()) }()

	alice, err := New(
		WithLabel("alice"),
		WithInboundTransport(board.inbound("alice")),
		WithOutboundTransports(board.outbound()),
		WithAutoAcceptConnections(true),
	)
	require.NoError(t, err)

	defer func() { require.NoError(t, alice.Close()) }()

	recipientMediators := mediatorClient(t, recipientAgent)

	defaultMediation, found, err := recipientMediators.GetDefaultMediator()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, mediation.StateGranted, defaultMediation.State)
	require.Equal(t, "loop://mediator", defaultMediation.Endpoint)
	require.Len(t, defaultMediation.RoutingKeys, 1)

	recipientConnections := connectionClient(t, recipientAgent)
	aliceConnections := connectionClient(t, alice)

	inv, recipientConn, err := recipientConnections.CreateInvitation(ctx, connclient.WithAutoAccept(true))
	require.NoError(t, err)
	require.Equal(t, "loop://mediator", inv.ServiceEndpoint)
	require.Equal(t, defaultMediation.RoutingKeys, inv.RoutingKeys)

	// the request is forwarded to the mediator and queued there
	aliceConn, err := aliceConnections.ReceiveInvitation(ctx, inv)
	require.NoError(t, err)
	require.Equal(t, connectionstore.StateRequested, aliceConn.State)

	n, err := recipientMediators.DownloadMessages(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	aliceConn, err = aliceConnections.ReturnWhenIsConnected(ctx, aliceConn.ID, waitTimeout)
	require.NoError(t, err)
	require.Equal(t, connectionstore.StateComplete, aliceConn.State)

	recipientConn, err = recipientConnections.ReturnWhenIsConnected(ctx, recipientConn.ID, waitTimeout)
	require.NoError(t, err)
	require.Equal(t, connectionstore.StateComplete, recipientConn.State)

	n, err = recipientMediators.DownloadMessages(ctx, "")
	require.NoError(t, err)
	require.Zero(t, n)

	t.Run("store and forward", func(t *testing.T) {
		_, err := basicMessageService(t, alice).SendMessage(ctx, aliceConn, "hello recipient")
		require.NoError(t, err)

		received, err := basicMessageService(t, recipientAgent).Messages(recipientConn.ID)
		require.NoError(t, err)
		require.Empty(t, received)

		n, err := recipientMediators.DownloadMessages(ctx, "")
		require.NoError(t, err)
		require.Equal(t, 1, n)

		received, err = basicMessageService(t, recipientAgent).Messages(recipientConn.ID)
		require.NoError(t, err)
		require.Len(t, received, 1)
		require.Equal(t, "hello recipient", received[0].Content)
	})

	t.Run("provisioning again reuses the granted mediation", func(t *testing.T) {
		rec, err := recipientAgent.mediatorFromInvitation(mediatorInvitationURL, waitTimeout)
		require.NoError(t, err)
		require.Equal(t, defaultMediation.ID, rec.ID)
	})
}
