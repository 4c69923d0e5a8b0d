/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package aries

import (
	"errors"
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/basicmessage"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/mediator"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/messagepickup"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/recipient"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/trustping"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-agent-go/pkg/ledger"
	"github.com/hyperledger/aries-agent-go/pkg/store/record"
)

func TestFramework(t *testing.T) {
	t.Run("test framework new - returns error", func(t *testing.T) {
		_, err := New(func(opts *Aries) error {
			return errors.New("error in option")
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "error in option")
	})

	t.Run("test framework new - with default options", func(t *testing.T) {
		aries, err := New()
		require.NoError(t, err)
		require.Equal(t, transport.QueueEndpoint, aries.Endpoint())

		ctx, err := aries.Context()
		require.NoError(t, err)
		require.NotNil(t, ctx.Wallet())
		require.NotNil(t, ctx.ConnectionStore())
		require.NotNil(t, ctx.MediationStore())
		require.NotNil(t, ctx.MessageQueue())
		require.NotNil(t, ctx.OutboundDispatcher())
		require.NotNil(t, ctx.InboundDispatcher())
		require.NotNil(t, ctx.Receiver())
		require.NotNil(t, ctx.RouteProvider())
		require.Len(t, ctx.OutboundTransports(), 1)
		require.Nil(t, ctx.Ledger())

		for _, name := range []string{
			connection.Name, trustping.Name, mediator.Coordination,
			messagepickup.MessagePickup, recipient.Name, basicmessage.Name,
		} {
			_, err = ctx.Service(name)
			require.NoError(t, err, name)
		}

		require.NoError(t, aries.Close())
	})

	t.Run("test framework new - with store provider and settings", func(t *testing.T) {
		store := mem.NewProvider()

		aries, err := New(
			WithStoreProvider(store),
			WithLabel("alice"),
			WithAutoAcceptConnections(true),
			WithAutoGrantMediation(true),
			WithSessionCacheSize(10),
		)
		require.NoError(t, err)

		ctx, err := aries.Context()
		require.NoError(t, err)
		require.Equal(t, store, ctx.StorageProvider())
		require.Equal(t, "alice", ctx.Label())
		require.True(t, ctx.AutoAcceptConnections())
		require.True(t, ctx.AutoGrantMediation())

		require.NoError(t, aries.Close())
	})

	t.Run("test framework new - invalid session cache size", func(t *testing.T) {
		_, err := New(WithSessionCacheSize(0))
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid session cache size")
	})

	t.Run("test framework new - inbound transport endpoint", func(t *testing.T) {
		board := newSwitchboard()

		aries, err := New(WithInboundTransport(board.inbound("alice")), WithOutboundTransports(board.outbound()))
		require.NoError(t, err)
		require.Equal(t, "loop://alice", aries.Endpoint())

		_, ok := board.lookup("loop://alice")
		require.True(t, ok)

		require.NoError(t, aries.Close())

		_, ok = board.lookup("loop://alice")
		require.False(t, ok)
	})

	t.Run("test framework new - inbound transport start failure", func(t *testing.T) {
		_, err := New(WithInboundTransport(failingInbound{}))
		require.Error(t, err)
		require.Contains(t, err.Error(), "inbound transport start failed")
	})

	t.Run("test framework new - ledger", func(t *testing.T) {
		l := &mockLedger{}
		pool := &ledger.PoolConfig{Name: "local", GenesisPath: "/etc/genesis.txn"}

		aries, err := New(WithLedger(l, pool))
		require.NoError(t, err)
		require.Equal(t, *pool, l.pool)

		ctx, err := aries.Context()
		require.NoError(t, err)
		require.Equal(t, l, ctx.Ledger())

		require.NoError(t, aries.Close())
		require.True(t, l.closed)
	})

	t.Run("test framework new - ledger connect failure", func(t *testing.T) {
		l := &mockLedger{connectErr: errors.New("pool unreachable")}

		_, err := New(WithLedger(l, &ledger.PoolConfig{Name: "local"}))
		require.Error(t, err)
		require.Contains(t, err.Error(), "pool unreachable")
		require.True(t, l.closed)
	})
}

func TestFramework_MediatorOptions(t *testing.T) {
	t.Run("mutually exclusive", func(t *testing.T) {
		_, err := New(WithDefaultMediatorID("m1"), WithClearDefaultMediator())
		require.True(t, errors.Is(err, ErrMediatorOptionsConflict))

		_, err = New(WithMediatorConnectionsInvite("http://mediator.example.com?c_i=e30"), WithDefaultMediatorID("m1"))
		require.True(t, errors.Is(err, ErrMediatorOptionsConflict))
	})

	t.Run("clear default mediator", func(t *testing.T) {
		aries, err := New(WithClearDefaultMediator())
		require.NoError(t, err)
		require.NoError(t, aries.Close())
	})

	t.Run("unknown default mediator", func(t *testing.T) {
		_, err := New(WithDefaultMediatorID("unknown"))
		require.True(t, errors.Is(err, record.ErrRecordNotFound))
	})

	t.Run("invalid invitation", func(t *testing.T) {
		_, err := New(WithMediatorConnectionsInvite("http://mediator.example.com"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "provision mediator")
	})

	t.Run("unreachable mediator", func(t *testing.T) {
		board := newSwitchboard()

		mediatorAgent, err := New(
			WithInboundTransport(board.inbound("mediator")),
			WithOutboundTransports(board.outbound()),
		)
		require.NoError(t, err)

		invitationURL := createInvitationURL(t, mediatorAgent)

		require.NoError(t, mediatorAgent.Close())

		_, err = New(
			WithOutboundTransports(board.outbound()),
			WithMediatorConnectionsInvite(invitationURL),
			WithMediatorProvisionTimeout(time.Second),
		)
		require.Error(t, err)
		require.Contains(t, err.Error(), "nothing listens on loop://mediator")
	})
}
