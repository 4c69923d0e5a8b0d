/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package context

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport/session"
	dispatcherMocks "github.com/hyperledger/aries-agent-go/pkg/internal/gomocks/didcomm/dispatcher"
	"github.com/hyperledger/aries-agent-go/pkg/store/connection"
	"github.com/hyperledger/aries-agent-go/pkg/store/mediation"
	"github.com/hyperledger/aries-agent-go/pkg/store/msgqueue"
	"github.com/hyperledger/aries-agent-go/pkg/wallet/localwallet"
)

type mockService struct {
	name string
}

func (m *mockService) Name() string                    { return m.name }
func (m *mockService) SupportedMessageTypes() []string { return []string{"valid-message-type"} }

func (m *mockService) Handle(context.Context, *service.InboundContext) (*service.OutboundMessage, error) {
	return nil, nil
}

type routes struct{}

func (routes) AddRoute(context.Context, string) (string, []string, error) {
	return "http://example.com", nil, nil
}

func TestNewProvider(t *testing.T) {
	t.Run("test new with default", func(t *testing.T) {
		prov, err := New()
		require.NoError(t, err)
		require.Empty(t, prov.OutboundDispatcher())
		require.Empty(t, prov.InboundDispatcher())
		require.Nil(t, prov.Ledger())
		require.Nil(t, prov.MessageQueue())
		require.Empty(t, prov.Endpoint())
		require.False(t, prov.AutoAcceptConnections())
		require.False(t, prov.AutoGrantMediation())
	})

	t.Run("test new with outbound and inbound dispatchers", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		outbound := dispatcherMocks.NewMockOutbound(ctrl)
		outbound.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)

		inbound := dispatcherMocks.NewMockInbound(ctrl)

		prov, err := New(WithOutboundDispatcher(outbound), WithInboundDispatcher(inbound))
		require.NoError(t, err)
		require.NoError(t, prov.OutboundDispatcher().Send(context.Background(), &service.OutboundMessage{}))
		require.Equal(t, inbound, prov.InboundDispatcher())
	})

	t.Run("test error return from options", func(t *testing.T) {
		_, err := New(func(opts *Provider) error {
			return errors.New("error creating the framework option")
		})
		require.Error(t, err)
	})

	t.Run("test new with protocol service", func(t *testing.T) {
		prov, err := New(WithProtocolServices(&mockService{name: "mockProtocolSvc"}))
		require.NoError(t, err)

		_, err = prov.Service("mockProtocolSvc")
		require.NoError(t, err)

		_, err = prov.Service("mockProtocolSvc1")
		require.True(t, errors.Is(err, ErrServiceNotFound))

		require.Len(t, prov.Services(), 1)
	})

	t.Run("test new with stores and wallet", func(t *testing.T) {
		store := mem.NewProvider()

		w, err := localwallet.New(store)
		require.NoError(t, err)

		connections, err := connection.NewStore(store)
		require.NoError(t, err)

		mediations, err := mediation.NewStore(store)
		require.NoError(t, err)

		queue, err := msgqueue.New(store)
		require.NoError(t, err)

		prov, err := New(
			WithStorageProvider(store),
			WithWallet(w),
			WithConnectionStore(connections),
			WithMediationStore(mediations),
			WithMessageQueue(queue),
		)
		require.NoError(t, err)
		require.Equal(t, store, prov.StorageProvider())
		require.Equal(t, w, prov.Wallet())
		require.Equal(t, connections, prov.ConnectionStore())
		require.Equal(t, mediations, prov.MediationStore())
		require.Equal(t, queue, prov.MessageQueue())
	})

	t.Run("test new with agent settings", func(t *testing.T) {
		bus := event.NewBus()
		sessions := session.NewRegistry(10)
		reg := prometheus.NewRegistry()

		var receiver transport.InboundMessageHandler = func(context.Context, []byte,
			transport.Session) ([]byte, error) {
			return []byte("reply"), nil
		}

		prov, err := New(
			WithEventBus(bus),
			WithSessionRegistry(sessions),
			WithMetricsRegisterer(reg),
			WithReceiver(receiver),
			WithRouteProvider(routes{}),
			WithEndpoint("http://alice.example.com"),
			WithLabel("alice"),
			WithAutoAcceptConnections(true),
			WithAutoGrantMediation(true),
			WithOutboundTransports(),
		)
		require.NoError(t, err)
		require.Equal(t, bus, prov.EventBus())
		require.Equal(t, sessions, prov.SessionRegistry())
		require.Equal(t, reg, prov.MetricsRegisterer())
		require.Equal(t, "http://alice.example.com", prov.Endpoint())
		require.Equal(t, "alice", prov.Label())
		require.True(t, prov.AutoAcceptConnections())
		require.True(t, prov.AutoGrantMediation())
		require.Empty(t, prov.OutboundTransports())

		reply, err := prov.Receiver()(context.Background(), nil, nil)
		require.NoError(t, err)
		require.Equal(t, []byte("reply"), reply)

		endpoint, _, err := prov.RouteProvider().AddRoute(context.Background(), "key")
		require.NoError(t, err)
		require.Equal(t, "http://example.com", endpoint)
	})
}
