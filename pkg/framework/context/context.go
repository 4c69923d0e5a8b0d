/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package context creates a framework Provider context to add optional (non default) framework services and provides
// simple accessor methods to those same services.
package context

import (
	"errors"
	"fmt"

	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport/session"
	"github.com/hyperledger/aries-agent-go/pkg/ledger"
	connectionstore "github.com/hyperledger/aries-agent-go/pkg/store/connection"
	"github.com/hyperledger/aries-agent-go/pkg/store/mediation"
	"github.com/hyperledger/aries-agent-go/pkg/store/msgqueue"
	"github.com/hyperledger/aries-agent-go/pkg/wallet"
)

// ErrServiceNotFound is returned when no protocol service has the requested name.
var ErrServiceNotFound = errors.New("service not found")

// Provider supplies the framework configuration to client objects.
type Provider struct {
	services           []dispatcher.Handler
	storeProvider      storage.Provider
	wallet             wallet.Wallet
	ledger             ledger.Ledger
	connectionStore    *connectionstore.Store
	mediationStore     *mediation.Store
	messageQueue       *msgqueue.Queue
	sessionRegistry    *session.Registry
	eventBus           *event.Bus
	outboundDispatcher dispatcher.Outbound
	inboundDispatcher  dispatcher.Inbound
	outboundTransports []transport.OutboundTransport
	receiver           transport.InboundMessageHandler
	routeProvider      connection.RouteProvider
	metricsRegisterer  prometheus.Registerer
	endpoint           string
	label              string
	autoAccept         bool
	autoGrant          bool
}

// New instantiates a new context provider.
func New(opts ...ProviderOption) (*Provider, error) {
	ctxProvider := Provider{}

	for _, opt := range opts {
		err := opt(&ctxProvider)
		if err != nil {
			return nil, fmt.Errorf("option failed: %w", err)
		}
	}

	return &ctxProvider, nil
}

// OutboundDispatcher returns an outbound dispatcher.
func (p *Provider) OutboundDispatcher() dispatcher.Outbound {
	return p.outboundDispatcher
}

// InboundDispatcher returns the dispatcher of received messages.
func (p *Provider) InboundDispatcher() dispatcher.Inbound {
	return p.inboundDispatcher
}

// OutboundTransports returns an outbound transports.
func (p *Provider) OutboundTransports() []transport.OutboundTransport {
	return p.outboundTransports
}

// Service return protocol service.
func (p *Provider) Service(id string) (interface{}, error) {
	for _, v := range p.services {
		if v.Name() == id {
			return v, nil
		}
	}

	return nil, fmt.Errorf("service %s: %w", id, ErrServiceNotFound)
}

// Services returns the registered protocol services.
func (p *Provider) Services() []dispatcher.Handler {
	return p.services
}

// StorageProvider return a storage provider.
func (p *Provider) StorageProvider() storage.Provider {
	return p.storeProvider
}

// Wallet returns the wallet.
func (p *Provider) Wallet() wallet.Wallet {
	return p.wallet
}

// Ledger returns the ledger, nil when the agent has none.
func (p *Provider) Ledger() ledger.Ledger {
	return p.ledger
}

// ConnectionStore returns the connection store.
func (p *Provider) ConnectionStore() *connectionstore.Store {
	return p.connectionStore
}

// MediationStore returns the mediation store.
func (p *Provider) MediationStore() *mediation.Store {
	return p.mediationStore
}

// MessageQueue returns the queue of messages held for mediated peers.
func (p *Provider) MessageQueue() *msgqueue.Queue {
	return p.messageQueue
}

// SessionRegistry returns the registry of return-routed transport sessions.
func (p *Provider) SessionRegistry() *session.Registry {
	return p.sessionRegistry
}

// EventBus returns the event bus.
func (p *Provider) EventBus() *event.Bus {
	return p.eventBus
}

// Receiver returns the handler of received envelopes.
func (p *Provider) Receiver() transport.InboundMessageHandler {
	return p.receiver
}

// RouteProvider returns the provider of the endpoint and routing keys put in new invitations.
func (p *Provider) RouteProvider() connection.RouteProvider {
	return p.routeProvider
}

// MetricsRegisterer returns the registerer of the agent metrics.
func (p *Provider) MetricsRegisterer() prometheus.Registerer {
	return p.metricsRegisterer
}

// Endpoint returns the inbound endpoint of the agent.
func (p *Provider) Endpoint() string {
	return p.endpoint
}

// Label returns the label put in invitations and requests.
func (p *Provider) Label() string {
	return p.label
}

// AutoAcceptConnections tells whether connection invitations and requests are accepted without the controller.
func (p *Provider) AutoAcceptConnections() bool {
	return p.autoAccept
}

// AutoGrantMediation tells whether mediation requests are granted without the controller.
func (p *Provider) AutoGrantMediation() bool {
	return p.autoGrant
}

// ProviderOption configures the framework.
type ProviderOption func(opts *Provider) error

// WithOutboundTransports injects an outbound transports into the context.
func WithOutboundTransports(transports ...transport.OutboundTransport) ProviderOption {
	return func(opts *Provider) error {
		opts.outboundTransports = transports
		return nil
	}
}

// WithOutboundDispatcher injects an outbound dispatcher into the context.
func WithOutboundDispatcher(outboundDispatcher dispatcher.Outbound) ProviderOption {
	return func(opts *Provider) error {
		opts.outboundDispatcher = outboundDispatcher
		return nil
	}
}

// WithInboundDispatcher injects the dispatcher of received messages into the context.
func WithInboundDispatcher(inboundDispatcher dispatcher.Inbound) ProviderOption {
	return func(opts *Provider) error {
		opts.inboundDispatcher = inboundDispatcher
		return nil
	}
}

// WithProtocolServices injects a protocol services into the context.
func WithProtocolServices(services ...dispatcher.Handler) ProviderOption {
	return func(opts *Provider) error {
		opts.services = services
		return nil
	}
}

// WithStorageProvider injects a storage provider into the context.
func WithStorageProvider(s storage.Provider) ProviderOption {
	return func(opts *Provider) error {
		opts.storeProvider = s
		return nil
	}
}

// WithWallet injects a wallet into the context.
func WithWallet(w wallet.Wallet) ProviderOption {
	return func(opts *Provider) error {
		opts.wallet = w
		return nil
	}
}

// WithLedger injects a ledger into the context.
func WithLedger(l ledger.Ledger) ProviderOption {
	return func(opts *Provider) error {
		opts.ledger = l
		return nil
	}
}

// WithConnectionStore injects a connection store into the context.
func WithConnectionStore(s *connectionstore.Store) ProviderOption {
	return func(opts *Provider) error {
		opts.connectionStore = s
		return nil
	}
}

// WithMediationStore injects a mediation store into the context.
func WithMediationStore(s *mediation.Store) ProviderOption {
	return func(opts *Provider) error {
		opts.mediationStore = s
		return nil
	}
}

// WithMessageQueue injects the queue of messages held for mediated peers into the context.
func WithMessageQueue(q *msgqueue.Queue) ProviderOption {
	return func(opts *Provider) error {
		opts.messageQueue = q
		return nil
	}
}

// WithSessionRegistry injects the session registry into the context.
func WithSessionRegistry(r *session.Registry) ProviderOption {
	return func(opts *Provider) error {
		opts.sessionRegistry = r
		return nil
	}
}

// WithEventBus injects the event bus into the context.
func WithEventBus(b *event.Bus) ProviderOption {
	return func(opts *Provider) error {
		opts.eventBus = b
		return nil
	}
}

// WithReceiver injects the handler of received envelopes into the context.
func WithReceiver(h transport.InboundMessageHandler) ProviderOption {
	return func(opts *Provider) error {
		opts.receiver = h
		return nil
	}
}

// WithRouteProvider injects the route provider into the context.
func WithRouteProvider(r connection.RouteProvider) ProviderOption {
	return func(opts *Provider) error {
		opts.routeProvider = r
		return nil
	}
}

// WithMetricsRegisterer injects the metrics registerer into the context.
func WithMetricsRegisterer(r prometheus.Registerer) ProviderOption {
	return func(opts *Provider) error {
		opts.metricsRegisterer = r
		return nil
	}
}

// WithEndpoint injects the inbound endpoint into the context.
func WithEndpoint(endpoint string) ProviderOption {
	return func(opts *Provider) error {
		opts.endpoint = endpoint
		return nil
	}
}

// WithLabel injects the agent label into the context.
func WithLabel(label string) ProviderOption {
	return func(opts *Provider) error {
		opts.label = label
		return nil
	}
}

// WithAutoAcceptConnections sets the connection auto-accept policy.
func WithAutoAcceptConnections(autoAccept bool) ProviderOption {
	return func(opts *Provider) error {
		opts.autoAccept = autoAccept
		return nil
	}
}

// WithAutoGrantMediation sets the mediation auto-grant policy.
func WithAutoGrantMediation(autoGrant bool) ProviderOption {
	return func(opts *Provider) error {
		opts.autoGrant = autoGrant
		return nil
	}
}
