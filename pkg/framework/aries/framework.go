/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package aries

import (
	gocontext "context"
	"errors"
	"fmt"

	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/dispatcher/inbound"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/dispatcher/outbound"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/basicmessage"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/mediator"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/messagepickup"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/recipient"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/trustping"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport/session"
	"github.com/hyperledger/aries-agent-go/pkg/framework/context"
	"github.com/hyperledger/aries-agent-go/pkg/ledger"
	connectionstore "github.com/hyperledger/aries-agent-go/pkg/store/connection"
	"github.com/hyperledger/aries-agent-go/pkg/store/mediation"
	"github.com/hyperledger/aries-agent-go/pkg/store/msgqueue"
	"github.com/hyperledger/aries-agent-go/pkg/wallet"
	"github.com/hyperledger/aries-agent-go/pkg/wallet/localwallet"
)

// ErrMediatorOptionsConflict is returned when more than one default mediator option is given.
var ErrMediatorOptionsConflict = errors.New(
	"mediator connections invite, default mediator id and clear default mediator are mutually exclusive")

var logger = log.New("aries-agent/framework")

// Aries provides access to the context being managed by the framework. The context can be used to create aries clients.
type Aries struct {
	storeProvider      storage.Provider
	wallet             wallet.Wallet
	ledger             ledger.Ledger
	ledgerPool         *ledger.PoolConfig
	connectionStore    *connectionstore.Store
	mediationStore     *mediation.Store
	messageQueue       *msgqueue.Queue
	sessionRegistry    *session.Registry
	sessionCacheSize   int
	eventBus           *event.Bus
	outboundDispatcher *outbound.Sender
	dispatcher         *dispatcher.Dispatcher
	inboundHandler     *inbound.MessageHandler
	outboundTransports []transport.OutboundTransport
	inboundTransports  []transport.InboundTransport
	services           []dispatcher.Handler
	connectionSvc      *connection.Service
	recipientSvc       *recipient.Service
	metricsRegisterer  prometheus.Registerer
	label              string
	autoAccept         bool
	autoGrant          bool
	mediatorConfig     mediatorConfig
}

// Option configures the framework.
type Option func(opts *Aries) error

// New initializes the Aries framework based on the set of options provided. This function returns a framework
// which can be used to manage Aries clients by getting the framework context.
func New(opts ...Option) (*Aries, error) {
	frameworkOpts := &Aries{}

	// generate framework configs from options
	for _, option := range opts {
		err := option(frameworkOpts)
		if err != nil {
			closeErr := frameworkOpts.Close()
			return nil, fmt.Errorf("close err: %v Error in option passed to New: %w", closeErr, err)
		}
	}

	if err := frameworkOpts.mediatorConfig.validate(); err != nil {
		return nil, err
	}

	// get the default framework options
	err := defFrameworkOpts(frameworkOpts)
	if err != nil {
		return nil, fmt.Errorf("default option initialization failed: %w", err)
	}

	a, err := initializeServices(frameworkOpts)
	if err != nil {
		return nil, multierr.Append(err, frameworkOpts.Close())
	}

	return a, nil
}

func initializeServices(frameworkOpts *Aries) (*Aries, error) {
	// Order of initializing service is important
	// Create wallet, stores and queue
	if err := createStores(frameworkOpts); err != nil {
		return nil, err
	}

	// Create outbound dispatcher
	if err := createOutboundDispatcher(frameworkOpts); err != nil {
		return nil, err
	}

	// Create the dispatcher and the receiver feeding it
	if err := createInboundDispatcher(frameworkOpts); err != nil {
		return nil, err
	}

	// Load services
	if err := loadServices(frameworkOpts); err != nil {
		return nil, err
	}

	// Start inbound/outbound transports
	if err := startTransports(frameworkOpts); err != nil {
		return nil, err
	}

	if err := connectLedger(frameworkOpts); err != nil {
		return nil, err
	}

	// Connect to and set the default mediator
	if err := frameworkOpts.provisionMediator(); err != nil {
		return nil, err
	}

	return frameworkOpts, nil
}

// WithOutboundTransports injects an outbound transports to the Aries framework.
func WithOutboundTransports(outboundTransports ...transport.OutboundTransport) Option {
	return func(opts *Aries) error {
		opts.outboundTransports = append(opts.outboundTransports, outboundTransports...)
		return nil
	}
}

// WithInboundTransport injects an inbound transport to the Aries framework. The
// endpoint of the first one is the endpoint of the agent.
func WithInboundTransport(inboundTransport ...transport.InboundTransport) Option {
	return func(opts *Aries) error {
		opts.inboundTransports = append(opts.inboundTransports, inboundTransport...)
		return nil
	}
}

// WithStoreProvider injects a storage provider to the Aries framework.
func WithStoreProvider(prov storage.Provider) Option {
	return func(opts *Aries) error {
		opts.storeProvider = prov
		return nil
	}
}

// WithWallet injects a wallet to the Aries framework. The default wallet keeps its keys in the store provider.
func WithWallet(w wallet.Wallet) Option {
	return func(opts *Aries) error {
		opts.wallet = w
		return nil
	}
}

// WithLedger injects a ledger to the Aries framework. With a pool the ledger is connected on start.
func WithLedger(l ledger.Ledger, pool *ledger.PoolConfig) Option {
	return func(opts *Aries) error {
		opts.ledger = l
		opts.ledgerPool = pool

		return nil
	}
}

// WithLabel sets the label put in invitations and connection requests.
func WithLabel(label string) Option {
	return func(opts *Aries) error {
		opts.label = label
		return nil
	}
}

// WithAutoAcceptConnections makes the agent accept invitations and requests without the controller.
func WithAutoAcceptConnections(autoAccept bool) Option {
	return func(opts *Aries) error {
		opts.autoAccept = autoAccept
		return nil
	}
}

// WithAutoGrantMediation makes the agent grant every mediation request.
func WithAutoGrantMediation(autoGrant bool) Option {
	return func(opts *Aries) error {
		opts.autoGrant = autoGrant
		return nil
	}
}

// WithMetricsRegisterer registers the agent metrics with r. Without it metrics
// go to a registry of the framework instance.
func WithMetricsRegisterer(r prometheus.Registerer) Option {
	return func(opts *Aries) error {
		opts.metricsRegisterer = r
		return nil
	}
}

// WithSessionCacheSize bounds the number of return-routed sessions kept.
func WithSessionCacheSize(size int) Option {
	return func(opts *Aries) error {
		if size <= 0 {
			return fmt.Errorf("invalid session cache size %d", size)
		}

		opts.sessionCacheSize = size

		return nil
	}
}

// Context provides a handle to the framework context.
func (a *Aries) Context() (*context.Provider, error) {
	return context.New(a.contextOpts()...)
}

func (a *Aries) contextOpts() []context.ProviderOption {
	opts := []context.ProviderOption{
		context.WithStorageProvider(a.storeProvider),
		context.WithWallet(a.wallet),
		context.WithLedger(a.ledger),
		context.WithConnectionStore(a.connectionStore),
		context.WithMediationStore(a.mediationStore),
		context.WithMessageQueue(a.messageQueue),
		context.WithSessionRegistry(a.sessionRegistry),
		context.WithEventBus(a.eventBus),
		context.WithOutboundTransports(a.outboundTransports...),
		context.WithProtocolServices(a.services...),
		context.WithMetricsRegisterer(a.metricsRegisterer),
		context.WithEndpoint(a.endpoint()),
		context.WithLabel(a.label),
		context.WithAutoAcceptConnections(a.autoAccept),
		context.WithAutoGrantMediation(a.autoGrant),
	}

	// no typed nils behind interfaces
	if a.outboundDispatcher != nil {
		opts = append(opts, context.WithOutboundDispatcher(a.outboundDispatcher))
	}

	if a.dispatcher != nil {
		opts = append(opts, context.WithInboundDispatcher(a.dispatcher))
	}

	if a.inboundHandler != nil {
		opts = append(opts, context.WithReceiver(a.inboundHandler.InboundMessageHandler()))
	}

	if a.recipientSvc != nil {
		opts = append(opts, context.WithRouteProvider(a.recipientSvc))
	}

	return opts
}

// Endpoint returns the endpoint advertised in invitations.
func (a *Aries) Endpoint() string {
	return a.endpoint()
}

// Close frees resources being maintained by the framework.
func (a *Aries) Close() error {
	var errs error

	for _, inbound := range a.inboundTransports {
		if err := inbound.Stop(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("inbound transport close failed: %w", err))
		}
	}

	for _, outbound := range a.outboundTransports {
		if err := outbound.Stop(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("outbound transport close failed: %w", err))
		}
	}

	if a.connectionSvc != nil {
		a.connectionSvc.Close()
	}

	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to close the ledger: %w", err))
		}
	}

	if a.storeProvider != nil {
		if err := a.storeProvider.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to close the store: %w", err))
		}
	}

	return errs
}

func (a *Aries) endpoint() string {
	for _, inbound := range a.inboundTransports {
		if e := inbound.Endpoint(); e != "" {
			return e
		}
	}

	return transport.QueueEndpoint
}

func createStores(frameworkOpts *Aries) error {
	var err error

	if frameworkOpts.wallet == nil {
		frameworkOpts.wallet, err = localwallet.New(frameworkOpts.storeProvider)
		if err != nil {
			return fmt.Errorf("create wallet failed: %w", err)
		}
	}

	frameworkOpts.connectionStore, err = connectionstore.NewStore(frameworkOpts.storeProvider)
	if err != nil {
		return fmt.Errorf("create connection store failed: %w", err)
	}

	frameworkOpts.mediationStore, err = mediation.NewStore(frameworkOpts.storeProvider)
	if err != nil {
		return fmt.Errorf("create mediation store failed: %w", err)
	}

	frameworkOpts.messageQueue, err = msgqueue.New(frameworkOpts.storeProvider)
	if err != nil {
		return fmt.Errorf("create message queue failed: %w", err)
	}

	frameworkOpts.sessionRegistry = session.NewRegistry(frameworkOpts.sessionCacheSize)
	frameworkOpts.eventBus = event.NewBus()

	return nil
}

func createOutboundDispatcher(frameworkOpts *Aries) error {
	ctx, err := context.New(frameworkOpts.contextOpts()...)
	if err != nil {
		return fmt.Errorf("context creation failed: %w", err)
	}

	frameworkOpts.outboundDispatcher, err = outbound.NewSender(ctx)
	if err != nil {
		return fmt.Errorf("failed to init outbound dispatcher: %w", err)
	}

	return nil
}

func createInboundDispatcher(frameworkOpts *Aries) error {
	ctx, err := context.New(frameworkOpts.contextOpts()...)
	if err != nil {
		return fmt.Errorf("context creation failed: %w", err)
	}

	frameworkOpts.dispatcher, err = dispatcher.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to init inbound dispatcher: %w", err)
	}

	ctx, err = context.New(frameworkOpts.contextOpts()...)
	if err != nil {
		return fmt.Errorf("context creation failed: %w", err)
	}

	frameworkOpts.inboundHandler = inbound.NewInboundMessageHandler(ctx)

	return nil
}

func loadServices(frameworkOpts *Aries) error {
	// order is important:
	// - connection depends on recipient for the routes of new invitations
	ctx, err := context.New(frameworkOpts.contextOpts()...)
	if err != nil {
		return fmt.Errorf("create context failed: %w", err)
	}

	frameworkOpts.recipientSvc = recipient.New(ctx)

	ctx, err = context.New(frameworkOpts.contextOpts()...)
	if err != nil {
		return fmt.Errorf("create context failed: %w", err)
	}

	frameworkOpts.connectionSvc = connection.New(ctx)

	basicMessageSvc, err := basicmessage.New(ctx)
	if err != nil {
		return fmt.Errorf("new basic message service: %w", err)
	}

	frameworkOpts.services = []dispatcher.Handler{
		frameworkOpts.connectionSvc,
		trustping.New(ctx),
		mediator.New(ctx),
		messagepickup.New(ctx),
		frameworkOpts.recipientSvc,
		basicMessageSvc,
	}

	frameworkOpts.dispatcher.Register(frameworkOpts.services...)

	return nil
}

func startTransports(frameworkOpts *Aries) error {
	g := errgroup.Group{}

	for _, inbound := range frameworkOpts.inboundTransports {
		inbound := inbound

		// Start the inbound transport
		g.Go(func() error {
			if err := inbound.Start(frameworkOpts.inboundHandler); err != nil {
				return fmt.Errorf("inbound transport start failed: %w", err)
			}

			return nil
		})
	}

	// Start the outbound transport
	for _, outbound := range frameworkOpts.outboundTransports {
		outbound := outbound

		g.Go(func() error {
			if err := outbound.Start(frameworkOpts.inboundHandler); err != nil {
				return fmt.Errorf("outbound transport start failed: %w", err)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Infof("agent %q started with endpoint %s", frameworkOpts.label, frameworkOpts.endpoint())

	return nil
}

func connectLedger(frameworkOpts *Aries) error {
	if frameworkOpts.ledger == nil || frameworkOpts.ledgerPool == nil {
		return nil
	}

	if err := frameworkOpts.ledger.Connect(gocontext.Background(), *frameworkOpts.ledgerPool); err != nil {
		return fmt.Errorf("connect ledger pool %s: %w", frameworkOpts.ledgerPool.Name, err)
	}

	return nil
}
