/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package controller

import (
	"fmt"
	"io"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-agent-go/pkg/controller/command"
	connectioncmd "github.com/hyperledger/aries-agent-go/pkg/controller/command/connection"
	mediatorcmd "github.com/hyperledger/aries-agent-go/pkg/controller/command/mediator"
	messagingcmd "github.com/hyperledger/aries-agent-go/pkg/controller/command/messaging"
	"github.com/hyperledger/aries-agent-go/pkg/controller/rest"
	connectionrest "github.com/hyperledger/aries-agent-go/pkg/controller/rest/connection"
	mediatorrest "github.com/hyperledger/aries-agent-go/pkg/controller/rest/mediator"
	messagingrest "github.com/hyperledger/aries-agent-go/pkg/controller/rest/messaging"
	"github.com/hyperledger/aries-agent-go/pkg/controller/webnotifier"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/basicmessage"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/connection"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/mediator"
	"github.com/hyperledger/aries-agent-go/pkg/framework/context"
)

var logger = log.New("aries-agent/controller")

type allOpts struct {
	webhookURLs []string
	notifier    command.Notifier
}

const wsPath = "/ws"

// Topics forwarded to the notifier.
var notifiedTopics = []event.Topic{
	connection.TopicConnectionStateChanged,
	mediator.TopicMediationStateChanged,
	basicmessage.TopicBasicMessageReceived,
}

// Opt represents a controller option.
type Opt func(opts *allOpts)

// WithWebhookURLs is an option for setting up a webhook dispatcher which will notify clients of events.
func WithWebhookURLs(webhookURLs ...string) Opt {
	return func(opts *allOpts) {
		opts.webhookURLs = webhookURLs
	}
}

// WithNotifier is an option for setting up a notifier which will notify clients of events.
func WithNotifier(notifier command.Notifier) Opt {
	return func(opts *allOpts) {
		opts.notifier = notifier
	}
}

// Controller exposes the agent operations as commands and REST handlers and
// notifies state changes to webhooks and WebSocket clients.
type Controller struct {
	connection *connectionrest.Operation
	mediator   *mediatorrest.Operation
	messaging  *messagingrest.Operation
	commands   []command.Handler
	notifier   command.Notifier
	observer   *webnotifier.Observer
	closers    []io.Closer
}

// New creates the controller of the agent running with ctx.
func New(ctx *context.Provider, opts ...Opt) (*Controller, error) {
	controllerOpts := &allOpts{}
	// Apply options
	for _, opt := range opts {
		opt(controllerOpts)
	}

	var closers []io.Closer

	notifier := controllerOpts.notifier
	if notifier == nil {
		n := webnotifier.New(wsPath, controllerOpts.webhookURLs)
		notifier = n
		closers = append(closers, n)
	}

	connectionOp, err := connectionrest.New(ctx)
	if err != nil {
		return nil, err
	}

	mediatorOp, err := mediatorrest.New(ctx)
	if err != nil {
		return nil, err
	}

	messagingOp, err := messagingrest.New(ctx)
	if err != nil {
		return nil, err
	}

	commands, err := commandHandlers(ctx)
	if err != nil {
		return nil, err
	}

	observer := webnotifier.NewObserver(ctx.EventBus(), notifier)
	for _, topic := range notifiedTopics {
		observer.Register(topic)
	}

	return &Controller{
		connection: connectionOp,
		mediator:   mediatorOp,
		messaging:  messagingOp,
		commands:   commands,
		notifier:   notifier,
		observer:   observer,
		closers:    closers,
	}, nil
}

func commandHandlers(ctx *context.Provider) ([]command.Handler, error) {
	connectionCmd, err := connectioncmd.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create connection command : %w", err)
	}

	mediatorCmd, err := mediatorcmd.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create mediator command : %w", err)
	}

	messagingCmd, err := messagingcmd.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create messaging command : %w", err)
	}

	var allHandlers []command.Handler
	allHandlers = append(allHandlers, connectionCmd.GetHandlers()...)
	allHandlers = append(allHandlers, mediatorCmd.GetHandlers()...)
	allHandlers = append(allHandlers, messagingCmd.GetHandlers()...)

	return allHandlers, nil
}

type handlerProvider interface {
	GetRESTHandlers() []rest.Handler
}

// GetRESTHandlers returns all REST handlers provided by controller.
func (c *Controller) GetRESTHandlers() []rest.Handler {
	var allHandlers []rest.Handler
	allHandlers = append(allHandlers, c.connection.GetRESTHandlers()...)
	allHandlers = append(allHandlers, c.mediator.GetRESTHandlers()...)
	allHandlers = append(allHandlers, c.messaging.GetRESTHandlers()...)

	nhp, ok := c.notifier.(handlerProvider)
	if ok {
		allHandlers = append(allHandlers, nhp.GetRESTHandlers()...)
	}

	return allHandlers
}

// GetCommandHandlers returns all command handlers provided by controller.
func (c *Controller) GetCommandHandlers() []command.Handler {
	return c.commands
}

// Close stops notifying events and disconnects the WebSocket clients of the default notifier.
func (c *Controller) Close() {
	c.observer.Stop()

	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			logger.Warnf("controller close: %s", err)
		}
	}
}
