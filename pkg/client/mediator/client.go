/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/mediator"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/recipient"
	"github.com/hyperledger/aries-agent-go/pkg/store/connection"
	"github.com/hyperledger/aries-agent-go/pkg/store/mediation"
)

const defaultTimeout = 10 * time.Second

var logger = log.New("aries-agent/client/mediator")

// provider contains dependencies for the mediator client and is typically created by using aries.Context().
type provider interface {
	Service(id string) (interface{}, error)
	ConnectionStore() *connection.Store
	MediationStore() *mediation.Store
}

// recipientService defines the recipient side of coordinate mediation.
type recipientService interface {
	RequestAndAwaitGrant(ctx context.Context, conn *connection.Record, timeout time.Duration) (*mediation.Record, error)
	SetDefaultMediator(mediationID string) (*mediation.Record, error)
	ClearDefaultMediator() error
	GetDefaultMediator() (*mediation.Record, bool, error)
	GetDefaultMediatorConnection() (*connection.Record, bool, error)
	DownloadMessages(ctx context.Context, conn *connection.Record) (int, error)
}

// mediatorService defines the mediator side of coordinate mediation.
type mediatorService interface {
	GrantMediation(ctx context.Context, mediationID string) (*mediation.Record, error)
	DenyMediation(ctx context.Context, mediationID string) (*mediation.Record, error)
}

// ClientOption configures the client.
type ClientOption func(c *Client)

// WithTimeout option is for definition timeout value waiting for responses received from the mediator.
func WithTimeout(t time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = t
	}
}

// Client enables access to mediation.
type Client struct {
	recipientSvc recipientService
	mediatorSvc  mediatorService
	connections  *connection.Store
	mediations   *mediation.Store
	timeout      time.Duration
}

// New return new instance of mediator client.
func New(ctx provider, options ...ClientOption) (*Client, error) {
	svc, err := ctx.Service(recipient.Name)
	if err != nil {
		return nil, err
	}

	recipientSvc, ok := svc.(recipientService)
	if !ok {
		return nil, errors.New("cast service to recipient service failed")
	}

	svc, err = ctx.Service(mediator.Coordination)
	if err != nil {
		return nil, err
	}

	mediatorSvc, ok := svc.(mediatorService)
	if !ok {
		return nil, errors.New("cast service to mediator service failed")
	}

	c := &Client{
		recipientSvc: recipientSvc,
		mediatorSvc:  mediatorSvc,
		connections:  ctx.ConnectionStore(),
		mediations:   ctx.MediationStore(),
		timeout:      defaultTimeout,
	}

	for _, option := range options {
		option(c)
	}

	return c, nil
}

// RequestMediation asks the peer of connectionID to mediate for the agent and
// waits for the grant.
func (c *Client) RequestMediation(ctx context.Context, connectionID string) (*mediation.Record, error) {
	conn, err := c.connections.GetByID(connectionID)
	if err != nil {
		return nil, fmt.Errorf("request mediation: %w", err)
	}

	rec, err := c.recipientSvc.RequestAndAwaitGrant(ctx, conn, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("request mediation: %w", err)
	}

	return rec, nil
}

// GrantMediation grants a pending mediation request.
func (c *Client) GrantMediation(ctx context.Context, mediationID string) (*mediation.Record, error) {
	return c.mediatorSvc.GrantMediation(ctx, mediationID)
}

// DenyMediation denies a pending mediation request.
func (c *Client) DenyMediation(ctx context.Context, mediationID string) (*mediation.Record, error) {
	return c.mediatorSvc.DenyMediation(ctx, mediationID)
}

// SetDefaultMediator makes the granted mediation mediationID the default one.
func (c *Client) SetDefaultMediator(mediationID string) (*mediation.Record, error) {
	return c.recipientSvc.SetDefaultMediator(mediationID)
}

// ClearDefaultMediator removes the default mediator.
func (c *Client) ClearDefaultMediator() error {
	return c.recipientSvc.ClearDefaultMediator()
}

// GetDefaultMediator returns the default mediation record, if any.
func (c *Client) GetDefaultMediator() (*mediation.Record, bool, error) {
	return c.recipientSvc.GetDefaultMediator()
}

// GetDefaultMediatorConnection returns the connection to the default mediator, if any.
func (c *Client) GetDefaultMediatorConnection() (*connection.Record, bool, error) {
	return c.recipientSvc.GetDefaultMediatorConnection()
}

// GetMediators returns the mediations this agent requested.
func (c *Client) GetMediators() ([]*mediation.Record, error) {
	return c.mediations.GetMediators()
}

// GetMediation returns the mediation record of the connection, if any.
func (c *Client) GetMediation(connectionID string) (*mediation.Record, bool, error) {
	return c.mediations.FindByConnectionID(connectionID)
}

// DownloadMessages picks up the messages queued by the mediator at the other
// end of connectionID, the default mediator when connectionID is empty.
func (c *Client) DownloadMessages(ctx context.Context, connectionID string) (int, error) {
	var conn *connection.Record

	if connectionID != "" {
		var err error

		conn, err = c.connections.GetByID(connectionID)
		if err != nil {
			return 0, fmt.Errorf("download messages: %w", err)
		}
	}

	return c.recipientSvc.DownloadMessages(ctx, conn)
}
