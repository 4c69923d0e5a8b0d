/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package connection provides the connection API of the agent: creating and
// receiving invitations, accepting requests and waiting for completion.
package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/connection"
	connectionstore "github.com/hyperledger/aries-agent-go/pkg/store/connection"
	"github.com/hyperledger/aries-agent-go/pkg/store/record"
)

// ErrConnectionNotFound is returned when connection not found.
var ErrConnectionNotFound = errors.New("connection not found")

// provider contains dependencies for the connection client and is typically created by using aries.Context().
type provider interface {
	Service(id string) (interface{}, error)
	ConnectionStore() *connectionstore.Store
	OutboundDispatcher() dispatcher.Outbound
	AutoAcceptConnections() bool
}

// protocolService defines the connection service.
type protocolService interface {
	CreateInvitation(ctx context.Context, opts connection.Options) (*connection.Invitation, *connectionstore.Record, error)
	ProcessInvitation(ctx context.Context, inv *connection.Invitation,
		opts connection.Options) (*connectionstore.Record, error)
	CreateRequest(ctx context.Context, connID string) (*connection.Request, *connectionstore.Record, error)
	CreateResponse(ctx context.Context, connID string) (*connection.Response, *connectionstore.Record, error)
	ReturnWhenIsConnected(ctx context.Context, connID string, timeout time.Duration) (*connectionstore.Record, error)
}

// Client enables access to the connection protocol.
type Client struct {
	connectionSvc protocolService
	connections   *connectionstore.Store
	outbound      dispatcher.Outbound
	autoAccept    bool
}

// Option configures a new connection record.
type Option func(opts *connection.Options)

// WithAlias sets the alias of the connection.
func WithAlias(alias string) Option {
	return func(opts *connection.Options) {
		opts.Alias = alias
	}
}

// WithAutoAccept overrides the agent-wide auto-accept policy for the connection.
func WithAutoAccept(autoAccept bool) Option {
	return func(opts *connection.Options) {
		opts.AutoAccept = &autoAccept
	}
}

// New returns a new connection client.
func New(ctx provider) (*Client, error) {
	svc, err := ctx.Service(connection.Name)
	if err != nil {
		return nil, err
	}

	connectionSvc, ok := svc.(protocolService)
	if !ok {
		return nil, errors.New("cast service to connection service failed")
	}

	return &Client{
		connectionSvc: connectionSvc,
		connections:   ctx.ConnectionStore(),
		outbound:      ctx.OutboundDispatcher(),
		autoAccept:    ctx.AutoAcceptConnections(),
	}, nil
}

// CreateInvitation creates an invitation and the inviter connection waiting for it.
func (c *Client) CreateInvitation(ctx context.Context,
	opts ...Option) (*connection.Invitation, *connectionstore.Record, error) {
	inv, rec, err := c.connectionSvc.CreateInvitation(ctx, options(opts))
	if err != nil {
		return nil, nil, fmt.Errorf("create invitation: %w", err)
	}

	return inv, rec, nil
}

// CreateInvitationURL creates an invitation and encodes it into a URL below baseURL.
func (c *Client) CreateInvitationURL(ctx context.Context, baseURL string,
	opts ...Option) (string, *connectionstore.Record, error) {
	inv, rec, err := c.CreateInvitation(ctx, opts...)
	if err != nil {
		return "", nil, err
	}

	u, err := inv.ToURL(baseURL)
	if err != nil {
		return "", nil, err
	}

	return u, rec, nil
}

// ReceiveInvitation stores the invitation. With auto-accept the connection
// request is sent right away.
func (c *Client) ReceiveInvitation(ctx context.Context, inv *connection.Invitation,
	opts ...Option) (*connectionstore.Record, error) {
	rec, err := c.connectionSvc.ProcessInvitation(ctx, inv, options(opts))
	if err != nil {
		return nil, fmt.Errorf("receive invitation: %w", err)
	}

	if !rec.ShouldAutoAccept(c.autoAccept) {
		return rec, nil
	}

	return c.AcceptInvitation(ctx, rec.ID)
}

// ReceiveInvitationFromURL decodes an invitation URL and receives the invitation.
func (c *Client) ReceiveInvitationFromURL(ctx context.Context, invitationURL string,
	opts ...Option) (*connectionstore.Record, error) {
	inv, err := connection.ParseInvitationURL(invitationURL)
	if err != nil {
		return nil, fmt.Errorf("receive invitation: %w", err)
	}

	return c.ReceiveInvitation(ctx, inv, opts...)
}

// AcceptInvitation sends the connection request of an invited invitee connection.
func (c *Client) AcceptInvitation(ctx context.Context, connectionID string) (*connectionstore.Record, error) {
	req, rec, err := c.connectionSvc.CreateRequest(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("accept invitation: %w", err)
	}

	err = c.outbound.Send(ctx, &service.OutboundMessage{Connection: rec, Payload: req})
	if err != nil {
		return nil, fmt.Errorf("accept invitation: send request: %w", err)
	}

	return rec, nil
}

// AcceptRequest sends the connection response of a requested inviter connection.
func (c *Client) AcceptRequest(ctx context.Context, connectionID string) (*connectionstore.Record, error) {
	resp, rec, err := c.connectionSvc.CreateResponse(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("accept request: %w", err)
	}

	err = c.outbound.Send(ctx, &service.OutboundMessage{Connection: rec, Payload: resp})
	if err != nil {
		return nil, fmt.Errorf("accept request: send response: %w", err)
	}

	return rec, nil
}

// ReturnWhenIsConnected waits until the connection is complete.
func (c *Client) ReturnWhenIsConnected(ctx context.Context, connectionID string,
	timeout time.Duration) (*connectionstore.Record, error) {
	return c.connectionSvc.ReturnWhenIsConnected(ctx, connectionID, timeout)
}

// GetConnection returns the connection of the given id.
func (c *Client) GetConnection(connectionID string) (*connectionstore.Record, error) {
	rec, err := c.connections.GetByID(connectionID)
	if errors.Is(err, record.ErrRecordNotFound) {
		return nil, ErrConnectionNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("cannot fetch connection from store: connectionid=%s err=%w", connectionID, err)
	}

	return rec, nil
}

// QueryConnections returns all connections, or the ones in state when it is not empty.
func (c *Client) QueryConnections(state connectionstore.State) ([]*connectionstore.Record, error) {
	var (
		records []*connectionstore.Record
		err     error
	)

	if state == "" {
		records, err = c.connections.GetAll()
	} else {
		records, err = c.connections.FindByState(state)
	}

	if err != nil {
		return nil, fmt.Errorf("failed query connections: %w", err)
	}

	return records, nil
}

// FindByVerkey returns the connection owning the local key verkey.
func (c *Client) FindByVerkey(verkey string) (*connectionstore.Record, bool, error) {
	return c.connections.FindByVerkey(verkey)
}

// FindByTheirKey returns the connection with the peer key theirKey.
func (c *Client) FindByTheirKey(theirKey string) (*connectionstore.Record, bool, error) {
	return c.connections.FindByTheirKey(theirKey)
}

// RemoveConnection deletes the connection record.
func (c *Client) RemoveConnection(connectionID string) error {
	if err := c.connections.DeleteByID(connectionID); err != nil {
		return fmt.Errorf("cannot remove connection from the store: err=%w", err)
	}

	return nil
}

func options(opts []Option) connection.Options {
	o := connection.Options{}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}
