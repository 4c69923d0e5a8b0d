/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package aries

import (
	gocontext "context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/connection"
	connectionstore "github.com/hyperledger/aries-agent-go/pkg/store/connection"
	"github.com/hyperledger/aries-agent-go/pkg/store/mediation"
)

const defaultMediatorProvisionTimeout = 30 * time.Second

type mediatorConfig struct {
	invitationURL string
	mediationID   string
	clearDefault  bool
	timeout       time.Duration
}

func (c *mediatorConfig) validate() error {
	set := 0

	for _, ok := range []bool{c.invitationURL != "", c.mediationID != "", c.clearDefault} {
		if ok {
			set++
		}
	}

	if set > 1 {
		return ErrMediatorOptionsConflict
	}

	return nil
}

// WithMediatorConnectionsInvite makes the agent connect on start to the mediator
// inviting with invitationURL, request mediation and use it as the default mediator.
func WithMediatorConnectionsInvite(invitationURL string) Option {
	return func(opts *Aries) error {
		opts.mediatorConfig.invitationURL = invitationURL
		return nil
	}
}

// WithDefaultMediatorID sets the granted mediation mediationID as the default mediator on start.
func WithDefaultMediatorID(mediationID string) Option {
	return func(opts *Aries) error {
		opts.mediatorConfig.mediationID = mediationID
		return nil
	}
}

// WithClearDefaultMediator clears the default mediator on start.
func WithClearDefaultMediator() Option {
	return func(opts *Aries) error {
		opts.mediatorConfig.clearDefault = true
		return nil
	}
}

// WithMediatorProvisionTimeout bounds the wait for the connection to and the
// grant of the mediator given with WithMediatorConnectionsInvite.
func WithMediatorProvisionTimeout(timeout time.Duration) Option {
	return func(opts *Aries) error {
		opts.mediatorConfig.timeout = timeout
		return nil
	}
}

func (a *Aries) provisionMediator() error {
	cfg := a.mediatorConfig

	switch {
	case cfg.clearDefault:
		if err := a.recipientSvc.ClearDefaultMediator(); err != nil {
			return fmt.Errorf("clear default mediator: %w", err)
		}

		return nil
	case cfg.mediationID != "":
		if _, err := a.recipientSvc.SetDefaultMediator(cfg.mediationID); err != nil {
			return fmt.Errorf("set default mediator: %w", err)
		}

		return nil
	case cfg.invitationURL != "":
		rec, err := a.mediatorFromInvitation(cfg.invitationURL, cfg.timeout)
		if err != nil {
			return fmt.Errorf("provision mediator: %w", err)
		}

		if _, err = a.recipientSvc.SetDefaultMediator(rec.ID); err != nil {
			return fmt.Errorf("provision mediator: %w", err)
		}

		logger.Infof("default mediator set to %s on connection %s", rec.ID, rec.ConnectionID)

		return nil
	default:
		return nil
	}
}

// mediatorFromInvitation returns the granted mediation of the mediator
// inviting with invitationURL, connecting and requesting it when needed.
func (a *Aries) mediatorFromInvitation(invitationURL string, timeout time.Duration) (*mediation.Record, error) {
	if timeout <= 0 {
		timeout = defaultMediatorProvisionTimeout
	}

	inv, err := connection.ParseInvitationURL(invitationURL)
	if err != nil {
		return nil, err
	}

	if len(inv.RecipientKeys) == 0 {
		return nil, errors.New("mediator invitation has no recipient keys")
	}

	ctx, cancel := gocontext.WithTimeout(gocontext.Background(), timeout)
	defer cancel()

	conn, found, err := a.connectionStore.FindByInvitationKey(inv.RecipientKeys[0])
	if err != nil {
		return nil, err
	}

	if found {
		rec, ok, e := a.mediationStore.FindByConnectionID(conn.ID)
		if e != nil {
			return nil, e
		}

		if ok && rec.State == mediation.StateGranted {
			return rec, nil
		}
	} else {
		conn, err = a.connect(ctx, inv)
		if err != nil {
			return nil, err
		}
	}

	conn, err = a.connectionSvc.ReturnWhenIsConnected(ctx, conn.ID, timeout)
	if err != nil {
		return nil, fmt.Errorf("wait for mediator connection: %w", err)
	}

	return a.recipientSvc.RequestAndAwaitGrant(ctx, conn, timeout)
}

func (a *Aries) connect(ctx gocontext.Context, inv *connection.Invitation) (*connectionstore.Record, error) {
	autoAccept := true

	conn, err := a.connectionSvc.ProcessInvitation(ctx, inv, connection.Options{AutoAccept: &autoAccept})
	if err != nil {
		return nil, err
	}

	req, conn, err := a.connectionSvc.CreateRequest(ctx, conn.ID)
	if err != nil {
		return nil, err
	}

	err = a.outboundDispatcher.Send(ctx, &service.OutboundMessage{Connection: conn, Payload: req})
	if err != nil {
		return nil, fmt.Errorf("send connection request to mediator: %w", err)
	}

	return conn, nil
}
