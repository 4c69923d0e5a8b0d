/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-agent-go/pkg/client/mediator"
	"github.com/hyperledger/aries-agent-go/pkg/controller/command"
	"github.com/hyperledger/aries-agent-go/pkg/internal/logutil"
	"github.com/hyperledger/aries-agent-go/pkg/store/connection"
	"github.com/hyperledger/aries-agent-go/pkg/store/mediation"
)

var logger = log.New("aries-agent/controller/mediator")

// Error codes
const (
	// InvalidRequestErrorCode for invalid requests.
	InvalidRequestErrorCode = command.Code(iota + command.Mediator)

	// RequestMediationErrorCode for request mediation error.
	RequestMediationErrorCode

	// GrantMediationErrorCode for grant mediation error.
	GrantMediationErrorCode

	// DenyMediationErrorCode for deny mediation error.
	DenyMediationErrorCode

	// DefaultMediatorErrorCode for get, set and clear default mediator errors.
	DefaultMediatorErrorCode

	// GetMediatorsErrorCode for list mediators error.
	GetMediatorsErrorCode

	// BatchPickupRequestErrorCode for batch pick up error.
	BatchPickupRequestErrorCode
)

// constant for the mediator controller
const (
	// command name
	CommandName = "mediator"

	// command methods
	RequestMediationCommandMethod     = "RequestMediation"
	GrantMediationCommandMethod       = "GrantMediation"
	DenyMediationCommandMethod        = "DenyMediation"
	SetDefaultMediatorCommandMethod   = "SetDefaultMediator"
	ClearDefaultMediatorCommandMethod = "ClearDefaultMediator"
	GetDefaultMediatorCommandMethod   = "GetDefaultMediator"
	GetMediatorsCommandMethod         = "GetMediators"
	BatchPickupCommandMethod          = "BatchPickup"

	// log constants
	connectionIDString = "connectionID"
	mediationIDString  = "mediationID"
	successString      = "success"
)

// provider contains dependencies for the mediator commands and is typically created by using aries.Context().
type provider interface {
	Service(id string) (interface{}, error)
	ConnectionStore() *connection.Store
	MediationStore() *mediation.Store
}

// Command contains command operations provided by mediator controller.
type Command struct {
	client *mediator.Client
}

// New returns new mediator controller command instance.
func New(ctx provider) (*Command, error) {
	client, err := mediator.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create mediator client : %w", err)
	}

	return &Command{client: client}, nil
}

// GetHandlers returns list of all commands supported by this controller command.
func (o *Command) GetHandlers() []command.Handler {
	return []command.Handler{
		command.NewHandler(CommandName, RequestMediationCommandMethod, o.RequestMediation),
		command.NewHandler(CommandName, GrantMediationCommandMethod, o.GrantMediation),
		command.NewHandler(CommandName, DenyMediationCommandMethod, o.DenyMediation),
		command.NewHandler(CommandName, SetDefaultMediatorCommandMethod, o.SetDefaultMediator),
		command.NewHandler(CommandName, ClearDefaultMediatorCommandMethod, o.ClearDefaultMediator),
		command.NewHandler(CommandName, GetDefaultMediatorCommandMethod, o.GetDefaultMediator),
		command.NewHandler(CommandName, GetMediatorsCommandMethod, o.GetMediators),
		command.NewHandler(CommandName, BatchPickupCommandMethod, o.BatchPickup),
	}
}

// RequestMediation asks the peer of a connection to mediate and waits for the grant.
func (o *Command) RequestMediation(rw io.Writer, req io.Reader) command.Error {
	var request ConnectionIDArg

	err := json.NewDecoder(req).Decode(&request)
	if err != nil {
		logutil.LogInfo(logger, CommandName, RequestMediationCommandMethod, err.Error())
		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	if request.ConnectionID == "" {
		logutil.LogDebug(logger, CommandName, RequestMediationCommandMethod, "missing connectionID")
		return command.NewValidationError(InvalidRequestErrorCode, errors.New("connectionID is mandatory"))
	}

	rec, err := o.client.RequestMediation(context.Background(), request.ConnectionID)
	if err != nil {
		logutil.LogError(logger, CommandName, RequestMediationCommandMethod, err.Error(),
			logutil.CreateKeyValueString(connectionIDString, request.ConnectionID))
		return command.NewExecuteError(RequestMediationErrorCode, err)
	}

	command.WriteNillableResponse(rw, &MediationResponse{Mediation: rec}, logger)

	logutil.LogDebug(logger, CommandName, RequestMediationCommandMethod, successString,
		logutil.CreateKeyValueString(connectionIDString, request.ConnectionID))

	return nil
}

// GrantMediation grants a pending mediation request.
func (o *Command) GrantMediation(rw io.Writer, req io.Reader) command.Error {
	return o.actOnMediation(rw, req, GrantMediationCommandMethod, GrantMediationErrorCode,
		func(id string) (*mediation.Record, error) {
			return o.client.GrantMediation(context.Background(), id)
		})
}

// DenyMediation denies a pending mediation request.
func (o *Command) DenyMediation(rw io.Writer, req io.Reader) command.Error {
	return o.actOnMediation(rw, req, DenyMediationCommandMethod, DenyMediationErrorCode,
		func(id string) (*mediation.Record, error) {
			return o.client.DenyMediation(context.Background(), id)
		})
}

// SetDefaultMediator makes a granted mediation the default one.
func (o *Command) SetDefaultMediator(rw io.Writer, req io.Reader) command.Error {
	return o.actOnMediation(rw, req, SetDefaultMediatorCommandMethod, DefaultMediatorErrorCode,
		o.client.SetDefaultMediator)
}

func (o *Command) actOnMediation(rw io.Writer, req io.Reader, method string, code command.Code,
	act func(string) (*mediation.Record, error)) command.Error {
	var request MediationIDArg

	err := json.NewDecoder(req).Decode(&request)
	if err != nil {
		logutil.LogInfo(logger, CommandName, method, err.Error())
		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	if request.MediationID == "" {
		logutil.LogDebug(logger, CommandName, method, "missing mediationID")
		return command.NewValidationError(InvalidRequestErrorCode, errors.New("mediationID is mandatory"))
	}

	rec, err := act(request.MediationID)
	if err != nil {
		logutil.LogError(logger, CommandName, method, err.Error(),
			logutil.CreateKeyValueString(mediationIDString, request.MediationID))
		return command.NewExecuteError(code, err)
	}

	command.WriteNillableResponse(rw, &MediationResponse{Mediation: rec}, logger)

	logutil.LogDebug(logger, CommandName, method, successString,
		logutil.CreateKeyValueString(mediationIDString, request.MediationID))

	return nil
}

// ClearDefaultMediator removes the default mediator.
func (o *Command) ClearDefaultMediator(rw io.Writer, _ io.Reader) command.Error {
	err := o.client.ClearDefaultMediator()
	if err != nil {
		logutil.LogError(logger, CommandName, ClearDefaultMediatorCommandMethod, err.Error())
		return command.NewExecuteError(DefaultMediatorErrorCode, err)
	}

	command.WriteNillableResponse(rw, nil, logger)

	logutil.LogDebug(logger, CommandName, ClearDefaultMediatorCommandMethod, successString)

	return nil
}

// GetDefaultMediator returns the default mediation record, if any.
func (o *Command) GetDefaultMediator(rw io.Writer, _ io.Reader) command.Error {
	rec, found, err := o.client.GetDefaultMediator()
	if err != nil {
		logutil.LogError(logger, CommandName, GetDefaultMediatorCommandMethod, err.Error())
		return command.NewExecuteError(DefaultMediatorErrorCode, err)
	}

	command.WriteNillableResponse(rw, &DefaultMediatorResponse{Mediation: rec, Found: found}, logger)

	logutil.LogDebug(logger, CommandName, GetDefaultMediatorCommandMethod, successString)

	return nil
}

// GetMediators returns the mediations this agent requested.
func (o *Command) GetMediators(rw io.Writer, _ io.Reader) command.Error {
	records, err := o.client.GetMediators()
	if err != nil {
		logutil.LogError(logger, CommandName, GetMediatorsCommandMethod, err.Error())
		return command.NewExecuteError(GetMediatorsErrorCode, err)
	}

	command.WriteNillableResponse(rw, &MediatorsResponse{Mediators: records}, logger)

	logutil.LogDebug(logger, CommandName, GetMediatorsCommandMethod, successString)

	return nil
}

// BatchPickup picks up the messages queued by a mediator, the default one when no connection is given.
func (o *Command) BatchPickup(rw io.Writer, req io.Reader) command.Error {
	var request ConnectionIDArg

	err := json.NewDecoder(req).Decode(&request)
	if err != nil {
		logutil.LogInfo(logger, CommandName, BatchPickupCommandMethod, err.Error())
		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	count, err := o.client.DownloadMessages(context.Background(), request.ConnectionID)
	if err != nil {
		logutil.LogError(logger, CommandName, BatchPickupCommandMethod, err.Error(),
			logutil.CreateKeyValueString(connectionIDString, request.ConnectionID))
		return command.NewExecuteError(BatchPickupRequestErrorCode, err)
	}

	command.WriteNillableResponse(rw, &BatchPickupResponse{MessageCount: count}, logger)

	logutil.LogDebug(logger, CommandName, BatchPickupCommandMethod, successString,
		logutil.CreateKeyValueString(connectionIDString, request.ConnectionID))

	return nil
}
