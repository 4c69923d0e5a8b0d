/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-agent-go/pkg/client/connection"
	"github.com/hyperledger/aries-agent-go/pkg/controller/command"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-agent-go/pkg/internal/logutil"
	connectionstore "github.com/hyperledger/aries-agent-go/pkg/store/connection"
)

var logger = log.New("aries-agent/controller/connection")

// constants for connection management endpoints.
const (
	CommandName = "connection"

	CreateInvitationCommandMethod  = "CreateInvitation"
	ReceiveInvitationCommandMethod = "ReceiveInvitation"
	AcceptInvitationCommandMethod  = "AcceptInvitation"
	AcceptRequestCommandMethod     = "AcceptRequest"
	QueryConnectionsCommandMethod  = "QueryConnections"
	QueryConnectionCommandMethod   = "QueryConnectionByID"
	RemoveConnectionCommandMethod  = "RemoveConnection"

	errEmptyConnID = "empty connection ID"

	// log constants.
	connectionIDString = "connectionID"
	successString      = "success"
)

const (
	// InvalidRequestErrorCode is typically a code for validation errors
	// for invalid connection controller requests.
	InvalidRequestErrorCode = command.Code(iota + command.Connection)

	// CreateInvitationErrorCode is for failures in create invitation command.
	CreateInvitationErrorCode
	// ReceiveInvitationErrorCode is for failures in receive invitation command.
	ReceiveInvitationErrorCode
	// AcceptInvitationErrorCode is for failures in accept invitation command.
	AcceptInvitationErrorCode
	// AcceptRequestErrorCode is for failures in accept request command.
	AcceptRequestErrorCode
	// QueryConnectionsErrorCode is for failures in query connections command.
	QueryConnectionsErrorCode
	// ConnectionNotFoundErrorCode is for commands on a connection that does not exist.
	ConnectionNotFoundErrorCode
	// RemoveConnectionErrorCode is for failures in remove connection command.
	RemoveConnectionErrorCode
)

type provider interface {
	Service(id string) (interface{}, error)
	ConnectionStore() *connectionstore.Store
	OutboundDispatcher() dispatcher.Outbound
	AutoAcceptConnections() bool
	Endpoint() string
}

// Command provides controller API for connection commands.
type Command struct {
	client   *connection.Client
	endpoint string
}

// New creates connection Command.
func New(prov provider) (*Command, error) {
	client, err := connection.New(prov)
	if err != nil {
		return nil, fmt.Errorf("create connection client: %w", err)
	}

	return &Command{client: client, endpoint: prov.Endpoint()}, nil
}

// GetHandlers returns list of all commands supported by this controller command.
func (c *Command) GetHandlers() []command.Handler {
	return []command.Handler{
		command.NewHandler(CommandName, CreateInvitationCommandMethod, c.CreateInvitation),
		command.NewHandler(CommandName, ReceiveInvitationCommandMethod, c.ReceiveInvitation),
		command.NewHandler(CommandName, AcceptInvitationCommandMethod, c.AcceptInvitation),
		command.NewHandler(CommandName, AcceptRequestCommandMethod, c.AcceptRequest),
		command.NewHandler(CommandName, QueryConnectionsCommandMethod, c.QueryConnections),
		command.NewHandler(CommandName, QueryConnectionCommandMethod, c.QueryConnectionByID),
		command.NewHandler(CommandName, RemoveConnectionCommandMethod, c.RemoveConnection),
	}
}

// CreateInvitation creates an invitation and the inviter connection waiting for it.
func (c *Command) CreateInvitation(rw io.Writer, req io.Reader) command.Error {
	var args CreateInvitationArgs

	if err := json.NewDecoder(req).Decode(&args); err != nil {
		logutil.LogInfo(logger, CommandName, CreateInvitationCommandMethod, err.Error())
		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	inv, rec, err := c.client.CreateInvitation(context.Background(), options(args.Alias, args.AutoAccept)...)
	if err != nil {
		logutil.LogError(logger, CommandName, CreateInvitationCommandMethod, err.Error())
		return command.NewExecuteError(CreateInvitationErrorCode, err)
	}

	invitationURL, err := inv.ToURL(c.endpoint)
	if err != nil {
		logutil.LogError(logger, CommandName, CreateInvitationCommandMethod, err.Error())
		return command.NewExecuteError(CreateInvitationErrorCode, err)
	}

	command.WriteNillableResponse(rw, &CreateInvitationResponse{
		Invitation:    inv,
		InvitationURL: invitationURL,
		ConnectionID:  rec.ID,
	}, logger)

	logutil.LogDebug(logger, CommandName, CreateInvitationCommandMethod, successString,
		logutil.CreateKeyValueString(connectionIDString, rec.ID))

	return nil
}

// ReceiveInvitation stores an invitation, sending the connection request when auto-accepted.
func (c *Command) ReceiveInvitation(rw io.Writer, req io.Reader) command.Error {
	var args ReceiveInvitationArgs

	if err := json.NewDecoder(req).Decode(&args); err != nil {
		logutil.LogInfo(logger, CommandName, ReceiveInvitationCommandMethod, err.Error())
		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	if args.Invitation == nil && args.InvitationURL == "" {
		logutil.LogDebug(logger, CommandName, ReceiveInvitationCommandMethod, "missing invitation")
		return command.NewValidationError(InvalidRequestErrorCode, errors.New("invitation or invitation_url is mandatory"))
	}

	var (
		rec  *connectionstore.Record
		err  error
		opts = options(args.Alias, args.AutoAccept)
	)

	if args.Invitation != nil {
		rec, err = c.client.ReceiveInvitation(context.Background(), args.Invitation, opts...)
	} else {
		rec, err = c.client.ReceiveInvitationFromURL(context.Background(), args.InvitationURL, opts...)
	}

	if err != nil {
		logutil.LogError(logger, CommandName, ReceiveInvitationCommandMethod, err.Error())
		return command.NewExecuteError(ReceiveInvitationErrorCode, err)
	}

	command.WriteNillableResponse(rw, &QueryConnectionResult{Result: rec}, logger)

	logutil.LogDebug(logger, CommandName, ReceiveInvitationCommandMethod, successString,
		logutil.CreateKeyValueString(connectionIDString, rec.ID))

	return nil
}

// AcceptInvitation sends the connection request of an invited invitee connection.
func (c *Command) AcceptInvitation(rw io.Writer, req io.Reader) command.Error {
	return c.actOnConnection(rw, req, AcceptInvitationCommandMethod, AcceptInvitationErrorCode,
		c.client.AcceptInvitation)
}

// AcceptRequest sends the connection response of a requested inviter connection.
func (c *Command) AcceptRequest(rw io.Writer, req io.Reader) command.Error {
	return c.actOnConnection(rw, req, AcceptRequestCommandMethod, AcceptRequestErrorCode,
		c.client.AcceptRequest)
}

func (c *Command) actOnConnection(rw io.Writer, req io.Reader, method string, code command.Code,
	act func(context.Context, string) (*connectionstore.Record, error)) command.Error {
	args, cmdErr := decodeConnectionID(req, method)
	if cmdErr != nil {
		return cmdErr
	}

	rec, err := act(context.Background(), args.ID)
	if err != nil {
		logutil.LogError(logger, CommandName, method, err.Error(),
			logutil.CreateKeyValueString(connectionIDString, args.ID))

		return command.NewExecuteError(code, err)
	}

	command.WriteNillableResponse(rw, &QueryConnectionResult{Result: rec}, logger)

	logutil.LogDebug(logger, CommandName, method, successString,
		logutil.CreateKeyValueString(connectionIDString, args.ID))

	return nil
}

// QueryConnections returns the connections, filtered on state when given.
func (c *Command) QueryConnections(rw io.Writer, req io.Reader) command.Error {
	var args QueryConnectionsArgs

	if err := json.NewDecoder(req).Decode(&args); err != nil {
		logutil.LogInfo(logger, CommandName, QueryConnectionsCommandMethod, err.Error())
		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	records, err := c.client.QueryConnections(args.State)
	if err != nil {
		logutil.LogError(logger, CommandName, QueryConnectionsCommandMethod, err.Error())
		return command.NewExecuteError(QueryConnectionsErrorCode, err)
	}

	command.WriteNillableResponse(rw, &QueryConnectionsResponse{Results: records}, logger)

	logutil.LogDebug(logger, CommandName, QueryConnectionsCommandMethod, successString)

	return nil
}

// QueryConnectionByID returns the connection of the given id.
func (c *Command) QueryConnectionByID(rw io.Writer, req io.Reader) command.Error {
	args, cmdErr := decodeConnectionID(req, QueryConnectionCommandMethod)
	if cmdErr != nil {
		return cmdErr
	}

	rec, err := c.client.GetConnection(args.ID)
	if errors.Is(err, connection.ErrConnectionNotFound) {
		logutil.LogDebug(logger, CommandName, QueryConnectionCommandMethod, err.Error(),
			logutil.CreateKeyValueString(connectionIDString, args.ID))

		return command.NewNotFoundError(ConnectionNotFoundErrorCode, err)
	}

	if err != nil {
		logutil.LogError(logger, CommandName, QueryConnectionCommandMethod, err.Error(),
			logutil.CreateKeyValueString(connectionIDString, args.ID))

		return command.NewExecuteError(QueryConnectionsErrorCode, err)
	}

	command.WriteNillableResponse(rw, &QueryConnectionResult{Result: rec}, logger)

	logutil.LogDebug(logger, CommandName, QueryConnectionCommandMethod, successString,
		logutil.CreateKeyValueString(connectionIDString, args.ID))

	return nil
}

// RemoveConnection deletes the connection record.
func (c *Command) RemoveConnection(rw io.Writer, req io.Reader) command.Error {
	args, cmdErr := decodeConnectionID(req, RemoveConnectionCommandMethod)
	if cmdErr != nil {
		return cmdErr
	}

	if err := c.client.RemoveConnection(args.ID); err != nil {
		logutil.LogError(logger, CommandName, RemoveConnectionCommandMethod, err.Error(),
			logutil.CreateKeyValueString(connectionIDString, args.ID))

		return command.NewExecuteError(RemoveConnectionErrorCode, err)
	}

	command.WriteNillableResponse(rw, nil, logger)

	logutil.LogDebug(logger, CommandName, RemoveConnectionCommandMethod, successString,
		logutil.CreateKeyValueString(connectionIDString, args.ID))

	return nil
}

func decodeConnectionID(req io.Reader, method string) (*ConnectionIDArg, command.Error) {
	var args ConnectionIDArg

	if err := json.NewDecoder(req).Decode(&args); err != nil {
		logutil.LogInfo(logger, CommandName, method, err.Error())
		return nil, command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	if args.ID == "" {
		logutil.LogDebug(logger, CommandName, method, errEmptyConnID)
		return nil, command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyConnID))
	}

	return &args, nil
}

func options(alias string, autoAccept *bool) []connection.Option {
	var opts []connection.Option

	if alias != "" {
		opts = append(opts, connection.WithAlias(alias))
	}

	if autoAccept != nil {
		opts = append(opts, connection.WithAutoAccept(*autoAccept))
	}

	return opts
}
