/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-agent-go/pkg/controller/command"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/basicmessage"
	"github.com/hyperledger/aries-agent-go/pkg/internal/logutil"
	"github.com/hyperledger/aries-agent-go/pkg/store/connection"
	"github.com/hyperledger/aries-agent-go/pkg/store/record"
)

var logger = log.New("aries-agent/controller/messaging")

// Error codes
const (
	// InvalidRequestErrorCode is typically a code for invalid requests.
	InvalidRequestErrorCode = command.Code(iota + command.Messaging)

	// SendMsgError is for failures while sending messages.
	SendMsgError

	// ConnectionNotFoundErrorCode is for messages to a connection that does not exist.
	ConnectionNotFoundErrorCode

	// MessagesErrorCode is for failures while listing messages.
	MessagesErrorCode
)

// constant for the messaging controller
const (
	// command name
	CommandName = "messaging"

	// command methods
	SendNewMessageCommandMethod = "Send"
	MessagesCommandMethod       = "Messages"

	errEmptyConnID  = "connection_ID is mandatory"
	errEmptyContent = "content is mandatory"

	// log constants
	connectionIDString = "connectionID"
	successString      = "success"
)

// provider contains dependencies for the messaging controller command operations
// and is typically created by using aries.Context().
type provider interface {
	Service(id string) (interface{}, error)
	ConnectionStore() *connection.Store
}

type basicMessageService interface {
	SendMessage(ctx context.Context, conn *connection.Record, content string) (*basicmessage.Record, error)
	Messages(connID string) ([]*basicmessage.Record, error)
}

// Command contains basic command operations provided by messaging controller command.
type Command struct {
	msgSvc      basicMessageService
	connections *connection.Store
}

// New returns new controller command instance.
func New(ctx provider) (*Command, error) {
	svc, err := ctx.Service(basicmessage.Name)
	if err != nil {
		return nil, fmt.Errorf("create messaging command : %w", err)
	}

	msgSvc, ok := svc.(basicMessageService)
	if !ok {
		return nil, errors.New("cast service to basic message service failed")
	}

	return &Command{msgSvc: msgSvc, connections: ctx.ConnectionStore()}, nil
}

// GetHandlers returns list of all commands supported by this controller command.
func (o *Command) GetHandlers() []command.Handler {
	return []command.Handler{
		command.NewHandler(CommandName, SendNewMessageCommandMethod, o.Send),
		command.NewHandler(CommandName, MessagesCommandMethod, o.Messages),
	}
}

// Send sends a basic message on a ready connection.
func (o *Command) Send(rw io.Writer, req io.Reader) command.Error {
	var request SendNewMessageArgs

	err := json.NewDecoder(req).Decode(&request)
	if err != nil {
		logutil.LogInfo(logger, CommandName, SendNewMessageCommandMethod, err.Error())
		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	if request.ConnectionID == "" {
		logutil.LogDebug(logger, CommandName, SendNewMessageCommandMethod, errEmptyConnID)
		return command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyConnID))
	}

	if request.Content == "" {
		logutil.LogDebug(logger, CommandName, SendNewMessageCommandMethod, errEmptyContent)
		return command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyContent))
	}

	conn, err := o.connections.GetByID(request.ConnectionID)
	if errors.Is(err, record.ErrRecordNotFound) {
		logutil.LogDebug(logger, CommandName, SendNewMessageCommandMethod, err.Error(),
			logutil.CreateKeyValueString(connectionIDString, request.ConnectionID))
		return command.NewNotFoundError(ConnectionNotFoundErrorCode, err)
	}

	if err != nil {
		logutil.LogError(logger, CommandName, SendNewMessageCommandMethod, err.Error(),
			logutil.CreateKeyValueString(connectionIDString, request.ConnectionID))
		return command.NewExecuteError(SendMsgError, err)
	}

	rec, err := o.msgSvc.SendMessage(context.Background(), conn, request.Content)
	if err != nil {
		logutil.LogError(logger, CommandName, SendNewMessageCommandMethod, err.Error(),
			logutil.CreateKeyValueString(connectionIDString, request.ConnectionID))
		return command.NewExecuteError(SendMsgError, err)
	}

	command.WriteNillableResponse(rw, &SendMessageResponse{Message: rec}, logger)

	logutil.LogDebug(logger, CommandName, SendNewMessageCommandMethod, successString,
		logutil.CreateKeyValueString(connectionIDString, request.ConnectionID))

	return nil
}

// Messages returns the basic messages exchanged on a connection.
func (o *Command) Messages(rw io.Writer, req io.Reader) command.Error {
	var request MessagesArgs

	err := json.NewDecoder(req).Decode(&request)
	if err != nil {
		logutil.LogInfo(logger, CommandName, MessagesCommandMethod, err.Error())
		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	if request.ConnectionID == "" {
		logutil.LogDebug(logger, CommandName, MessagesCommandMethod, errEmptyConnID)
		return command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyConnID))
	}

	msgs, err := o.msgSvc.Messages(request.ConnectionID)
	if err != nil {
		logutil.LogError(logger, CommandName, MessagesCommandMethod, err.Error(),
			logutil.CreateKeyValueString(connectionIDString, request.ConnectionID))
		return command.NewExecuteError(MessagesErrorCode, err)
	}

	command.WriteNillableResponse(rw, &MessagesResponse{Messages: msgs}, logger)

	logutil.LogDebug(logger, CommandName, MessagesCommandMethod, successString,
		logutil.CreateKeyValueString(connectionIDString, request.ConnectionID))

	return nil
}
