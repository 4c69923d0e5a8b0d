/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messaging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hyperledger/aries-agent-go/pkg/controller/command/messaging"
	"github.com/hyperledger/aries-agent-go/pkg/controller/rest"
	"github.com/hyperledger/aries-agent-go/pkg/store/connection"
)

// constants for the messaging operations
const (
	MsgServiceOperationID = "/message"
	SendNewMessage        = MsgServiceOperationID + "/send"
	ConnectionMessages    = MsgServiceOperationID + "/connections/{id}"
)

// provider contains dependencies for the messaging operations and is typically created by using aries.Context().
type provider interface {
	Service(id string) (interface{}, error)
	ConnectionStore() *connection.Store
}

// Operation contains basic common operations provided by controller REST API.
type Operation struct {
	handlers []rest.Handler
	command  *messaging.Command
}

// New returns new common operations rest client instance.
func New(ctx provider) (*Operation, error) {
	cmd, err := messaging.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create messaging command : %w", err)
	}

	o := &Operation{command: cmd}
	o.registerHandler()

	return o, nil
}

// GetRESTHandlers get all controller API handler available for this service.
func (o *Operation) GetRESTHandlers() []rest.Handler {
	return o.handlers
}

// registerHandler register handlers to be exposed from this protocol service as REST API endpoints.
func (o *Operation) registerHandler() {
	o.handlers = []rest.Handler{
		rest.NewHandler(SendNewMessage, http.MethodPost, o.Send),
		rest.NewHandler(ConnectionMessages, http.MethodGet, o.Messages),
	}
}

// Send swagger:route POST /message/send message sendNewMessage
//
// sends a basic message on a connection.
//
// Responses:
//    default: genericError
//    200: sendMessageResponse
func (o *Operation) Send(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.Send, rw, req.Body)
}

// Messages swagger:route GET /message/connections/{id} message connectionMessages
//
// returns the basic messages exchanged on a connection.
//
// Responses:
//    default: genericError
//    200: messagesResponse
func (o *Operation) Messages(rw http.ResponseWriter, req *http.Request) {
	request, err := json.Marshal(&messaging.MessagesArgs{ConnectionID: mux.Vars(req)["id"]})
	if err != nil {
		rest.SendHTTPStatusError(rw, http.StatusBadRequest, messaging.InvalidRequestErrorCode, err)
		return
	}

	rest.Execute(o.command.Messages, rw, bytes.NewReader(request))
}
