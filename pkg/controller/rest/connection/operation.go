/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/hyperledger/aries-agent-go/pkg/controller/command"
	"github.com/hyperledger/aries-agent-go/pkg/controller/command/connection"
	"github.com/hyperledger/aries-agent-go/pkg/controller/rest"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/dispatcher"
	connectionstore "github.com/hyperledger/aries-agent-go/pkg/store/connection"
)

const (
	operationID           = "/connections"
	createInvitationPath  = operationID + "/create-invitation"
	receiveInvitationPath = operationID + "/receive-invitation"
	acceptInvitationPath  = operationID + "/{id}/accept-invitation"
	acceptRequestPath     = operationID + "/{id}/accept-request"
	connections           = operationID
	connectionsByID       = operationID + "/{id}"
)

type provider interface {
	Service(id string) (interface{}, error)
	ConnectionStore() *connectionstore.Store
	OutboundDispatcher() dispatcher.Outbound
	AutoAcceptConnections() bool
	Endpoint() string
}

// Operation contains basic common operations provided by controller REST API.
type Operation struct {
	command  *connection.Command
	handlers []rest.Handler
}

// New returns new connection rest client protocol instance.
func New(ctx provider) (*Operation, error) {
	cmd, err := connection.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create connection command : %w", err)
	}

	o := &Operation{command: cmd}
	o.registerHandler()

	return o, nil
}

// GetRESTHandlers get all controller API handler available for this protocol service.
func (c *Operation) GetRESTHandlers() []rest.Handler {
	return c.handlers
}

// registerHandler register handlers to be exposed from this protocol service as REST API endpoints.
func (c *Operation) registerHandler() {
	c.handlers = []rest.Handler{
		rest.NewHandler(connections, http.MethodGet, c.QueryConnections),
		rest.NewHandler(connectionsByID, http.MethodGet, c.QueryConnectionByID),
		rest.NewHandler(createInvitationPath, http.MethodPost, c.CreateInvitation),
		rest.NewHandler(receiveInvitationPath, http.MethodPost, c.ReceiveInvitation),
		rest.NewHandler(acceptInvitationPath, http.MethodPost, c.AcceptInvitation),
		rest.NewHandler(acceptRequestPath, http.MethodPost, c.AcceptRequest),
		rest.NewHandler(connectionsByID, http.MethodDelete, c.RemoveConnection),
	}
}

// CreateInvitation swagger:route POST /connections/create-invitation connection createInvitation
//
// Creates a new connection invitation.
//
// Responses:
//    default: genericError
//    200: createInvitationResponse
func (c *Operation) CreateInvitation(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(c.command.CreateInvitation, rw, req.Body)
}

// ReceiveInvitation swagger:route POST /connections/receive-invitation connection receiveInvitation
//
// Receive a new connection invitation, given as object or URL.
//
// Responses:
//    default: genericError
//    200: queryConnectionResponse
func (c *Operation) ReceiveInvitation(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(c.command.ReceiveInvitation, rw, req.Body)
}

// AcceptInvitation swagger:route POST /connections/{id}/accept-invitation connection acceptInvitation
//
// Accept a stored connection invitation.
//
// Responses:
//    default: genericError
//    200: queryConnectionResponse
func (c *Operation) AcceptInvitation(rw http.ResponseWriter, req *http.Request) {
	c.executeWithID(c.command.AcceptInvitation, rw, req)
}

// AcceptRequest swagger:route POST /connections/{id}/accept-request connection acceptRequest
//
// Accepts a stored connection request.
//
// Responses:
//    default: genericError
//    200: queryConnectionResponse
func (c *Operation) AcceptRequest(rw http.ResponseWriter, req *http.Request) {
	c.executeWithID(c.command.AcceptRequest, rw, req)
}

// QueryConnections swagger:route GET /connections connection queryConnections
//
// query agent to agent connections.
//
// Responses:
//    default: genericError
//    200: queryConnectionsResponse
func (c *Operation) QueryConnections(rw http.ResponseWriter, req *http.Request) {
	reqBytes, err := queryValuesAsJSON(req.URL.Query())
	if err != nil {
		rest.SendHTTPStatusError(rw, http.StatusBadRequest, connection.InvalidRequestErrorCode, err)
		return
	}

	rest.Execute(c.command.QueryConnections, rw, bytes.NewReader(reqBytes))
}

// QueryConnectionByID swagger:route GET /connections/{id} connection getConnection
//
// Fetch a single connection record.
//
// Responses:
//    default: genericError
//    200: queryConnectionResponse
func (c *Operation) QueryConnectionByID(rw http.ResponseWriter, req *http.Request) {
	c.executeWithID(c.command.QueryConnectionByID, rw, req)
}

// RemoveConnection swagger:route DELETE /connections/{id} connection removeConnection
//
// Removes given connection record.
//
// Responses:
//    default: genericError
func (c *Operation) RemoveConnection(rw http.ResponseWriter, req *http.Request) {
	c.executeWithID(c.command.RemoveConnection, rw, req)
}

func (c *Operation) executeWithID(exec command.Exec, rw http.ResponseWriter,
	req *http.Request) {
	id := mux.Vars(req)["id"]
	if id == "" {
		rest.SendHTTPStatusError(rw, http.StatusBadRequest, connection.InvalidRequestErrorCode,
			fmt.Errorf("empty connection ID"))
		return
	}

	request, err := json.Marshal(&connection.ConnectionIDArg{ID: id})
	if err != nil {
		rest.SendHTTPStatusError(rw, http.StatusBadRequest, connection.InvalidRequestErrorCode, err)
		return
	}

	rest.Execute(exec, rw, bytes.NewReader(request))
}

func queryValuesAsJSON(vals url.Values) ([]byte, error) {
	// normalize all query string key/values
	args := make(map[string]string)

	for k, v := range vals {
		if len(v) > 0 {
			args[k] = v[0]
		}
	}

	return json.Marshal(args)
}
