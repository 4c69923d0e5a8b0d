/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hyperledger/aries-agent-go/pkg/controller/command"
	"github.com/hyperledger/aries-agent-go/pkg/controller/command/mediator"
	"github.com/hyperledger/aries-agent-go/pkg/controller/rest"
	"github.com/hyperledger/aries-agent-go/pkg/store/connection"
	"github.com/hyperledger/aries-agent-go/pkg/store/mediation"
)

// constants for the mediator operations
const (
	RouteOperationID    = "/mediation"
	RequestPath         = RouteOperationID + "/request"
	GrantPath           = RouteOperationID + "/{id}/grant"
	DenyPath            = RouteOperationID + "/{id}/deny"
	SetDefaultPath      = RouteOperationID + "/{id}/default-mediator"
	DefaultMediatorPath = RouteOperationID + "/default-mediator"
	MediatorsPath       = RouteOperationID + "/mediators"
	BatchPickupPath     = RouteOperationID + "/batchpickup"
)

// provider contains dependencies for the mediator operations and is typically created by using aries.Context().
type provider interface {
	Service(id string) (interface{}, error)
	ConnectionStore() *connection.Store
	MediationStore() *mediation.Store
}

// Operation contains basic common operations provided by controller REST API.
type Operation struct {
	handlers []rest.Handler
	command  *mediator.Command
}

// New returns new common operations rest client instance.
func New(ctx provider) (*Operation, error) {
	cmd, err := mediator.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create mediator command : %w", err)
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
		rest.NewHandler(RequestPath, http.MethodPost, o.RequestMediation),
		rest.NewHandler(GrantPath, http.MethodPost, o.GrantMediation),
		rest.NewHandler(DenyPath, http.MethodPost, o.DenyMediation),
		rest.NewHandler(SetDefaultPath, http.MethodPut, o.SetDefaultMediator),
		rest.NewHandler(DefaultMediatorPath, http.MethodGet, o.GetDefaultMediator),
		rest.NewHandler(DefaultMediatorPath, http.MethodDelete, o.ClearDefaultMediator),
		rest.NewHandler(MediatorsPath, http.MethodGet, o.GetMediators),
		rest.NewHandler(BatchPickupPath, http.MethodPost, o.BatchPickup),
	}
}

// RequestMediation swagger:route POST /mediation/request mediator requestMediation
//
// Requests mediation from the peer of a connection and waits for the grant.
//
// Responses:
//    default: genericError
//    200: mediationResponse
func (o *Operation) RequestMediation(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.RequestMediation, rw, req.Body)
}

// GrantMediation swagger:route POST /mediation/{id}/grant mediator grantMediation
//
// Grants a pending mediation request.
//
// Responses:
//    default: genericError
//    200: mediationResponse
func (o *Operation) GrantMediation(rw http.ResponseWriter, req *http.Request) {
	o.executeWithID(o.command.GrantMediation, rw, req)
}

// DenyMediation swagger:route POST /mediation/{id}/deny mediator denyMediation
//
// Denies a pending mediation request.
//
// Responses:
//    default: genericError
//    200: mediationResponse
func (o *Operation) DenyMediation(rw http.ResponseWriter, req *http.Request) {
	o.executeWithID(o.command.DenyMediation, rw, req)
}

// SetDefaultMediator swagger:route PUT /mediation/{id}/default-mediator mediator setDefaultMediator
//
// Makes a granted mediation the default one.
//
// Responses:
//    default: genericError
//    200: mediationResponse
func (o *Operation) SetDefaultMediator(rw http.ResponseWriter, req *http.Request) {
	o.executeWithID(o.command.SetDefaultMediator, rw, req)
}

// GetDefaultMediator swagger:route GET /mediation/default-mediator mediator getDefaultMediator
//
// Returns the default mediator.
//
// Responses:
//    default: genericError
//    200: defaultMediatorResponse
func (o *Operation) GetDefaultMediator(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.GetDefaultMediator, rw, req.Body)
}

// ClearDefaultMediator swagger:route DELETE /mediation/default-mediator mediator clearDefaultMediator
//
// Clears the default mediator.
//
// Responses:
//    default: genericError
func (o *Operation) ClearDefaultMediator(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.ClearDefaultMediator, rw, req.Body)
}

// GetMediators swagger:route GET /mediation/mediators mediator getMediators
//
// Lists the mediations this agent requested.
//
// Responses:
//    default: genericError
//    200: mediatorsResponse
func (o *Operation) GetMediators(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.GetMediators, rw, req.Body)
}

// BatchPickup swagger:route POST /mediation/batchpickup mediator batchPickupRequest
//
// BatchPickup dispatches pending messages for given connection, the default mediator's without one.
//
// Responses:
//    default: genericError
//    200: batchPickupResponse
func (o *Operation) BatchPickup(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.BatchPickup, rw, req.Body)
}

func (o *Operation) executeWithID(exec command.Exec, rw http.ResponseWriter, req *http.Request) {
	request, err := json.Marshal(&mediator.MediationIDArg{MediationID: mux.Vars(req)["id"]})
	if err != nil {
		rest.SendHTTPStatusError(rw, http.StatusBadRequest, mediator.InvalidRequestErrorCode, err)
		return
	}

	rest.Execute(exec, rw, bytes.NewReader(request))
}
