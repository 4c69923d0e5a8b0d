/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package rest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-agent-go/pkg/controller/command"
)

var logger = log.New("aries-agent/rest")

// Handler http handler for each controller API endpoint.
type Handler interface {
	Path() string
	Method() string
	Handle() http.HandlerFunc
}

type handler struct {
	path   string
	method string
	handle http.HandlerFunc
}

// NewHandler returns the Handler serving the http method requests of path with handle.
func NewHandler(path, method string, handle http.HandlerFunc) Handler {
	return &handler{path: path, method: method, handle: handle}
}

func (h *handler) Path() string             { return h.path }
func (h *handler) Method() string           { return h.method }
func (h *handler) Handle() http.HandlerFunc { return h.handle }

// genericErrorBody is aries rest api error response
// swagger:response genericError
type genericErrorBody struct {
	// in: body
	Code command.Code `json:"code"`
	// in: body
	Message string `json:"message"`
}

// Execute executes the command and writes its result or error to rw.
func Execute(exec command.Exec, rw http.ResponseWriter, req io.Reader) {
	var buf bytes.Buffer

	err := exec(&buf, req)
	if err != nil {
		SendError(rw, err)

		return
	}

	rw.Header().Set("Content-Type", "application/json")

	if _, e := rw.Write(buf.Bytes()); e != nil {
		logger.Errorf("Unable to send response, %s", e)
	}
}

// SendError sends command error as http response in generic error format.
func SendError(rw http.ResponseWriter, err command.Error) {
	var status int

	switch err.Type() {
	case command.ValidationError:
		status = http.StatusBadRequest
	case command.NotFoundError:
		status = http.StatusNotFound
	default:
		status = http.StatusInternalServerError
	}

	SendHTTPStatusError(rw, status, err.Code(), err)
}

// SendHTTPStatusError sends given http status code to response with error body.
func SendHTTPStatusError(rw http.ResponseWriter, httpStatus int, code command.Code, err error) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(httpStatus)

	e := json.NewEncoder(rw).Encode(genericErrorBody{
		Code:    code,
		Message: err.Error(),
	})
	if e != nil {
		logger.Errorf("Unable to send error response, %s", e)
	}
}
