/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package command

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperledger/aries-framework-go/component/log"
)

// Exec is controller command execution function type.
type Exec func(rw io.Writer, req io.Reader) Error

// Handler for each controller command.
type Handler interface {
	// name of the command
	Name() string
	// method name of the command
	Method() string
	// execute function of the command
	Handle() Exec
}

// Notifier represents a notification dispatcher.
type Notifier interface {
	Notify(topic string, message []byte) error
}

type handler struct {
	name   string
	method string
	exec   Exec
}

// NewHandler returns the Handler running exec for the method of the named command.
func NewHandler(name, method string, exec Exec) Handler {
	return &handler{name: name, method: method, exec: exec}
}

func (h *handler) Name() string   { return h.name }
func (h *handler) Method() string { return h.method }
func (h *handler) Handle() Exec   { return h.exec }

// Lookup finds the method of the named command among handlers.
func Lookup(handlers []Handler, name, method string) (Exec, error) {
	for _, h := range handlers {
		if h.Name() == name && h.Method() == method {
			return h.Handle(), nil
		}
	}

	return nil, fmt.Errorf("command %s.%s not found", name, method)
}

// WriteNillableResponse writes v to w as JSON, or an empty object when v is nil.
func WriteNillableResponse(w io.Writer, v interface{}, l *log.Log) {
	obj := v
	if v == nil {
		obj = map[string]interface{}{}
	}

	if err := json.NewEncoder(w).Encode(obj); err != nil {
		l.Errorf("Unable to send error response, %s", err)
	}
}
