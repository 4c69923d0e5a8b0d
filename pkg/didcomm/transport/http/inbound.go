/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport"
)

var logger = log.New("aries-agent/transport/http")

// Inbound is an HTTP inbound transport. Every POST carries one envelope; the
// response body carries the reply, if any.
type Inbound struct {
	internalAddr string
	externalAddr string
	server       *http.Server
	listener     net.Listener
}

// NewInbound creates an HTTP inbound transport listening on internalAddr and
// advertising externalAddr, which defaults to internalAddr.
func NewInbound(internalAddr, externalAddr string) (*Inbound, error) {
	if internalAddr == "" {
		return nil, errors.New("http address is mandatory")
	}

	if externalAddr == "" {
		externalAddr = internalAddr
	}

	return &Inbound{internalAddr: internalAddr, externalAddr: externalAddr}, nil
}

// Start listens and serves inbound envelopes.
func (i *Inbound) Start(prov transport.Provider) error {
	handler, err := NewInboundHandler(prov)
	if err != nil {
		return fmt.Errorf("http server start failed: %w", err)
	}

	ln, err := net.Listen("tcp", i.internalAddr)
	if err != nil {
		return fmt.Errorf("http server listen on %s: %w", i.internalAddr, err)
	}

	i.listener = ln
	i.server = &http.Server{Handler: handler} //nolint:gosec

	go func() {
		if err := i.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("http server on [%s] stopped: %s", i.internalAddr, err)
		}
	}()

	logger.Infof("http inbound transport listening on %s (endpoint %s)", ln.Addr(), i.externalAddr)

	return nil
}

// Stop shuts down the server.
func (i *Inbound) Stop() error {
	if i.server == nil {
		return nil
	}

	if err := i.server.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	return nil
}

// Endpoint provides the externally reachable address.
func (i *Inbound) Endpoint() string {
	return i.externalAddr
}

// Addr returns the address the server listens on, once started.
func (i *Inbound) Addr() string {
	if i.listener == nil {
		return i.internalAddr
	}

	return i.listener.Addr().String()
}

// NewInboundHandler creates the handler enforcing the DIDComm HTTP transport
// rules and passing envelopes to the provider.
func NewInboundHandler(prov transport.Provider) (http.Handler, error) {
	if prov == nil || prov.InboundMessageHandler() == nil {
		logger.Errorf("Error creating a new inbound handler: message handler function is nil")

		return nil, errors.New("creation of inbound handler failed")
	}

	router := mux.NewRouter()
	router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processPOSTRequest(w, r, prov)
	})

	return router, nil
}

func processPOSTRequest(w http.ResponseWriter, r *http.Request, prov transport.Provider) {
	if valid := validateHTTPMethod(w, r); !valid {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Errorf("Error reading request body: %s - returning Code: %d", err, http.StatusInternalServerError)
		http.Error(w, "Failed to read payload", http.StatusInternalServerError)

		return
	}

	if len(body) == 0 {
		http.Error(w, "Empty payload", http.StatusBadRequest)

		return
	}

	s := &session{id: uuid.New().String()}

	reply, err := prov.InboundMessageHandler()(r.Context(), body, s)

	pushed := s.close()

	prov.SessionClosed(s)

	if err != nil {
		logger.Errorf("incoming msg processing failed: %s", err)
		http.Error(w, "failed to process the message", http.StatusInternalServerError)

		return
	}

	if len(reply) == 0 {
		reply = pushed
	}

	if len(reply) == 0 {
		w.WriteHeader(http.StatusAccepted)

		return
	}

	w.Header().Set("Content-Type", transport.MediaTypeDIDCommEnvelope)
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(reply); err != nil {
		logger.Errorf("failed to write reply: %s", err)
	}
}

// validateHTTPMethod validate HTTP method and content-type.
func validateHTTPMethod(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "HTTP Method not allowed", http.StatusMethodNotAllowed)

		return false
	}

	ct := r.Header.Get("Content-type")
	if ct != transport.MediaTypeDIDCommEnvelope && ct != "application/json" {
		http.Error(w, fmt.Sprintf("Unsupported Content-type \"%s\"", ct), http.StatusUnsupportedMediaType)

		return false
	}

	return true
}

// session lives for the duration of one request and carries at most one
// envelope back in the response body.
type session struct {
	id     string
	mu     sync.Mutex
	reply  []byte
	closed bool
}

func (s *session) ID() string {
	return s.id
}

func (s *session) Send(_ context.Context, envelope []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.reply != nil {
		return transport.ErrSessionClosed
	}

	s.reply = envelope

	return nil
}

func (s *session) close() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return s.reply
}
