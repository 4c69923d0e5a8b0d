/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport"
)

var logger = log.New("aries-agent/transport/ws")

// Inbound http(ws) type. Every socket is a session that stays open until the peer closes it.
type Inbound struct {
	internalAddr string
	externalAddr string
	server       *http.Server
	listener     net.Listener
}

// NewInbound creates a new WebSocket inbound transport instance.
func NewInbound(internalAddr, externalAddr string) (*Inbound, error) {
	if internalAddr == "" {
		return nil, errors.New("websocket address is mandatory")
	}

	if externalAddr == "" {
		externalAddr = internalAddr
	}

	return &Inbound{internalAddr: internalAddr, externalAddr: externalAddr}, nil
}

// Start the http(ws) server.
func (i *Inbound) Start(prov transport.Provider) error {
	handler, err := newInboundHandler(prov)
	if err != nil {
		return fmt.Errorf("websocket server start failed: %w", err)
	}

	ln, err := net.Listen("tcp", i.internalAddr)
	if err != nil {
		return fmt.Errorf("websocket server listen on %s: %w", i.internalAddr, err)
	}

	i.listener = ln
	i.server = &http.Server{Handler: handler} //nolint:gosec

	go func() {
		if err := i.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("websocket server with address [%s] stopped, cause: %s", i.internalAddr, err)
		}
	}()

	return nil
}

// Stop the http(ws) server.
func (i *Inbound) Stop() error {
	if i.server == nil {
		return nil
	}

	if err := i.server.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("websocket server shutdown failed: %w", err)
	}

	return nil
}

// Endpoint provides the http(ws) connection details.
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

func newInboundHandler(prov transport.Provider) (http.Handler, error) {
	if prov == nil || prov.InboundMessageHandler() == nil {
		logger.Errorf("Error creating a new inbound handler: message handler function is nil")

		return nil, errors.New("creation of inbound handler failed")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processRequest(w, r, prov)
	}), nil
}

func processRequest(w http.ResponseWriter, r *http.Request, prov transport.Provider) {
	upgrader := websocket.Upgrader{}

	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("failed to upgrade the connection : %v", err)

		return
	}

	s := &inboundSession{id: uuid.New().String(), conn: c}

	defer func() {
		prov.SessionClosed(s)

		err := c.Close()
		if err != nil {
			logger.Errorf("failed to close connection: %v", err)
		}
	}()

	ctx := r.Context()
	messageHandler := prov.InboundMessageHandler()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Errorf("Error reading request message: %v", err)
			}

			break
		}

		reply, err := messageHandler(ctx, message, s)
		if err != nil {
			logger.Errorf("incoming msg processing failed: %v", err)

			continue
		}

		if len(reply) == 0 {
			continue
		}

		err = s.Send(ctx, reply)
		if err != nil {
			logger.Errorf("error writing the message: %v", err)
		}
	}
}

// inboundSession serializes writes, gorilla connections support one concurrent writer.
type inboundSession struct {
	id   string
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *inboundSession) ID() string {
	return s.id
}

func (s *inboundSession) Send(_ context.Context, envelope []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.conn.WriteMessage(websocket.TextMessage, envelope)
	if err != nil {
		return fmt.Errorf("%s: %w", err.Error(), transport.ErrSessionClosed)
	}

	return nil
}
