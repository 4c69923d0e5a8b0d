/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport"
)

// connPool keeps one client socket per endpoint. Messages the remote agent
// writes on a socket are handed to the inbound handler with the socket as session.
type connPool struct {
	connMap map[string]*outboundSession
	sync.RWMutex
	prov transport.Provider
}

func newConnPool(prov transport.Provider) *connPool {
	return &connPool{connMap: make(map[string]*outboundSession), prov: prov}
}

func (d *connPool) add(endpoint string, s *outboundSession) {
	d.Lock()
	defer d.Unlock()

	d.connMap[endpoint] = s
}

func (d *connPool) fetch(endpoint string) *outboundSession {
	d.RLock()
	defer d.RUnlock()

	return d.connMap[endpoint]
}

func (d *connPool) remove(endpoint string, s *outboundSession) {
	d.Lock()
	defer d.Unlock()

	if d.connMap[endpoint] == s {
		delete(d.connMap, endpoint)
	}
}

func (d *connPool) closeAll() {
	d.Lock()
	sessions := make([]*outboundSession, 0, len(d.connMap))

	for k, s := range d.connMap {
		sessions = append(sessions, s)
		delete(d.connMap, k)
	}
	d.Unlock()

	for _, s := range sessions {
		closeConn(s.conn)
	}
}

func (d *connPool) listener(endpoint string, s *outboundSession) {
	defer func() {
		d.remove(endpoint, s)
		d.prov.SessionClosed(s)
		closeConn(s.conn)
	}()

	ctx := context.Background()
	messageHandler := d.prov.InboundMessageHandler()

	for {
		_, message, err := s.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				logger.Debugf("socket to %s closed: %v", endpoint, err)
			}

			break
		}

		reply, err := messageHandler(ctx, message, s)
		if err != nil {
			logger.Errorf("incoming msg processing failed: %v", err)

			continue
		}

		if len(reply) > 0 {
			if err := s.Send(ctx, reply); err != nil {
				logger.Errorf("error writing the message: %v", err)
			}
		}
	}
}

type outboundSession struct {
	id   string
	conn *websocket.Conn
}

const maxMessageSize = 1 << 20

func newOutboundSession(conn *websocket.Conn) *outboundSession {
	conn.SetReadLimit(maxMessageSize)

	return &outboundSession{id: uuid.New().String(), conn: conn}
}

func (s *outboundSession) ID() string {
	return s.id
}

// Send is safe for concurrent use, nhooyr connections serialize writers.
func (s *outboundSession) Send(ctx context.Context, envelope []byte) error {
	err := s.conn.Write(ctx, websocket.MessageText, envelope)
	if err != nil {
		return fmt.Errorf("%s: %w", err.Error(), transport.ErrSessionClosed)
	}

	return nil
}

func closeConn(conn *websocket.Conn) {
	if err := conn.Close(websocket.StatusNormalClosure,
		"closing the connection"); err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		logger.Debugf("connection close: %v", err)
	}
}
