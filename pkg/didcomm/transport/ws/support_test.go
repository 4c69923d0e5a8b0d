/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"sync"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport"
)

type mockProvider struct {
	handle   func(ctx context.Context, envelope []byte, s transport.Session) ([]byte, error)
	received chan []byte
	closedMu sync.Mutex
	closed   []string
}

func newMockProvider(handle func(context.Context, []byte, transport.Session) ([]byte, error)) *mockProvider {
	return &mockProvider{handle: handle, received: make(chan []byte, 10)}
}

func (p *mockProvider) InboundMessageHandler() transport.InboundMessageHandler {
	return func(ctx context.Context, envelope []byte, s transport.Session) ([]byte, error) {
		p.received <- envelope

		if p.handle == nil {
			return nil, nil
		}

		return p.handle(ctx, envelope, s)
	}
}

func (p *mockProvider) SessionClosed(s transport.Session) {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	p.closed = append(p.closed, s.ID())
}

func (p *mockProvider) closedCount() int {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	return len(p.closed)
}
