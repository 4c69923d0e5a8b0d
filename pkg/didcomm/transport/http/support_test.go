/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"context"
	"sync"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport"
)

type mockProvider struct {
	mu       sync.Mutex
	handle   func(ctx context.Context, envelope []byte, s transport.Session) ([]byte, error)
	received [][]byte
	closed   []string
}

func (p *mockProvider) InboundMessageHandler() transport.InboundMessageHandler {
	return func(ctx context.Context, envelope []byte, s transport.Session) ([]byte, error) {
		p.mu.Lock()
		p.received = append(p.received, envelope)
		p.mu.Unlock()

		if p.handle == nil {
			return nil, nil
		}

		return p.handle(ctx, envelope, s)
	}
}

func (p *mockProvider) SessionClosed(s transport.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = append(p.closed, s.ID())
}

func (p *mockProvider) receivedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.received)
}
