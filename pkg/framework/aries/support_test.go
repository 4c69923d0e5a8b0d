/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package aries

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-agent-go/pkg/ledger"
)

const loopScheme = "loop"

// switchboard connects loopback transports of agents running in one process.
type switchboard struct {
	mu     sync.RWMutex
	agents map[string]transport.Provider
}

func newSwitchboard() *switchboard {
	return &switchboard{agents: make(map[string]transport.Provider)}
}

func (b *switchboard) register(endpoint string, prov transport.Provider) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.agents[endpoint] = prov
}

func (b *switchboard) unregister(endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.agents, endpoint)
}

func (b *switchboard) lookup(endpoint string) (transport.Provider, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	prov, ok := b.agents[endpoint]

	return prov, ok
}

// loopInbound receives what loopOutbound transports send to its endpoint.
type loopInbound struct {
	board    *switchboard
	endpoint string
}

func (b *switchboard) inbound(name string) *loopInbound {
	return &loopInbound{board: b, endpoint: loopScheme + "://" + name}
}

func (i *loopInbound) Start(prov transport.Provider) error {
	i.board.register(i.endpoint, prov)

	return nil
}

func (i *loopInbound) Stop() error {
	i.board.unregister(i.endpoint)

	return nil
}

func (i *loopInbound) Endpoint() string {
	return i.endpoint
}

// loopOutbound delivers envelopes like an HTTP POST: the receiving agent
// handles the envelope on a session living for the call and its reply is fed
// back to the sending agent.
type loopOutbound struct {
	board *switchboard
	prov  transport.Provider
}

func (b *switchboard) outbound() *loopOutbound {
	return &loopOutbound{board: b}
}

func (o *loopOutbound) Start(prov transport.Provider) error {
	o.prov = prov

	return nil
}

func (o *loopOutbound) Stop() error {
	return nil
}

func (o *loopOutbound) Schemes() []string {
	return []string{loopScheme}
}

func (o *loopOutbound) Send(ctx context.Context, envelope []byte, endpoint string) error {
	target, ok := o.board.lookup(endpoint)
	if !ok {
		return fmt.Errorf("loop outbound: nothing listens on %s", endpoint)
	}

	s := &loopSession{id: uuid.New().String()}

	reply, err := target.InboundMessageHandler()(ctx, envelope, s)

	pushed := s.close()

	target.SessionClosed(s)

	if err != nil {
		return fmt.Errorf("loop outbound: %s failed to process the message: %w", endpoint, err)
	}

	if len(reply) == 0 {
		reply = pushed
	}

	if len(reply) == 0 {
		return nil
	}

	_, err = o.prov.InboundMessageHandler()(ctx, reply, nil)

	return err
}

type loopSession struct {
	id     string
	mu     sync.Mutex
	reply  []byte
	closed bool
}

func (s *loopSession) ID() string {
	return s.id
}

func (s *loopSession) Send(_ context.Context, envelope []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.reply != nil {
		return transport.ErrSessionClosed
	}

	s.reply = envelope

	return nil
}

func (s *loopSession) close() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return s.reply
}

type failingInbound struct{}

func (failingInbound) Start(transport.Provider) error { return fmt.Errorf("address in use") }
func (failingInbound) Stop() error                    { return nil }
func (failingInbound) Endpoint() string               { return "loop://failing" }

type mockLedger struct {
	pool       ledger.PoolConfig
	connectErr error
	closed     bool
}

func (m *mockLedger) Connect(_ context.Context, pool ledger.PoolConfig) error {
	m.pool = pool

	return m.connectErr
}

func (m *mockLedger) GetPublicDID(context.Context, string) (*ledger.NymInfo, error) {
	return nil, nil
}

func (m *mockLedger) RegisterSchema(context.Context, string, *ledger.SchemaTemplate) (*ledger.Schema, error) {
	return nil, nil
}

func (m *mockLedger) GetSchema(context.Context, string) (*ledger.Schema, error) {
	return nil, nil
}

func (m *mockLedger) RegisterCredentialDefinition(context.Context, string,
	*ledger.CredentialDefinitionTemplate) (*ledger.CredentialDefinition, error) {
	return nil, nil
}

func (m *mockLedger) GetCredentialDefinition(context.Context, string) (*ledger.CredentialDefinition, error) {
	return nil, nil
}

func (m *mockLedger) Close() error {
	m.closed = true

	return nil
}
