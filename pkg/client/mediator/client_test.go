/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/mediator"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/recipient"
	"github.com/hyperledger/aries-agent-go/pkg/store/connection"
	"github.com/hyperledger/aries-agent-go/pkg/store/mediation"
	"github.com/hyperledger/aries-agent-go/pkg/store/record"
)

type fakeRecipient struct {
	requested  *connection.Record
	timeout    time.Duration
	downloaded *connection.Record
	defaultID  string
	err        error
}

func (f *fakeRecipient) RequestAndAwaitGrant(_ context.Context, conn *connection.Record,
	timeout time.Duration) (*mediation.Record, error) {
	f.requested = conn
	f.timeout = timeout

	if f.err != nil {
		return nil, f.err
	}

	return &mediation.Record{State: mediation.StateGranted, ConnectionID: conn.ID}, nil
}

func (f *fakeRecipient) SetDefaultMediator(id string) (*mediation.Record, error) {
	f.defaultID = id

	return &mediation.Record{BaseRecord: record.BaseRecord{ID: id}}, f.err
}

func (f *fakeRecipient) ClearDefaultMediator() error {
	f.defaultID = ""

	return f.err
}

func (f *fakeRecipient) GetDefaultMediator() (*mediation.Record, bool, error) {
	return &mediation.Record{BaseRecord: record.BaseRecord{ID: f.defaultID}}, f.defaultID != "", f.err
}

func (f *fakeRecipient) GetDefaultMediatorConnection() (*connection.Record, bool, error) {
	return nil, false, f.err
}

func (f *fakeRecipient) DownloadMessages(_ context.Context, conn *connection.Record) (int, error) {
	f.downloaded = conn

	return 3, f.err
}

type fakeMediator struct {
	granted, denied string
}

func (f *fakeMediator) GrantMediation(_ context.Context, id string) (*mediation.Record, error) {
	f.granted = id

	return &mediation.Record{State: mediation.StateGranted}, nil
}

func (f *fakeMediator) DenyMediation(_ context.Context, id string) (*mediation.Record, error) {
	f.denied = id

	return &mediation.Record{State: mediation.StateDenied}, nil
}

type testProvider struct {
	services    map[string]interface{}
	connections *connection.Store
	mediations  *mediation.Store
}

func (p *testProvider) Service(id string) (interface{}, error) {
	svc, ok := p.services[id]
	if !ok {
		return nil, errors.New("service not found")
	}

	return svc, nil
}

func (p *testProvider) ConnectionStore() *connection.Store { return p.connections }
func (p *testProvider) MediationStore() *mediation.Store   { return p.mediations }

func newTestProvider(t *testing.T) (*testProvider, *fakeRecipient, *fakeMediator) {
	t.Helper()

	store := mem.NewProvider()

	connections, err := connection.NewStore(store)
	require.NoError(t, err)

	mediations, err := mediation.NewStore(store)
	require.NoError(t, err)

	rs, ms := &fakeRecipient{}, &fakeMediator{}

	return &testProvider{
		services:    map[string]interface{}{recipient.Name: rs, mediator.Coordination: ms},
		connections: connections,
		mediations:  mediations,
	}, rs, ms
}

func TestNew(t *testing.T) {
	t.Run("missing recipient service", func(t *testing.T) {
		_, err := New(&testProvider{})
		require.Error(t, err)
	})

	t.Run("wrong recipient service type", func(t *testing.T) {
		_, err := New(&testProvider{services: map[string]interface{}{recipient.Name: "svc"}})
		require.EqualError(t, err, "cast service to recipient service failed")
	})

	t.Run("wrong mediator service type", func(t *testing.T) {
		_, err := New(&testProvider{services: map[string]interface{}{
			recipient.Name: &fakeRecipient{}, mediator.Coordination: "svc",
		}})
		require.EqualError(t, err, "cast service to mediator service failed")
	})
}

func TestClient_RequestMediation(t *testing.T) {
	prov, rs, _ := newTestProvider(t)

	conn := &connection.Record{BaseRecord: record.BaseRecord{ID: "mediator-conn"}, State: connection.StateComplete}
	require.NoError(t, prov.connections.Save(conn))

	c, err := New(prov, WithTimeout(time.Second))
	require.NoError(t, err)

	rec, err := c.RequestMediation(context.Background(), conn.ID)
	require.NoError(t, err)
	require.Equal(t, mediation.StateGranted, rec.State)
	require.Equal(t, conn.ID, rs.requested.ID)
	require.Equal(t, time.Second, rs.timeout)

	_, err = c.RequestMediation(context.Background(), "unknown")
	require.True(t, errors.Is(err, record.ErrRecordNotFound))

	rs.err = recipient.ErrMediationDenied

	_, err = c.RequestMediation(context.Background(), conn.ID)
	require.True(t, errors.Is(err, recipient.ErrMediationDenied))
}

func TestClient_DefaultMediator(t *testing.T) {
	prov, _, _ := newTestProvider(t)

	c, err := New(prov)
	require.NoError(t, err)

	_, err = c.SetDefaultMediator("m1")
	require.NoError(t, err)

	rec, found, err := c.GetDefaultMediator()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "m1", rec.ID)

	require.NoError(t, c.ClearDefaultMediator())

	_, found, err = c.GetDefaultMediator()
	require.NoError(t, err)
	require.False(t, found)

	_, found, err = c.GetDefaultMediatorConnection()
	require.NoError(t, err)
	require.False(t, found)
}

func TestClient_Queries(t *testing.T) {
	prov, _, _ := newTestProvider(t)

	require.NoError(t, prov.mediations.Save(&mediation.Record{
		State: mediation.StateGranted, Role: mediation.RoleRecipient, ConnectionID: "c1",
	}))
	require.NoError(t, prov.mediations.Save(&mediation.Record{
		State: mediation.StateRequested, Role: mediation.RoleMediator, ConnectionID: "c2",
	}))

	c, err := New(prov)
	require.NoError(t, err)

	mediators, err := c.GetMediators()
	require.NoError(t, err)
	require.Len(t, mediators, 1)
	require.Equal(t, "c1", mediators[0].ConnectionID)

	rec, found, err := c.GetMediation("c2")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, mediation.RoleMediator, rec.Role)
}

func TestClient_GrantDeny(t *testing.T) {
	prov, _, ms := newTestProvider(t)

	c, err := New(prov)
	require.NoError(t, err)

	rec, err := c.GrantMediation(context.Background(), "m1")
	require.NoError(t, err)
	require.Equal(t, mediation.StateGranted, rec.State)
	require.Equal(t, "m1", ms.granted)

	rec, err = c.DenyMediation(context.Background(), "m2")
	require.NoError(t, err)
	require.Equal(t, mediation.StateDenied, rec.State)
	require.Equal(t, "m2", ms.denied)
}

func TestClient_DownloadMessages(t *testing.T) {
	prov, rs, _ := newTestProvider(t)

	conn := &connection.Record{BaseRecord: record.BaseRecord{ID: "mediator-conn"}}
	require.NoError(t, prov.connections.Save(conn))

	c, err := New(prov)
	require.NoError(t, err)

	count, err := c.DownloadMessages(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.Nil(t, rs.downloaded)

	_, err = c.DownloadMessages(context.Background(), conn.ID)
	require.NoError(t, err)
	require.Equal(t, conn.ID, rs.downloaded.ID)

	_, err = c.DownloadMessages(context.Background(), "unknown")
	require.True(t, errors.Is(err, record.ErrRecordNotFound))
}

type countingDownloader struct {
	mu    sync.Mutex
	calls int
	fail  bool
	done  chan struct{}
	limit int
}

func (d *countingDownloader) DownloadMessages(context.Context, string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	if d.calls == d.limit {
		close(d.done)
	}

	if d.fail {
		return 0, errors.New("mediator unreachable")
	}

	return 1, nil
}

func TestPoller_Run(t *testing.T) {
	for _, fail := range []bool{false, true} {
		d := &countingDownloader{fail: fail, done: make(chan struct{}), limit: 3}
		p := newPoller(d, "", 5*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)

		go func() {
			errCh <- p.Run(ctx)
		}()

		select {
		case <-d.done:
		case <-time.After(5 * time.Second):
			t.Fatal("poller did not download")
		}

		cancel()

		require.True(t, errors.Is(<-errCh, context.Canceled))
	}

	t.Run("default interval", func(t *testing.T) {
		p := newPoller(&countingDownloader{}, "", 0)
		require.Equal(t, DefaultPollInterval, p.interval)
	})
}
