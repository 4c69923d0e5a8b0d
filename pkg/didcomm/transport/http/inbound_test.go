/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport"
)

func post(t *testing.T, url, contentType string, body []byte) (int, []byte) {
	t.Helper()

	resp, err := http.Post(url, contentType, bytes.NewReader(body)) //nolint:noctx
	require.NoError(t, err)

	defer func() {
		require.NoError(t, resp.Body.Close())
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func TestInboundHandler(t *testing.T) {
	_, err := NewInboundHandler(nil)
	require.Error(t, err)

	t.Run("accepted without reply", func(t *testing.T) {
		prov := &mockProvider{}

		handler, err := NewInboundHandler(prov)
		require.NoError(t, err)

		server := httptest.NewServer(handler)
		defer server.Close()

		status, body := post(t, server.URL, transport.MediaTypeDIDCommEnvelope, []byte("envelope"))
		require.Equal(t, http.StatusAccepted, status)
		require.Empty(t, body)
		require.Equal(t, 1, prov.receivedCount())
		require.Len(t, prov.closed, 1)
	})

	t.Run("returned reply", func(t *testing.T) {
		prov := &mockProvider{handle: func(context.Context, []byte, transport.Session) ([]byte, error) {
			return []byte("reply"), nil
		}}

		handler, err := NewInboundHandler(prov)
		require.NoError(t, err)

		server := httptest.NewServer(handler)
		defer server.Close()

		status, body := post(t, server.URL+"/agent", transport.MediaTypeDIDCommEnvelope, []byte("envelope"))
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, "reply", string(body))
	})

	t.Run("pushed on session", func(t *testing.T) {
		var held transport.Session

		prov := &mockProvider{handle: func(ctx context.Context, _ []byte, s transport.Session) ([]byte, error) {
			held = s
			require.NoError(t, s.Send(ctx, []byte("pushed")))
			require.True(t, errors.Is(s.Send(ctx, []byte("again")), transport.ErrSessionClosed))

			return nil, nil
		}}

		handler, err := NewInboundHandler(prov)
		require.NoError(t, err)

		server := httptest.NewServer(handler)
		defer server.Close()

		status, body := post(t, server.URL, transport.MediaTypeDIDCommEnvelope, []byte("envelope"))
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, "pushed", string(body))

		require.Equal(t, []string{held.ID()}, prov.closed)
		require.True(t, errors.Is(held.Send(context.Background(), []byte("late")), transport.ErrSessionClosed))
	})

	t.Run("processing failure", func(t *testing.T) {
		prov := &mockProvider{handle: func(context.Context, []byte, transport.Session) ([]byte, error) {
			return nil, errors.New("bad envelope")
		}}

		handler, err := NewInboundHandler(prov)
		require.NoError(t, err)

		server := httptest.NewServer(handler)
		defer server.Close()

		status, _ := post(t, server.URL, transport.MediaTypeDIDCommEnvelope, []byte("envelope"))
		require.Equal(t, http.StatusInternalServerError, status)
	})

	t.Run("invalid requests", func(t *testing.T) {
		handler, err := NewInboundHandler(&mockProvider{})
		require.NoError(t, err)

		server := httptest.NewServer(handler)
		defer server.Close()

		status, _ := post(t, server.URL, "text/plain", []byte("envelope"))
		require.Equal(t, http.StatusUnsupportedMediaType, status)

		status, _ = post(t, server.URL, transport.MediaTypeDIDCommEnvelope, nil)
		require.Equal(t, http.StatusBadRequest, status)

		resp, err := http.Get(server.URL) //nolint:noctx
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestInbound_StartStop(t *testing.T) {
	_, err := NewInbound("", "")
	require.Error(t, err)

	inbound, err := NewInbound("localhost:0", "https://agent.example.com")
	require.NoError(t, err)
	require.Equal(t, "https://agent.example.com", inbound.Endpoint())

	require.Error(t, inbound.Start(nil))

	prov := &mockProvider{}
	require.NoError(t, inbound.Start(prov))

	status, _ := post(t, "http://"+inbound.Addr(), transport.MediaTypeDIDCommEnvelope, []byte("envelope"))
	require.Equal(t, http.StatusAccepted, status)

	require.NoError(t, inbound.Stop())

	inbound, err = NewInbound("localhost:0", "")
	require.NoError(t, err)
	require.Equal(t, "localhost:0", inbound.Endpoint())
	require.NoError(t, inbound.Stop())
}
