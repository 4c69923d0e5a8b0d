/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

func echoServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}

		defer closeConn(c)

		ctx := context.Background()

		for {
			mt, message, err := c.Read(ctx)
			if err != nil {
				return
			}

			if err := c.Write(ctx, mt, append([]byte("echo-"), message...)); err != nil {
				return
			}
		}
	}))
}

func TestOutboundClient(t *testing.T) {
	t.Run("not started", func(t *testing.T) {
		ot := NewOutbound()
		require.Equal(t, []string{"ws", "wss"}, ot.Schemes())
		require.Error(t, ot.Start(nil))
		require.Error(t, ot.Send(context.Background(), []byte("data"), "ws://localhost:1"))
		require.NoError(t, ot.Stop())
	})

	t.Run("empty url", func(t *testing.T) {
		ot := NewOutbound()
		require.NoError(t, ot.Start(newMockProvider(nil)))

		err := ot.Send(context.Background(), []byte("data"), "")
		require.Error(t, err)
		require.Contains(t, err.Error(), "url is mandatory")
	})

	t.Run("dial failure", func(t *testing.T) {
		ot := NewOutbound()
		require.NoError(t, ot.Start(newMockProvider(nil)))

		err := ot.Send(context.Background(), []byte("data"), "ws://localhost:1")
		require.Error(t, err)
		require.Contains(t, err.Error(), "websocket client")
	})

	t.Run("returned messages reach the inbound handler over a reused socket", func(t *testing.T) {
		server := echoServer(t)
		defer server.Close()

		url := "ws" + strings.TrimPrefix(server.URL, "http")

		prov := newMockProvider(nil)

		ot := NewOutbound()
		require.NoError(t, ot.Start(prov))

		require.NoError(t, ot.Send(context.Background(), []byte("one"), url))
		require.NoError(t, ot.Send(context.Background(), []byte("two"), url))

		for _, expected := range []string{"echo-one", "echo-two"} {
			select {
			case msg := <-prov.received:
				require.Equal(t, expected, string(msg))
			case <-time.After(time.Second):
				require.Fail(t, "no returned message")
			}
		}

		require.NotNil(t, ot.pool.fetch(url))

		require.NoError(t, ot.Stop())
		require.Nil(t, ot.pool.fetch(url))
		require.Eventually(t, func() bool { return prov.closedCount() == 1 }, time.Second, 10*time.Millisecond)
	})
}
