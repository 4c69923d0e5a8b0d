/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-agent-go/pkg/controller/command/connection"
	"github.com/hyperledger/aries-agent-go/pkg/framework/aries"
	"github.com/hyperledger/aries-agent-go/pkg/framework/context"
	connectionstore "github.com/hyperledger/aries-agent-go/pkg/store/connection"
)

func newOperation(t *testing.T) *Operation {
	t.Helper()

	a, err := aries.New(aries.WithLabel("agent"))
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, a.Close()) })

	ctx, err := a.Context()
	require.NoError(t, err)

	op, err := New(ctx)
	require.NoError(t, err)

	return op
}

func serve(t *testing.T, op *Operation, method, path string, body io.Reader) (*httptest.ResponseRecorder, []byte) {
	t.Helper()

	router := mux.NewRouter()

	for _, h := range op.GetRESTHandlers() {
		router.HandleFunc(h.Path(), h.Handle()).Methods(h.Method())
	}

	req, err := http.NewRequest(method, path, body)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	return rr, rr.Body.Bytes()
}

func TestNew(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		require.Len(t, newOperation(t).GetRESTHandlers(), 7)
	})

	t.Run("command creation fail", func(t *testing.T) {
		ctx, err := context.New()
		require.NoError(t, err)

		_, err = New(ctx)
		require.Error(t, err)
		require.Contains(t, err.Error(), "create connection command")
	})
}

func TestOperation_Connections(t *testing.T) {
	op := newOperation(t)

	rr, body := serve(t, op, http.MethodPost, createInvitationPath, bytes.NewBufferString(`{"alias":"bob"}`))
	require.Equal(t, http.StatusOK, rr.Code)

	created := connection.CreateInvitationResponse{}
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.ConnectionID)

	t.Run("receive invitation", func(t *testing.T) {
		req, err := json.Marshal(&connection.ReceiveInvitationArgs{Invitation: created.Invitation})
		require.NoError(t, err)

		rr, body := serve(t, op, http.MethodPost, receiveInvitationPath, bytes.NewBuffer(req))
		require.Equal(t, http.StatusOK, rr.Code)

		received := connection.QueryConnectionResult{}
		require.NoError(t, json.Unmarshal(body, &received))
		require.Equal(t, connectionstore.RoleInvitee, received.Result.Role)
	})

	t.Run("query connections", func(t *testing.T) {
		rr, body := serve(t, op, http.MethodGet, connections, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		all := connection.QueryConnectionsResponse{}
		require.NoError(t, json.Unmarshal(body, &all))
		require.Len(t, all.Results, 2)

		rr, body = serve(t, op, http.MethodGet, connections+"?state=complete", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		complete := connection.QueryConnectionsResponse{}
		require.NoError(t, json.Unmarshal(body, &complete))
		require.Empty(t, complete.Results)
	})

	t.Run("query connection by id", func(t *testing.T) {
		rr, body := serve(t, op, http.MethodGet, operationID+"/"+created.ConnectionID, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		result := connection.QueryConnectionResult{}
		require.NoError(t, json.Unmarshal(body, &result))
		require.Equal(t, "bob", result.Result.Alias)

		rr, _ = serve(t, op, http.MethodGet, operationID+"/unknown", nil)
		require.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("accept request in wrong state", func(t *testing.T) {
		rr, body := serve(t, op, http.MethodPost, operationID+"/"+created.ConnectionID+"/accept-request", nil)
		require.Equal(t, http.StatusInternalServerError, rr.Code)
		require.Contains(t, string(body), `"code":15004`)
	})

	t.Run("remove connection", func(t *testing.T) {
		rr, _ := serve(t, op, http.MethodDelete, operationID+"/"+created.ConnectionID, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		rr, _ = serve(t, op, http.MethodGet, operationID+"/"+created.ConnectionID, nil)
		require.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("invalid request", func(t *testing.T) {
		rr, body := serve(t, op, http.MethodPost, receiveInvitationPath, bytes.NewBufferString("{"))
		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Contains(t, string(body), `"code":15000`)
	})
}
