/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	connclient "github.com/hyperledger/aries-agent-go/pkg/client/connection"
	"github.com/hyperledger/aries-agent-go/pkg/controller/command"
	"github.com/hyperledger/aries-agent-go/pkg/framework/aries"
	"github.com/hyperledger/aries-agent-go/pkg/framework/context"
	connectionstore "github.com/hyperledger/aries-agent-go/pkg/store/connection"
)

func newProvider(t *testing.T) *context.Provider {
	t.Helper()

	a, err := aries.New(aries.WithLabel("agent"))
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, a.Close()) })

	ctx, err := a.Context()
	require.NoError(t, err)

	return ctx
}

func TestNew(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		cmd, err := New(newProvider(t))
		require.NoError(t, err)
		require.Len(t, cmd.GetHandlers(), 7)
	})

	t.Run("no connection service", func(t *testing.T) {
		ctx, err := context.New()
		require.NoError(t, err)

		_, err = New(ctx)
		require.Error(t, err)
		require.Contains(t, err.Error(), "create connection client")
	})
}

func TestCommand_Invitations(t *testing.T) {
	cmd, err := New(newProvider(t))
	require.NoError(t, err)

	var b bytes.Buffer

	cmdErr := cmd.CreateInvitation(&b, bytes.NewBufferString(`{"alias":"bob"}`))
	require.NoError(t, cmdErr)

	created := CreateInvitationResponse{}
	require.NoError(t, json.Unmarshal(b.Bytes(), &created))
	require.NotEmpty(t, created.ConnectionID)
	require.NotEmpty(t, created.InvitationURL)
	require.Equal(t, "agent", created.Invitation.Label)

	t.Run("receive invitation url", func(t *testing.T) {
		var b bytes.Buffer

		req, err := json.Marshal(&ReceiveInvitationArgs{InvitationURL: created.InvitationURL, Alias: "self"})
		require.NoError(t, err)

		cmdErr := cmd.ReceiveInvitation(&b, bytes.NewBuffer(req))
		require.NoError(t, cmdErr)

		received := QueryConnectionResult{}
		require.NoError(t, json.Unmarshal(b.Bytes(), &received))
		require.Equal(t, connectionstore.RoleInvitee, received.Result.Role)
		require.Equal(t, connectionstore.StateInvited, received.Result.State)
		require.Equal(t, "self", received.Result.Alias)
	})

	t.Run("query connections", func(t *testing.T) {
		var b bytes.Buffer

		cmdErr := cmd.QueryConnections(&b, bytes.NewBufferString(`{}`))
		require.NoError(t, cmdErr)

		all := QueryConnectionsResponse{}
		require.NoError(t, json.Unmarshal(b.Bytes(), &all))
		require.Len(t, all.Results, 2)

		b.Reset()

		cmdErr = cmd.QueryConnections(&b, bytes.NewBufferString(`{"state":"requested"}`))
		require.NoError(t, cmdErr)

		requested := QueryConnectionsResponse{}
		require.NoError(t, json.Unmarshal(b.Bytes(), &requested))
		require.Empty(t, requested.Results)
	})

	t.Run("query connection by id", func(t *testing.T) {
		var b bytes.Buffer

		cmdErr := cmd.QueryConnectionByID(&b, bytes.NewBufferString(`{"id":"`+created.ConnectionID+`"}`))
		require.NoError(t, cmdErr)

		result := QueryConnectionResult{}
		require.NoError(t, json.Unmarshal(b.Bytes(), &result))
		require.Equal(t, created.ConnectionID, result.Result.ID)
		require.Equal(t, "bob", result.Result.Alias)
		require.Equal(t, connectionstore.RoleInviter, result.Result.Role)
	})

	t.Run("remove connection", func(t *testing.T) {
		var b bytes.Buffer

		cmdErr := cmd.RemoveConnection(&b, bytes.NewBufferString(`{"id":"`+created.ConnectionID+`"}`))
		require.NoError(t, cmdErr)

		cmdErr = cmd.QueryConnectionByID(&b, bytes.NewBufferString(`{"id":"`+created.ConnectionID+`"}`))
		require.Error(t, cmdErr)
		require.Equal(t, command.NotFoundError, cmdErr.Type())
		require.Equal(t, ConnectionNotFoundErrorCode, cmdErr.Code())
	})
}

func TestCommand_Errors(t *testing.T) {
	cmd, err := New(newProvider(t))
	require.NoError(t, err)

	tests := []struct {
		name    string
		exec    command.Exec
		req     string
		errType command.Type
		code    command.Code
	}{
		{"create invitation - invalid request", cmd.CreateInvitation, "{", command.ValidationError,
			InvalidRequestErrorCode},
		{"receive invitation - missing invitation", cmd.ReceiveInvitation, `{}`, command.ValidationError,
			InvalidRequestErrorCode},
		{"receive invitation - invalid url", cmd.ReceiveInvitation, `{"invitation_url":"https://example.com"}`,
			command.ExecuteError, ReceiveInvitationErrorCode},
		{"accept invitation - empty id", cmd.AcceptInvitation, `{}`, command.ValidationError,
			InvalidRequestErrorCode},
		{"accept invitation - unknown connection", cmd.AcceptInvitation, `{"id":"unknown"}`, command.ExecuteError,
			AcceptInvitationErrorCode},
		{"accept request - unknown connection", cmd.AcceptRequest, `{"id":"unknown"}`, command.ExecuteError,
			AcceptRequestErrorCode},
		{"query connections - invalid request", cmd.QueryConnections, "[", command.ValidationError,
			InvalidRequestErrorCode},
		{"remove connection - unknown connection", cmd.RemoveConnection, `{"id":"unknown"}`, command.ExecuteError,
			RemoveConnectionErrorCode},
	}

	for _, tc := range tests {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			var b bytes.Buffer

			cmdErr := tc.exec(&b, bytes.NewBufferString(tc.req))
			require.Error(t, cmdErr)
			require.Equal(t, tc.errType, cmdErr.Type())
			require.Equal(t, tc.code, cmdErr.Code())
		})
	}

	t.Run("errors unwrap", func(t *testing.T) {
		var b bytes.Buffer

		cmdErr := cmd.QueryConnectionByID(&b, bytes.NewBufferString(`{"id":"unknown"}`))
		require.Error(t, cmdErr)
		require.True(t, errors.Is(cmdErr, connclient.ErrConnectionNotFound))
	})
}
