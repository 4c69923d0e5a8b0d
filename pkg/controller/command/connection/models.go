/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/connection"
	connectionstore "github.com/hyperledger/aries-agent-go/pkg/store/connection"
)

// CreateInvitationArgs model
//
// This is used for creating an invitation.
type CreateInvitationArgs struct {
	// Alias of the connection created for the invitation.
	Alias string `json:"alias,omitempty"`

	// AutoAccept overrides the agent-wide auto-accept policy for the connection.
	AutoAccept *bool `json:"auto_accept,omitempty"`
}

// CreateInvitationResponse model
//
// This is used for returning a create invitation response.
type CreateInvitationResponse struct {
	Invitation    *connection.Invitation `json:"invitation"`
	InvitationURL string                 `json:"invitation_url"`
	ConnectionID  string                 `json:"connection_id"`
}

// ReceiveInvitationArgs model
//
// This is used for receiving an invitation, given as object or as URL.
type ReceiveInvitationArgs struct {
	Invitation    *connection.Invitation `json:"invitation,omitempty"`
	InvitationURL string                 `json:"invitation_url,omitempty"`
	Alias         string                 `json:"alias,omitempty"`
	AutoAccept    *bool                  `json:"auto_accept,omitempty"`
}

// ConnectionIDArg model
//
// This is used for commands acting on one connection.
type ConnectionIDArg struct {
	ID string `json:"id"`
}

// QueryConnectionsArgs model
//
// This is used for querying connections, all of them when State is empty.
type QueryConnectionsArgs struct {
	State connectionstore.State `json:"state,omitempty"`
}

// QueryConnectionResult model
//
// This is used for returning a connection.
type QueryConnectionResult struct {
	Result *connectionstore.Record `json:"result"`
}

// QueryConnectionsResponse model
//
// This is used for returning a list of connections.
type QueryConnectionsResponse struct {
	Results []*connectionstore.Record `json:"results"`
}
