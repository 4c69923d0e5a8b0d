/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package connection persists pairwise connection records.
package connection

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyperledger/aries-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-agent-go/pkg/store/record"
)

// RecordType names the connection record store.
const RecordType = "ConnectionRecord"

// State of the connection protocol.
type State string

const (
	// StateInvited marks the invited phase of the connection protocol.
	StateInvited State = "invited"
	// StateRequested marks the requested phase of the connection protocol.
	StateRequested State = "requested"
	// StateResponded marks the responded phase of the connection protocol.
	StateResponded State = "responded"
	// StateComplete marks the completed phase of the connection protocol.
	StateComplete State = "complete"
)

// Role of the agent in the connection protocol.
type Role string

const (
	// RoleInviter created the invitation.
	RoleInviter Role = "inviter"
	// RoleInvitee received the invitation.
	RoleInvitee Role = "invitee"
)

// Tag names maintained on every connection record.
const (
	TagState         = "state"
	TagRole          = "role"
	TagVerkey        = "verkey"
	TagTheirKey      = "theirKey"
	TagThreadID      = "threadId"
	TagInvitationKey = "invitationKey"
)

var (
	// ErrInvalidState is returned when a protocol step runs against a record in the wrong state.
	ErrInvalidState = errors.New("invalid connection state")
	// ErrInvalidRole is returned when a protocol step runs against a record with the wrong role.
	ErrInvalidRole = errors.New("invalid connection role")
)

// Record is one pairwise relationship with a peer.
type Record struct {
	record.BaseRecord

	State                State           `json:"state"`
	Role                 Role            `json:"role"`
	DID                  string          `json:"did"`
	DIDDoc               *did.Doc        `json:"didDoc"`
	Verkey               string          `json:"verkey"`
	TheirDID             string          `json:"theirDid,omitempty"`
	TheirDIDDoc          *did.Doc        `json:"theirDidDoc,omitempty"`
	TheirLabel           string          `json:"theirLabel,omitempty"`
	ThreadID             string          `json:"threadId,omitempty"`
	Invitation           json.RawMessage `json:"invitation,omitempty"`
	AutoAcceptConnection *bool           `json:"autoAcceptConnection,omitempty"`
	Alias                string          `json:"alias,omitempty"`
}

// RecordType implements record.Record.
func (r *Record) RecordType() string {
	return RecordType
}

// DefaultTags implements record.Record.
func (r *Record) DefaultTags() map[string]string {
	return map[string]string{
		TagState:    string(r.State),
		TagRole:     string(r.Role),
		TagVerkey:   r.Verkey,
		TagTheirKey: r.TheirKey(),
		TagThreadID: r.ThreadID,
	}
}

// TheirKey is the first recipient key of the peer's preferred DIDComm service.
func (r *Record) TheirKey() string {
	if r.TheirDIDDoc == nil {
		return ""
	}

	key, err := did.RecipientKey(r.TheirDIDDoc)
	if err != nil {
		return ""
	}

	return key
}

// InvitationKey returns the inviter key recorded when the invitation was received.
func (r *Record) InvitationKey() string {
	return r.GetTag(TagInvitationKey)
}

// InvitationService returns the inviter's service as advertised in the stored
// invitation, false when the record carries no invitation.
func (r *Record) InvitationService() (*did.Service, bool, error) {
	if len(r.Invitation) == 0 {
		return nil, false, nil
	}

	inv := struct {
		RecipientKeys   []string `json:"recipientKeys"`
		ServiceEndpoint string   `json:"serviceEndpoint"`
		RoutingKeys     []string `json:"routingKeys"`
	}{}

	err := json.Unmarshal(r.Invitation, &inv)
	if err != nil {
		return nil, false, fmt.Errorf("decode invitation of connection %s: %w", r.ID, err)
	}

	return &did.Service{
		ID:              r.ID + "#invitation",
		Type:            did.IndyAgentServiceType,
		RecipientKeys:   inv.RecipientKeys,
		RoutingKeys:     inv.RoutingKeys,
		ServiceEndpoint: inv.ServiceEndpoint,
	}, true, nil
}

// IsReady reports whether messages may be exchanged over the connection.
func (r *Record) IsReady() bool {
	return r.State == StateResponded || r.State == StateComplete
}

// AssertState fails with ErrInvalidState unless the record is in one of the expected states.
func (r *Record) AssertState(expected ...State) error {
	for _, s := range expected {
		if r.State == s {
			return nil
		}
	}

	return fmt.Errorf("connection %s is in state %s, expected %v: %w", r.ID, r.State, expected, ErrInvalidState)
}

// AssertRole fails with ErrInvalidRole unless the record has the expected role.
func (r *Record) AssertRole(expected Role) error {
	if r.Role != expected {
		return fmt.Errorf("connection %s has role %s, expected %s: %w", r.ID, r.Role, expected, ErrInvalidRole)
	}

	return nil
}

// ShouldAutoAccept resolves the record override against the agent-wide policy.
func (r *Record) ShouldAutoAccept(agentDefault bool) bool {
	if r.AutoAcceptConnection != nil {
		return *r.AutoAcceptConnection
	}

	return agentDefault
}
