/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-agent-go/pkg/doc/did"
)

const (
	// Name of the connection protocol.
	Name = "connections"

	// InvitationMsgType defines the connection invitation message type.
	InvitationMsgType = "https://didcomm.org/connections/1.0/invitation"
	// RequestMsgType defines the connection request message type.
	RequestMsgType = "https://didcomm.org/connections/1.0/request"
	// ResponseMsgType defines the connection response message type.
	ResponseMsgType = "https://didcomm.org/connections/1.0/response"

	signatureType   = "https://didcomm.org/signature/1.0/ed25519Sha512_single"
	timestampLength = 8
)

// Invitation defines Connection protocol invitation message
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0160-connection-protocol#0-invitation-to-connect
type Invitation struct {
	service.Header

	// the Label of the connection invitation
	Label string `json:"label,omitempty"`

	// the RecipientKeys for the connection invitation
	RecipientKeys []string `json:"recipientKeys,omitempty"`

	// the Service endpoint of the connection invitation
	ServiceEndpoint string `json:"serviceEndpoint,omitempty"`

	// the RoutingKeys of the connection invitation
	RoutingKeys []string `json:"routingKeys,omitempty"`
}

// Request defines a2a Connection request
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0160-connection-protocol#1-connection-request
type Request struct {
	service.Header
	Label      string      `json:"label"`
	Connection *Connection `json:"connection,omitempty"`
}

// Response defines a2a Connection response
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0160-connection-protocol#2-connection-response
type Response struct {
	service.Header
	ConnectionSignature *ConnectionSignature `json:"connection~sig,omitempty"`
	PleaseAck           *decorator.PleaseAck `json:"~please_ack,omitempty"`
}

// ConnectionSignature connection signature.
type ConnectionSignature struct {
	Type       string `json:"@type,omitempty"`
	Signature  string `json:"signature,omitempty"`
	SignedData string `json:"sig_data,omitempty"`
	SignVerKey string `json:"signer,omitempty"`
}

// Connection defines connection body of connection request.
type Connection struct {
	DID    string   `json:"DID,omitempty"`
	DIDDoc *did.Doc `json:"DIDDoc,omitempty"`
}
