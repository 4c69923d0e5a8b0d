/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediator

import (
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
)

// constants for coordinate mediation spec types.
const (
	// Coordination coordinate mediation protocol.
	Coordination = "coordinate-mediation"

	// CoordinationSpec defines the coordinate mediation spec.
	CoordinationSpec = "https://didcomm.org/coordinate-mediation/1.0/"

	// RequestMsgType defines the mediation request message type.
	RequestMsgType = CoordinationSpec + "mediate-request"

	// GrantMsgType defines the mediation grant message type.
	GrantMsgType = CoordinationSpec + "mediate-grant"

	// DenyMsgType defines the mediation deny message type.
	DenyMsgType = CoordinationSpec + "mediate-deny"

	// KeylistUpdateMsgType defines the key list update message type.
	KeylistUpdateMsgType = CoordinationSpec + "keylist-update"

	// KeylistUpdateResponseMsgType defines the key list update response message type.
	KeylistUpdateResponseMsgType = CoordinationSpec + "keylist-update-response"
)

// constants for key list update processing
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0211-route-coordination#keylist-update
const (
	// ActionAdd adds a key to the key list.
	ActionAdd = "add"
	// ActionRemove removes a key from the key list.
	ActionRemove = "remove"

	// ResultSuccess the update was applied.
	ResultSuccess = "success"
	// ResultNoChange the key list already was in the requested state.
	ResultNoChange = "no_change"
	// ResultClientError the update was rejected.
	ResultClientError = "client_error"
	// ResultServerError the update could not be stored.
	ResultServerError = "server_error"
)

// Request is the mediate-request message.
type Request struct {
	service.Header
}

// Grant is the mediate-grant message: where and with which keys senders reach the recipient.
type Grant struct {
	service.Header
	Endpoint    string   `json:"endpoint"`
	RoutingKeys []string `json:"routing_keys"`
}

// Deny is the mediate-deny message.
type Deny struct {
	service.Header
}

// KeylistUpdate asks the mediator to add or remove recipient keys.
type KeylistUpdate struct {
	service.Header
	Updates []Update `json:"updates"`
}

// Update is one key list change.
type Update struct {
	RecipientKey string `json:"recipient_key"`
	Action       string `json:"action"`
}

// KeylistUpdateResponse reports the outcome of every update of a KeylistUpdate.
type KeylistUpdateResponse struct {
	service.Header
	Updated []UpdateResponse `json:"updated"`
}

// UpdateResponse is the outcome of one Update.
type UpdateResponse struct {
	RecipientKey string `json:"recipient_key"`
	Action       string `json:"action"`
	Result       string `json:"result"`
}

// NewRequest returns a mediation request.
func NewRequest() *Request {
	return &Request{Header: service.NewHeader(RequestMsgType)}
}

// NewKeylistUpdate returns a key list update with the given updates.
func NewKeylistUpdate(updates ...Update) *KeylistUpdate {
	return &KeylistUpdate{Header: service.NewHeader(KeylistUpdateMsgType), Updates: updates}
}
