/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package model

import (
	"encoding/json"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
)

// ForwardMsgType is the routing forward message type.
const ForwardMsgType = "https://didcomm.org/routing/1.0/forward"

// Forward asks a mediator to deliver Msg, an envelope packed for To.
// https://github.com/hyperledger/aries-rfcs/blob/main/concepts/0094-cross-domain-messaging/README.md
type Forward struct {
	service.Header
	To  string          `json:"to"`
	Msg json.RawMessage `json:"msg"`
}

// NewForward wraps envelope for delivery to the holder of key to.
func NewForward(to string, envelope []byte) *Forward {
	return &Forward{Header: service.NewHeader(ForwardMsgType), To: to, Msg: envelope}
}
