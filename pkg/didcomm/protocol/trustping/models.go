/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package trustping

import (
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
)

const (
	// Name of the trust ping protocol.
	Name = "trust_ping"

	// PingMsgType is the ping message type.
	PingMsgType = "https://didcomm.org/trust_ping/1.0/ping"
	// PingResponseMsgType is the ping response message type.
	PingResponseMsgType = "https://didcomm.org/trust_ping/1.0/ping_response"
)

// Ping checks that the peer of a connection is reachable.
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0048-trust-ping
type Ping struct {
	service.Header
	Comment string `json:"comment,omitempty"`
	// ResponseRequested defaults to true when absent.
	ResponseRequested *bool `json:"response_requested,omitempty"`
}

// PingResponse answers a ping.
type PingResponse struct {
	service.Header
	Comment string `json:"comment,omitempty"`
}

// NewPing returns a ping.
func NewPing(responseRequested bool) *Ping {
	return &Ping{
		Header:            service.NewHeader(PingMsgType),
		ResponseRequested: &responseRequested,
	}
}

// WantsResponse reports whether the sender asked for a ping response.
func (p *Ping) WantsResponse() bool {
	return p.ResponseRequested == nil || *p.ResponseRequested
}

// NewPingResponse returns the response to the ping pingID.
func NewPingResponse(pingID string) *PingResponse {
	r := &PingResponse{Header: service.NewHeader(PingResponseMsgType)}
	r.SetThread(pingID)

	return r
}
