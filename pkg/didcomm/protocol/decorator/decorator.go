/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package decorator

import "fmt"

const (
	// TransportReturnRouteNone disables return routing.
	TransportReturnRouteNone = "none"
	// TransportReturnRouteAll routes every reply back over the inbound channel.
	TransportReturnRouteAll = "all"
	// TransportReturnRouteThread routes replies of one thread back over the inbound channel.
	TransportReturnRouteThread = "thread"

	// PleaseAckOnReceipt asks the peer for an ack as soon as the message is received.
	PleaseAckOnReceipt = "RECEIPT"
)

// Thread thread data.
type Thread struct {
	ID  string `json:"thid,omitempty"`
	PID string `json:"pthid,omitempty"`
}

// Transport decorator
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0092-transport-return-route
type Transport struct {
	ReturnRoute       string `json:"return_route,omitempty"`
	ReturnRouteThread string `json:"return_route_thread,omitempty"`
}

// ValidateReturnRoute checks that mode is one of the defined return route values.
func ValidateReturnRoute(mode string) error {
	switch mode {
	case "", TransportReturnRouteNone, TransportReturnRouteAll, TransportReturnRouteThread:
		return nil
	default:
		return fmt.Errorf("invalid return route option: %s", mode)
	}
}

// PleaseAck requests an acknowledgement.
type PleaseAck struct {
	On []string `json:"on,omitempty"`
}
