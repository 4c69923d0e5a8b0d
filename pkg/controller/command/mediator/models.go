/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediator

import "github.com/hyperledger/aries-agent-go/pkg/store/mediation"

// ConnectionIDArg contains the connection of mediation requests and message pickup.
type ConnectionIDArg struct {
	ConnectionID string `json:"connectionID"`
}

// MediationIDArg contains the mediation record a command acts on.
type MediationIDArg struct {
	MediationID string `json:"mediationID"`
}

// MediationResponse contains one mediation record.
type MediationResponse struct {
	Mediation *mediation.Record `json:"mediation"`
}

// DefaultMediatorResponse contains the default mediation record, if any.
type DefaultMediatorResponse struct {
	Mediation *mediation.Record `json:"mediation,omitempty"`
	Found     bool              `json:"found"`
}

// MediatorsResponse contains the mediations this agent requested.
type MediatorsResponse struct {
	Mediators []*mediation.Record `json:"mediators"`
}

// BatchPickupResponse is response for dispatching pending messages.
type BatchPickupResponse struct {
	// Count of messages dispatched.
	MessageCount int `json:"message_count"`
}
