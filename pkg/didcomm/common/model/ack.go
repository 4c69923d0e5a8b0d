/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package model

import (
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
)

const (
	// AckMsgType is the notification ack message type.
	AckMsgType = "https://didcomm.org/notification/1.0/ack"

	// AckStatusOK acknowledges success.
	AckStatusOK = "OK"
	// AckStatusFail reports a failure.
	AckStatusFail = "FAIL"
	// AckStatusPending reports the outcome is not known yet.
	AckStatusPending = "PENDING"
)

// Ack acknowledgement struct.
type Ack struct {
	service.Header
	Status string `json:"status,omitempty"`
}

// NewAck returns an ack for the thread threadID.
func NewAck(threadID, status string) *Ack {
	ack := &Ack{Header: service.NewHeader(AckMsgType), Status: status}
	ack.SetThread(threadID)

	return ack
}
