/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messagepickup

import (
	"encoding/json"
	"time"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
)

const (
	// MessagePickup defines the protocol name.
	MessagePickup = "messagepickup"
	// Spec defines the protocol spec.
	Spec = "https://didcomm.org/messagepickup/1.0/"
	// StatusMsgType defines the status message type.
	StatusMsgType = Spec + "status"
	// StatusRequestMsgType defines the status request message type.
	StatusRequestMsgType = Spec + "status-request"
	// BatchPickupMsgType defines the batch pickup message type.
	BatchPickupMsgType = Spec + "batch-pickup"
	// BatchMsgType defines the batch message type.
	BatchMsgType = Spec + "batch"
)

// StatusRequest sent by the recipient to the message_holder to request a status message.
// https://github.com/hyperledger/aries-rfcs/tree/master/features/0212-pickup#statusrequest
type StatusRequest struct {
	service.Header
}

// Status details about pending messages
// https://github.com/hyperledger/aries-rfcs/tree/master/features/0212-pickup#status
type Status struct {
	service.Header
	MessageCount      int        `json:"message_count"`
	DurationWaited    int        `json:"duration_waited,omitempty"`
	LastAddedTime     *time.Time `json:"last_added_time,omitempty"`
	LastDeliveredTime *time.Time `json:"last_delivered_time,omitempty"`
	LastRemovedTime   *time.Time `json:"last_removed_time,omitempty"`
	TotalSize         int        `json:"total_size,omitempty"`
}

// BatchPickup a request to have multiple waiting messages sent inside a batch message.
// https://github.com/hyperledger/aries-rfcs/tree/master/features/0212-pickup#batch-pickup
type BatchPickup struct {
	service.Header
	BatchSize int `json:"batch_size"`
}

// Batch a message that contains multiple waiting messages.
// https://github.com/hyperledger/aries-rfcs/tree/master/features/0212-pickup#batch
type Batch struct {
	service.Header
	Messages []*Message `json:"messages~attach"`
}

// Message messagepickup wrapper around one queued envelope.
type Message struct {
	ID      string          `json:"id"`
	Message json.RawMessage `json:"message"`
}

// NewBatchPickup returns a request for at most batchSize messages.
func NewBatchPickup(batchSize int) *BatchPickup {
	return &BatchPickup{Header: service.NewHeader(BatchPickupMsgType), BatchSize: batchSize}
}

// NewStatusRequest returns a status request.
func NewStatusRequest() *StatusRequest {
	return &StatusRequest{Header: service.NewHeader(StatusRequestMsgType)}
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	return &t
}
