/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package basicmessage

import (
	"time"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-agent-go/pkg/store/record"
)

const (
	// Name of the basic message protocol.
	Name = "basicmessage"

	// MessageMsgType is the basic message type.
	MessageMsgType = "https://didcomm.org/basicmessage/1.0/message"

	// TopicBasicMessageReceived carries a *ReceivedEvent for every stored inbound basic message.
	TopicBasicMessageReceived event.Topic = "BasicMessageReceived"

	// RecordType names the basic message record store.
	RecordType = "BasicMessageRecord"

	tagConnectionID = "connectionId"
	tagRole         = "role"
)

// Message is a plain text message on a connection.
// https://github.com/hyperledger/aries-rfcs/tree/main/features/0095-basic-message
type Message struct {
	service.Header
	Content  string    `json:"content"`
	SentTime time.Time `json:"sent_time"`
}

// Role of the agent for a stored message.
type Role string

const (
	// RoleSender marks messages this agent sent.
	RoleSender Role = "sender"
	// RoleReceiver marks messages this agent received.
	RoleReceiver Role = "receiver"
)

// Record is a sent or received basic message.
type Record struct {
	record.BaseRecord

	ConnectionID string    `json:"connectionId"`
	Role         Role      `json:"role"`
	Content      string    `json:"content"`
	SentTime     time.Time `json:"sentTime"`
}

// RecordType implements record.Record.
func (r *Record) RecordType() string {
	return RecordType
}

// DefaultTags implements record.Record.
func (r *Record) DefaultTags() map[string]string {
	return map[string]string{
		tagConnectionID: r.ConnectionID,
		tagRole:         string(r.Role),
	}
}

// ReceivedEvent is published when a basic message arrives.
type ReceivedEvent struct {
	Message *Message
	Record  *Record
}
