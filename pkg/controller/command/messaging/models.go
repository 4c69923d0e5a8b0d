/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messaging

import "github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/basicmessage"

// SendNewMessageArgs contains parameters for sending a basic message on a connection.
type SendNewMessageArgs struct {
	// Connection ID of the message destination
	ConnectionID string `json:"connection_ID"`

	// Content of the basic message
	Content string `json:"content"`
}

// SendMessageResponse contains the stored record of a sent message.
type SendMessageResponse struct {
	Message *basicmessage.Record `json:"message"`
}

// MessagesArgs contains parameters for listing the messages of a connection.
type MessagesArgs struct {
	ConnectionID string `json:"connection_ID"`
}

// MessagesResponse contains the messages exchanged on a connection.
type MessagesResponse struct {
	Messages []*basicmessage.Record `json:"messages"`
}
