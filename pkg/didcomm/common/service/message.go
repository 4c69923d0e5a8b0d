/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/decorator"
)

// Header carries the fields every DIDComm message has. Message structs embed it.
type Header struct {
	Type      string               `json:"@type"`
	ID        string               `json:"@id"`
	Thread    *decorator.Thread    `json:"~thread,omitempty"`
	Transport *decorator.Transport `json:"~transport,omitempty"`
}

// NewHeader returns a header of the given type with a fresh id.
func NewHeader(msgType string) Header {
	return Header{Type: msgType, ID: uuid.New().String()}
}

// MsgHeader implements Message.
func (h *Header) MsgHeader() *Header {
	return h
}

// ThreadID is ~thread.thid, or the message id when the message starts a thread.
func (h *Header) ThreadID() string {
	if h.Thread != nil && h.Thread.ID != "" {
		return h.Thread.ID
	}

	return h.ID
}

// ParentThreadID is ~thread.pthid.
func (h *Header) ParentThreadID() string {
	if h.Thread == nil {
		return ""
	}

	return h.Thread.PID
}

// SetThread links the message to the thread threadID.
func (h *Header) SetThread(threadID string) {
	if h.Thread == nil {
		h.Thread = &decorator.Thread{}
	}

	h.Thread.ID = threadID
}

// SetReturnRoute sets ~transport.return_route.
func (h *Header) SetReturnRoute(mode string) {
	if h.Transport == nil {
		h.Transport = &decorator.Transport{}
	}

	h.Transport.ReturnRoute = mode
}

// ReturnRoute returns ~transport.return_route, empty when absent.
func (h *Header) ReturnRoute() string {
	if h.Transport == nil {
		return ""
	}

	return h.Transport.ReturnRoute
}

// HasAnyReturnRoute reports whether the sender keeps its inbound channel open for replies.
func (h *Header) HasAnyReturnRoute() bool {
	rr := h.ReturnRoute()

	return rr == decorator.TransportReturnRouteAll || rr == decorator.TransportReturnRouteThread
}

// HasReturnRouting reports whether a reply on threadID may ride back on the channel that carried this message.
func (h *Header) HasReturnRouting(threadID string) bool {
	switch h.ReturnRoute() {
	case decorator.TransportReturnRouteAll:
		return true
	case decorator.TransportReturnRouteThread:
		return h.Transport.ReturnRouteThread == threadID
	default:
		return false
	}
}

// Message is implemented by every outbound message struct through its embedded Header.
type Message interface {
	MsgHeader() *Header
}

// DIDCommMsg is a received plaintext message: its parsed header plus the raw JSON.
type DIDCommMsg struct {
	Header
	raw json.RawMessage
}

// ParseDIDCommMsg parses a plaintext message. @type and @id are mandatory.
func ParseDIDCommMsg(raw []byte) (*DIDCommMsg, error) {
	msg := &DIDCommMsg{}

	err := json.Unmarshal(raw, &msg.Header)
	if err != nil {
		return nil, fmt.Errorf("invalid didcomm message: %w", err)
	}

	if msg.Type == "" {
		return nil, errors.New("invalid didcomm message: missing @type")
	}

	if msg.ID == "" {
		return nil, fmt.Errorf("invalid didcomm message %s: missing @id", msg.Type)
	}

	msg.raw = append(json.RawMessage(nil), raw...)

	return msg, nil
}

// NewDIDCommMsg marshals a message struct into a DIDCommMsg.
func NewDIDCommMsg(m Message) (*DIDCommMsg, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", m.MsgHeader().Type, err)
	}

	return ParseDIDCommMsg(raw)
}

// Decode unmarshals the message into v.
func (m *DIDCommMsg) Decode(v interface{}) error {
	return json.Unmarshal(m.raw, v)
}

// Raw returns the plaintext JSON.
func (m *DIDCommMsg) Raw() []byte {
	return m.raw
}

// MarshalJSON returns the plaintext JSON.
func (m *DIDCommMsg) MarshalJSON() ([]byte, error) {
	return m.raw, nil
}
