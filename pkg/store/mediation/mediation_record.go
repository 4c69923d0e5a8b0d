/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mediation persists mediation records and the default mediator pointer.
package mediation

import (
	"errors"
	"fmt"

	"github.com/hyperledger/aries-agent-go/pkg/store/record"
)

// RecordType names the mediation record store.
const RecordType = "MediationRecord"

// State of the coordinate-mediation protocol.
type State string

const (
	// StateRequested is the initial mediation state on both sides.
	StateRequested State = "requested"
	// StateGranted is terminal: the mediator routes for the recipient.
	StateGranted State = "granted"
	// StateDenied is terminal: the mediator refused.
	StateDenied State = "denied"
)

// Role of the agent in a mediation relationship.
type Role string

const (
	// RoleMediator relays and queues messages.
	RoleMediator Role = "mediator"
	// RoleRecipient receives messages through a mediator.
	RoleRecipient Role = "recipient"
)

// Tag names maintained on every mediation record.
const (
	TagState        = "state"
	TagRole         = "role"
	TagConnectionID = "connectionId"
	TagThreadID     = "threadId"

	recipientKeyTagPrefix = "recipientKey"
	keyTagPresent         = "1"
)

var (
	// ErrInvalidState is returned when a transition is attempted from a terminal or unexpected state.
	ErrInvalidState = errors.New("invalid mediation state")
	// ErrInvalidRole is returned when a side-specific operation runs on the other side's record.
	ErrInvalidRole = errors.New("invalid mediation role")
)

// Record is one delegated-routing relationship.
type Record struct {
	record.BaseRecord

	State         State    `json:"state"`
	Role          Role     `json:"role"`
	ConnectionID  string   `json:"connectionId"`
	ThreadID      string   `json:"threadId,omitempty"`
	Endpoint      string   `json:"endpoint,omitempty"`
	RecipientKeys []string `json:"recipientKeys,omitempty"`
	RoutingKeys   []string `json:"routingKeys,omitempty"`
}

// RecordType implements record.Record.
func (r *Record) RecordType() string {
	return RecordType
}

// DefaultTags implements record.Record. Every recipient key gets its own tag so
// that a mediator can resolve the owning record of a forwarded message.
func (r *Record) DefaultTags() map[string]string {
	tags := map[string]string{
		TagState:        string(r.State),
		TagRole:         string(r.Role),
		TagConnectionID: r.ConnectionID,
		TagThreadID:     r.ThreadID,
	}

	for _, key := range r.RecipientKeys {
		tags[recipientKeyTag(key)] = keyTagPresent
	}

	return tags
}

// IsReady reports whether mediation was granted.
func (r *Record) IsReady() bool {
	return r.State == StateGranted
}

// AssertState fails with ErrInvalidState unless the record is in the expected state.
func (r *Record) AssertState(expected State) error {
	if r.State != expected {
		return fmt.Errorf("mediation %s is in state %s, expected %s: %w", r.ID, r.State, expected, ErrInvalidState)
	}

	return nil
}

// AssertTransition fails with ErrInvalidState unless the record may move to next.
// A requested record may be granted or denied; granted and denied are final.
func (r *Record) AssertTransition(next State) error {
	if r.State == StateRequested && (next == StateGranted || next == StateDenied) {
		return nil
	}

	return fmt.Errorf("mediation %s cannot move from %s to %s: %w", r.ID, r.State, next, ErrInvalidState)
}

// AssertRole fails with ErrInvalidRole unless the record has the expected role.
func (r *Record) AssertRole(expected Role) error {
	if r.Role != expected {
		return fmt.Errorf("mediation %s has role %s, expected %s: %w", r.ID, r.Role, expected, ErrInvalidRole)
	}

	return nil
}

// HasRecipientKey reports whether key is routed by this record.
func (r *Record) HasRecipientKey(key string) bool {
	for _, k := range r.RecipientKeys {
		if k == key {
			return true
		}
	}

	return false
}

// AddRecipientKey adds key, reporting false when it was already present.
func (r *Record) AddRecipientKey(key string) bool {
	if r.HasRecipientKey(key) {
		return false
	}

	r.RecipientKeys = append(r.RecipientKeys, key)

	return true
}

// RemoveRecipientKey removes key, reporting false when it was absent.
func (r *Record) RemoveRecipientKey(key string) bool {
	for i, k := range r.RecipientKeys {
		if k == key {
			r.RecipientKeys = append(r.RecipientKeys[:i], r.RecipientKeys[i+1:]...)

			return true
		}
	}

	return false
}

func recipientKeyTag(key string) string {
	return record.EncodeTagName(recipientKeyTagPrefix, key)
}

// defaultMediator is the persisted pointer to the preferred mediation record.
type defaultMediator struct {
	record.BaseRecord

	MediationID string `json:"mediationId"`
}

func (r *defaultMediator) RecordType() string {
	return "DefaultMediator"
}

func (r *defaultMediator) DefaultTags() map[string]string {
	return nil
}
