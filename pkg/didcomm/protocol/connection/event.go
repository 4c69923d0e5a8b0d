/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/event"
	connectionstore "github.com/hyperledger/aries-agent-go/pkg/store/connection"
)

// TopicConnectionStateChanged carries a StateChangedEvent whenever a connection record is saved in a new state.
const TopicConnectionStateChanged event.Topic = "ConnectionStateChanged"

// StateChangedEvent describes a connection state transition. PreviousState is
// empty for a record that was just created.
type StateChangedEvent struct {
	Record        *connectionstore.Record
	PreviousState connectionstore.State
}
