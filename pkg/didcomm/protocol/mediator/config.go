/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediator

import (
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-agent-go/pkg/store/mediation"
)

// TopicMediationStateChanged carries a StateChangedEvent whenever a mediation record is saved in a new state.
const TopicMediationStateChanged event.Topic = "MediationStateChanged"

// StateChangedEvent describes a mediation state transition. PreviousState is
// empty for a record that was just created.
type StateChangedEvent struct {
	Record        *mediation.Record
	PreviousState mediation.State
}

// Config provides the router configuration.
type Config struct {
	routerEndpoint string
	routingKeys    []string
}

// NewConfig creates new config instance.
func NewConfig(endpoint string, keys []string) *Config {
	return &Config{
		routerEndpoint: endpoint,
		routingKeys:    keys,
	}
}

// Endpoint returns router endpoint.
func (c *Config) Endpoint() string {
	return c.routerEndpoint
}

// Keys returns routing keys.
func (c *Config) Keys() []string {
	return c.routingKeys
}

// PublishStateChanged publishes the transition of rec from previous.
func PublishStateChanged(bus *event.Bus, rec *mediation.Record, previous mediation.State) {
	bus.Publish(event.Event{
		Topic:   TopicMediationStateChanged,
		Payload: &StateChangedEvent{Record: rec, PreviousState: previous},
	})
}
