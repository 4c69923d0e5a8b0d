/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dispatcher

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeReply     = "reply"
	OutcomeSent      = "sent"
	OutcomeNoReply   = "none"
	OutcomeError     = "error"
	OutcomeNoHandler = "no_handler"
)

type metrics struct {
	dispatched *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aries_agent",
		Subsystem: "dispatcher",
		Name:      "messages_total",
		Help:      "Inbound messages dispatched, by message type and outcome.",
	}, []string{"type", "outcome"})

	c, err := RegisterCollector(reg, dispatched)
	if err != nil {
		return nil, err
	}

	return &metrics{dispatched: c.(*prometheus.CounterVec)}, nil
}

func (m *metrics) observe(msgType, outcome string) {
	m.dispatched.WithLabelValues(msgType, outcome).Inc()
}

// RegisterCollector registers c with reg, returning the collector already
// registered under the same descriptor if there is one. A nil reg leaves c unregistered.
func RegisterCollector(reg prometheus.Registerer, c prometheus.Collector) (prometheus.Collector, error) {
	if reg == nil {
		return c, nil
	}

	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		return are.ExistingCollector, nil
	}

	return nil, err
}
