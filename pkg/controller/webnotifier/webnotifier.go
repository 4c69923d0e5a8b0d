/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"
	"go.uber.org/multierr"

	"github.com/hyperledger/aries-agent-go/pkg/controller/command"
	"github.com/hyperledger/aries-agent-go/pkg/controller/rest"
)

const (
	notificationSendTimeout = 10 * time.Second
	emptyTopicErrMsg        = "cannot notify with an empty topic"
	emptyMessageErrMsg      = "cannot notify with an empty message"
	failedToCreateErrMsg    = "failed to create topic message : %w"
)

var logger = log.New("aries-agent/webnotifier")

// WebNotifier sends notifications to webhooks and to WebSocket clients.
type WebNotifier struct {
	notifiers []command.Notifier
	ws        *WSNotifier
	handlers  []rest.Handler
}

// New returns a WebNotifier serving WebSocket clients on wsPath and posting to webhookURLs.
func New(wsPath string, webhookURLs []string) *WebNotifier {
	ws := NewWSNotifier(wsPath)

	return &WebNotifier{
		notifiers: []command.Notifier{NewHTTPNotifier(webhookURLs), ws},
		ws:        ws,
		handlers:  ws.GetRESTHandlers(),
	}
}

// Notify sends the message to every notifier, aggregating their errors.
func (n *WebNotifier) Notify(topic string, message []byte) error {
	var allErrs error

	for _, notifier := range n.notifiers {
		allErrs = appendError(allErrs, notifier.Notify(topic, message))
	}

	return allErrs
}

// GetRESTHandlers returns the WebSocket endpoint of the notifier.
func (n *WebNotifier) GetRESTHandlers() []rest.Handler {
	return n.handlers
}

// Close disconnects the WebSocket clients.
func (n *WebNotifier) Close() error {
	return n.ws.Close()
}

type topicMessage struct {
	ID      string          `json:"id"`
	Topic   string          `json:"topic"`
	Message json.RawMessage `json:"message"`
}

// PrepareTopicMessage wraps message, a JSON document, in the envelope sent to subscribers.
func PrepareTopicMessage(topic string, message []byte) ([]byte, error) {
	return json.Marshal(&topicMessage{
		ID:      uuid.New().String(),
		Topic:   topic,
		Message: message,
	})
}

func appendError(errs, err error) error {
	return multierr.Append(errs, err)
}
