/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport"
)

const defaultTimeout = 30 * time.Second

// outboundCommHTTPOpts holds options for the HTTP outbound transport.
type outboundCommHTTPOpts struct {
	client *http.Client
}

// OutboundHTTPOpt is an outbound HTTP transport option.
type OutboundHTTPOpt func(opts *outboundCommHTTPOpts)

// WithOutboundHTTPClient option is for creating an Outbound HTTP transport using an http.Client instance.
func WithOutboundHTTPClient(client *http.Client) OutboundHTTPOpt {
	return func(opts *outboundCommHTTPOpts) {
		opts.client = client
	}
}

// WithOutboundTimeout option is for creating an Outbound HTTP transport using a client timeout value.
func WithOutboundTimeout(timeout time.Duration) OutboundHTTPOpt {
	return func(opts *outboundCommHTTPOpts) {
		opts.client.Timeout = timeout
	}
}

// WithOutboundTLSConfig option is for creating an Outbound HTTP transport using a tls.Config instance.
func WithOutboundTLSConfig(tlsConfig *tls.Config) OutboundHTTPOpt {
	return func(opts *outboundCommHTTPOpts) {
		opts.client = &http.Client{
			Timeout: opts.client.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: tlsConfig,
			},
		}
	}
}

// OutboundHTTPClient represents the Outbound HTTP transport instance.
type OutboundHTTPClient struct {
	client *http.Client
	prov   transport.Provider
}

// NewOutbound creates a new instance of Outbound HTTP transport to Post requests to other Agents.
func NewOutbound(opts ...OutboundHTTPOpt) (*OutboundHTTPClient, error) {
	clOpts := &outboundCommHTTPOpts{client: &http.Client{Timeout: defaultTimeout}}

	for _, opt := range opts {
		opt(clOpts)
	}

	if clOpts.client == nil {
		return nil, errors.New("can't create an outbound transport without an HTTP client")
	}

	return &OutboundHTTPClient{client: clOpts.client}, nil
}

// Start keeps the provider receiving envelopes returned in response bodies.
func (cs *OutboundHTTPClient) Start(prov transport.Provider) error {
	if prov == nil {
		return errors.New("http outbound: provider is mandatory")
	}

	cs.prov = prov

	return nil
}

// Stop releases idle connections.
func (cs *OutboundHTTPClient) Stop() error {
	cs.client.CloseIdleConnections()

	return nil
}

// Schemes implements transport.OutboundTransport.
func (cs *OutboundHTTPClient) Schemes() []string {
	return []string{"http", "https"}
}

// Send posts the envelope to url. A non-empty response body is an envelope
// returned on the request and is handed to the inbound message handler.
func (cs *OutboundHTTPClient) Send(ctx context.Context, envelope []byte, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(envelope))
	if err != nil {
		return fmt.Errorf("http outbound: build request: %w", err)
	}

	req.Header.Set("Content-Type", transport.MediaTypeDIDCommEnvelope)

	resp, err := cs.client.Do(req)
	if err != nil {
		logger.Errorf("HTTP Transport - Error posting did envelope to agent at [%s]: %v", url, err)

		return fmt.Errorf("http outbound: post to %s: %w", url, err)
	}

	defer func() {
		e := resp.Body.Close()
		if e != nil {
			logger.Errorf("HTTP Transport - Error closing response body: %v", e)
		}
	}()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http outbound: non success POST status from agent at [%s]: %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("http outbound: read response: %w", err)
	}

	if len(body) == 0 {
		return nil
	}

	if cs.prov == nil {
		logger.Warnf("dropping envelope returned by %s: transport not started", url)

		return nil
	}

	_, err = cs.prov.InboundMessageHandler()(ctx, body, nil)
	if err != nil {
		return fmt.Errorf("http outbound: process returned message: %w", err)
	}

	return nil
}
