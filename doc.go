/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package aries is the runtime core of a DIDComm agent: it stores connection and
// mediation records, dispatches inbound and outbound envelopes over HTTP and
// WebSocket transports and runs the connection, trust ping, basic message and
// mediation protocols.
//
// Packages for end developer usage
//
// pkg/framework/aries: creates an agent from options and exposes the context used by the clients below.
//
// pkg/client/connection: creates and receives invitations and waits for connections to complete.
//
// pkg/client/mediator: requests mediation, manages the default mediator and picks up queued messages.
//
// pkg/controller: exposes the clients as commands and REST handlers and forwards agent events
// to webhooks and WebSocket subscribers.
//
// cmd/aries-agent: runs an agent with its REST API.
//
// Basic workflow
//
//	1) Instantiate an agent using aries.New and its options.
//	2) Get the context using agent.Context().
//	3) Create a client instance using its New func, passing the context.
//	4) Use the funcs provided by each client.
//	5) Call agent.Close() to release resources.
package aries
