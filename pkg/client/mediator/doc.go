/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mediator enables the agent to use a mediator. Once mediation is granted
// and the mediator is the default one, new connections advertise the mediator
// endpoint and routing keys, and messages the mediator queued for the agent are
// picked up with DownloadMessages or a Poller.
//
// The mediator side of the protocol is exposed through GrantMediation and
// DenyMediation, used when the agent does not grant mediation automatically.
package mediator
