/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package session tracks inbound transport sessions that peers asked to keep
// open for return routing.
package session

import (
	"errors"
	"strings"
	"sync"

	"github.com/bluele/gcache"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-agent-go/pkg/didcomm/common/service"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/protocol/decorator"
	"github.com/hyperledger/aries-agent-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-agent-go/pkg/store/connection"
)

// DefaultSize is the number of connections whose sessions are remembered.
const DefaultSize = 1000

var logger = log.New("aries-agent/transport/session")

type entry struct {
	session           transport.Session
	returnRoute       string
	returnRouteThread string
}

// Registry maps connection ids to the open session their return route points to.
type Registry struct {
	cache gcache.Cache
	// serializes Add and RemoveSession so a stale scan never removes a fresh entry
	mutex sync.Mutex
}

// NewRegistry returns a registry keeping at most size connections; the least
// recently used entry is evicted first.
func NewRegistry(size int) *Registry {
	if size <= 0 {
		size = DefaultSize
	}

	return &Registry{cache: gcache.New(size).LRU().Build()}
}

// Add records session for connID. returnRoute is one of the decorator return
// route modes; thread is only meaningful for decorator.TransportReturnRouteThread.
func (r *Registry) Add(connID string, s transport.Session, returnRoute, thread string) error {
	if connID == "" || s == nil {
		return errors.New("session registry: connection id and session are required")
	}

	if returnRoute == decorator.TransportReturnRouteNone || returnRoute == "" {
		r.Remove(connID)

		return nil
	}

	if err := decorator.ValidateReturnRoute(returnRoute); err != nil {
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	logger.Debugf("session %s registered for connection %s (return route %s)", s.ID(), connID, returnRoute)

	return r.cache.Set(connID, &entry{session: s, returnRoute: returnRoute, returnRouteThread: thread})
}

// Find returns the session registered for connID.
func (r *Registry) Find(connID string) (transport.Session, bool) {
	e, ok := r.get(connID)
	if !ok {
		return nil, false
	}

	return e.session, true
}

// Has reports whether connID has a registered session.
func (r *Registry) Has(connID string) bool {
	_, ok := r.get(connID)

	return ok
}

// FindForThread returns the session registered for connID if it may carry
// messages of threadID.
func (r *Registry) FindForThread(connID, threadID string) (transport.Session, bool) {
	e, ok := r.get(connID)
	if !ok {
		return nil, false
	}

	switch e.returnRoute {
	case decorator.TransportReturnRouteAll:
		return e.session, true
	case decorator.TransportReturnRouteThread:
		if threadID != "" && e.returnRouteThread == threadID {
			return e.session, true
		}
	}

	return nil, false
}

// Remove forgets the session of connID.
func (r *Registry) Remove(connID string) {
	r.cache.Remove(connID)
}

// RemoveSession forgets every registration pointing at the session with sessionID.
func (r *Registry) RemoveSession(sessionID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for k, v := range r.cache.GetALL(false) {
		e, ok := v.(*entry)
		if ok && e.session.ID() == sessionID {
			r.cache.Remove(k)

			logger.Debugf("session %s closed, removed from connection %v", sessionID, k)
		}
	}
}

func (r *Registry) get(connID string) (*entry, bool) {
	v, err := r.cache.Get(connID)
	if err != nil {
		return nil, false
	}

	e, ok := v.(*entry)

	return e, ok
}

// ResolvePreferredService picks the service to deliver messages for rec: the
// highest priority DIDComm service of the peer DID Document whose endpoint
// scheme is one of schemes, else a queue endpoint service, else the service
// of the invitation when the peer has no DID Document yet.
func ResolvePreferredService(rec *connection.Record, schemes []string) (*did.Service, error) {
	services := rec.TheirDIDDoc.DIDCommServices()

	if len(services) == 0 {
		invSvc, ok, err := rec.InvitationService()
		if err != nil {
			return nil, err
		}

		if ok {
			services = []did.Service{*invSvc}
		}
	}

	var queued *did.Service

	for i := range services {
		svc := services[i]

		if svc.ServiceEndpoint == transport.QueueEndpoint {
			if queued == nil {
				queued = &svc
			}

			continue
		}

		if supported(svc.Scheme(), schemes) {
			return &svc, nil
		}
	}

	if queued != nil {
		return queued, nil
	}

	return nil, service.ErrNoEndpoint
}

func supported(scheme string, schemes []string) bool {
	for _, s := range schemes {
		if strings.EqualFold(s, scheme) {
			return true
		}
	}

	return false
}
