/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package did models the DID Documents exchanged inside connection protocol messages.
package did

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
)

const (
	// Context of the DID document.
	Context = "https://w3id.org/did/v1"

	// DIDCommServiceType is the current DIDComm service type.
	DIDCommServiceType = "did-communication"
	// IndyAgentServiceType is the legacy DIDComm service type, kept for interoperability.
	IndyAgentServiceType = "IndyAgent"

	// Ed25519VerificationKey2018 public key type.
	Ed25519VerificationKey2018 = "Ed25519VerificationKey2018"
	// Ed25519SignatureAuthentication2018 authentication type.
	Ed25519SignatureAuthentication2018 = "Ed25519SignatureAuthentication2018"

	didCommServicePriority = 1
)

// ErrNoDIDCommService is returned when a document has no DIDComm service entry.
var ErrNoDIDCommService = errors.New("did document has no didcomm service")

// Doc is a DID Document.
type Doc struct {
	Context        string           `json:"@context,omitempty"`
	ID             string           `json:"id"`
	PublicKey      []PublicKey      `json:"publicKey,omitempty"`
	Authentication []Authentication `json:"authentication,omitempty"`
	Service        []Service        `json:"service,omitempty"`
}

// PublicKey is a verification key of the DID subject.
type PublicKey struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Controller      string `json:"controller"`
	PublicKeyBase58 string `json:"publicKeyBase58"`
}

// Authentication references a public key usable for authentication.
type Authentication struct {
	Type      string `json:"type"`
	PublicKey string `json:"publicKey"`
}

// Service is a service endpoint entry of a DID Document.
type Service struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	Priority        int      `json:"priority,omitempty"`
	RecipientKeys   []string `json:"recipientKeys,omitempty"`
	RoutingKeys     []string `json:"routingKeys,omitempty"`
	ServiceEndpoint string   `json:"serviceEndpoint"`
}

// Scheme returns the URI scheme of the service endpoint.
func (s *Service) Scheme() string {
	u, err := url.Parse(s.ServiceEndpoint)
	if err != nil {
		return ""
	}

	return u.Scheme
}

// NewDoc builds the document for a freshly created pairwise DID. It carries a
// did-communication service preferred over an equivalent IndyAgent service,
// both pointing at endpoint with verkey as the single recipient key.
func NewDoc(didID, verkey, endpoint string, routingKeys []string) *Doc {
	keyID := didID + "#1"

	return &Doc{
		Context: Context,
		ID:      didID,
		PublicKey: []PublicKey{{
			ID:              keyID,
			Type:            Ed25519VerificationKey2018,
			Controller:      didID,
			PublicKeyBase58: verkey,
		}},
		Authentication: []Authentication{{
			Type:      Ed25519SignatureAuthentication2018,
			PublicKey: keyID,
		}},
		Service: []Service{
			{
				ID:              didID + "#did-communication",
				Type:            DIDCommServiceType,
				Priority:        didCommServicePriority,
				RecipientKeys:   []string{verkey},
				RoutingKeys:     routingKeys,
				ServiceEndpoint: endpoint,
			},
			{
				ID:              didID + "#IndyAgentService",
				Type:            IndyAgentServiceType,
				RecipientKeys:   []string{verkey},
				RoutingKeys:     routingKeys,
				ServiceEndpoint: endpoint,
			},
		},
	}
}

// DIDCommServices returns the DIDComm services of the document, highest priority
// first. Services with equal priority keep their document order.
func (doc *Doc) DIDCommServices() []Service {
	if doc == nil {
		return nil
	}

	var services []Service

	for _, s := range doc.Service {
		if s.Type == DIDCommServiceType || s.Type == IndyAgentServiceType {
			services = append(services, s)
		}
	}

	sort.SliceStable(services, func(i, j int) bool {
		return services[i].Priority > services[j].Priority
	})

	return services
}

// LookupService returns the preferred service of the given type.
func LookupService(doc *Doc, serviceType string) (*Service, bool) {
	for _, s := range doc.DIDCommServices() {
		if s.Type == serviceType {
			svc := s

			return &svc, true
		}
	}

	return nil, false
}

// RecipientKey returns the first recipient key of the preferred DIDComm service.
func RecipientKey(doc *Doc) (string, error) {
	services := doc.DIDCommServices()
	if len(services) == 0 {
		return "", ErrNoDIDCommService
	}

	if len(services[0].RecipientKeys) == 0 {
		return "", fmt.Errorf("service %s has no recipient keys", services[0].ID)
	}

	return services[0].RecipientKeys[0], nil
}

// LookupPublicKey returns the public key with the given id.
func LookupPublicKey(id string, doc *Doc) (*PublicKey, bool) {
	for i := range doc.PublicKey {
		if doc.PublicKey[i].ID == id {
			return &doc.PublicKey[i], true
		}
	}

	return nil, false
}
