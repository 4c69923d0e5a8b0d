/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package did

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDoc(t *testing.T) {
	doc := NewDoc("did:sov:abc", "verkey1", "http://agent.example.com", []string{"routing1"})

	require.Equal(t, Context, doc.Context)
	require.Len(t, doc.Service, 2)

	pk, ok := LookupPublicKey("did:sov:abc#1", doc)
	require.True(t, ok)
	require.Equal(t, "verkey1", pk.PublicKeyBase58)

	key, err := RecipientKey(doc)
	require.NoError(t, err)
	require.Equal(t, "verkey1", key)

	services := doc.DIDCommServices()
	require.Equal(t, DIDCommServiceType, services[0].Type)
	require.Equal(t, []string{"routing1"}, services[0].RoutingKeys)
	require.Equal(t, "http", services[0].Scheme())

	bytes, err := json.Marshal(doc)
	require.NoError(t, err)

	parsed := &Doc{}
	require.NoError(t, json.Unmarshal(bytes, parsed))
	require.Equal(t, doc, parsed)
}

func TestDIDCommServices(t *testing.T) {
	t.Run("ordered by priority then document order", func(t *testing.T) {
		doc := &Doc{Service: []Service{
			{ID: "a", Type: IndyAgentServiceType},
			{ID: "b", Type: "LinkedDomains", Priority: 9},
			{ID: "c", Type: DIDCommServiceType, Priority: 2},
			{ID: "d", Type: DIDCommServiceType},
		}}

		services := doc.DIDCommServices()
		require.Len(t, services, 3)
		require.Equal(t, "c", services[0].ID)
		require.Equal(t, "a", services[1].ID)
		require.Equal(t, "d", services[2].ID)

		svc, ok := LookupService(doc, DIDCommServiceType)
		require.True(t, ok)
		require.Equal(t, "c", svc.ID)
	})

	t.Run("no didcomm service", func(t *testing.T) {
		_, err := RecipientKey(&Doc{})
		require.ErrorIs(t, err, ErrNoDIDCommService)

		_, ok := LookupService(&Doc{}, DIDCommServiceType)
		require.False(t, ok)

		var doc *Doc
		require.Empty(t, doc.DIDCommServices())
	})

	t.Run("service without keys", func(t *testing.T) {
		_, err := RecipientKey(&Doc{Service: []Service{{ID: "x", Type: DIDCommServiceType}}})
		require.Error(t, err)
		require.Contains(t, err.Error(), "no recipient keys")
	})
}
