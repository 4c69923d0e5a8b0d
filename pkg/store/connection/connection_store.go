/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"fmt"

	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-agent-go/pkg/store/record"
)

// Store takes care of connection record persistence and lookups.
type Store struct {
	*record.Repository[*Record]
}

// NewStore returns a connection store backed by the given storage provider.
func NewStore(p storage.Provider) (*Store, error) {
	repo, err := record.NewRepository[*Record](p, func() *Record { return &Record{} })
	if err != nil {
		return nil, fmt.Errorf("new connection store: %w", err)
	}

	return &Store{Repository: repo}, nil
}

// FindByVerkey returns the connection that owns the given local key.
func (s *Store) FindByVerkey(verkey string) (*Record, bool, error) {
	return s.FindSingleByQuery(record.Query{TagVerkey: verkey})
}

// FindByTheirKey returns the connection whose peer uses the given key.
func (s *Store) FindByTheirKey(theirKey string) (*Record, bool, error) {
	return s.FindSingleByQuery(record.Query{TagTheirKey: theirKey})
}

// FindByInvitationKey returns the invitee connection created from an invitation with the given key.
func (s *Store) FindByInvitationKey(invitationKey string) (*Record, bool, error) {
	return s.FindSingleByQuery(record.Query{TagInvitationKey: invitationKey})
}

// GetByThreadID returns the connection correlated with the given protocol thread.
func (s *Store) GetByThreadID(threadID string) (*Record, error) {
	return s.GetSingleByQuery(record.Query{TagThreadID: threadID})
}

// FindByState returns every connection in the given state.
func (s *Store) FindByState(state State) ([]*Record, error) {
	return s.FindByQuery(record.Query{TagState: string(state)})
}
