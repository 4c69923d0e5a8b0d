/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediation

import (
	"errors"
	"fmt"

	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-agent-go/pkg/store/record"
)

const defaultMediatorID = "DEFAULT_MEDIATOR"

// Store persists mediation records and the default mediator pointer.
type Store struct {
	*record.Repository[*Record]

	pointer *record.Repository[*defaultMediator]
}

// NewStore returns a mediation store backed by the given storage provider.
func NewStore(p storage.Provider) (*Store, error) {
	repo, err := record.NewRepository[*Record](p, func() *Record { return &Record{} })
	if err != nil {
		return nil, fmt.Errorf("new mediation store: %w", err)
	}

	pointer, err := record.NewRepository[*defaultMediator](p, func() *defaultMediator { return &defaultMediator{} })
	if err != nil {
		return nil, fmt.Errorf("new default mediator store: %w", err)
	}

	return &Store{Repository: repo, pointer: pointer}, nil
}

// FindByConnectionID returns the mediation record owned by the connection.
func (s *Store) FindByConnectionID(connectionID string) (*Record, bool, error) {
	return s.FindSingleByQuery(record.Query{TagConnectionID: connectionID})
}

// GetByThreadID returns the mediation record correlated with the protocol thread.
func (s *Store) GetByThreadID(threadID string) (*Record, error) {
	return s.GetSingleByQuery(record.Query{TagThreadID: threadID})
}

// FindByRecipientKey returns the granted mediator-side record routing the key.
func (s *Store) FindByRecipientKey(key string) (*Record, bool, error) {
	return s.FindSingleByQuery(record.Query{
		recipientKeyTag(key): keyTagPresent,
		TagRole:              string(RoleMediator),
	})
}

// GetMediators returns the recipient-side records, that is the mediators this agent uses.
func (s *Store) GetMediators() ([]*Record, error) {
	return s.FindByQuery(record.Query{TagRole: string(RoleRecipient)})
}

// GetDefaultMediatorID returns the id of the default mediation record, false when none is set.
func (s *Store) GetDefaultMediatorID() (string, bool, error) {
	ptr, found, err := s.pointer.FindByID(defaultMediatorID)
	if err != nil || !found {
		return "", false, err
	}

	return ptr.MediationID, true, nil
}

// GetDefaultMediator returns the default mediation record, false when none is set.
func (s *Store) GetDefaultMediator() (*Record, bool, error) {
	id, found, err := s.GetDefaultMediatorID()
	if err != nil || !found {
		return nil, false, err
	}

	return s.FindByID(id)
}

// SetDefaultMediator points the default mediator at the given record.
func (s *Store) SetDefaultMediator(rec *Record) error {
	ptr, found, err := s.pointer.FindByID(defaultMediatorID)
	if err != nil {
		return err
	}

	if !found {
		return s.pointer.Save(&defaultMediator{
			BaseRecord:  record.BaseRecord{ID: defaultMediatorID},
			MediationID: rec.ID,
		})
	}

	ptr.MediationID = rec.ID

	return s.pointer.Update(ptr)
}

// ClearDefaultMediator removes the default mediator pointer. Clearing an unset pointer is not an error.
func (s *Store) ClearDefaultMediator() error {
	err := s.pointer.DeleteByID(defaultMediatorID)
	if err != nil && !errors.Is(err, record.ErrRecordNotFound) {
		return err
	}

	return nil
}
