/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package record provides the typed record persistence used by every stateful
// entity of the agent. Records are JSON documents stored in a spi storage
// Store (one store per record type) and indexed by tags.
package record

import (
	"errors"
	"time"
)

var (
	// ErrRecordNotFound is returned when a record with the requested id or query does not exist.
	ErrRecordNotFound = errors.New("record not found")
	// ErrRecordDuplicate is returned when saving a record whose id already exists
	// or when a single-result query matches more than one record.
	ErrRecordDuplicate = errors.New("record duplicate")
)

// Record is implemented by every persisted entity. Concrete records embed
// BaseRecord, which provides Base().
type Record interface {
	Base() *BaseRecord
	// RecordType is fixed per concrete entity and names its store.
	RecordType() string
	// DefaultTags are computed from the record state and merged over the custom tags on every write.
	DefaultTags() map[string]string
}

// BaseRecord holds the fields shared by all records.
type BaseRecord struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"createdAt"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Base returns the embedded base record.
func (r *BaseRecord) Base() *BaseRecord {
	return r
}

// SetTag sets a custom tag on the record.
func (r *BaseRecord) SetTag(name, value string) {
	if r.Tags == nil {
		r.Tags = make(map[string]string)
	}

	r.Tags[name] = value
}

// GetTag returns the custom tag value, empty if unset.
func (r *BaseRecord) GetTag(name string) string {
	return r.Tags[name]
}

// AllTags returns the custom tags merged with the record's default tags.
func AllTags(r Record) map[string]string {
	tags := make(map[string]string)

	for k, v := range r.Base().Tags {
		tags[k] = v
	}

	for k, v := range r.DefaultTags() {
		tags[k] = v
	}

	return tags
}
