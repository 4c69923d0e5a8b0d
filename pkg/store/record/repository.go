/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package record

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"
)

var logger = log.New("aries-agent/store/record")

const (
	typeTagName    = "recordType"
	queryDelimiter = "&&"
)

// Query is a tag filter. All entries must match. An empty value matches any record carrying the tag.
type Query map[string]string

// Repository persists records of one concrete type.
type Repository[T Record] struct {
	store      storage.Store
	recordType string
	newRecord  func() T
}

// NewRepository opens the store named after the record type produced by newRecord.
func NewRepository[T Record](p storage.Provider, newRecord func() T) (*Repository[T], error) {
	recordType := newRecord().RecordType()

	store, err := p.OpenStore(recordType)
	if err != nil {
		return nil, fmt.Errorf("open store for record type %s: %w", recordType, err)
	}

	return &Repository[T]{store: store, recordType: recordType, newRecord: newRecord}, nil
}

// Save stores a new record. An empty id is replaced with a generated one and
// CreatedAt is set when zero.
func (r *Repository[T]) Save(rec T) error {
	base := rec.Base()

	if base.ID == "" {
		base.ID = uuid.New().String()
	}

	if base.CreatedAt.IsZero() {
		base.CreatedAt = time.Now().UTC()
	}

	_, err := r.store.Get(base.ID)
	if err == nil {
		return fmt.Errorf("save %s record %s: %w", r.recordType, base.ID, ErrRecordDuplicate)
	}

	if !errors.Is(err, storage.ErrDataNotFound) {
		return fmt.Errorf("save %s record %s: %w", r.recordType, base.ID, err)
	}

	return r.put(rec)
}

// Update overwrites an existing record.
func (r *Repository[T]) Update(rec T) error {
	id := rec.Base().ID

	_, err := r.store.Get(id)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return fmt.Errorf("update %s record %s: %w", r.recordType, id, ErrRecordNotFound)
		}

		return fmt.Errorf("update %s record %s: %w", r.recordType, id, err)
	}

	return r.put(rec)
}

// Delete removes the record.
func (r *Repository[T]) Delete(rec T) error {
	return r.DeleteByID(rec.Base().ID)
}

// DeleteByID removes the record with the given id.
func (r *Repository[T]) DeleteByID(id string) error {
	_, err := r.store.Get(id)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return fmt.Errorf("delete %s record %s: %w", r.recordType, id, ErrRecordNotFound)
		}

		return fmt.Errorf("delete %s record %s: %w", r.recordType, id, err)
	}

	return r.store.Delete(id)
}

// GetByID returns the record or an error wrapping ErrRecordNotFound.
func (r *Repository[T]) GetByID(id string) (T, error) {
	var zero T

	if id == "" {
		return zero, fmt.Errorf("get %s record: empty id: %w", r.recordType, ErrRecordNotFound)
	}

	data, err := r.store.Get(id)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return zero, fmt.Errorf("get %s record %s: %w", r.recordType, id, ErrRecordNotFound)
		}

		return zero, fmt.Errorf("get %s record %s: %w", r.recordType, id, err)
	}

	return r.decode(data)
}

// FindByID returns the record, or false when it does not exist.
func (r *Repository[T]) FindByID(id string) (T, bool, error) {
	rec, err := r.GetByID(id)
	if errors.Is(err, ErrRecordNotFound) {
		var zero T

		return zero, false, nil
	}

	if err != nil {
		return rec, false, err
	}

	return rec, true, nil
}

// GetAll returns every record of this type ordered by creation time.
func (r *Repository[T]) GetAll() ([]T, error) {
	return r.FindByQuery(nil)
}

// FindByQuery returns the records matching all tags of the query ordered by creation time.
func (r *Repository[T]) FindByQuery(query Query) ([]T, error) {
	iter, err := r.store.Query(r.expression(query))
	if err != nil {
		return nil, fmt.Errorf("query %s records: %w", r.recordType, err)
	}

	defer storage.Close(iter, logger)

	var records []T

	for {
		ok, err := iter.Next()
		if err != nil {
			return nil, fmt.Errorf("query %s records: iterate: %w", r.recordType, err)
		}

		if !ok {
			break
		}

		data, err := iter.Value()
		if err != nil {
			return nil, fmt.Errorf("query %s records: value: %w", r.recordType, err)
		}

		rec, err := r.decode(data)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Base().CreatedAt.Before(records[j].Base().CreatedAt)
	})

	return records, nil
}

// FindSingleByQuery returns the only record matching the query, false when none matches,
// or an error wrapping ErrRecordDuplicate when several match.
func (r *Repository[T]) FindSingleByQuery(query Query) (T, bool, error) {
	var zero T

	records, err := r.FindByQuery(query)
	if err != nil {
		return zero, false, err
	}

	switch len(records) {
	case 0:
		return zero, false, nil
	case 1:
		return records[0], true, nil
	default:
		return zero, false, fmt.Errorf("%d %s records match %v: %w",
			len(records), r.recordType, map[string]string(query), ErrRecordDuplicate)
	}
}

// GetSingleByQuery is FindSingleByQuery with zero matches reported as ErrRecordNotFound.
func (r *Repository[T]) GetSingleByQuery(query Query) (T, error) {
	rec, found, err := r.FindSingleByQuery(query)
	if err != nil {
		return rec, err
	}

	if !found {
		return rec, fmt.Errorf("no %s record matches %v: %w", r.recordType, map[string]string(query), ErrRecordNotFound)
	}

	return rec, nil
}

func (r *Repository[T]) put(rec T) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", r.recordType, err)
	}

	tags := []storage.Tag{{Name: typeTagName, Value: EncodeTagValue(r.recordType)}}

	for name, value := range AllTags(rec) {
		tags = append(tags, storage.Tag{Name: name, Value: EncodeTagValue(value)})
	}

	err = r.store.Put(rec.Base().ID, data, tags...)
	if err != nil {
		return fmt.Errorf("store %s record %s: %w", r.recordType, rec.Base().ID, err)
	}

	return nil
}

func (r *Repository[T]) decode(data []byte) (T, error) {
	rec := r.newRecord()

	err := json.Unmarshal(data, rec)
	if err != nil {
		var zero T

		return zero, fmt.Errorf("unmarshal %s record: %w", r.recordType, err)
	}

	return rec, nil
}

func (r *Repository[T]) expression(query Query) string {
	names := make([]string, 0, len(query))
	for name := range query {
		names = append(names, name)
	}

	sort.Strings(names)

	parts := []string{typeTagName + ":" + EncodeTagValue(r.recordType)}

	for _, name := range names {
		if query[name] == "" {
			parts = append(parts, name)

			continue
		}

		parts = append(parts, name+":"+EncodeTagValue(query[name]))
	}

	return strings.Join(parts, queryDelimiter)
}

// EncodeTagValue makes a value safe for stores that reserve ':' and '&&' in tag expressions.
func EncodeTagValue(value string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

// EncodeTagName builds a tag name from a prefix and an arbitrary value, such as a key or DID.
func EncodeTagName(prefix, value string) string {
	return prefix + "_" + EncodeTagValue(value)
}
