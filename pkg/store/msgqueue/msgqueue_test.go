/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package msgqueue

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/stretchr/testify/require"
)

func TestQueue(t *testing.T) {
	t.Run("single message then empty", func(t *testing.T) {
		q, err := New(mem.NewProvider())
		require.NoError(t, err)

		require.NoError(t, q.Add("key", []byte("envelope")))

		msgs, err := q.Take("key", 10)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		require.Equal(t, []byte("envelope"), msgs[0].Message)

		msgs, err = q.Take("key", 10)
		require.NoError(t, err)
		require.NotNil(t, msgs)
		require.Empty(t, msgs)
	})

	t.Run("fifo with batch size", func(t *testing.T) {
		q, err := New(mem.NewProvider())
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			require.NoError(t, q.Add("key", []byte(fmt.Sprintf("m%d", i))))
		}

		status, err := q.Status("key")
		require.NoError(t, err)
		require.Equal(t, 5, status.MessageCount)

		msgs, err := q.Take("key", 2)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		require.Equal(t, "m0", string(msgs[0].Message))
		require.Equal(t, "m1", string(msgs[1].Message))

		msgs, err = q.Take("key", 10)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		require.Equal(t, "m2", string(msgs[0].Message))

		status, err = q.Status("key")
		require.NoError(t, err)
		require.Equal(t, 0, status.MessageCount)
		require.False(t, status.LastRemovedTime.IsZero())
	})

	t.Run("keys are independent", func(t *testing.T) {
		q, err := New(mem.NewProvider())
		require.NoError(t, err)

		require.NoError(t, q.Add("a", []byte("for a")))

		msgs, err := q.Take("b", 10)
		require.NoError(t, err)
		require.Empty(t, msgs)

		status, err := q.Status("a")
		require.NoError(t, err)
		require.Equal(t, 1, status.MessageCount)
	})

	t.Run("concurrent adds are not lost", func(t *testing.T) {
		q, err := New(mem.NewProvider())
		require.NoError(t, err)

		var wg sync.WaitGroup

		for i := 0; i < 20; i++ {
			wg.Add(1)

			go func(i int) {
				defer wg.Done()
				require.NoError(t, q.Add("key", []byte(fmt.Sprintf("m%d", i))))
			}(i)
		}

		wg.Wait()

		msgs, err := q.Take("key", -1)
		require.NoError(t, err)
		require.Len(t, msgs, 20)
	})

	t.Run("open store error", func(t *testing.T) {
		_, err := New(&failingProvider{})
		require.Error(t, err)
		require.Contains(t, err.Error(), "open mailbox store")
	})
}

type failingProvider struct {
	storage.Provider
}

func (p *failingProvider) OpenStore(string) (storage.Store, error) {
	return nil, errors.New("open failure")
}
