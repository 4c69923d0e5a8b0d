/*
Reference implementation of kmutex from github.com/im7mortal/kmutex

SPDX-License-Identifier: Apache-2.0
*/

// Package lockbox provides a mutex keyed by string id.
package lockbox

import "sync"

// Lockbox serializes callers that lock the same key. Distinct keys do not contend.
type Lockbox struct {
	c *sync.Cond
	l sync.Locker
	s map[string]struct{}
}

// New returns an empty lockbox.
func New() *Lockbox {
	l := sync.Mutex{}

	return &Lockbox{c: sync.NewCond(&l), l: &l, s: make(map[string]struct{})}
}

func (km *Lockbox) locked(key string) (ok bool) { _, ok = km.s[key]; return }

// Unlock lockbox by unique ID.
func (km *Lockbox) Unlock(key string) {
	km.l.Lock()
	defer km.l.Unlock()
	delete(km.s, key)
	km.c.Broadcast()
}

// Lock lockbox by unique ID.
func (km *Lockbox) Lock(key string) {
	km.l.Lock()
	defer km.l.Unlock()

	for km.locked(key) {
		km.c.Wait()
	}

	km.s[key] = struct{}{}
}
