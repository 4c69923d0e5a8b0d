/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package localwallet is a Wallet keeping ed25519 keys in a storage provider and
// packing envelopes in the legacy Aries RFC 0019 format.
package localwallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-agent-go/pkg/wallet"
)

// Namespace is the name of the key store.
const Namespace = "wallet"

const didKeyBytes = 16

var logger = log.New("aries-agent/wallet")

// Wallet is a wallet.Wallet backed by a storage provider.
type Wallet struct {
	keys       storage.Store
	randSource io.Reader
}

// New opens the key store.
func New(p storage.Provider) (*Wallet, error) {
	store, err := p.OpenStore(Namespace)
	if err != nil {
		return nil, fmt.Errorf("open wallet store: %w", err)
	}

	return &Wallet{keys: store, randSource: rand.Reader}, nil
}

// CreateDID creates an ed25519 key pair. The DID is the base58 encoding of the first 16 bytes of the verkey.
func (w *Wallet) CreateDID() (string, string, error) {
	pub, priv, err := ed25519.GenerateKey(w.randSource)
	if err != nil {
		return "", "", fmt.Errorf("generate key: %w", err)
	}

	verkey := base58.Encode(pub)

	err = w.keys.Put(verkey, priv)
	if err != nil {
		return "", "", fmt.Errorf("store key: %w", err)
	}

	did := base58.Encode(pub[:didKeyBytes])

	logger.Debugf("created did %s", did)

	return did, verkey, nil
}

// Sign signs data with the private key of verkey.
func (w *Wallet) Sign(data []byte, verkey string) ([]byte, error) {
	priv, err := w.privateKey(verkey)
	if err != nil {
		return nil, err
	}

	return ed25519.Sign(priv, data), nil
}

// Verify checks an ed25519 signature.
func (w *Wallet) Verify(verkey string, data, signature []byte) (bool, error) {
	pub := base58.Decode(verkey)
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("verkey %s is not an ed25519 public key", verkey)
	}

	return ed25519.Verify(pub, data, signature), nil
}

func (w *Wallet) privateKey(verkey string) (ed25519.PrivateKey, error) {
	priv, err := w.keys.Get(verkey)
	if errors.Is(err, storage.ErrDataNotFound) {
		return nil, fmt.Errorf("%s: %w", verkey, wallet.ErrKeyNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("get key %s: %w", verkey, err)
	}

	return priv, nil
}
