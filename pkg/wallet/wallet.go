/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package wallet defines the cryptographic wallet capability the agent depends on.
package wallet

import "errors"

// ErrKeyNotFound is returned when the wallet does not hold the private key of a verkey.
var ErrKeyNotFound = errors.New("key not found in wallet")

// UnpackedMessage is the result of opening an envelope.
type UnpackedMessage struct {
	Message []byte
	// SenderKey is empty for anonymously packed envelopes.
	SenderKey    string
	RecipientKey string
}

// Wallet creates keys, packs and unpacks envelopes and signs data. Keys are base58 ed25519 verkeys.
type Wallet interface {
	// CreateDID creates a new key pair and returns its DID and verkey.
	CreateDID() (did, verkey string, err error)
	// Pack encrypts payload for recipientKeys. An empty senderKey packs anonymously.
	Pack(payload []byte, recipientKeys []string, senderKey string) ([]byte, error)
	// Unpack decrypts an envelope addressed to one of the wallet keys.
	Unpack(envelope []byte) (*UnpackedMessage, error)
	// Sign signs data with the private key of verkey.
	Sign(data []byte, verkey string) ([]byte, error)
	// Verify checks signature over data against verkey.
	Verify(verkey string, data, signature []byte) (bool, error)
}
