/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package localwallet

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	chacha "golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/nacl/box"

	"github.com/hyperledger/aries-agent-go/pkg/wallet"
)

// Unpack opens an envelope addressed to any key held by the wallet.
func (w *Wallet) Unpack(envelope []byte) (*wallet.UnpackedMessage, error) {
	var env legacyEnvelope

	err := json.Unmarshal(envelope, &env)
	if err != nil {
		return nil, fmt.Errorf("unpack: invalid envelope: %w", err)
	}

	protectedBytes, err := base64.URLEncoding.DecodeString(env.Protected)
	if err != nil {
		return nil, fmt.Errorf("unpack: decode protected header: %w", err)
	}

	var prot protected

	err = json.Unmarshal(protectedBytes, &prot)
	if err != nil {
		return nil, fmt.Errorf("unpack: invalid protected header: %w", err)
	}

	if prot.Typ != typJWM {
		return nil, fmt.Errorf("unpack: message type %s not supported", prot.Typ)
	}

	if prot.Alg != algAuth && prot.Alg != algAnon {
		return nil, fmt.Errorf("unpack: message format %s not supported", prot.Alg)
	}

	for _, candidate := range prot.Recipients {
		priv, e := w.privateKey(candidate.Header.KID)
		if errors.Is(e, wallet.ErrKeyNotFound) {
			continue
		}

		if e != nil {
			return nil, e
		}

		cek, senderKey, e := openCEK(&candidate, prot.Alg, priv)
		if e != nil {
			return nil, fmt.Errorf("unpack: %w", e)
		}

		msg, e := decodeCipherText(cek, &env)
		if e != nil {
			return nil, fmt.Errorf("unpack: decrypt: %w", e)
		}

		return &wallet.UnpackedMessage{
			Message:      msg,
			SenderKey:    senderKey,
			RecipientKey: candidate.Header.KID,
		}, nil
	}

	return nil, fmt.Errorf("unpack: no recipient key accessible: %w", wallet.ErrKeyNotFound)
}

func openCEK(rec *recipient, alg string, priv []byte) (*[chacha.KeySize]byte, string, error) {
	pk, err := publicEd25519toCurve25519(base58.Decode(rec.Header.KID))
	if err != nil {
		return nil, "", err
	}

	sk, err := secretEd25519toCurve25519(priv)
	if err != nil {
		return nil, "", err
	}

	encCEK, err := base64.URLEncoding.DecodeString(rec.EncryptedKey)
	if err != nil {
		return nil, "", err
	}

	var (
		cekSlice  []byte
		senderKey string
	)

	if alg == algAnon {
		cekSlice, err = sodiumBoxSealOpen(encCEK, pk, sk)
		if err != nil {
			return nil, "", fmt.Errorf("open cek: %w", err)
		}
	} else {
		encSender, e := base64.URLEncoding.DecodeString(rec.Header.Sender)
		if e != nil {
			return nil, "", e
		}

		senderBytes, e := sodiumBoxSealOpen(encSender, pk, sk)
		if e != nil {
			return nil, "", fmt.Errorf("open sender: %w", e)
		}

		senderKey = string(senderBytes)

		senderCurve, e := publicEd25519toCurve25519(base58.Decode(senderKey))
		if e != nil {
			return nil, "", e
		}

		nonceSlice, e := base64.URLEncoding.DecodeString(rec.Header.IV)
		if e != nil {
			return nil, "", e
		}

		var nonce [nonceBytes]byte

		copy(nonce[:], nonceSlice)

		var ok bool

		cekSlice, ok = box.Open(nil, encCEK, &nonce, (*[curveKeySize]byte)(senderCurve), (*[curveKeySize]byte)(sk))
		if !ok {
			return nil, "", errors.New("failed to decrypt CEK")
		}
	}

	var cek [chacha.KeySize]byte

	copy(cek[:], cekSlice)

	return &cek, senderKey, nil
}

// decodeCipherText decodes (from base64) and decrypts the ciphertext using chacha20poly1305.
func decodeCipherText(cek *[chacha.KeySize]byte, env *legacyEnvelope) ([]byte, error) {
	cipherText, err := base64.URLEncoding.DecodeString(env.CipherText)
	if err != nil {
		return nil, err
	}

	nonce, err := base64.URLEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, err
	}

	tag, err := base64.URLEncoding.DecodeString(env.Tag)
	if err != nil {
		return nil, err
	}

	chachaCipher, err := chacha.New(cek[:])
	if err != nil {
		return nil, err
	}

	return chachaCipher.Open(nil, nonce, append(cipherText, tag...), []byte(env.Protected))
}
