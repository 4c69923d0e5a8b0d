/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package localwallet

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	chacha "golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/poly1305"
)

const (
	encChacha  = "chacha20poly1305_ietf"
	typJWM     = "JWM/1.0"
	algAuth    = "Authcrypt"
	algAnon    = "Anoncrypt"
	nonceBytes = 24
)

// legacyEnvelope is the full payload envelope for the JSON message.
type legacyEnvelope struct {
	Protected  string `json:"protected,omitempty"`
	IV         string `json:"iv,omitempty"`
	CipherText string `json:"ciphertext,omitempty"`
	Tag        string `json:"tag,omitempty"`
}

// protected is the protected header of the JSON envelope.
type protected struct {
	Enc        string      `json:"enc,omitempty"`
	Typ        string      `json:"typ,omitempty"`
	Alg        string      `json:"alg,omitempty"`
	Recipients []recipient `json:"recipients,omitempty"`
}

type recipient struct {
	EncryptedKey string          `json:"encrypted_key,omitempty"`
	Header       recipientHeader `json:"header,omitempty"`
}

type recipientHeader struct {
	KID    string `json:"kid,omitempty"`
	Sender string `json:"sender,omitempty"`
	IV     string `json:"iv,omitempty"`
}

type senderKeys struct {
	verkey string
	priv   ed25519.PrivateKey
}

// Pack encrypts payload for every recipient key. With a sender key the envelope
// is authcrypted, otherwise anoncrypted.
func (w *Wallet) Pack(payload []byte, recipientKeys []string, senderKey string) ([]byte, error) {
	if len(recipientKeys) == 0 {
		return nil, errors.New("pack: no recipient keys")
	}

	var (
		sender *senderKeys
		alg    = algAnon
	)

	if senderKey != "" {
		priv, err := w.privateKey(senderKey)
		if err != nil {
			return nil, fmt.Errorf("pack: %w", err)
		}

		sender = &senderKeys{verkey: senderKey, priv: priv}
		alg = algAuth
	}

	nonce := make([]byte, chacha.NonceSize)

	_, err := w.randSource.Read(nonce)
	if err != nil {
		return nil, err
	}

	// cek (content encryption key) is a symmetric key, for chacha20, a symmetric cipher
	_, cek, err := box.GenerateKey(w.randSource)
	if err != nil {
		return nil, err
	}

	chachaCipher, err := chacha.New(cek[:])
	if err != nil {
		return nil, err
	}

	recipients := make([]recipient, 0, len(recipientKeys))

	for _, recKey := range recipientKeys {
		rec, e := w.buildRecipient(cek, recKey, sender)
		if e != nil {
			return nil, fmt.Errorf("pack for %s: %w", recKey, e)
		}

		recipients = append(recipients, *rec)
	}

	protectedBytes, err := json.Marshal(protected{Enc: encChacha, Typ: typJWM, Alg: alg, Recipients: recipients})
	if err != nil {
		return nil, err
	}

	aad := base64.URLEncoding.EncodeToString(protectedBytes)

	symPld := chachaCipher.Seal(nil, nonce, payload, []byte(aad))

	// the tag is the tail of the sealed payload
	tag := symPld[len(symPld)-poly1305.TagSize:]
	cipherText := symPld[0 : len(symPld)-poly1305.TagSize]

	return json.Marshal(legacyEnvelope{
		Protected:  aad,
		IV:         base64.URLEncoding.EncodeToString(nonce),
		CipherText: base64.URLEncoding.EncodeToString(cipherText),
		Tag:        base64.URLEncoding.EncodeToString(tag),
	})
}

// buildRecipient seals the CEK for one recipient, together with the sender verkey when authcrypting.
func (w *Wallet) buildRecipient(cek *[chacha.KeySize]byte, recKey string, sender *senderKeys) (*recipient, error) {
	recPKCurve, err := publicEd25519toCurve25519(base58.Decode(recKey))
	if err != nil {
		return nil, err
	}

	if sender == nil {
		encCEK, e := sodiumBoxSeal(cek[:], recPKCurve, w.randSource)
		if e != nil {
			return nil, e
		}

		return &recipient{
			EncryptedKey: base64.URLEncoding.EncodeToString(encCEK),
			Header:       recipientHeader{KID: recKey},
		}, nil
	}

	var nonce [nonceBytes]byte

	_, err = w.randSource.Read(nonce[:])
	if err != nil {
		return nil, err
	}

	senderSKCurve, err := secretEd25519toCurve25519(sender.priv)
	if err != nil {
		return nil, err
	}

	encCEK := box.Seal(nil, cek[:], &nonce, (*[curveKeySize]byte)(recPKCurve), (*[curveKeySize]byte)(senderSKCurve))

	encSender, err := sodiumBoxSeal([]byte(sender.verkey), recPKCurve, w.randSource)
	if err != nil {
		return nil, err
	}

	return &recipient{
		EncryptedKey: base64.URLEncoding.EncodeToString(encCEK),
		Header: recipientHeader{
			KID:    recKey,
			Sender: base64.URLEncoding.EncodeToString(encSender),
			IV:     base64.URLEncoding.EncodeToString(nonce[:]),
		},
	}, nil
}
