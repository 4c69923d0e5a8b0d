/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package localwallet

import (
	"crypto/ed25519"
	"errors"
	"io"

	"github.com/agl/ed25519/extra25519"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/box"
)

// curveKeySize is the size of public and private Curve25519 keys in bytes.
const curveKeySize = 32

type privateCurve25519 [curveKeySize]byte
type publicCurve25519 [curveKeySize]byte

// publicEd25519toCurve25519 wraps PublicKeyToCurve25519 from Adam Langley's ed25519 repo.
func publicEd25519toCurve25519(pub []byte) (*publicCurve25519, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, errors.New("invalid ed25519 public key size")
	}

	var edPub [ed25519.PublicKeySize]byte

	copy(edPub[:], pub)

	pkOut := new([curveKeySize]byte)

	if !extra25519.PublicKeyToCurve25519(pkOut, &edPub) {
		return nil, errors.New("failed to convert public key")
	}

	return (*publicCurve25519)(pkOut), nil
}

// secretEd25519toCurve25519 wraps PrivateKeyToCurve25519 from Adam Langley's ed25519 repo.
func secretEd25519toCurve25519(priv ed25519.PrivateKey) (*privateCurve25519, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid ed25519 private key size")
	}

	var edPriv [ed25519.PrivateKeySize]byte

	copy(edPriv[:], priv)

	skOut := new([curveKeySize]byte)
	extra25519.PrivateKeyToCurve25519(skOut, &edPriv)

	return (*privateCurve25519)(skOut), nil
}

// makeNonce generates a nonce equivalent to libsodium's sealed box nonce.
func makeNonce(pub1, pub2 []byte) (*[24]byte, error) {
	var nonce [24]byte

	nonceWriter, err := blake2b.New(24, nil)
	if err != nil {
		return nil, err
	}

	_, err = nonceWriter.Write(pub1)
	if err != nil {
		return nil, err
	}

	_, err = nonceWriter.Write(pub2)
	if err != nil {
		return nil, err
	}

	copy(nonce[:], nonceWriter.Sum(nil))

	return &nonce, nil
}

// sodiumBoxSeal is equivalent to libsodium's crypto_box_seal().
func sodiumBoxSeal(msg []byte, recPub *publicCurve25519, randSource io.Reader) ([]byte, error) {
	epk, esk, err := box.GenerateKey(randSource)
	if err != nil {
		return nil, err
	}

	nonce, err := makeNonce(epk[:], recPub[:])
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(epk))
	copy(out, epk[:])

	return box.Seal(out, msg, nonce, (*[curveKeySize]byte)(recPub), esk), nil
}

// sodiumBoxSealOpen opens a box sealed by sodiumBoxSeal.
func sodiumBoxSealOpen(msg []byte, recPub *publicCurve25519, recPriv *privateCurve25519) ([]byte, error) {
	if len(msg) < curveKeySize {
		return nil, errors.New("message too short")
	}

	var epk [curveKeySize]byte

	copy(epk[:], msg[:curveKeySize])

	nonce, err := makeNonce(epk[:], recPub[:])
	if err != nil {
		return nil, err
	}

	out, ok := box.Open(nil, msg[curveKeySize:], nonce, &epk, (*[curveKeySize]byte)(recPriv))
	if !ok {
		return nil, errors.New("failed to unpack")
	}

	return out, nil
}
