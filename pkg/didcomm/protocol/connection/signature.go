/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperledger/aries-agent-go/pkg/wallet"
)

// ErrSignerMismatch is returned when a connection response is signed by a key
// other than the one the invitation was issued with.
var ErrSignerMismatch = errors.New("connection signer does not match invitation key")

// signConnection signs the timestamped connection block with verKey.
func signConnection(w wallet.Wallet, conn *Connection, verKey string) (*ConnectionSignature, error) {
	connBytes, err := json.Marshal(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal connection : %w", err)
	}

	timestampBuf := make([]byte, timestampLength)
	binary.BigEndian.PutUint64(timestampBuf, uint64(time.Now().Unix()))

	sigData := append(timestampBuf, connBytes...)

	signature, err := w.Sign(sigData, verKey)
	if err != nil {
		return nil, fmt.Errorf("signing data: %w", err)
	}

	return &ConnectionSignature{
		Type:       signatureType,
		SignedData: base64.URLEncoding.EncodeToString(sigData),
		SignVerKey: verKey,
		Signature:  base64.URLEncoding.EncodeToString(signature),
	}, nil
}

// verifyConnection checks the signature against its signer key and returns the signed connection block.
func verifyConnection(w wallet.Wallet, connSignature *ConnectionSignature) (*Connection, error) {
	if connSignature == nil {
		return nil, errors.New("missing connection signature")
	}

	sigData, err := decodeBase64URL(connSignature.SignedData)
	if err != nil {
		return nil, fmt.Errorf("decode signature data: %w", err)
	}

	// trimming the timestamp, only taking out connection attribute bytes
	if len(sigData) <= timestampLength {
		return nil, errors.New("missing connection attribute bytes")
	}

	signature, err := decodeBase64URL(connSignature.Signature)
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}

	ok, err := w.Verify(connSignature.SignVerKey, sigData, signature)
	if err != nil {
		return nil, fmt.Errorf("verify signature: %w", err)
	}

	if !ok {
		return nil, errors.New("verify signature: invalid signature")
	}

	conn := &Connection{}

	err = json.Unmarshal(sigData[timestampLength:], conn)
	if err != nil {
		return nil, fmt.Errorf("JSON unmarshalling of connection: %w", err)
	}

	return conn, nil
}

// decodeBase64URL accepts padded and unpadded base64url.
func decodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
