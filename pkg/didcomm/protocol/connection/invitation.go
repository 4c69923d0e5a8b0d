/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package connection

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

const invitationQueryParam = "c_i"

// ToURL encodes the invitation in the c_i query parameter of baseURL.
func (inv *Invitation) ToURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse invitation base url: %w", err)
	}

	raw, err := json.Marshal(inv)
	if err != nil {
		return "", fmt.Errorf("marshal invitation: %w", err)
	}

	q := u.Query()
	q.Set(invitationQueryParam, base64.RawURLEncoding.EncodeToString(raw))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// ParseInvitationURL decodes an invitation encoded by ToURL.
func ParseInvitationURL(invitationURL string) (*Invitation, error) {
	u, err := url.Parse(invitationURL)
	if err != nil {
		return nil, fmt.Errorf("parse invitation url: %w", err)
	}

	encoded := u.Query().Get(invitationQueryParam)
	if encoded == "" {
		return nil, errors.New("invitation url has no c_i parameter")
	}

	raw, err := decodeBase64URL(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode invitation: %w", err)
	}

	inv := &Invitation{}

	err = json.Unmarshal(raw, inv)
	if err != nil {
		return nil, fmt.Errorf("unmarshal invitation: %w", err)
	}

	if inv.Type != InvitationMsgType {
		return nil, fmt.Errorf("unexpected invitation type %q", inv.Type)
	}

	return inv, nil
}
