/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package ledger defines the distributed ledger capability the agent exposes
// to credential protocols. The agent core never calls the ledger itself apart
// from connecting to the configured pool on start.
package ledger

import (
	"context"
	"encoding/json"
)

// PoolConfig identifies the ledger pool to connect to.
type PoolConfig struct {
	Name        string
	GenesisPath string
}

// NymInfo is the public record of a DID on the ledger.
type NymInfo struct {
	DID    string `json:"did"`
	Verkey string `json:"verkey"`
	Role   string `json:"role,omitempty"`
}

// SchemaTemplate describes a credential schema to register.
type SchemaTemplate struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Attributes []string `json:"attributes"`
}

// Schema is a registered credential schema.
type Schema struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	AttrNames []string `json:"attrNames"`
	SeqNo     int      `json:"seqNo,omitempty"`
}

// CredentialDefinitionTemplate describes a credential definition to register.
type CredentialDefinitionTemplate struct {
	Schema            *Schema `json:"schema"`
	Tag               string  `json:"tag"`
	SignatureType     string  `json:"signatureType"`
	SupportRevocation bool    `json:"supportRevocation"`
}

// CredentialDefinition is a registered credential definition.
type CredentialDefinition struct {
	ID       string          `json:"id"`
	SchemaID string          `json:"schemaId"`
	Type     string          `json:"type"`
	Tag      string          `json:"tag"`
	Value    json.RawMessage `json:"value"`
}

// Ledger registers and reads schemas and credential definitions, signing
// writes with the agent's public DID.
type Ledger interface {
	// Connect opens the pool. Other calls fail until it succeeds.
	Connect(ctx context.Context, pool PoolConfig) error
	GetPublicDID(ctx context.Context, did string) (*NymInfo, error)
	RegisterSchema(ctx context.Context, did string, tmpl *SchemaTemplate) (*Schema, error)
	GetSchema(ctx context.Context, id string) (*Schema, error)
	RegisterCredentialDefinition(ctx context.Context, did string,
		tmpl *CredentialDefinitionTemplate) (*CredentialDefinition, error)
	GetCredentialDefinition(ctx context.Context, id string) (*CredentialDefinition, error)
	Close() error
}
