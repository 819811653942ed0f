// Package storage implements the local persistence collaborators of the
// Courier agent: whole-document JSON stores for the identity keypair, the
// configuration, and the peer list, and a bbolt-backed message store keyed
// by conversation with upsert-by-id semantics.
//
// Upsert-by-id is what makes delivery idempotent: re-processing a relay blob
// whose delete failed overwrites the same record instead of duplicating it.
package storage
