package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/courier/crypto"
)

// identityDoc is the on-disk form of the identity keypair, all keys hex.
type identityDoc struct {
	EncryptPK string `json:"encrypt_pk"`
	EncryptSK string `json:"encrypt_sk"`
	SignPK    string `json:"sign_pk"`
	SignSK    string `json:"sign_sk"`
}

// SaveIdentity writes the identity keypair document to keys/keypair.json.
func SaveIdentity(dir string, id *crypto.Identity) error {
	doc := identityDoc{
		EncryptPK: crypto.ToHex(id.EncryptPK[:]),
		EncryptSK: crypto.ToHex(id.EncryptSK[:]),
		SignPK:    crypto.ToHex(id.SignPK[:]),
		SignSK:    crypto.ToHex(id.SignSK[:]),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize keypair: %w", err)
	}

	if err := os.WriteFile(identityPath(dir), data, 0o600); err != nil {
		return fmt.Errorf("failed to write keypair: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "SaveIdentity",
		"sign_pk":  doc.SignPK[:16],
	}).Info("Identity saved")

	return nil
}

// HasIdentity reports whether a keypair document exists on disk.
func HasIdentity(dir string) bool {
	_, err := os.Stat(identityPath(dir))
	return err == nil
}

// LoadIdentity reads the identity keypair document from keys/keypair.json.
func LoadIdentity(dir string) (*crypto.Identity, error) {
	data, err := os.ReadFile(identityPath(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair: %w", err)
	}

	var doc identityDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse keypair: %w", err)
	}

	keys := make([][]byte, 4)
	for i, hexKey := range []string{doc.EncryptPK, doc.EncryptSK, doc.SignPK, doc.SignSK} {
		keys[i], err = crypto.FromHex(hexKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decode keypair field: %w", err)
		}
	}

	return crypto.IdentityFromKeys(keys[0], keys[1], keys[2], keys[3])
}
