package contact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opd-ai/courier/crypto"
)

// Card is the portable contact form exchanged between users out of band.
// It carries no queue id: each side derives that locally against its own
// identity.
type Card struct {
	Name      string `json:"name"`
	EncryptPK string `json:"encrypt_pk"`
	SignPK    string `json:"sign_pk"`
}

// ParseCard decodes and validates a contact card. All three fields are
// required and both keys must be well-formed 32-byte hex.
func ParseCard(cardJSON string) (Card, error) {
	var card Card
	if err := json.Unmarshal([]byte(cardJSON), &card); err != nil {
		return Card{}, fmt.Errorf("invalid contact JSON: %w", err)
	}

	if card.Name == "" {
		return Card{}, fmt.Errorf("missing 'name' field")
	}
	if card.EncryptPK == "" {
		return Card{}, fmt.Errorf("missing 'encrypt_pk' field")
	}
	if card.SignPK == "" {
		return Card{}, fmt.Errorf("missing 'sign_pk' field")
	}

	if _, err := crypto.FromHexKey(card.EncryptPK); err != nil {
		return Card{}, fmt.Errorf("invalid encrypt_pk: %w", err)
	}
	if _, err := crypto.FromHexKey(card.SignPK); err != nil {
		return Card{}, fmt.Errorf("invalid sign_pk: %w", err)
	}

	return card, nil
}

// ExportCard builds the local identity's contact card under the given
// display name, serialized as pretty JSON.
func ExportCard(name string, id *crypto.Identity) (string, error) {
	if id == nil {
		return "", fmt.Errorf("identity not loaded")
	}

	card := Card{
		Name:      name,
		EncryptPK: id.EncryptPKHex(),
		SignPK:    id.SignPKHex(),
	}

	data, err := json.MarshalIndent(card, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize contact card: %w", err)
	}
	return string(data), nil
}

// WriteCardFile writes an exported card to dir as contact-<name>.json,
// replacing spaces in the name. Returns the written path.
func WriteCardFile(dir, name, cardJSON string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	filename := fmt.Sprintf("contact-%s.json", strings.ReplaceAll(name, " ", "-"))
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(cardJSON), 0o644); err != nil {
		return "", fmt.Errorf("failed to write contact card: %w", err)
	}
	return path, nil
}
