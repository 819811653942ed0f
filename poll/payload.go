package poll

import (
	"encoding/json"
	"fmt"
)

// Payload is the JSON document carried inside every envelope. SenderID is
// the sender's encryption public key in hex; Timestamp is unix seconds
// (legacy senders used milliseconds, normalized on decode).
type Payload struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	SenderID  string `json:"sender_id"`
}

// EncodePayload builds the plaintext bytes sealed into an envelope.
func EncodePayload(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}
	return data, nil
}

// DecodePayload parses and validates an opened envelope's plaintext.
// Content, timestamp, and sender_id are required; type defaults to "text".
func DecodePayload(plaintext []byte) (Payload, error) {
	var wire struct {
		Type      *string `json:"type"`
		Content   *string `json:"content"`
		Timestamp *int64  `json:"timestamp"`
		SenderID  *string `json:"sender_id"`
	}
	if err := json.Unmarshal(plaintext, &wire); err != nil {
		return Payload{}, fmt.Errorf("failed to parse payload JSON: %w", err)
	}

	if wire.Content == nil {
		return Payload{}, fmt.Errorf("missing content field")
	}
	if wire.Timestamp == nil {
		return Payload{}, fmt.Errorf("missing timestamp field")
	}
	if wire.SenderID == nil {
		return Payload{}, fmt.Errorf("missing sender_id field")
	}

	p := Payload{
		Type:      "text",
		Content:   *wire.Content,
		Timestamp: *wire.Timestamp,
		SenderID:  *wire.SenderID,
	}
	if wire.Type != nil && *wire.Type != "" {
		p.Type = *wire.Type
	}

	// Millisecond timestamps from legacy senders.
	if p.Timestamp > 9_999_999_999 {
		p.Timestamp /= 1000
	}

	return p, nil
}
