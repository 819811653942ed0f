package control

import (
	"encoding/json"
	"fmt"

	"github.com/opd-ai/courier/contact"
	"github.com/opd-ai/courier/storage"
)

// Wire discriminator values for Command variants.
const (
	TypeSendMessage          = "SendMessage"
	TypeLoadMessages         = "LoadMessages"
	TypeLoadPeers            = "LoadPeers"
	TypeImportContact        = "ImportContact"
	TypeExportContact        = "ExportContact"
	TypeUpdateConfig         = "UpdateConfig"
	TypeResetPollingInterval = "ResetPollingInterval"
)

// Wire discriminator values for Event variants.
const (
	TypeNewMessage      = "NewMessage"
	TypeMessages        = "Messages"
	TypePeers           = "Peers"
	TypeContactImported = "ContactImported"
	TypeContactExported = "ContactExported"
	TypeMessageSent     = "MessageSent"
	TypePollingInterval = "PollingInterval"
	TypeError           = "Error"
)

// Command is a request sent by the front-end to the agent. Each variant
// carries its own "type" field so a marshaled value is a complete wire line.
type Command interface {
	// Name returns the wire discriminator of the variant.
	Name() string
}

// SendMessageCommand asks the agent to encrypt, persist, and deliver a
// plaintext message to a peer's mailbox queue.
type SendMessageCommand struct {
	Type          string `json:"type"`
	QueueID       string `json:"queue_id"`
	Plaintext     string `json:"plaintext"`
	PeerEncryptPK string `json:"peer_encrypt_pk"`
}

// Name returns the wire discriminator of the variant.
func (SendMessageCommand) Name() string { return TypeSendMessage }

// NewSendMessage builds a SendMessageCommand with the type field set.
func NewSendMessage(queueID, plaintext, peerEncryptPK string) SendMessageCommand {
	return SendMessageCommand{
		Type:          TypeSendMessage,
		QueueID:       queueID,
		Plaintext:     plaintext,
		PeerEncryptPK: peerEncryptPK,
	}
}

// LoadMessagesCommand requests the stored conversation history for a queue.
type LoadMessagesCommand struct {
	Type    string `json:"type"`
	QueueID string `json:"queue_id"`
}

// Name returns the wire discriminator of the variant.
func (LoadMessagesCommand) Name() string { return TypeLoadMessages }

// NewLoadMessages builds a LoadMessagesCommand with the type field set.
func NewLoadMessages(queueID string) LoadMessagesCommand {
	return LoadMessagesCommand{Type: TypeLoadMessages, QueueID: queueID}
}

// LoadPeersCommand requests the current contact list.
type LoadPeersCommand struct {
	Type string `json:"type"`
}

// Name returns the wire discriminator of the variant.
func (LoadPeersCommand) Name() string { return TypeLoadPeers }

// NewLoadPeers builds a LoadPeersCommand with the type field set.
func NewLoadPeers() LoadPeersCommand {
	return LoadPeersCommand{Type: TypeLoadPeers}
}

// ImportContactCommand adds a peer from a contact card JSON document.
type ImportContactCommand struct {
	Type string `json:"type"`
	JSON string `json:"json"`
}

// Name returns the wire discriminator of the variant.
func (ImportContactCommand) Name() string { return TypeImportContact }

// NewImportContact builds an ImportContactCommand with the type field set.
func NewImportContact(cardJSON string) ImportContactCommand {
	return ImportContactCommand{Type: TypeImportContact, JSON: cardJSON}
}

// ExportContactCommand produces the local identity's contact card under the
// given display name and writes it to the export directory.
type ExportContactCommand struct {
	Type string `json:"type"`
	DisplayName string `json:"name"`
}

// Name returns the wire discriminator of the variant.
func (ExportContactCommand) Name() string { return TypeExportContact }

// NewExportContact builds an ExportContactCommand with the type field set.
func NewExportContact(name string) ExportContactCommand {
	return ExportContactCommand{Type: TypeExportContact, DisplayName: name}
}

// UpdateConfigCommand persists new agent settings. A polling interval of
// zero keeps the stored value.
type UpdateConfigCommand struct {
	Type                string `json:"type"`
	ServerURL           string `json:"server_url"`
	PollingIntervalSecs uint64 `json:"polling_interval_secs"`
}

// Name returns the wire discriminator of the variant.
func (UpdateConfigCommand) Name() string { return TypeUpdateConfig }

// NewUpdateConfig builds an UpdateConfigCommand with the type field set.
func NewUpdateConfig(serverURL string, pollingIntervalSecs uint64) UpdateConfigCommand {
	return UpdateConfigCommand{
		Type:                TypeUpdateConfig,
		ServerURL:           serverURL,
		PollingIntervalSecs: pollingIntervalSecs,
	}
}

// ResetPollingIntervalCommand snaps the adaptive polling interval back to
// its minimum, typically on user activity in the front-end.
type ResetPollingIntervalCommand struct {
	Type string `json:"type"`
}

// Name returns the wire discriminator of the variant.
func (ResetPollingIntervalCommand) Name() string { return TypeResetPollingInterval }

// NewResetPollingInterval builds a ResetPollingIntervalCommand with the type
// field set.
func NewResetPollingInterval() ResetPollingIntervalCommand {
	return ResetPollingIntervalCommand{Type: TypeResetPollingInterval}
}

// Event is a notification sent by the agent to the front-end. As with
// Command, each variant carries its own "type" field.
type Event interface {
	// Name returns the wire discriminator of the variant.
	Name() string
}

// NewMessageEvent announces an inbound message that was just decrypted and
// persisted.
type NewMessageEvent struct {
	Type    string          `json:"type"`
	Message storage.Message `json:"message"`
}

// Name returns the wire discriminator of the variant.
func (NewMessageEvent) Name() string { return TypeNewMessage }

// NewNewMessage builds a NewMessageEvent with the type field set.
func NewNewMessage(msg storage.Message) NewMessageEvent {
	return NewMessageEvent{Type: TypeNewMessage, Message: msg}
}

// MessagesEvent carries the stored history for one conversation, ordered by
// timestamp.
type MessagesEvent struct {
	Type     string            `json:"type"`
	QueueID  string            `json:"queue_id"`
	Messages []storage.Message `json:"messages"`
}

// Name returns the wire discriminator of the variant.
func (MessagesEvent) Name() string { return TypeMessages }

// NewMessages builds a MessagesEvent with the type field set.
func NewMessages(queueID string, msgs []storage.Message) MessagesEvent {
	return MessagesEvent{Type: TypeMessages, QueueID: queueID, Messages: msgs}
}

// PeersEvent carries the full contact list.
type PeersEvent struct {
	Type  string         `json:"type"`
	Peers []contact.Peer `json:"peers"`
}

// Name returns the wire discriminator of the variant.
func (PeersEvent) Name() string { return TypePeers }

// NewPeers builds a PeersEvent with the type field set.
func NewPeers(peers []contact.Peer) PeersEvent {
	return PeersEvent{Type: TypePeers, Peers: peers}
}

// ContactImportedEvent confirms a successful contact import and returns the
// stored peer, including its derived queue id.
type ContactImportedEvent struct {
	Type string       `json:"type"`
	Peer contact.Peer `json:"peer"`
}

// Name returns the wire discriminator of the variant.
func (ContactImportedEvent) Name() string { return TypeContactImported }

// NewContactImported builds a ContactImportedEvent with the type field set.
func NewContactImported(peer contact.Peer) ContactImportedEvent {
	return ContactImportedEvent{Type: TypeContactImported, Peer: peer}
}

// ContactExportedEvent returns the local identity's contact card JSON.
type ContactExportedEvent struct {
	Type string `json:"type"`
	JSON string `json:"json"`
}

// Name returns the wire discriminator of the variant.
func (ContactExportedEvent) Name() string { return TypeContactExported }

// NewContactExported builds a ContactExportedEvent with the type field set.
func NewContactExported(cardJSON string) ContactExportedEvent {
	return ContactExportedEvent{Type: TypeContactExported, JSON: cardJSON}
}

// MessageSentEvent acknowledges that an outbound message was accepted and
// persisted; relay delivery continues in the background.
type MessageSentEvent struct {
	Type string `json:"type"`
}

// Name returns the wire discriminator of the variant.
func (MessageSentEvent) Name() string { return TypeMessageSent }

// NewMessageSent builds a MessageSentEvent with the type field set.
func NewMessageSent() MessageSentEvent {
	return MessageSentEvent{Type: TypeMessageSent}
}

// PollingIntervalEvent mirrors the engine's current polling interval so the
// front-end can display it.
type PollingIntervalEvent struct {
	Type string `json:"type"`
	Secs uint64 `json:"secs"`
}

// Name returns the wire discriminator of the variant.
func (PollingIntervalEvent) Name() string { return TypePollingInterval }

// NewPollingInterval builds a PollingIntervalEvent with the type field set.
func NewPollingInterval(secs uint64) PollingIntervalEvent {
	return PollingIntervalEvent{Type: TypePollingInterval, Secs: secs}
}

// ErrorEvent reports a failed command. The session stays open.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Name returns the wire discriminator of the variant.
func (ErrorEvent) Name() string { return TypeError }

// NewError builds an ErrorEvent with the type field set.
func NewError(message string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Message: message}
}

// typeHeader is used to peek at the discriminator before decoding a variant.
type typeHeader struct {
	Type string `json:"type"`
}

// DecodeCommand parses one wire line into its Command variant.
func DecodeCommand(line []byte) (Command, error) {
	var head typeHeader
	if err := json.Unmarshal(line, &head); err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	switch head.Type {
	case TypeSendMessage:
		var cmd SendMessageCommand
		if err := json.Unmarshal(line, &cmd); err != nil {
			return nil, fmt.Errorf("failed to parse %s command: %w", head.Type, err)
		}
		return cmd, nil
	case TypeLoadMessages:
		var cmd LoadMessagesCommand
		if err := json.Unmarshal(line, &cmd); err != nil {
			return nil, fmt.Errorf("failed to parse %s command: %w", head.Type, err)
		}
		return cmd, nil
	case TypeLoadPeers:
		return NewLoadPeers(), nil
	case TypeImportContact:
		var cmd ImportContactCommand
		if err := json.Unmarshal(line, &cmd); err != nil {
			return nil, fmt.Errorf("failed to parse %s command: %w", head.Type, err)
		}
		return cmd, nil
	case TypeExportContact:
		var cmd ExportContactCommand
		if err := json.Unmarshal(line, &cmd); err != nil {
			return nil, fmt.Errorf("failed to parse %s command: %w", head.Type, err)
		}
		return cmd, nil
	case TypeUpdateConfig:
		var cmd UpdateConfigCommand
		if err := json.Unmarshal(line, &cmd); err != nil {
			return nil, fmt.Errorf("failed to parse %s command: %w", head.Type, err)
		}
		return cmd, nil
	case TypeResetPollingInterval:
		return NewResetPollingInterval(), nil
	default:
		return nil, fmt.Errorf("unknown command type %q", head.Type)
	}
}

// DecodeEvent parses one wire line into its Event variant.
func DecodeEvent(line []byte) (Event, error) {
	var head typeHeader
	if err := json.Unmarshal(line, &head); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}

	switch head.Type {
	case TypeNewMessage:
		var ev NewMessageEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s event: %w", head.Type, err)
		}
		return ev, nil
	case TypeMessages:
		var ev MessagesEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s event: %w", head.Type, err)
		}
		return ev, nil
	case TypePeers:
		var ev PeersEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s event: %w", head.Type, err)
		}
		return ev, nil
	case TypeContactImported:
		var ev ContactImportedEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s event: %w", head.Type, err)
		}
		return ev, nil
	case TypeContactExported:
		var ev ContactExportedEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s event: %w", head.Type, err)
		}
		return ev, nil
	case TypeMessageSent:
		return NewMessageSent(), nil
	case TypePollingInterval:
		var ev PollingIntervalEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s event: %w", head.Type, err)
		}
		return ev, nil
	case TypeError:
		var ev ErrorEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s event: %w", head.Type, err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", head.Type)
	}
}

// EncodeLine marshals a Command or Event variant into one wire line without
// the trailing newline.
func EncodeLine(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode line: %w", err)
	}
	return data, nil
}
