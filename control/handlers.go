package control

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/courier/contact"
	"github.com/opd-ai/courier/crypto"
	"github.com/opd-ai/courier/mailbox"
	"github.com/opd-ai/courier/poll"
	"github.com/opd-ai/courier/storage"
)

// sendTimeout bounds the background relay post of one outbound message.
const sendTimeout = 60 * time.Second

// handle dispatches one decoded command and returns the events to push back
// to the session. Failures become ErrorEvents; the session never drops
// because a command failed.
func (s *Server) handle(cmd Command) []Event {
	logrus.WithFields(logrus.Fields{
		"function": "handle",
		"command":  cmd.Name(),
	}).Debug("Handling command")

	switch c := cmd.(type) {
	case SendMessageCommand:
		return s.handleSendMessage(c)
	case LoadMessagesCommand:
		return s.handleLoadMessages(c)
	case LoadPeersCommand:
		return s.handleLoadPeers()
	case ImportContactCommand:
		return s.handleImportContact(c)
	case ExportContactCommand:
		return s.handleExportContact(c)
	case UpdateConfigCommand:
		return s.handleUpdateConfig(c)
	case ResetPollingIntervalCommand:
		if s.cfg.Engine != nil {
			s.cfg.Engine.Signal(poll.SignalReset)
		}
		return nil
	default:
		return []Event{NewError(fmt.Sprintf("unsupported command %q", cmd.Name()))}
	}
}

// handleSendMessage seals and persists an outbound message, acknowledges it
// immediately, and hands delivery to a background goroutine. The message is
// visible with status "sending" before any network traffic happens.
func (s *Server) handleSendMessage(c SendMessageCommand) []Event {
	if s.cfg.Identity == nil {
		return []Event{NewError("no identity loaded, cannot send")}
	}

	peerPK, err := crypto.FromHexKey(c.PeerEncryptPK)
	if err != nil {
		return []Event{NewError(fmt.Sprintf("invalid peer key: %v", err))}
	}

	now := time.Now().Unix()
	plaintext, err := poll.EncodePayload(poll.Payload{
		Type:      storage.MessageTypeText,
		Content:   c.Plaintext,
		Timestamp: now,
		SenderID:  s.cfg.Identity.EncryptPKHex(),
	})
	if err != nil {
		return []Event{NewError(fmt.Sprintf("failed to encode payload: %v", err))}
	}

	envelope, err := crypto.Seal(plaintext, peerPK, s.cfg.Identity)
	if err != nil {
		return []Event{NewError(fmt.Sprintf("failed to encrypt message: %v", err))}
	}

	msg := &storage.Message{
		ID:         uuid.NewString(),
		QueueID:    c.QueueID,
		Sender:     "You",
		Content:    c.Plaintext,
		Timestamp:  now,
		Type:       storage.MessageTypeText,
		Status:     storage.StatusSending,
		IsOutbound: true,
	}
	if err := s.cfg.Messages.Save(msg); err != nil {
		return []Event{NewError(fmt.Sprintf("failed to store message: %v", err))}
	}

	go s.completeSend(c.QueueID, msg.ID, base64.StdEncoding.EncodeToString(envelope))

	return []Event{NewMessageSent()}
}

// completeSend posts the sealed envelope to the relay and records the
// outcome on the stored message. No event is pushed; the front-end reloads
// history to observe the final status.
func (s *Server) completeSend(queueID, msgID, encoded string) {
	log := logrus.WithFields(logrus.Fields{
		"function":   "completeSend",
		"queue_id":   queueID,
		"message_id": msgID,
	})

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	status := storage.StatusSent
	if _, err := s.cfg.Transport.Post(ctx, queueID, encoded, mailbox.Meta{}); err != nil {
		log.WithField("error", err.Error()).Warn("Relay post failed")
		status = storage.StatusFailed
	}

	if err := s.cfg.Messages.UpdateStatus(queueID, msgID, status); err != nil {
		log.WithField("error", err.Error()).Error("Failed to record send outcome")
		return
	}
	log.WithField("status", status).Debug("Send completed")
}

func (s *Server) handleLoadMessages(c LoadMessagesCommand) []Event {
	msgs, err := s.cfg.Messages.Load(c.QueueID)
	if err != nil {
		return []Event{NewError(fmt.Sprintf("failed to load messages: %v", err))}
	}
	return []Event{NewMessages(c.QueueID, msgs)}
}

func (s *Server) handleLoadPeers() []Event {
	peers, err := s.cfg.Registry.List()
	if err != nil {
		return []Event{NewError(fmt.Sprintf("failed to load peers: %v", err))}
	}
	return []Event{NewPeers(peers)}
}

func (s *Server) handleImportContact(c ImportContactCommand) []Event {
	peer, err := s.cfg.Registry.Import(c.JSON)
	if err != nil {
		return []Event{NewError(fmt.Sprintf("failed to import contact: %v", err))}
	}
	return []Event{NewContactImported(peer)}
}

// handleExportContact builds the local contact card and, when an export
// directory is configured, also writes it to a file the user can share.
func (s *Server) handleExportContact(c ExportContactCommand) []Event {
	if s.cfg.Identity == nil {
		return []Event{NewError("no identity loaded, cannot export")}
	}

	cardJSON, err := contact.ExportCard(c.DisplayName, s.cfg.Identity)
	if err != nil {
		return []Event{NewError(fmt.Sprintf("failed to export contact: %v", err))}
	}

	if s.cfg.ExportDir != "" {
		path, err := contact.WriteCardFile(s.cfg.ExportDir, c.DisplayName, cardJSON)
		if err != nil {
			return []Event{NewError(fmt.Sprintf("failed to write contact card: %v", err))}
		}
		logrus.WithFields(logrus.Fields{
			"function": "handleExportContact",
			"path":     path,
		}).Info("Contact card written")
	}

	return []Event{NewContactExported(cardJSON)}
}

// handleUpdateConfig persists new settings. They take effect on the next
// agent start; zero-valued fields fall back to defaults on load.
func (s *Server) handleUpdateConfig(c UpdateConfigCommand) []Event {
	cfg := storage.Config{
		ServerURL:           c.ServerURL,
		PollingIntervalSecs: c.PollingIntervalSecs,
	}
	if err := storage.SaveConfig(s.cfg.DataDir, cfg); err != nil {
		return []Event{NewError(fmt.Sprintf("failed to save config: %v", err))}
	}
	return nil
}
