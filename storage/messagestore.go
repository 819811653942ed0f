package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

// MessageStore persists messages in a bbolt database with one bucket per
// conversation queue id. Save is an upsert keyed by message id, which makes
// re-processing a fetched blob after a failed relay delete idempotent.
type MessageStore struct {
	db *bolt.DB
}

// OpenMessageStore opens (creating if needed) the message database at path.
func OpenMessageStore(path string) (*MessageStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open message store: %w", err)
	}
	return &MessageStore{db: db}, nil
}

// Close releases the underlying database.
func (s *MessageStore) Close() error {
	return s.db.Close()
}

// Save upserts a message into its conversation bucket, keyed by message id.
func (s *MessageStore) Save(msg *Message) error {
	if msg.ID == "" || msg.QueueID == "" {
		return fmt.Errorf("message id and queue id are required")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(msg.QueueID))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(msg.ID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Save",
		"id":       msg.ID,
		"queue_id": msg.QueueID,
		"status":   msg.Status,
	}).Debug("Message persisted")

	return nil
}

// UpdateStatus advances the status of an existing message. A missing
// message is an error: statuses are only ever updated by the path that
// created the record.
func (s *MessageStore) UpdateStatus(queueID, id, status string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(queueID))
		if bucket == nil {
			return fmt.Errorf("no messages for queue %s", queueID)
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("message %s not found", id)
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("failed to parse stored message: %w", err)
		}

		msg.Status = status
		updated, err := json.Marshal(&msg)
		if err != nil {
			return fmt.Errorf("failed to serialize message: %w", err)
		}
		return bucket.Put([]byte(id), updated)
	})
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}
	return nil
}

// Load returns all messages of a conversation ordered by timestamp. The
// sort is stable so messages sharing a timestamp keep their bucket order.
func (s *MessageStore) Load(queueID string) ([]Message, error) {
	var messages []Message

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(queueID))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, v []byte) error {
			var msg Message
			if err := json.Unmarshal(v, &msg); err != nil {
				return fmt.Errorf("failed to parse stored message: %w", err)
			}
			messages = append(messages, msg)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp < messages[j].Timestamp
	})
	return messages, nil
}

// Count returns the number of stored messages for a conversation.
func (s *MessageStore) Count(queueID string) (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(queueID))
		if bucket == nil {
			return nil
		}
		count = bucket.Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}
