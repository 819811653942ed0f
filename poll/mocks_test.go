package poll

import (
	"context"
	"errors"
	"sync"

	"github.com/opd-ai/courier/mailbox"
	"github.com/opd-ai/courier/storage"
)

// fakeTransport is an in-memory relay for engine tests.
type fakeTransport struct {
	mu         sync.Mutex
	queues     map[string][]mailbox.ServerMessage
	deleted    []string
	failFetch  bool
	failDelete bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{queues: make(map[string][]mailbox.ServerMessage)}
}

func (ft *fakeTransport) add(queueID string, msg mailbox.ServerMessage) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.queues[queueID] = append(ft.queues[queueID], msg)
}

func (ft *fakeTransport) Fetch(_ context.Context, queueID string) ([]mailbox.ServerMessage, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.failFetch {
		return nil, &mailbox.TransportError{Op: "fetch", Reason: "relay down"}
	}
	out := make([]mailbox.ServerMessage, len(ft.queues[queueID]))
	copy(out, ft.queues[queueID])
	return out, nil
}

func (ft *fakeTransport) Delete(_ context.Context, queueID, messageID string) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.failDelete {
		return &mailbox.TransportError{Op: "delete", Reason: "relay down"}
	}
	blobs := ft.queues[queueID]
	for i, b := range blobs {
		if b.ID == messageID {
			ft.queues[queueID] = append(blobs[:i], blobs[i+1:]...)
			ft.deleted = append(ft.deleted, messageID)
			return nil
		}
	}
	return &mailbox.TransportError{Op: "delete", Reason: "not found"}
}

func (ft *fakeTransport) deletedIDs() []string {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	out := make([]string, len(ft.deleted))
	copy(out, ft.deleted)
	return out
}

func (ft *fakeTransport) remaining(queueID string) int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.queues[queueID])
}

// fakeSink stores messages in a map keyed by id, mirroring the real store's
// upsert semantics. failNext makes the next Save fail once.
type fakeSink struct {
	mu       sync.Mutex
	saved    map[string]storage.Message
	failNext bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{saved: make(map[string]storage.Message)}
}

func (fs *fakeSink) Save(msg *storage.Message) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.failNext {
		fs.failNext = false
		return errors.New("disk full")
	}
	fs.saved[msg.ID] = *msg
	return nil
}

func (fs *fakeSink) count() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.saved)
}

// fakeSession records hook calls.
type fakeSession struct {
	mu        sync.Mutex
	attached  bool
	messages  []storage.Message
	intervals []uint64
}

func (s *fakeSession) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

func (s *fakeSession) PushNewMessage(msg storage.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *fakeSession) PushPollingInterval(secs uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intervals = append(s.intervals, secs)
}

func (s *fakeSession) lastInterval() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.intervals) == 0 {
		return 0
	}
	return s.intervals[len(s.intervals)-1]
}

func (s *fakeSession) pushedMessages() []storage.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.Message, len(s.messages))
	copy(out, s.messages)
	return out
}
