package control

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/courier/contact"
	"github.com/opd-ai/courier/crypto"
	"github.com/opd-ai/courier/mailbox"
	"github.com/opd-ai/courier/poll"
	"github.com/opd-ai/courier/storage"
)

type recordedPost struct {
	QueueID string
	Data    string
}

// fakePost captures relay posts from the outbound send path.
type fakePost struct {
	mu    sync.Mutex
	posts []recordedPost
	fail  bool
}

func (f *fakePost) Post(ctx context.Context, queueID, data string, meta mailbox.Meta) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		return "", errors.New("relay unreachable")
	}
	f.posts = append(f.posts, recordedPost{QueueID: queueID, Data: data})
	return "srv-1", nil
}

func (f *fakePost) recorded() []recordedPost {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedPost(nil), f.posts...)
}

// fakeSignaler records mode-change signals from the server.
type fakeSignaler struct {
	mu      sync.Mutex
	signals []poll.Signal
}

func (f *fakeSignaler) Signal(sig poll.Signal) {
	f.mu.Lock()
	f.signals = append(f.signals, sig)
	f.mu.Unlock()
}

func (f *fakeSignaler) recorded() []poll.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]poll.Signal(nil), f.signals...)
}

type serverFixture struct {
	server   *Server
	socket   string
	dataDir  string
	identity *crypto.Identity
	peer     *crypto.Identity
	queueID  string
	store    *storage.MessageStore
	hub      *Hub
	post     *fakePost
	signaler *fakeSignaler
}

func newServerFixture(t *testing.T, withIdentity bool) *serverFixture {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, storage.EnsureDirs(dir))

	id, err := crypto.GenerateIdentity()
	require.NoError(t, err)
	peer, err := crypto.GenerateIdentity()
	require.NoError(t, err)

	store, err := storage.OpenMessageStore(storage.MessageDBPath(dir))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := contact.NewRegistry(storage.NewPeerFile(dir), id.EncryptPKHex())

	f := &serverFixture{
		socket:   storage.SocketPath(dir),
		dataDir:  dir,
		identity: id,
		peer:     peer,
		queueID:  crypto.ConversationID(id.EncryptPKHex(), peer.EncryptPKHex()),
		store:    store,
		hub:      NewHub(),
		post:     &fakePost{},
		signaler: &fakeSignaler{},
	}

	cfg := ServerConfig{
		SocketPath: f.socket,
		DataDir:    dir,
		ExportDir:  filepath.Join(dir, "exports"),
		Registry:   registry,
		Messages:   store,
		Hub:        f.hub,
		Engine:     f.signaler,
		Transport:  f.post,
	}
	if withIdentity {
		cfg.Identity = id
	}

	f.server = NewServer(cfg)
	require.NoError(t, f.server.Start())
	t.Cleanup(f.server.Stop)

	return f
}

func (f *serverFixture) dial(t *testing.T) *Client {
	t.Helper()

	client, err := Dial(f.socket)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

// awaitEvent reads the client stream until an event with the given
// discriminator arrives, failing the test on timeout or channel close.
func awaitEvent(t *testing.T, c *Client, name string) Event {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				t.Fatalf("event stream closed while waiting for %s", name)
			}
			if ev.Name() == name {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", name)
		}
	}
}

func TestSessionStartsWithPollingInterval(t *testing.T) {
	f := newServerFixture(t, true)
	f.hub.PushPollingInterval(25)

	client := f.dial(t)

	ev := awaitEvent(t, client, TypePollingInterval)
	assert.Equal(t, uint64(25), ev.(PollingIntervalEvent).Secs)

	require.Eventually(t, func() bool {
		sigs := f.signaler.recorded()
		return len(sigs) == 1 && sigs[0] == poll.SignalAttach
	}, 2*time.Second, 10*time.Millisecond)
}

func TestImportContactAndLoadPeers(t *testing.T) {
	f := newServerFixture(t, true)
	client := f.dial(t)

	card, err := contact.ExportCard("Bob", f.peer)
	require.NoError(t, err)

	require.NoError(t, client.Send(NewImportContact(card)))
	ev := awaitEvent(t, client, TypeContactImported)

	imported := ev.(ContactImportedEvent).Peer
	assert.Equal(t, "Bob", imported.Name)
	assert.Equal(t, f.queueID, imported.QueueID)

	require.NoError(t, client.Send(NewLoadPeers()))
	peers := awaitEvent(t, client, TypePeers).(PeersEvent).Peers
	require.Len(t, peers, 1)
	assert.Equal(t, "Bob", peers[0].Name)
}

func TestSendMessageDeliversEnvelope(t *testing.T) {
	f := newServerFixture(t, true)
	client := f.dial(t)

	cmd := NewSendMessage(f.queueID, "hello bob", f.peer.EncryptPKHex())
	require.NoError(t, client.Send(cmd))
	awaitEvent(t, client, TypeMessageSent)

	// The message is persisted before the relay post completes.
	msgs, err := f.store.Load(f.queueID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello bob", msgs[0].Content)
	assert.Equal(t, "You", msgs[0].Sender)
	assert.True(t, msgs[0].IsOutbound)

	require.Eventually(t, func() bool {
		msgs, err := f.store.Load(f.queueID)
		return err == nil && len(msgs) == 1 && msgs[0].Status == storage.StatusSent
	}, 3*time.Second, 20*time.Millisecond)

	posts := f.post.recorded()
	require.Len(t, posts, 1)
	assert.Equal(t, f.queueID, posts[0].QueueID)

	// The posted blob must be a real envelope the recipient can open.
	envelope, err := base64.StdEncoding.DecodeString(posts[0].Data)
	require.NoError(t, err)
	plaintext, err := crypto.Open(envelope, f.peer)
	require.NoError(t, err)

	payload, err := poll.DecodePayload(plaintext)
	require.NoError(t, err)
	assert.Equal(t, "hello bob", payload.Content)
	assert.Equal(t, f.identity.EncryptPKHex(), payload.SenderID)
}

func TestSendMessageRelayFailureMarksFailed(t *testing.T) {
	f := newServerFixture(t, true)
	f.post.fail = true
	client := f.dial(t)

	require.NoError(t, client.Send(NewSendMessage(f.queueID, "doomed", f.peer.EncryptPKHex())))
	awaitEvent(t, client, TypeMessageSent)

	require.Eventually(t, func() bool {
		msgs, err := f.store.Load(f.queueID)
		return err == nil && len(msgs) == 1 && msgs[0].Status == storage.StatusFailed
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSendMessageRejectsBadPeerKey(t *testing.T) {
	f := newServerFixture(t, true)
	client := f.dial(t)

	require.NoError(t, client.Send(NewSendMessage(f.queueID, "hi", "not-a-key")))
	ev := awaitEvent(t, client, TypeError)
	assert.Contains(t, ev.(ErrorEvent).Message, "invalid peer key")
}

func TestSendMessageWithoutIdentity(t *testing.T) {
	f := newServerFixture(t, false)
	client := f.dial(t)

	require.NoError(t, client.Send(NewSendMessage(f.queueID, "hi", f.peer.EncryptPKHex())))
	ev := awaitEvent(t, client, TypeError)
	assert.Contains(t, ev.(ErrorEvent).Message, "no identity")
}

func TestMalformedLineDoesNotKillSession(t *testing.T) {
	f := newServerFixture(t, true)

	conn, err := net.Dial("unix", f.socket)
	require.NoError(t, err)
	client := newClient(conn)
	t.Cleanup(func() { client.Close() })

	_, err = conn.Write([]byte("this is not json\n"))
	require.NoError(t, err)

	require.NoError(t, client.Send(NewLoadPeers()))
	awaitEvent(t, client, TypePeers)
}

func TestLastConnectionWins(t *testing.T) {
	f := newServerFixture(t, true)

	first := f.dial(t)
	awaitEvent(t, first, TypePollingInterval)

	second := f.dial(t)
	awaitEvent(t, second, TypePollingInterval)

	// The replaced session's stream closes without detaching the engine.
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-first.Events():
			return !ok
		default:
			return false
		}
	}, 3*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(f.signaler.recorded()) >= 2
	}, 2*time.Second, 10*time.Millisecond)
	for _, sig := range f.signaler.recorded() {
		assert.Equal(t, poll.SignalAttach, sig)
	}

	// Only the live session receives pushes.
	f.hub.PushNewMessage(storage.Message{ID: "m1", QueueID: f.queueID})
	ev := awaitEvent(t, second, TypeNewMessage)
	assert.Equal(t, "m1", ev.(NewMessageEvent).Message.ID)

	// Closing the live session is a real detach.
	second.Close()
	require.Eventually(t, func() bool {
		sigs := f.signaler.recorded()
		return len(sigs) >= 3 && sigs[len(sigs)-1] == poll.SignalDetach
	}, 3*time.Second, 20*time.Millisecond)
}

func TestUpdateConfigPersists(t *testing.T) {
	f := newServerFixture(t, true)
	client := f.dial(t)

	require.NoError(t, client.Send(NewUpdateConfig("https://relay.example", 30)))

	require.Eventually(t, func() bool {
		cfg, err := storage.LoadConfig(f.dataDir)
		return err == nil && cfg.ServerURL == "https://relay.example" && cfg.PollingIntervalSecs == 30
	}, 3*time.Second, 20*time.Millisecond)
}

func TestResetPollingIntervalSignalsEngine(t *testing.T) {
	f := newServerFixture(t, true)
	client := f.dial(t)

	require.NoError(t, client.Send(NewResetPollingInterval()))

	require.Eventually(t, func() bool {
		for _, sig := range f.signaler.recorded() {
			if sig == poll.SignalReset {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)
}

func TestExportContactReturnsCard(t *testing.T) {
	f := newServerFixture(t, true)
	client := f.dial(t)

	require.NoError(t, client.Send(NewExportContact("Alice")))
	ev := awaitEvent(t, client, TypeContactExported)

	card, err := contact.ParseCard(ev.(ContactExportedEvent).JSON)
	require.NoError(t, err)
	assert.Equal(t, "Alice", card.Name)
	assert.Equal(t, f.identity.EncryptPKHex(), card.EncryptPK)
}
