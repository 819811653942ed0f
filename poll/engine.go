package poll

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/courier/contact"
	"github.com/opd-ai/courier/crypto"
	"github.com/opd-ai/courier/mailbox"
	"github.com/opd-ai/courier/storage"
)

// Signal interrupts the engine's sleep and adjusts its mode.
type Signal int

const (
	// SignalAttach switches to idle-interactive mode: interval reset,
	// unread counter cleared.
	SignalAttach Signal = iota
	// SignalDetach switches back to background mode.
	SignalDetach
	// SignalReset pins the adaptive interval to its minimum without
	// changing mode; sent whenever the user performs an action.
	SignalReset
)

// SessionHook is the engine's view of the control channel: an optional
// attached session that receives pushed events. Implementations must be
// safe to call with no session attached.
type SessionHook interface {
	Attached() bool
	PushNewMessage(msg storage.Message)
	PushPollingInterval(secs uint64)
}

// Transport is the relay surface the engine consumes. *mailbox.Client
// implements it.
type Transport interface {
	Fetch(ctx context.Context, queueID string) ([]mailbox.ServerMessage, error)
	Delete(ctx context.Context, queueID, messageID string) error
}

// MessageSink persists delivered messages. *storage.MessageStore implements
// it; Save must be an upsert by message id so reprocessing is idempotent.
type MessageSink interface {
	Save(msg *storage.Message) error
}

// NotifyFunc surfaces a background-mode notification: newCount messages
// arrived this cycle, totalUnread accumulated since the last attach.
type NotifyFunc func(newCount, totalUnread int)

// Config assembles an Engine.
type Config struct {
	Identity  *crypto.Identity
	Registry  *contact.Registry
	Transport Transport
	Sink      MessageSink
	Session   SessionHook
	Notify    NotifyFunc

	// Zero values fall back to the package defaults.
	MinInterval        time.Duration
	MaxInterval        time.Duration
	BackgroundInterval time.Duration
}

// Engine is the delivery loop. It owns the adaptive interval and the unread
// counter; the attached-session slot itself lives behind the SessionHook.
type Engine struct {
	identity   *crypto.Identity
	registry   *contact.Registry
	transport  Transport
	sink       MessageSink
	session    SessionHook
	notify     NotifyFunc
	interval   *AdaptiveInterval
	background time.Duration

	signals chan Signal
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.Mutex
	attached bool
	unread   int
	running  bool
}

// NewEngine validates the configuration and builds an engine. Delivery
// cannot proceed without an identity; construction fails so the caller can
// keep the control channel up and report the condition.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Identity == nil {
		return nil, errors.New("identity not loaded: delivery disabled")
	}
	if cfg.Registry == nil || cfg.Transport == nil || cfg.Sink == nil || cfg.Session == nil {
		return nil, errors.New("registry, transport, sink, and session are required")
	}

	if cfg.MinInterval == 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}
	if cfg.BackgroundInterval == 0 {
		cfg.BackgroundInterval = DefaultBackgroundInterval
	}

	e := &Engine{
		identity:   cfg.Identity,
		registry:   cfg.Registry,
		transport:  cfg.Transport,
		sink:       cfg.Sink,
		session:    cfg.Session,
		notify:     cfg.Notify,
		interval:   NewAdaptiveInterval(cfg.MinInterval, cfg.MaxInterval),
		background: cfg.BackgroundInterval,
		signals:    make(chan Signal, 16),
		done:       make(chan struct{}),
	}

	// Seed the mirrored interval value so a session attaching before the
	// first cycle sees the real starting cadence.
	e.session.PushPollingInterval(e.interval.CurrentSecs())

	return e, nil
}

// Start launches the poll loop.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go e.loop(ctx)

	logrus.WithFields(logrus.Fields{
		"function":   "Start",
		"background": e.background,
	}).Info("Delivery engine started")
}

// Stop terminates the poll loop and waits for it to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	e.cancel()
	<-e.done
}

// Signal delivers a mode or reset signal without blocking. Signals arriving
// faster than the loop consumes them coalesce; dropping is safe because
// each signal is idempotent.
func (e *Engine) Signal(s Signal) {
	select {
	case e.signals <- s:
	default:
		logrus.WithFields(logrus.Fields{
			"function": "Signal",
			"signal":   s,
		}).Warn("Signal queue full, dropping")
	}
}

// IntervalSecs returns the adaptive interval's current value in seconds.
func (e *Engine) IntervalSecs() uint64 {
	return e.interval.CurrentSecs()
}

// Unread returns the background-mode unread counter.
func (e *Engine) Unread() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unread
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.done)

	for {
		e.drainSignals()

		newCount := e.runCycle(ctx)
		sleep := e.afterCycle(newCount)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case s := <-e.signals:
			// A signal during the sleep cancels it and restarts the
			// loop immediately.
			timer.Stop()
			e.apply(s)
		case <-timer.C:
		}
	}
}

// drainSignals consumes any signals queued while a cycle was running.
func (e *Engine) drainSignals() {
	for {
		select {
		case s := <-e.signals:
			e.apply(s)
		default:
			return
		}
	}
}

func (e *Engine) apply(s Signal) {
	switch s {
	case SignalAttach:
		e.mu.Lock()
		e.attached = true
		e.unread = 0
		e.mu.Unlock()
		e.interval.Reset()
		e.session.PushPollingInterval(e.interval.CurrentSecs())
		if e.notify != nil {
			e.notify(0, 0)
		}
		logrus.WithField("function", "apply").Info("Session attached, fast polling")

	case SignalDetach:
		e.mu.Lock()
		e.attached = false
		e.mu.Unlock()
		logrus.WithField("function", "apply").Info("Session detached, background polling")

	case SignalReset:
		e.interval.Reset()
		e.mu.Lock()
		attached := e.attached
		e.mu.Unlock()
		if attached {
			e.session.PushPollingInterval(e.interval.CurrentSecs())
		}
	}
}

// afterCycle advances the adaptive interval or the unread counter depending
// on mode and returns the next sleep duration.
func (e *Engine) afterCycle(newCount int) time.Duration {
	e.mu.Lock()
	attached := e.attached
	e.mu.Unlock()

	if attached {
		if newCount > 0 {
			e.interval.Reset()
		} else {
			e.interval.Increase()
		}
		e.session.PushPollingInterval(e.interval.CurrentSecs())
		return e.interval.Current()
	}

	if newCount > 0 {
		e.mu.Lock()
		e.unread += newCount
		unread := e.unread
		e.mu.Unlock()
		if e.notify != nil {
			e.notify(newCount, unread)
		}
	}
	return e.background
}

// runCycle polls every known conversation once and returns the number of
// messages delivered. Per-queue transport failures are logged and skipped;
// they are retried on the next cycle, never mid-cycle.
func (e *Engine) runCycle(ctx context.Context) int {
	peers, err := e.registry.List()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "runCycle",
			"error":    err.Error(),
		}).Error("Failed to load peers, skipping cycle")
		return 0
	}

	total := 0
	for _, peer := range peers {
		blobs, err := e.transport.Fetch(ctx, peer.QueueID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "runCycle",
				"queue_id": peer.QueueID,
				"error":    err.Error(),
			}).Warn("Fetch failed, retrying next cycle")
			continue
		}

		for _, blob := range blobs {
			if e.processBlob(ctx, peer.QueueID, blob) {
				total++
			}
		}
	}
	return total
}

// processBlob applies the per-blob disposition policy and reports whether a
// message was delivered. Failures are independent: one bad blob never
// aborts the batch.
func (e *Engine) processBlob(ctx context.Context, queueID string, blob mailbox.ServerMessage) bool {
	log := logrus.WithFields(logrus.Fields{
		"function": "processBlob",
		"queue_id": queueID,
		"blob_id":  blob.ID,
	})

	raw, err := base64.StdEncoding.DecodeString(blob.Data)
	if err != nil {
		log.WithField("error", err.Error()).Warn("Blob is not valid base64, leaving on relay")
		return false
	}

	plaintext, err := crypto.Open(raw, e.identity)
	switch {
	case errors.Is(err, crypto.ErrOwnMessage):
		// Our own ciphertext in the shared queue. The counterpart still
		// needs to fetch it: skip silently, never delete.
		return false

	case errors.Is(err, crypto.ErrSignatureInvalid), errors.Is(err, crypto.ErrDecryptionFailed):
		// Corrupt or foreign blob. Deleted so the queue does not grow
		// without bound; see DESIGN.md for the policy choice.
		log.WithField("error", err.Error()).Warn("Undecryptable blob, deleting from relay")
		e.deleteBlob(ctx, queueID, blob.ID)
		return false

	case err != nil:
		log.WithField("error", err.Error()).Warn("Failed to open envelope, leaving on relay")
		return false
	}

	payload, err := DecodePayload(plaintext)
	if err != nil {
		log.WithField("error", err.Error()).Warn("Malformed payload, leaving on relay")
		return false
	}

	msg := storage.Message{
		ID:        blob.ID,
		QueueID:   queueID,
		Sender:    payload.SenderID,
		Content:   payload.Content,
		Timestamp: payload.Timestamp,
		Type:      payload.Type,
		Status:    storage.StatusDelivered,
	}

	if err := e.sink.Save(&msg); err != nil {
		// Persistence failure blocks deletion so the blob can be retried
		// on a later cycle.
		log.WithField("error", err.Error()).Error("Failed to persist message, keeping blob for retry")
		return false
	}

	e.session.PushNewMessage(msg)
	e.deleteBlob(ctx, queueID, blob.ID)

	log.Debug("Message delivered")
	return true
}

// deleteBlob removes a consumed blob, logging failures. A failed delete is
// not retried this cycle: the blob is simply re-fetched next time and the
// upsert-by-id store makes reprocessing harmless.
func (e *Engine) deleteBlob(ctx context.Context, queueID, blobID string) {
	if err := e.transport.Delete(ctx, queueID, blobID); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "deleteBlob",
			"queue_id": queueID,
			"blob_id":  blobID,
			"error":    err.Error(),
		}).Warn("Failed to delete blob from relay")
	}
}

// String renders a Signal for logging.
func (s Signal) String() string {
	switch s {
	case SignalAttach:
		return "attach"
	case SignalDetach:
		return "detach"
	case SignalReset:
		return "reset"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}
