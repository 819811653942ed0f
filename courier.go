// Package courier is an end-to-end encrypted messenger core built around a
// dumb HTTP mailbox relay. The relay stores opaque blobs; all
// confidentiality, authenticity, and conversation routing live on the
// endpoints.
//
// The package wires three layers into one Agent: the crypto envelope
// (X25519, XChaCha20-Poly1305, Ed25519), the adaptive-polling delivery
// engine, and the unix-socket control channel a front-end attaches to.
package courier

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/courier/contact"
	"github.com/opd-ai/courier/control"
	"github.com/opd-ai/courier/crypto"
	"github.com/opd-ai/courier/mailbox"
	"github.com/opd-ai/courier/poll"
	"github.com/opd-ai/courier/storage"
)

// Options configures a new Agent. The zero value of each field falls back
// to the persisted configuration or the package defaults.
type Options struct {
	// DataDir overrides the resolved data directory.
	DataDir string
	// ServerURL overrides the stored relay URL for this run only.
	ServerURL string
	// ExportDir receives exported contact card files. Empty resolves to
	// <DataDir>/exports.
	ExportDir string
	// SocketPath overrides the control socket location. Empty resolves to
	// <DataDir>/courier.sock.
	SocketPath string
	// Notify is invoked from background polling when new messages arrive
	// with no session attached.
	Notify poll.NotifyFunc

	// Polling cadence overrides. Zero values keep the engine defaults.
	MinPollInterval        time.Duration
	MaxPollInterval        time.Duration
	BackgroundPollInterval time.Duration
}

// NewOptions creates a new default Options.
func NewOptions() *Options {
	return &Options{}
}

// Agent is one running messenger endpoint: identity, contact registry,
// message store, delivery engine, and control server, sharing a single data
// directory. At most one Agent may own a data directory at a time.
type Agent struct {
	dataDir    string
	socketPath string

	config   storage.Config
	identity *crypto.Identity
	registry *contact.Registry
	messages *storage.MessageStore
	relay    *mailbox.Client
	hub      *control.Hub
	engine   *poll.Engine
	server   *control.Server

	started bool
	closed  bool
}

// New claims the data directory and assembles an Agent from its persisted
// state. A missing identity is not an error: delivery stays disabled and the
// control channel still serves queries, which lets a front-end drive key
// generation. Call Stop to release the directory even if Start was never
// called.
func New(options *Options) (*Agent, error) {
	if options == nil {
		options = NewOptions()
	}

	dataDir := options.DataDir
	if dataDir == "" {
		var err error
		dataDir, err = storage.DataDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve data directory: %w", err)
		}
	}
	if err := storage.EnsureDirs(dataDir); err != nil {
		return nil, err
	}

	// The pid file must be held before the message store is opened: bbolt
	// takes an exclusive file lock, and a second agent should fail with a
	// clear error instead of blocking on it.
	if err := storage.AcquirePidFile(dataDir); err != nil {
		return nil, err
	}

	cfg, err := storage.LoadConfig(dataDir)
	if err != nil {
		storage.ReleasePidFile(dataDir)
		return nil, err
	}
	if options.ServerURL != "" {
		cfg.ServerURL = options.ServerURL
	}

	a := &Agent{
		dataDir: dataDir,
		config:  cfg,
		relay:   mailbox.NewClient(cfg.ServerURL),
		hub:     control.NewHub(),
	}

	if storage.HasIdentity(dataDir) {
		a.identity, err = storage.LoadIdentity(dataDir)
		if err != nil {
			storage.ReleasePidFile(dataDir)
			return nil, err
		}
	} else {
		logrus.WithFields(logrus.Fields{
			"function": "New",
			"data_dir": dataDir,
		}).Warn("No identity on disk, delivery disabled")
	}

	selfPK := ""
	if a.identity != nil {
		selfPK = a.identity.EncryptPKHex()
	}
	a.registry = contact.NewRegistry(storage.NewPeerFile(dataDir), selfPK)

	a.messages, err = storage.OpenMessageStore(storage.MessageDBPath(dataDir))
	if err != nil {
		storage.ReleasePidFile(dataDir)
		return nil, err
	}

	if a.identity != nil {
		a.engine, err = poll.NewEngine(poll.Config{
			Identity:           a.identity,
			Registry:           a.registry,
			Transport:          a.relay,
			Sink:               a.messages,
			Session:            a.hub,
			Notify:             options.Notify,
			MinInterval:        options.MinPollInterval,
			MaxInterval:        options.MaxPollInterval,
			BackgroundInterval: options.BackgroundPollInterval,
		})
		if err != nil {
			a.messages.Close()
			storage.ReleasePidFile(dataDir)
			return nil, err
		}
	}

	exportDir := options.ExportDir
	if exportDir == "" {
		exportDir = filepath.Join(dataDir, "exports")
	}
	a.socketPath = options.SocketPath
	if a.socketPath == "" {
		a.socketPath = storage.SocketPath(dataDir)
	}

	serverCfg := control.ServerConfig{
		SocketPath: a.socketPath,
		DataDir:    dataDir,
		ExportDir:  exportDir,
		Identity:   a.identity,
		Registry:   a.registry,
		Messages:   a.messages,
		Hub:        a.hub,
		Transport:  a.relay,
	}
	if a.engine != nil {
		serverCfg.Engine = a.engine
	}
	a.server = control.NewServer(serverCfg)

	return a, nil
}

// Start begins polling the relay and opens the control socket.
func (a *Agent) Start() error {
	if a.started {
		return fmt.Errorf("agent already started")
	}

	if a.engine != nil {
		a.engine.Start()
	}
	if err := a.server.Start(); err != nil {
		if a.engine != nil {
			a.engine.Stop()
		}
		return err
	}
	a.started = true

	logrus.WithFields(logrus.Fields{
		"function":   "Start",
		"data_dir":   a.dataDir,
		"server_url": a.config.ServerURL,
		"identity":   a.identity != nil,
	}).Info("Agent started")

	return nil
}

// Stop shuts down the control server and the delivery engine, closes the
// message store, and releases the data directory. It is safe to call on an
// agent that never started.
func (a *Agent) Stop() {
	if a.closed {
		return
	}
	a.closed = true

	if a.started {
		a.started = false
		a.server.Stop()
		if a.engine != nil {
			a.engine.Stop()
		}
	}
	if err := a.messages.Close(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Stop",
			"error":    err.Error(),
		}).Warn("Failed to close message store")
	}
	if err := storage.ReleasePidFile(a.dataDir); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Stop",
			"error":    err.Error(),
		}).Warn("Failed to release pid file")
	}

	logrus.WithField("function", "Stop").Info("Agent stopped")
}

// DataDir returns the resolved data directory.
func (a *Agent) DataDir() string {
	return a.dataDir
}

// SocketPath returns the control socket a front-end should dial.
func (a *Agent) SocketPath() string {
	return a.socketPath
}

// HasIdentity reports whether an identity keypair was loaded.
func (a *Agent) HasIdentity() bool {
	return a.identity != nil
}

// GenerateIdentity creates and persists a fresh keypair for a data
// directory that has none. The agent must be restarted to pick it up.
func GenerateIdentity(dataDir string) (*crypto.Identity, error) {
	if err := storage.EnsureDirs(dataDir); err != nil {
		return nil, err
	}
	if storage.HasIdentity(dataDir) {
		return nil, fmt.Errorf("identity already exists in %s", dataDir)
	}

	id, err := crypto.GenerateIdentity()
	if err != nil {
		return nil, err
	}
	if err := storage.SaveIdentity(dataDir, id); err != nil {
		return nil, err
	}
	return id, nil
}
