package control

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/courier/contact"
	"github.com/opd-ai/courier/crypto"
	"github.com/opd-ai/courier/mailbox"
	"github.com/opd-ai/courier/poll"
	"github.com/opd-ai/courier/storage"
)

// maxLineSize bounds one command line. Contact cards and chat messages are
// small; anything near this size is malformed input.
const maxLineSize = 1 << 20

// Signaler is the engine surface the server needs: mode changes on session
// attach, detach, and user activity. *poll.Engine implements it.
type Signaler interface {
	Signal(sig poll.Signal)
}

// PostTransport is the relay surface of the outbound send path.
// *mailbox.Client implements it.
type PostTransport interface {
	Post(ctx context.Context, queueID, data string, meta mailbox.Meta) (string, error)
}

// ServerConfig wires the agent state the command handlers operate on.
// Identity, Engine, and Transport may be nil when no identity is on disk; the
// server still answers queries and reports send attempts as errors.
type ServerConfig struct {
	// SocketPath is the unix socket to listen on.
	SocketPath string
	// DataDir is where UpdateConfig persists settings.
	DataDir string
	// ExportDir is where ExportContact writes card files.
	ExportDir string

	Identity  *crypto.Identity
	Registry  *contact.Registry
	Messages  *storage.MessageStore
	Hub       *Hub
	Engine    Signaler
	Transport PostTransport
}

// Server accepts front-end connections on a unix socket and serves the
// command protocol. At most one session is live; a newer connection replaces
// the older one.
type Server struct {
	cfg      ServerConfig
	listener net.Listener

	mu      sync.Mutex
	started bool
	conns   map[net.Conn]struct{}
	wg      sync.WaitGroup
}

// NewServer creates a control server. Call Start to begin listening.
func NewServer(cfg ServerConfig) *Server {
	return &Server{cfg: cfg, conns: make(map[net.Conn]struct{})}
}

// Start removes any stale socket file and begins accepting connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("control server already started")
	}

	// A previous agent that crashed leaves the socket file behind.
	if err := os.Remove(s.cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on control socket: %w", err)
	}
	s.listener = ln
	s.started = true

	s.wg.Add(1)
	go s.acceptLoop()

	logrus.WithFields(logrus.Fields{
		"function": "Start",
		"socket":   s.cfg.SocketPath,
	}).Info("Control server listening")

	return nil
}

// Stop closes the listener and the live session, then waits for the serving
// goroutines to unwind.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	// Closing a conn frees its session reader, whose teardown closes the
	// event queue and unwinds the paired writer.
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()

	if err := os.Remove(s.cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		logrus.WithFields(logrus.Fields{
			"function": "Stop",
			"error":    err.Error(),
		}).Warn("Failed to remove control socket")
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Listener closed during shutdown.
			return
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serveSession(conn)
	}
}

// serveSession runs one front-end connection: it registers the session with
// the hub, mirrors the current polling cadence, then reads commands until
// the connection drops.
func (s *Server) serveSession(conn net.Conn) {
	defer s.wg.Done()

	log := logrus.WithField("function", "serveSession")
	log.Info("Session connected")

	queue := newEventQueue()
	secs := s.cfg.Hub.Register(queue)
	queue.push(NewPollingInterval(secs))
	if s.cfg.Engine != nil {
		s.cfg.Engine.Signal(poll.SignalAttach)
	}

	var once sync.Once
	teardown := func() {
		queue.close()
		// A session evicted by a newer connection must not flip the engine
		// to background mode behind the new session's back.
		if s.cfg.Hub.Unregister(queue) && s.cfg.Engine != nil {
			s.cfg.Engine.Signal(poll.SignalDetach)
		}
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		log.Info("Session closed")
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.writeEvents(conn, queue)
		once.Do(teardown)
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		cmd, err := DecodeCommand(line)
		if err != nil {
			// Malformed lines are skipped; the session stays up.
			log.WithField("error", err.Error()).Warn("Dropping malformed command")
			continue
		}

		for _, ev := range s.handle(cmd) {
			queue.push(ev)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.WithField("error", err.Error()).Debug("Session read ended")
	}

	once.Do(teardown)
}

// writeEvents drains the session queue onto the connection, one JSON line
// per event, until the queue closes or a write fails.
func (s *Server) writeEvents(conn net.Conn, queue *eventQueue) {
	log := logrus.WithField("function", "writeEvents")

	for {
		ev, ok := queue.pop()
		if !ok {
			return
		}

		data, err := EncodeLine(ev)
		if err != nil {
			log.WithFields(logrus.Fields{
				"event": ev.Name(),
				"error": err.Error(),
			}).Error("Failed to encode event")
			continue
		}

		if _, err := conn.Write(append(data, '\n')); err != nil {
			log.WithField("error", err.Error()).Debug("Session write failed")
			return
		}
	}
}
