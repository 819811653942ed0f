package control

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// Client is a front-end connection to a running agent. Events arrive on the
// channel returned by Events; commands are written with Send. A Client is
// safe for concurrent Sends.
type Client struct {
	conn   net.Conn
	events chan Event

	mu     sync.Mutex
	closed bool
}

// Dial connects to the agent's control socket and starts the event reader.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to agent: %w", err)
	}
	return newClient(conn), nil
}

func newClient(conn net.Conn) *Client {
	c := &Client{
		conn:   conn,
		events: make(chan Event, 64),
	}
	go c.readEvents()
	return c
}

// Send writes one command line to the agent.
func (c *Client) Send(cmd Command) error {
	data, err := EncodeLine(cmd)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return net.ErrClosed
	}
	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	return nil
}

// Events returns the inbound event stream. The channel closes when the
// connection drops or Close is called.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Close tears down the connection. The event channel closes once the reader
// drains.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Client) readEvents() {
	defer close(c.events)

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		ev, err := DecodeEvent(line)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "readEvents",
				"error":    err.Error(),
			}).Warn("Dropping malformed event")
			continue
		}
		c.events <- ev
	}
}
