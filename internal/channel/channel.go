// Package channel carries commands from one browser client to the operation
// manager and relays the resulting events back over the same connection.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/gobwas/ws/wsutil"

	"github.com/Vulkestra/AUS-Arch-User-Store/internal/operation"
)

// Dispatcher starts an operation for a parsed command.
type Dispatcher interface {
	Start(ctx context.Context, cmd operation.Command, emitter operation.Emitter) *operation.Session
}

// Channel serves one client connection. Events from every session started
// on it are written back to this connection only.
type Channel struct {
	id         string
	conn       Conn
	dispatcher Dispatcher
	logger     *slog.Logger

	outbox chan []byte
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// OutboxSize is how many events may wait for a slow client before the
// channel gives up on it.
const OutboxSize = 1024

// New creates a channel for conn and starts its writer. Close stops it.
func New(id string, conn Conn, dispatcher Dispatcher, logger *slog.Logger) *Channel {
	c := &Channel{
		id:         id,
		conn:       conn,
		dispatcher: dispatcher,
		logger:     logger.With("client", id),
		outbox:     make(chan []byte, OutboxSize),
		done:       make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// ID identifies the channel in logs and in the registry.
func (c *Channel) ID() string {
	return c.id
}

// Serve reads messages until the client disconnects. A clean close returns
// nil. Sessions started from this channel keep running after Serve returns.
func (c *Channel) Serve(ctx context.Context) error {
	c.logger.Info("client connected")
	defer c.logger.Info("client disconnected")

	for {
		data, err := c.conn.ReadMessage()
		if err != nil {
			c.Close()
			if isClosed(err) {
				return nil
			}
			return err
		}
		c.handle(ctx, data)
	}
}

func (c *Channel) handle(ctx context.Context, data []byte) {
	cmd, err := operation.ParseCommand(data)
	switch {
	case errors.Is(err, operation.ErrUnknownAction):
		c.logger.Debug("ignoring message", "reason", err)
		return
	case err != nil:
		c.logger.Warn("rejected client message", "error", err)
		c.Emit(operation.Failed(err.Error()))
		return
	}

	c.logger.Info("dispatching command", "action", string(cmd.Action), "package", cmd.Package)
	c.dispatcher.Start(ctx, cmd, c)
}

// Emit implements operation.Emitter. It never blocks: events are queued for
// the writer, and a client that lets the queue fill up is disconnected.
// Events for a closed channel are dropped.
func (c *Channel) Emit(e operation.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		c.logger.Error("failed to marshal event", "type", e.Type, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.outbox <- data:
	default:
		c.logger.Warn("client is not reading, closing channel", "queued", len(c.outbox))
		c.closeLocked()
	}
}

func (c *Channel) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.outbox:
			if err := c.conn.WriteMessage(data); err != nil {
				c.logger.Warn("failed to write event, closing channel", "error", err)
				c.Close()
				return
			}
		}
	}
}

// Close closes the underlying connection, which ends Serve, and stops the
// writer. Queued events are discarded.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Channel) closeLocked() error {
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return c.conn.Close()
}

func isClosed(err error) bool {
	var closedErr wsutil.ClosedError
	return errors.As(err, &closedErr) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
