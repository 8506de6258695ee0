// Package wsconn implements the per-connection service described in
// the spec: accept/close, receive-with-retry, typed send dispatch and
// the background task registry tasks are canceled against on
// disconnect.
package wsconn

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gencurrent/async-socket-exchange-rate/internal/rpc"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = (pongWait * 9) / 10

	sendBufferSize = 64
	// 20 commands/sec sustained, bursts up to 40; generous for a
	// two-action (assets, subscribe) command surface.
	commandRateLimit = 20
	commandBurst     = 40
)

// Connection manages exactly one client WebSocket connection.
type Connection struct {
	ID     string
	Logger zerolog.Logger

	conn    net.Conn
	send    chan []byte
	stop    chan struct{}
	limiter *rate.Limiter

	closeOnce sync.Once
	closed    atomic.Bool

	mu    sync.Mutex
	tasks []*task

	latestCommand atomic.Pointer[rpc.Command]
}

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New wraps an upgraded net.Conn. Call Start to launch the write pump
// before using Send/ReceiveCommand.
func New(conn net.Conn, logger zerolog.Logger) *Connection {
	id := uuid.NewString()
	return &Connection{
		ID:      id,
		Logger:  logger.With().Str("connection_id", id).Logger(),
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		stop:    make(chan struct{}),
		limiter: rate.NewLimiter(commandRateLimit, commandBurst),
	}
}

// Start launches the background write pump (frame writer + ping
// keepalive). It returns immediately; the pump runs until Disconnect.
func (c *Connection) Start() {
	go c.writePump()
}

// Disconnect closes the transport exactly once, cancels every
// registered task and waits for them to return. Calling it more than
// once, or after the peer already closed the socket, is success.
func (c *Connection) Disconnect() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.stop)
		c.conn.Close()
	})
	c.CancelAllTasks()
}

// ReceiveCommand reads frames until a fully valid Command is decoded,
// sending the appropriate recoverable-error message for each malformed
// frame along the way. It returns a non-nil error only when the
// transport is gone.
func (c *Connection) ReceiveCommand(ctx context.Context) (*rpc.Command, error) {
	for {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		msg, op, err := wsutil.ReadClientData(c.conn)
		if err != nil {
			return nil, fmt.Errorf("read client frame: %w", err)
		}
		if op == ws.OpClose {
			return nil, fmt.Errorf("client closed connection")
		}
		if op != ws.OpText && op != ws.OpBinary {
			continue
		}

		if !c.limiter.Allow() {
			_ = c.Send(rpc.SingleError("", "Too many commands, please slow down"))
			continue
		}

		cmd, validationErrs, decodeErr := rpc.DecodeCommand(msg)
		if decodeErr != nil {
			_ = c.sendDecodeError(decodeErr)
			continue
		}
		if len(validationErrs) > 0 {
			_ = c.Send(rpc.Envelope{Message: rpc.ErrorsPayload{Errors: validationErrs}})
			continue
		}
		return cmd, nil
	}
}

func (c *Connection) sendDecodeError(err error) error {
	if value, notObject := rpc.NotObjectType(err); notObject {
		return c.Send(fmt.Sprintf("Invalid type of the message: %T. Command must be a valid JSON mapping", value))
	}
	return c.Send("Could not parse the JSON command")
}

// Send type-dispatches message: a raw string becomes a text frame;
// every other value (rpc.Envelope, a map, a slice, ...) is JSON-encoded.
// No type is rejected: a value that fails to encode is logged and
// dropped, and Send always returns nil. Send does not block when the
// send buffer is full; the frame is dropped and a warning logged.
func (c *Connection) Send(message any) error {
	if c.closed.Load() {
		return nil
	}

	var frame []byte
	switch m := message.(type) {
	case string:
		frame = []byte(m)
	default:
		encoded, err := json.Marshal(m)
		if err != nil {
			c.Logger.Debug().Err(err).Msg("dropping message that failed to encode")
			return nil
		}
		frame = encoded
	}

	select {
	case c.send <- frame:
	case <-c.stop:
	default:
		c.Logger.Warn().Msg("send buffer full, dropping message for slow client")
	}
	return nil
}

// AddTask spawns fn in its own goroutine with a context derived from
// parent, and registers it so CancelAllTasks can tear it down on
// disconnect.
func (c *Connection) AddTask(parent context.Context, fn func(ctx context.Context)) {
	taskCtx, cancel := context.WithCancel(parent)
	t := &task{cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	c.tasks = append(removeCompletedTasks(c.tasks), t)
	c.mu.Unlock()

	go func() {
		defer close(t.done)
		fn(taskCtx)
	}()
}

// removeCompletedTasks drops tasks that have already returned, the way
// the reference implementation prunes its task list before appending.
func removeCompletedTasks(tasks []*task) []*task {
	live := tasks[:0]
	for _, t := range tasks {
		select {
		case <-t.done:
		default:
			live = append(live, t)
		}
	}
	return live
}

// CancelAllTasks cancels every registered task and waits for them to
// return before clearing the registry.
func (c *Connection) CancelAllTasks() {
	c.mu.Lock()
	tasks := c.tasks
	c.tasks = nil
	c.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
	for _, t := range tasks {
		<-t.done
	}
}

// TaskCount returns the number of live registered tasks. Exposed for
// tests asserting that re-subscribing reuses the existing streaming
// task instead of spawning a second one.
func (c *Connection) TaskCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = removeCompletedTasks(c.tasks)
	return len(c.tasks)
}

// LatestCommand returns the most recently accepted command, or nil.
func (c *Connection) LatestCommand() *rpc.Command {
	return c.latestCommand.Load()
}

// SetLatestCommand stores the most recently accepted command.
func (c *Connection) SetLatestCommand(cmd *rpc.Command) {
	c.latestCommand.Store(cmd)
}
