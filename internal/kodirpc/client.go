package kodirpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed reports use of a client after Close.
var ErrClosed = errors.New("kodirpc: client closed")

// DefaultCallTimeout bounds how long Call waits for Kodi to answer.
const DefaultCallTimeout = 10 * time.Second

// NotificationHandler receives the data member of a Kodi notification.
type NotificationHandler func(method string, data json.RawMessage)

// Error is a JSON-RPC error response from Kodi.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("kodi rpc error %d: %s", e.Code, e.Message)
}

type request struct {
	Version string `json:"jsonrpc"`
	Method  string `json:"method,omitempty"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id,omitempty"`
}

type response struct {
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
	ID     string          `json:"id,omitempty"`
}

// Client speaks JSON-RPC 2.0 over Kodi's raw TCP service. It multiplexes
// call responses and notifications over a single connection.
type Client struct {
	conn   net.Conn
	enc    *json.Encoder
	logger *slog.Logger

	mu       sync.Mutex
	pending  map[string]chan *response
	handlers map[string][]NotificationHandler
	closed   bool
	done     chan struct{}
}

// Dial connects to Kodi's TCP JSON-RPC service at address (host:port) and
// starts the read loop. A nil logger discards client diagnostics.
func Dial(ctx context.Context, address string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("connect to kodi at %s: %w", address, err)
	}

	c := &Client{
		conn:     conn,
		enc:      json.NewEncoder(conn),
		logger:   logger.With("component", "kodirpc"),
		pending:  make(map[string]chan *response),
		handlers: make(map[string][]NotificationHandler),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Close shuts the connection down and fails all pending calls.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	return c.conn.Close()
}

// Done is closed when the connection has been torn down, either by Close or
// by a read failure.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Handle registers a handler for the named notification method. Handlers
// run on the read loop goroutine and should return quickly.
func (c *Client) Handle(method string, handler NotificationHandler) {
	c.mu.Lock()
	c.handlers[method] = append(c.handlers[method], handler)
	c.mu.Unlock()
}

// Call invokes method with params and decodes the result into result when
// it is non-nil.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	id := uuid.NewString()
	ch := make(chan *response, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = ch
	err := c.enc.Encode(request{Version: "2.0", Method: method, Params: params, ID: id})
	c.mu.Unlock()
	if err != nil {
		c.removePending(id)
		return fmt.Errorf("send %s: %w", method, err)
	}

	timer := time.NewTimer(DefaultCallTimeout)
	defer timer.Stop()

	select {
	case res, ok := <-ch:
		c.removePending(id)
		if !ok {
			return ErrClosed
		}
		if res.Error != nil {
			return res.Error
		}
		if result != nil && len(res.Result) > 0 {
			if err := json.Unmarshal(res.Result, result); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	case <-timer.C:
		c.removePending(id)
		return fmt.Errorf("call %s: timed out", method)
	case <-ctx.Done():
		c.removePending(id)
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

// Notify sends a request without waiting for a response.
func (c *Client) Notify(method string, params any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := c.enc.Encode(request{Version: "2.0", Method: method, Params: params}); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}
	return nil
}

func (c *Client) removePending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	dec := json.NewDecoder(c.conn)
	for {
		var res response
		if err := dec.Decode(&res); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.logger.Warn("connection lost", "error", err)
				c.Close()
			}
			return
		}
		c.dispatch(&res)
	}
}

func (c *Client) dispatch(res *response) {
	if res.ID != "" {
		// Stay locked around the send so Close cannot close the channel
		// mid-delivery; the channel is buffered so this never blocks.
		c.mu.Lock()
		if ch, ok := c.pending[res.ID]; ok {
			ch <- res
		} else {
			c.logger.Debug("response for unknown request", "id", res.ID)
		}
		c.mu.Unlock()
		return
	}

	if res.Method == "" {
		c.logger.Debug("unhandled message from kodi")
		return
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if len(res.Params) > 0 {
		if err := json.Unmarshal(res.Params, &envelope); err != nil {
			c.logger.Warn("malformed notification params", "method", res.Method, "error", err)
			return
		}
	}

	c.mu.Lock()
	handlers := append([]NotificationHandler(nil), c.handlers[res.Method]...)
	c.mu.Unlock()

	if len(handlers) == 0 {
		c.logger.Debug("unclaimed notification", "method", res.Method)
		return
	}
	for _, handler := range handlers {
		handler(res.Method, envelope.Data)
	}
}
