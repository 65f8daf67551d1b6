package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

// DefaultTimeout is the default timeout for CDP commands and waits.
const DefaultTimeout = 30 * time.Second

// Client is a CDP protocol client. It owns one connection and the single
// read loop that correlates responses and broadcasts events.
type Client struct {
	conn    Conn
	writeMu sync.Mutex
	msgID   atomic.Int64

	// pending maps command IDs to response channels
	pending sync.Map // map[int64]chan *Response

	subMu sync.Mutex
	subs  map[*Subscription]struct{}

	// closed signals that the client is shutting down
	closed   atomic.Bool
	closedCh chan struct{}
	closeErr error
	closeMu  sync.Mutex

	// done signals that the read loop has exited
	done chan struct{}
}

// NewClient creates a new CDP client with the given connection.
func NewClient(conn Conn) *Client {
	c := &Client{
		conn:     conn,
		subs:     make(map[*Subscription]struct{}),
		closedCh: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Dial connects to a CDP endpoint and returns a new client.
func Dial(ctx context.Context, wsURL string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to CDP endpoint: %w", err)
	}
	return NewClient(conn), nil
}

// Call sends a CDP command and waits for the response.
// Uses the default timeout.
func (c *Client) Call(method string, params interface{}) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	return c.CallContext(ctx, method, params)
}

// CallContext sends a CDP command with a context for cancellation.
// The returned error is a *Error when the browser reports a protocol
// error, and a *TransportError when the connection closes first.
func (c *Client) CallContext(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, &TransportError{Err: errors.New("client is closed")}
	}

	id := c.msgID.Add(1)
	req := Request{
		ID:     id,
		Method: method,
		Params: params,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Register the response channel before sending so the read loop
	// cannot race a fast response past us.
	respCh := make(chan *Response, 1)
	c.pending.Store(id, respCh)
	defer c.pending.Delete(id)

	c.writeMu.Lock()
	err = c.conn.Write(ctx, websocket.MessageText, data)
	c.writeMu.Unlock()
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("request %s: %w", method, ctx.Err())
	case <-c.closedCh:
		return nil, &TransportError{Err: c.closeReason()}
	}
}

// Close closes the client connection and stops the read loop.
// Any calls still pending are unblocked with a *TransportError.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		// Already closing, either from an earlier Close or a transport
		// failure. Still wait for the read loop before returning.
		<-c.done
		return nil
	}

	close(c.closedCh)

	c.closeMu.Lock()
	err := c.conn.Close(websocket.StatusNormalClosure, "client closing")
	c.closeMu.Unlock()

	// Wait for read loop to exit
	<-c.done

	return err
}

// Err returns any error that caused the client to close.
func (c *Client) Err() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closeErr
}

// fail records a fatal transport or decode error and unblocks all
// pending calls. No-op if the client is already closing.
func (c *Client) fail(err error) {
	if c.closed.Swap(true) {
		return
	}
	c.closeMu.Lock()
	c.closeErr = err
	c.closeMu.Unlock()
	close(c.closedCh)
}

func (c *Client) closeReason() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closeErr != nil {
		return c.closeErr
	}
	return errors.New("connection closed")
}

// readLoop reads messages from the connection and dispatches them.
// It is the only goroutine that resolves pending calls or publishes
// events. Exit is final: the client must be reopened with Dial.
func (c *Client) readLoop() {
	defer close(c.done)
	defer c.closeSubscriptions()

	ctx := context.Background()
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.fail(err)
			return
		}

		resp, evt, err := parseMessage(data)
		if err != nil {
			// A framed stream cannot be resynchronized after a bad frame.
			c.fail(err)
			c.closeMu.Lock()
			_ = c.conn.Close(websocket.StatusProtocolError, "malformed message")
			c.closeMu.Unlock()
			return
		}

		if resp != nil {
			c.dispatchResponse(resp)
		} else {
			c.publish(evt)
		}
	}
}

// dispatchResponse resolves the pending call matching the response ID.
// The slot is popped so each ID resolves at most once; responses with
// no pending call (cancelled or unknown) are dropped.
func (c *Client) dispatchResponse(resp *Response) {
	if ch, ok := c.pending.LoadAndDelete(resp.ID); ok {
		ch.(chan *Response) <- resp
	}
}
