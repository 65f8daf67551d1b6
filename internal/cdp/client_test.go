package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// mockConn implements the Conn interface for testing.
type mockConn struct {
	mu      sync.Mutex
	readCh  chan []byte // Channel-based message delivery
	written [][]byte
	closed  bool
	closeCh chan struct{}
}

func newMockConn(messages ...[]byte) *mockConn {
	m := &mockConn{
		readCh:  make(chan []byte, len(messages)+10),
		closeCh: make(chan struct{}),
	}
	for _, msg := range messages {
		m.readCh <- msg
	}
	return m
}

func (m *mockConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case msg := <-m.readCh:
		return websocket.MessageText, msg, nil
	case <-m.closeCh:
		return 0, nil, errors.New("connection closed")
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (m *mockConn) Write(ctx context.Context, typ websocket.MessageType, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("connection closed")
	}
	m.written = append(m.written, data)
	return nil
}

func (m *mockConn) Close(code websocket.StatusCode, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closeCh)
	}
	return nil
}

func (m *mockConn) getWritten() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([][]byte, len(m.written))
	copy(result, m.written)
	return result
}

func (m *mockConn) queueMessage(data []byte) {
	m.readCh <- data
}

// waitForWritten polls until at least n requests have been written.
func (m *mockConn) waitForWritten(t *testing.T, n int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if written := m.getWritten(); len(written) >= n {
			return written
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d written requests", n)
	return nil
}

// echoMockConn echoes back a response for each written request.
type echoMockConn struct {
	mu       sync.Mutex
	messages chan []byte
	written  [][]byte
	closed   bool
	closeCh  chan struct{}
	result   json.RawMessage
	cdpError *Error
}

func newEchoMockConn() *echoMockConn {
	return &echoMockConn{
		messages: make(chan []byte, 100),
		closeCh:  make(chan struct{}),
		result:   json.RawMessage(`{"ok":true}`),
	}
}

func newEchoMockConnWithResult(result string) *echoMockConn {
	m := newEchoMockConn()
	m.result = json.RawMessage(result)
	return m
}

func newEchoMockConnWithError(code int, message string) *echoMockConn {
	m := newEchoMockConn()
	m.cdpError = &Error{Code: code, Message: message}
	return m
}

func (m *echoMockConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case msg := <-m.messages:
		return websocket.MessageText, msg, nil
	case <-m.closeCh:
		return 0, nil, errors.New("connection closed")
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (m *echoMockConn) Write(ctx context.Context, typ websocket.MessageType, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.New("connection closed")
	}
	m.written = append(m.written, data)

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}

	resp := Response{ID: req.ID}
	if m.cdpError != nil {
		resp.Error = m.cdpError
	} else {
		resp.Result = m.result
	}
	respData, _ := json.Marshal(resp)
	m.messages <- respData

	return nil
}

func (m *echoMockConn) Close(code websocket.StatusCode, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closeCh)
	}
	return nil
}

func (m *echoMockConn) getWritten() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([][]byte, len(m.written))
	copy(result, m.written)
	return result
}

func TestClient_Call_CorrelatesResponseByID(t *testing.T) {
	t.Parallel()

	conn := newEchoMockConnWithResult(`{"frameId":"ABC123"}`)

	client := NewClient(conn)
	defer client.Close()

	result, err := client.Call("Page.navigate", map[string]string{"url": "https://example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(result) != `{"frameId":"ABC123"}` {
		t.Errorf("unexpected result: %s", string(result))
	}

	written := conn.getWritten()
	if len(written) != 1 {
		t.Fatalf("expected 1 written message, got %d", len(written))
	}

	var req Request
	if err := json.Unmarshal(written[0], &req); err != nil {
		t.Fatalf("failed to unmarshal request: %v", err)
	}
	if req.ID != 1 {
		t.Errorf("expected request ID 1, got %d", req.ID)
	}
	if req.Method != "Page.navigate" {
		t.Errorf("expected method Page.navigate, got %s", req.Method)
	}
}

func TestClient_Call_ReversedResponseOrder(t *testing.T) {
	t.Parallel()

	// Each caller must receive the response matching its own request ID
	// even when responses arrive in reverse order of submission.
	const numRequests = 3

	conn := newMockConn()
	client := NewClient(conn)
	defer client.Close()

	type callResult struct {
		method string
		result json.RawMessage
		err    error
	}
	results := make(chan callResult, numRequests)

	for i := 0; i < numRequests; i++ {
		method := fmt.Sprintf("Test.method%d", i)
		go func() {
			result, err := client.Call(method, nil)
			results <- callResult{method: method, result: result, err: err}
		}()
	}

	written := conn.waitForWritten(t, numRequests)

	// Respond in reverse order, each result naming the request's method
	for i := len(written) - 1; i >= 0; i-- {
		var req Request
		if err := json.Unmarshal(written[i], &req); err != nil {
			t.Fatalf("failed to unmarshal request: %v", err)
		}
		resp := Response{
			ID:     req.ID,
			Result: json.RawMessage(fmt.Sprintf(`{"method":%q}`, req.Method)),
		}
		respData, _ := json.Marshal(resp)
		conn.queueMessage(respData)
	}

	for i := 0; i < numRequests; i++ {
		res := <-results
		if res.err != nil {
			t.Fatalf("unexpected error for %s: %v", res.method, res.err)
		}
		var payload struct {
			Method string `json:"method"`
		}
		if err := json.Unmarshal(res.result, &payload); err != nil {
			t.Fatalf("failed to unmarshal result: %v", err)
		}
		if payload.Method != res.method {
			t.Errorf("caller for %s received result for %s", res.method, payload.Method)
		}
	}
}

func TestClient_Call_ReturnsErrorOnCDPError(t *testing.T) {
	t.Parallel()

	conn := newEchoMockConnWithError(-32000, "Target closed")

	client := NewClient(conn)
	defer client.Close()

	_, err := client.Call("Page.navigate", nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var cdpErr *Error
	if !errors.As(err, &cdpErr) {
		t.Fatalf("expected CDP error, got %T: %v", err, err)
	}
	if cdpErr.Code != -32000 {
		t.Errorf("expected error code -32000, got %d", cdpErr.Code)
	}
	if cdpErr.Message != "Target closed" {
		t.Errorf("expected message 'Target closed', got %s", cdpErr.Message)
	}
}

func TestClient_CallContext_TimeoutWaitingForResponse(t *testing.T) {
	t.Parallel()

	// Connection that blocks forever on read (no messages queued)
	conn := newMockConn()

	client := NewClient(conn)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.CallContext(ctx, "Page.navigate", nil)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestClient_Close_ResolvesOutstandingCalls(t *testing.T) {
	t.Parallel()

	// Two outstanding requests must both unblock with a TransportError
	// when the connection is torn down, never hang.
	conn := newMockConn()
	client := NewClient(conn)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := client.Call("Page.navigate", nil)
			errs <- err
		}()
	}

	conn.waitForWritten(t, 2)
	if err := client.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			var transportErr *TransportError
			if !errors.As(err, &transportErr) {
				t.Errorf("expected TransportError, got %T: %v", err, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("call still blocked after close")
		}
	}
}

func TestClient_ReadLoop_MalformedFrameIsFatal(t *testing.T) {
	t.Parallel()

	conn := newMockConn()
	client := NewClient(conn)
	defer client.Close()

	errs := make(chan error, 1)
	go func() {
		_, err := client.Call("Page.navigate", nil)
		errs <- err
	}()

	conn.waitForWritten(t, 1)
	conn.queueMessage([]byte(`not json`))

	select {
	case err := <-errs:
		var transportErr *TransportError
		if !errors.As(err, &transportErr) {
			t.Errorf("expected TransportError after decode failure, got %T: %v", err, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("call still blocked after decode failure")
	}

	// Subsequent calls fail immediately
	if _, err := client.Call("Page.enable", nil); err == nil {
		t.Error("expected error calling on failed client")
	}
}

func TestClient_MessageIDs_StrictlyIncreasing(t *testing.T) {
	t.Parallel()

	const numCalls = 10000

	conn := newEchoMockConn()
	client := NewClient(conn)
	defer client.Close()

	for i := 0; i < numCalls; i++ {
		if _, err := client.Call("Test.method", nil); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}

	written := conn.getWritten()
	if len(written) != numCalls {
		t.Fatalf("expected %d written requests, got %d", numCalls, len(written))
	}

	var prev int64
	for i, data := range written {
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			t.Fatalf("failed to unmarshal request %d: %v", i, err)
		}
		if req.ID <= prev {
			t.Fatalf("request %d has ID %d, not greater than previous %d", i, req.ID, prev)
		}
		prev = req.ID
	}
}

func TestClient_ConcurrentCalls(t *testing.T) {
	t.Parallel()

	const numRequests = 10

	conn := newEchoMockConn()
	client := NewClient(conn)
	defer client.Close()

	var wg sync.WaitGroup
	errCh := make(chan error, numRequests)

	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Call("Test.method", nil); err != nil {
				errCh <- err
			}
		}()
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent call error: %v", err)
	}
}

func TestClient_Close_Idempotent(t *testing.T) {
	t.Parallel()

	conn := newMockConn()
	client := NewClient(conn)

	if err := client.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	if !closed {
		t.Error("expected connection to be closed")
	}

	if err := client.Close(); err != nil {
		t.Errorf("double close returned error: %v", err)
	}
}

func TestClient_Close_AfterFailureWaitsForReadLoop(t *testing.T) {
	t.Parallel()

	conn := newMockConn()
	client := NewClient(conn)
	sub := client.Subscribe()

	errs := make(chan error, 1)
	go func() {
		_, err := client.Call("Page.navigate", nil)
		errs <- err
	}()

	conn.waitForWritten(t, 1)
	conn.queueMessage([]byte(`not json`))

	select {
	case <-errs:
	case <-time.After(2 * time.Second):
		t.Fatal("call still blocked after decode failure")
	}

	// The decode failure already tripped shutdown; Close must still wait
	// for the read loop's teardown, so the subscription is closed by the
	// time it returns.
	if err := client.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Error("expected subscription channel to be closed")
		}
	default:
		t.Error("subscription still open after Close returned")
	}
}

func TestClient_ReadLoop_DropsUnknownMessageID(t *testing.T) {
	t.Parallel()

	conn := newMockConn()
	client := NewClient(conn)
	defer client.Close()

	errs := make(chan error, 1)
	results := make(chan json.RawMessage, 1)
	go func() {
		result, err := client.Call("Test.method", nil)
		results <- result
		errs <- err
	}()

	written := conn.waitForWritten(t, 1)
	var req Request
	if err := json.Unmarshal(written[0], &req); err != nil {
		t.Fatalf("failed to unmarshal request: %v", err)
	}

	// A response for an ID nobody is waiting on is dropped
	unknown, _ := json.Marshal(Response{ID: 9999, Result: json.RawMessage(`{}`)})
	conn.queueMessage(unknown)

	valid, _ := json.Marshal(Response{ID: req.ID, Result: json.RawMessage(`{"success":true}`)})
	conn.queueMessage(valid)

	if err := <-errs; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result := <-results; string(result) != `{"success":true}` {
		t.Errorf("expected success result, got %s", string(result))
	}
}
