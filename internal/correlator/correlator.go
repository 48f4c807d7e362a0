// Package correlator implements the Request Correlator: it turns
// fire-and-forget broker→browser WebSocket commands into awaitable
// operations keyed by a generated request id.
package correlator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/console-mcp/broker/internal/model"
)

// ErrClosing is returned to every pending and future Call once Shutdown has
// run, matching the correlator's uniform "hub closing" rejection policy.
var ErrClosing = errors.New("hub closing")

// Broadcast sends a command frame of the given kind, carrying requestID and
// payload, to every connected client. It is supplied by the Client Hub;
// the correlator has no direct dependency on the hub's transport.
type Broadcast func(kind model.CommandKind, requestID string, payload interface{}) error

type result struct {
	payload json.RawMessage
	err     error
}

type pendingCall struct {
	resultCh chan result
	once     sync.Once
}

func (p *pendingCall) deliver(r result) {
	p.once.Do(func() {
		p.resultCh <- r
		close(p.resultCh)
	})
}

// Correlator tracks in-flight broker→browser commands by request id.
type Correlator struct {
	mu        sync.Mutex
	pending   map[string]*pendingCall
	closed    bool
	broadcast Broadcast
}

// New creates a Correlator that dispatches commands through broadcast.
func New(broadcast Broadcast) *Correlator {
	return &Correlator{
		pending:   make(map[string]*pendingCall),
		broadcast: broadcast,
	}
}

// Call assigns a fresh request id, installs a pending entry, broadcasts the
// command, and blocks until a matching response arrives, the timeout
// elapses, ctx is cancelled, or the correlator is shut down. The pending
// entry is installed before the broadcast so a response can never race
// ahead of its own registration.
func (c *Correlator) Call(ctx context.Context, kind model.CommandKind, payload interface{}, timeout time.Duration) (json.RawMessage, error) {
	requestID := uuid.NewString()
	pc := &pendingCall{resultCh: make(chan result, 1)}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosing
	}
	c.pending[requestID] = pc
	c.mu.Unlock()

	if err := c.broadcast(kind, requestID, payload); err != nil {
		c.drop(requestID)
		return nil, fmt.Errorf("broadcast %s command: %w", kind, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-pc.resultCh:
		return r.payload, r.err
	case <-timer.C:
		c.drop(requestID)
		return nil, fmt.Errorf("%s command timed out after %s", kind, timeout)
	case <-ctx.Done():
		c.drop(requestID)
		return nil, ctx.Err()
	}
}

func (c *Correlator) drop(requestID string) {
	c.mu.Lock()
	delete(c.pending, requestID)
	c.mu.Unlock()
}

// Resolve dispatches a response frame to its pending call by requestID. A
// response with no matching pending entry (already resolved, timed out, or
// never issued) is silently discarded, per §7's error policy. An empty
// errMsg resolves the call with payload; a non-empty errMsg rejects it —
// used to surface a JS-side exception from execute_js_response.
func (c *Correlator) Resolve(requestID string, payload json.RawMessage, errMsg string) {
	c.mu.Lock()
	pc, ok := c.pending[requestID]
	if ok {
		delete(c.pending, requestID)
	}
	c.mu.Unlock()

	if !ok {
		return
	}

	if errMsg != "" {
		pc.deliver(result{err: errors.New(errMsg)})
		return
	}
	pc.deliver(result{payload: payload})
}

// Shutdown rejects every pending call with ErrClosing and marks the
// correlator closed, so subsequent Call attempts fail immediately instead
// of broadcasting into a dead hub.
func (c *Correlator) Shutdown() {
	c.mu.Lock()
	c.closed = true
	pending := c.pending
	c.pending = make(map[string]*pendingCall)
	c.mu.Unlock()

	for _, pc := range pending {
		pc.deliver(result{err: ErrClosing})
	}
}

// Pending returns the number of in-flight calls.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
