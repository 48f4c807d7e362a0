package correlator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/console-mcp/broker/internal/model"
)

func TestCallResolvesOnMatchingResponse(t *testing.T) {
	var gotRequestID string
	c := New(func(kind model.CommandKind, requestID string, payload interface{}) error {
		gotRequestID = requestID
		go c.Resolve(requestID, json.RawMessage(`{"result":2}`), "")
		return nil
	})

	payload, err := c.Call(context.Background(), model.CommandExecuteJS, map[string]any{"code": "1+1"}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"result":2}` {
		t.Errorf("payload = %s, want {\"result\":2}", payload)
	}
	if gotRequestID == "" {
		t.Error("broadcast never received a request id")
	}
}

func TestCallTimesOut(t *testing.T) {
	c := New(func(kind model.CommandKind, requestID string, payload interface{}) error {
		return nil // never resolves
	})

	_, err := c.Call(context.Background(), model.CommandExecuteJS, nil, 10*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestResolveWithUnknownRequestIDIsDropped(t *testing.T) {
	c := New(func(model.CommandKind, string, interface{}) error { return nil })
	// Must not panic or block.
	c.Resolve("nonexistent", json.RawMessage(`{}`), "")
}

func TestResolveTwiceOnlyDeliversOnce(t *testing.T) {
	var requestID string
	c := New(func(kind model.CommandKind, id string, payload interface{}) error {
		requestID = id
		return nil
	})

	resultCh := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), model.CommandExecuteJS, nil, time.Second)
		resultCh <- err
	}()

	// Give Call time to register the pending entry before resolving.
	time.Sleep(10 * time.Millisecond)
	c.Resolve(requestID, json.RawMessage(`{}`), "")
	// A duplicate/late resolve for the same id must be a no-op (already removed).
	c.Resolve(requestID, json.RawMessage(`{}`), "")

	if err := <-resultCh; err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExecuteJSErrorSurfacesAsFailure(t *testing.T) {
	c := New(func(kind model.CommandKind, requestID string, payload interface{}) error {
		go c.Resolve(requestID, nil, "ReferenceError: x is not defined")
		return nil
	})

	_, err := c.Call(context.Background(), model.CommandExecuteJS, nil, time.Second)
	if err == nil || err.Error() != "ReferenceError: x is not defined" {
		t.Errorf("err = %v, want the JS exception message verbatim", err)
	}
}

func TestShutdownRejectsAllPending(t *testing.T) {
	c := New(func(model.CommandKind, string, interface{}) error { return nil })

	resultCh := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := c.Call(context.Background(), model.CommandQueryDOM, nil, time.Second)
			resultCh <- err
		}()
	}
	time.Sleep(10 * time.Millisecond)
	c.Shutdown()

	for i := 0; i < 2; i++ {
		if err := <-resultCh; !errors.Is(err, ErrClosing) {
			t.Errorf("err = %v, want ErrClosing", err)
		}
	}
}

func TestCallAfterShutdownFailsImmediately(t *testing.T) {
	c := New(func(model.CommandKind, string, interface{}) error { return nil })
	c.Shutdown()

	_, err := c.Call(context.Background(), model.CommandExecuteJS, nil, time.Second)
	if !errors.Is(err, ErrClosing) {
		t.Errorf("err = %v, want ErrClosing", err)
	}
}

func TestBroadcastFailureDropsPendingEntry(t *testing.T) {
	boom := errors.New("boom")
	c := New(func(model.CommandKind, string, interface{}) error { return boom })

	_, err := c.Call(context.Background(), model.CommandExecuteJS, nil, time.Second)
	if err == nil {
		t.Fatal("expected an error from a failing broadcast")
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 after broadcast failure", c.Pending())
	}
}
