package client

import (
	"errors"
	"github.com/ValentinKolb/twinkle/rpc/common"
	"github.com/ValentinKolb/twinkle/rpc/frame"
	"github.com/ValentinKolb/twinkle/rpc/transport"
	"github.com/google/uuid"
	"sync"
	"testing"
	"time"
)

// fakeTransport records dispatches and lets a test decide when a response is delivered
type fakeTransport struct {
	mu         sync.Mutex
	connected  bool
	closed     bool
	dispatches []frame.Packet
	current    map[uuid.UUID]*transport.Waiter

	// onDispatch is called for every dispatch with the attempt number (1-based)
	onDispatch func(attempt int, w *transport.Waiter)
	// beforeSupersede is called with the previous waiter right before it is replaced
	beforeSupersede func(prev *transport.Waiter)
	// beforeDispatch is called with the fake locked before anything is registered
	beforeDispatch func(attempt int, p frame.Packet)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{current: make(map[uuid.UUID]*transport.Waiter)}
}

func (f *fakeTransport) Connect(common.ClientConfig) error {
	f.connected = true
	return nil
}

func (f *fakeTransport) Run() error { return nil }

func (f *fakeTransport) Dispatch(p frame.Packet) (*transport.Waiter, *transport.Waiter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, nil, common.ErrTransportClosed
	}
	if f.beforeDispatch != nil {
		f.beforeDispatch(len(f.dispatches)+1, p)
	}
	f.dispatches = append(f.dispatches, p)

	w := transport.NewWaiter()
	prev := f.current[p.ID]
	if prev != nil {
		if f.beforeSupersede != nil {
			f.beforeSupersede(prev)
		}
		prev.Abandon()
	}
	f.current[p.ID] = w

	if f.onDispatch != nil {
		f.onDispatch(len(f.dispatches), w)
	}
	return w, prev, nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// noSleep replaces the backoff sleep and records the requested delays
func noSleep(t *testing.T) *[]time.Duration {
	var mu sync.Mutex
	delays := &[]time.Duration{}
	sleep = func(d time.Duration) {
		mu.Lock()
		*delays = append(*delays, d)
		mu.Unlock()
	}
	t.Cleanup(func() { sleep = time.Sleep })
	return delays
}

func openFake(t *testing.T, f *fakeTransport, config common.ClientConfig, opts ...Option) *Client {
	t.Helper()
	c, err := Open(config, f, opts...)
	if err != nil {
		t.Fatalf("Failed to open client: %v", err)
	}
	return c
}

// TestImmediateResponse tests that a delivered outcome ends the call after the first poll
func TestImmediateResponse(t *testing.T) {
	delays := noSleep(t)
	f := newFakeTransport()
	f.onDispatch = func(_ int, w *transport.Waiter) {
		w.Deliver(common.Outcome{Value: []byte("foo")})
	}
	c := openFake(t, f, common.ClientConfig{})

	value, err := c.Get([]byte("fuga"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(value) != "foo" {
		t.Errorf("Expected foo, got %q", value)
	}
	if len(f.dispatches) != 1 {
		t.Errorf("Expected 1 dispatch, got %d", len(f.dispatches))
	}
	if len(*delays) != 1 || (*delays)[0] != time.Millisecond {
		t.Errorf("Expected one 1ms backoff, got %v", *delays)
	}
}

// TestTimeoutSchedule tests the full retry schedule when nothing ever arrives
func TestTimeoutSchedule(t *testing.T) {
	delays := noSleep(t)
	f := newFakeTransport()
	c := openFake(t, f, common.ClientConfig{})

	err := c.Ping()
	if !errors.Is(err, common.ErrRequestTimeout) {
		t.Fatalf("Expected ErrRequestTimeout, got %v", err)
	}

	policy := c.Policy()
	if len(f.dispatches) != policy.MaxAttempts {
		t.Errorf("Expected %d dispatches, got %d", policy.MaxAttempts, len(f.dispatches))
	}

	// every attempt reuses the id of the first one
	for i, p := range f.dispatches {
		if p.ID != f.dispatches[0].ID {
			t.Errorf("Attempt %d used a different id", i+1)
		}
	}

	expected := []time.Duration{1, 2, 4, 8, 16}
	if len(*delays) != policy.MaxAttempts*policy.Polls {
		t.Fatalf("Expected %d sleeps, got %d", policy.MaxAttempts*policy.Polls, len(*delays))
	}
	var total time.Duration
	for i, d := range *delays {
		if want := expected[i%len(expected)] * time.Millisecond; d != want {
			t.Errorf("Sleep %d: expected %s, got %s", i, want, d)
		}
		total += d
	}
	if total != policy.WorstCase() || total != 310*time.Millisecond {
		t.Errorf("Expected a worst case of 310ms, slept %s (policy says %s)", total, policy.WorstCase())
	}
}

// TestResponseOnLaterAttempt tests that a call succeeds once any attempt gets an answer
func TestResponseOnLaterAttempt(t *testing.T) {
	noSleep(t)
	f := newFakeTransport()
	f.onDispatch = func(attempt int, w *transport.Waiter) {
		if attempt == 3 {
			w.Deliver(common.Outcome{Value: []byte{}})
		}
	}
	c := openFake(t, f, common.ClientConfig{})

	if err := c.Set([]byte("fuga"), []byte("foo")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(f.dispatches) != 3 {
		t.Errorf("Expected 3 dispatches, got %d", len(f.dispatches))
	}
}

// TestResponseToSupersededWaiter tests that an outcome delivered to the previous
// attempt right before it was superseded is not lost
func TestResponseToSupersededWaiter(t *testing.T) {
	noSleep(t)
	f := newFakeTransport()
	f.beforeSupersede = func(prev *transport.Waiter) {
		prev.Deliver(common.Outcome{Value: []byte("late")})
	}
	c := openFake(t, f, common.ClientConfig{})

	value, err := c.Get([]byte("hoge"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(value) != "late" {
		t.Errorf("Expected late, got %q", value)
	}
	if len(f.dispatches) != 2 {
		t.Errorf("Expected 2 dispatches, got %d", len(f.dispatches))
	}
}

// TestResponseToTakenWaiter tests that an outcome delivered to a waiter that was already
// removed from the table after its last poll still completes the call
func TestResponseToTakenWaiter(t *testing.T) {
	noSleep(t)
	f := newFakeTransport()
	var first *transport.Waiter
	f.onDispatch = func(attempt int, w *transport.Waiter) {
		if attempt == 1 {
			first = w
		}
	}
	f.beforeDispatch = func(attempt int, p frame.Packet) {
		if attempt == 2 {
			// the listener takes the entry and delivers
			delete(f.current, p.ID)
			first.Deliver(common.Outcome{Value: []byte("taken")})
		}
	}
	c := openFake(t, f, common.ClientConfig{})

	value, err := c.Get([]byte("hoge"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(value) != "taken" {
		t.Errorf("Expected taken, got %q", value)
	}
	if len(f.dispatches) != 2 {
		t.Errorf("Expected 2 dispatches, got %d", len(f.dispatches))
	}
}

// TestCommandFailed tests that a failure response is returned as ErrCommandFailed without retrying
func TestCommandFailed(t *testing.T) {
	noSleep(t)
	f := newFakeTransport()
	f.onDispatch = func(_ int, w *transport.Waiter) {
		w.Deliver(common.Outcome{Err: common.ErrCommandFailed})
	}
	c := openFake(t, f, common.ClientConfig{})

	if _, err := c.Get([]byte("hoge")); !errors.Is(err, common.ErrCommandFailed) {
		t.Fatalf("Expected ErrCommandFailed, got %v", err)
	}
	if len(f.dispatches) != 1 {
		t.Errorf("Expected 1 dispatch, got %d", len(f.dispatches))
	}
}

// TestValidationBeforeSend tests that local validation errors never reach the transport
func TestValidationBeforeSend(t *testing.T) {
	noSleep(t)

	tests := map[string]struct {
		config  common.ClientConfig
		call    func(c *Client) error
		wantErr error
	}{
		"KeyTooLong": {
			call: func(c *Client) error {
				return c.Set(make([]byte, common.MaxKeyLen+1), []byte("v"))
			},
			wantErr: common.ErrKeyTooLong,
		},
		"FrameTooLarge": {
			call: func(c *Client) error {
				return c.Set([]byte("k"), make([]byte, common.MaxFrameSize))
			},
			wantErr: common.ErrFrameTooLarge,
		},
		"ConfiguredFrameLimit": {
			config: common.ClientConfig{MaxFrameSize: 64},
			call: func(c *Client) error {
				return c.Set([]byte("k"), make([]byte, 64))
			},
			wantErr: common.ErrFrameTooLarge,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFakeTransport()
			c := openFake(t, f, tt.config)
			if err := tt.call(c); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			if len(f.dispatches) != 0 {
				t.Errorf("Expected no dispatch, got %d", len(f.dispatches))
			}
		})
	}
}

// TestClosedTransport tests that calls fail fast once the transport is stopped
func TestClosedTransport(t *testing.T) {
	delays := noSleep(t)
	f := newFakeTransport()
	c := openFake(t, f, common.ClientConfig{})
	c.Close()

	if err := c.Ping(); !errors.Is(err, common.ErrTransportClosed) {
		t.Fatalf("Expected ErrTransportClosed, got %v", err)
	}
	if len(*delays) != 0 {
		t.Errorf("A closed transport should not cause any backoff, got %v", *delays)
	}
}

// TestCustomPolicy tests that the configured policy drives the schedule
func TestCustomPolicy(t *testing.T) {
	delays := noSleep(t)
	f := newFakeTransport()
	config := common.ClientConfig{Retry: common.RetryPolicy{MaxAttempts: 2, Polls: 3, Base: 5 * time.Millisecond}}
	c := openFake(t, f, config)

	if err := c.Unset([]byte("k")); !errors.Is(err, common.ErrRequestTimeout) {
		t.Fatalf("Expected ErrRequestTimeout, got %v", err)
	}
	if len(f.dispatches) != 2 {
		t.Errorf("Expected 2 dispatches, got %d", len(f.dispatches))
	}
	if len(*delays) != 6 || (*delays)[2] != 20*time.Millisecond {
		t.Errorf("Unexpected backoff schedule %v", *delays)
	}
	if c.Policy().WorstCase() != 70*time.Millisecond {
		t.Errorf("Expected worst case 70ms, got %s", c.Policy().WorstCase())
	}
}

// TestIDSource tests that the configured id source provides the correlation id
func TestIDSource(t *testing.T) {
	noSleep(t)
	id := uuid.New()
	f := newFakeTransport()
	f.onDispatch = func(_ int, w *transport.Waiter) {
		w.Deliver(common.Outcome{Value: []byte{}})
	}
	c := openFake(t, f, common.ClientConfig{}, WithIDSource(frame.IDFunc(func() uuid.UUID { return id })))

	if err := c.Ping(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if f.dispatches[0].ID != id {
		t.Errorf("Expected id %s, got %s", id, f.dispatches[0].ID)
	}
}
