package testing

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/ValentinKolb/twinkle/rpc/client"
	"github.com/ValentinKolb/twinkle/rpc/common"
	"github.com/ValentinKolb/twinkle/rpc/frame"
	"github.com/google/uuid"
	"sync"
	"testing"
	"time"
)

// ClientFactory opens a client for the given configuration on the transport under test
type ClientFactory func(config common.ClientConfig, opts ...client.Option) (*client.Client, error)

// RunClientTests runs the behavioural test suite of the twinkle client against a transport
func RunClientTests(t *testing.T, name string, factory ClientFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Ping", func(t *testing.T) {
			testPing(t, factory)
		})

		t.Run("GetNotFound", func(t *testing.T) {
			testGetNotFound(t, factory)
		})

		t.Run("SetAndGet", func(t *testing.T) {
			testSetAndGet(t, factory)
		})

		t.Run("NoiseInterleaved", func(t *testing.T) {
			testNoiseInterleaved(t, factory)
		})

		t.Run("DuplicateResponses", func(t *testing.T) {
			testDuplicateResponses(t, factory)
		})

		t.Run("LossyPeer", func(t *testing.T) {
			testLossyPeer(t, factory)
		})

		t.Run("LateResponse", func(t *testing.T) {
			testLateResponse(t, factory)
		})

		t.Run("Timeout", func(t *testing.T) {
			testTimeout(t, factory)
		})

		t.Run("KeyTooLong", func(t *testing.T) {
			testKeyTooLong(t, factory)
		})

		t.Run("FrameSizeLimit", func(t *testing.T) {
			testFrameSizeLimit(t, factory)
		})

		t.Run("Concurrent", func(t *testing.T) {
			testConcurrent(t, factory)
		})

		t.Run("Close", func(t *testing.T) {
			testClose(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// setup starts a peer and a running client connected to it
func setup(t *testing.T, factory ClientFactory, opts PeerOptions, clientOpts ...client.Option) (*Peer, *client.Client) {
	t.Helper()

	peer, err := StartPeer(opts)
	if err != nil {
		t.Fatalf("Failed to start peer: %v", err)
	}
	t.Cleanup(func() { peer.Close() })

	c, err := factory(common.ClientConfig{Endpoint: peer.Addr()}, clientOpts...)
	if err != nil {
		t.Fatalf("Failed to open client: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Run() }()

	t.Cleanup(func() {
		c.Close()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Transport failed: %v", err)
			}
		case <-time.After(time.Second):
			t.Errorf("Transport did not stop after Close")
		}
	})
	return peer, c
}

// recordingIDs remembers every id it hands out
type recordingIDs struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (r *recordingIDs) NewID() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.New()
	r.ids = append(r.ids, id)
	return id
}

func (r *recordingIDs) last() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ids[len(r.ids)-1]
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func testPing(t *testing.T, factory ClientFactory) {
	_, c := setup(t, factory, PeerOptions{})

	if err := c.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func testGetNotFound(t *testing.T, factory ClientFactory) {
	peer, c := setup(t, factory, PeerOptions{})
	peer.Store([]byte("hoge"), []byte("foo"))

	if err := c.Unset([]byte("hoge")); err != nil {
		t.Fatalf("Unset failed: %v", err)
	}

	value, err := c.Get([]byte("hoge"))
	if !errors.Is(err, common.ErrCommandFailed) {
		t.Fatalf("Expected ErrCommandFailed, got value %q and error %v", value, err)
	}

	if _, err := c.Get([]byte("never-set")); !errors.Is(err, common.ErrCommandFailed) {
		t.Errorf("Expected ErrCommandFailed for a key that was never set, got %v", err)
	}
}

func testSetAndGet(t *testing.T, factory ClientFactory) {
	_, c := setup(t, factory, PeerOptions{})

	if err := c.Set([]byte("fuga"), []byte("foo")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, err := c.Get([]byte("fuga"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(value, []byte("foo")) {
		t.Errorf("Expected foo, got %q", value)
	}

	// binary values and overwrite
	binary := []byte{0x00, 0x01, 0x02, 0xff}
	if err := c.Set([]byte("fuga"), binary); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if value, _ := c.Get([]byte("fuga")); !bytes.Equal(value, binary) {
		t.Errorf("Expected %x, got %x", binary, value)
	}

	// empty value is a success with an empty payload
	if err := c.Set([]byte("empty"), nil); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, err = c.Get([]byte("empty"))
	if err != nil || len(value) != 0 {
		t.Errorf("Expected empty value, got %q (%v)", value, err)
	}
}

func testNoiseInterleaved(t *testing.T, factory ClientFactory) {
	_, c := setup(t, factory, PeerOptions{Noise: true})

	for i := 0; i < 5; i++ {
		if err := c.Ping(); err != nil {
			t.Fatalf("Ping %d failed despite noise: %v", i, err)
		}
	}
	if err := c.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if value, err := c.Get([]byte("k")); err != nil || string(value) != "v" {
		t.Errorf("Expected v, got %q (%v)", value, err)
	}
}

func testDuplicateResponses(t *testing.T, factory ClientFactory) {
	_, c := setup(t, factory, PeerOptions{Duplicate: true})

	for i := 0; i < 5; i++ {
		key := []byte(fmt.Sprintf("dup-%d", i))
		if err := c.Set(key, key); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		value, err := c.Get(key)
		if err != nil || !bytes.Equal(value, key) {
			t.Errorf("Expected %s, got %q (%v)", key, value, err)
		}
	}
}

func testLossyPeer(t *testing.T, factory ClientFactory) {
	ids := &recordingIDs{}
	peer, c := setup(t, factory, PeerOptions{DropFirst: 3}, client.WithIDSource(ids))

	if err := c.Ping(); err != nil {
		t.Fatalf("Ping failed with a lossy peer: %v", err)
	}
	if n := peer.Attempts(ids.last()); n < 4 {
		t.Errorf("Expected at least 4 attempts, peer saw %d", n)
	}
}

func testLateResponse(t *testing.T, factory ClientFactory) {
	ids := &recordingIDs{}
	policy := common.DefaultRetryPolicy()

	// the answer to the first attempt arrives while the second attempt is polling
	delay := policy.AttemptWindow() + policy.AttemptWindow()/2
	peer, c := setup(t, factory, PeerOptions{Delay: delay}, client.WithIDSource(ids))

	if err := c.Set([]byte("late"), []byte("v")); err != nil {
		t.Fatalf("Set failed with a slow peer: %v", err)
	}
	if n := peer.Attempts(ids.last()); n < 2 {
		t.Errorf("Expected the call to be retried before the answer arrived, peer saw %d attempts", n)
	}
}

func testTimeout(t *testing.T, factory ClientFactory) {
	ids := &recordingIDs{}
	peer, c := setup(t, factory, PeerOptions{Silent: true}, client.WithIDSource(ids))
	policy := c.Policy()

	start := time.Now()
	err := c.Ping()
	elapsed := time.Since(start)

	if !errors.Is(err, common.ErrRequestTimeout) {
		t.Fatalf("Expected ErrRequestTimeout, got %v", err)
	}
	if elapsed < policy.WorstCase() {
		t.Errorf("Call gave up after %s, before the worst case of %s", elapsed, policy.WorstCase())
	}
	if elapsed > policy.WorstCase()+2*time.Second {
		t.Errorf("Call took %s, far beyond the worst case of %s", elapsed, policy.WorstCase())
	}

	deadline := time.Now().Add(time.Second)
	for peer.Attempts(ids.last()) < policy.MaxAttempts && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n := peer.Attempts(ids.last()); n != policy.MaxAttempts {
		t.Errorf("Expected %d attempts with the same id, peer saw %d", policy.MaxAttempts, n)
	}
}

func testKeyTooLong(t *testing.T, factory ClientFactory) {
	peer, c := setup(t, factory, PeerOptions{})

	err := c.Set(make([]byte, common.MaxKeyLen+1), []byte("v"))
	if !errors.Is(err, common.ErrKeyTooLong) {
		t.Fatalf("Expected ErrKeyTooLong, got %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if n := peer.Received(); n != 0 {
		t.Errorf("Expected nothing to be sent, peer received %d datagrams", n)
	}
}

func testFrameSizeLimit(t *testing.T, factory ClientFactory) {
	peer, c := setup(t, factory, PeerOptions{})

	if err := c.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	before := peer.Received()

	key := []byte("k")
	fits := common.MaxFrameSize - common.HeaderLen - common.KeyLenSize - len(key)

	// one byte more than a datagram can carry
	err := c.Set(key, make([]byte, fits+1))
	if !errors.Is(err, common.ErrFrameTooLarge) {
		t.Fatalf("Expected ErrFrameTooLarge, got %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if n := peer.Received(); n != before {
		t.Errorf("Expected nothing to be sent, peer received %d new datagrams", n-before)
	}

	// the largest frame still goes through
	large := bytes.Repeat([]byte{0xab}, fits)
	if err := c.Set(key, large); err != nil {
		t.Fatalf("Set of a frame at the limit failed: %v", err)
	}
	value, err := c.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(value, large) {
		t.Errorf("Expected %d bytes back, got %d", len(large), len(value))
	}

	// the transport is still usable
	if err := c.Ping(); err != nil {
		t.Fatalf("Ping after the rejected frame failed: %v", err)
	}
}

func testConcurrent(t *testing.T, factory ClientFactory) {
	_, c := setup(t, factory, PeerOptions{Noise: true, Delay: 2 * time.Millisecond})

	const workers = 20
	const perWorker = 10

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := []byte(fmt.Sprintf("worker-%d-%d", w, i))
				value := []byte(uuid.NewString())
				if err := c.Set(key, value); err != nil {
					t.Errorf("Set %s failed: %v", key, err)
					continue
				}
				got, err := c.Get(key)
				if err != nil {
					t.Errorf("Get %s failed: %v", key, err)
					continue
				}
				if !bytes.Equal(got, value) {
					t.Errorf("Crosstalk on %s: expected %s, got %s", key, value, got)
				}
			}
		}(w)
	}
	wg.Wait()
}

func testClose(t *testing.T, factory ClientFactory) {
	peer, err := StartPeer(PeerOptions{})
	if err != nil {
		t.Fatalf("Failed to start peer: %v", err)
	}
	defer peer.Close()

	c, err := factory(common.ClientConfig{Endpoint: peer.Addr()})
	if err != nil {
		t.Fatalf("Failed to open client: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- c.Run() }()

	if err := c.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected Run to return nil after Close, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after Close")
	}

	if err := c.Ping(); !errors.Is(err, common.ErrTransportClosed) {
		t.Errorf("Expected ErrTransportClosed after Close, got %v", err)
	}
}

// static check that recordingIDs can be used as an id source
var _ frame.IDSource = (*recordingIDs)(nil)
