package base

import (
	"errors"
	"github.com/ValentinKolb/twinkle/rpc/common"
	"github.com/ValentinKolb/twinkle/rpc/frame"
	"github.com/ValentinKolb/twinkle/rpc/transport"
	"github.com/google/uuid"
	"net"
	"os"
	"syscall"
	"testing"
	"time"
)

// testConnector dials plain udp without any socket tuning
type testConnector struct{}

func (testConnector) GetName() string { return "udp-test" }

func (testConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("udp", endpoint)
}

func (testConnector) UpgradeConnection(net.Conn, common.ClientConfig) error { return nil }

// startEchoPeer answers every request with a success response carrying the request key
func startEchoPeer(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, common.MaxDatagramSize)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			id, req, err := frame.DecodeRequest(buf[:n])
			if err != nil {
				continue
			}
			conn.WriteToUDP(frame.EncodeResponse(id, true, req.Key()), addr)
		}
	}()
	return conn
}

// startTransport connects a transport to addr and runs it in the background
func startTransport(t *testing.T, addr string) (*clientTransport, <-chan error) {
	t.Helper()
	tr := NewBaseClientTransport(testConnector{}).(*clientTransport)
	if err := tr.Connect(common.ClientConfig{Endpoint: addr}); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- tr.Run() }()
	t.Cleanup(func() { tr.Close() })
	return tr, done
}

// TestTransportRoundTrip sends a frame through the dispatcher and receives the response via the listener
func TestTransportRoundTrip(t *testing.T) {
	peer := startEchoPeer(t)
	tr, _ := startTransport(t, peer.LocalAddr().String())

	p, err := frame.Encode(common.NewGetRequest([]byte("hoge")), frame.RandomIDs)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	w, prev, err := tr.Dispatch(p)
	if err != nil {
		t.Fatalf("Failed to dispatch: %v", err)
	}
	if prev != nil {
		t.Errorf("First dispatch should not supersede anything")
	}

	o := waitOutcome(t, w)
	if o.Err != nil || string(o.Value) != "hoge" {
		t.Errorf("Expected hoge, got %q (%v)", o.Value, o.Err)
	}

	entries, frames := tr.pending()
	if entries != 0 || frames != 0 {
		t.Errorf("Expected nothing pending, got %d entries and %d frames", entries, frames)
	}
}

// TestTransportRedispatch tests that dispatching the same packet again supersedes the waiter
func TestTransportRedispatch(t *testing.T) {
	// a peer that never answers, the socket is bound so no icmp is generated
	silent, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer silent.Close()

	tr, _ := startTransport(t, silent.LocalAddr().String())
	p, _ := frame.Encode(common.NewPingRequest(), frame.RandomIDs)

	first, _, err := tr.Dispatch(p)
	if err != nil {
		t.Fatalf("Failed to dispatch: %v", err)
	}
	second, prev, err := tr.Dispatch(p)
	if err != nil {
		t.Fatalf("Failed to dispatch again: %v", err)
	}
	if prev != first || !first.Abandoned() {
		t.Errorf("Expected the first waiter to be superseded")
	}
	if entries, _ := tr.pending(); entries != 1 {
		t.Errorf("Expected exactly one entry per id, got %d", entries)
	}
	if second.Abandoned() {
		t.Errorf("Current waiter must not be abandoned")
	}
}

// TestTransportClose tests that Close ends Run without an error and rejects further dispatches
func TestTransportClose(t *testing.T) {
	peer := startEchoPeer(t)
	tr, done := startTransport(t, peer.LocalAddr().String())

	time.Sleep(10 * time.Millisecond)
	if err := tr.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected Run to return nil after Close, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after Close")
	}

	p, _ := frame.Encode(common.NewPingRequest(), frame.RandomIDs)
	if _, _, err := tr.Dispatch(p); !errors.Is(err, common.ErrTransportClosed) {
		t.Errorf("Expected ErrTransportClosed, got %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}
}

// TestTransportNotConnected tests the behaviour before Connect
func TestTransportNotConnected(t *testing.T) {
	tr := NewBaseClientTransport(testConnector{})
	if err := tr.Run(); err == nil {
		t.Errorf("Run without Connect should fail")
	}
	p, _ := frame.Encode(common.NewPingRequest(), frame.RandomIDs)
	if _, _, err := tr.Dispatch(p); !errors.Is(err, common.ErrTransportClosed) {
		t.Errorf("Expected ErrTransportClosed, got %v", err)
	}
	if err := tr.Connect(common.ClientConfig{}); err == nil {
		t.Errorf("Connect without endpoint should fail")
	}
}

// failingSendHalf fails every send
type failingSendHalf struct{ err error }

func (f failingSendHalf) Send([]byte) error { return f.err }

// TestDispatcherFatalError tests that a send failure ends the dispatcher with the error
func TestDispatcherFatalError(t *testing.T) {
	q := newOutboundQueue()
	sendErr := errors.New("network is down")
	d := &dispatcher{queue: q, sock: failingSendHalf{err: sendErr}}

	done := make(chan error, 1)
	go func() { done <- d.run() }()
	q.push([]byte("frame"))

	select {
	case err := <-done:
		if !errors.Is(err, sendErr) {
			t.Errorf("Expected the send error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Dispatcher did not stop")
	}
}

// scriptedSendHalf fails the first sends with the given errors and records the rest
type scriptedSendHalf struct {
	errs []error
	sent chan []byte
}

func (s *scriptedSendHalf) Send(b []byte) error {
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return err
	}
	s.sent <- b
	return nil
}

// TestDispatcherSkipsPerDatagramErrors tests that errors concerning a single datagram
// do not stop the dispatcher
func TestDispatcherSkipsPerDatagramErrors(t *testing.T) {
	q := newOutboundQueue()
	sock := &scriptedSendHalf{
		errs: []error{
			&net.OpError{Op: "write", Net: "udp", Err: os.NewSyscallError("write", syscall.EMSGSIZE)},
			&net.OpError{Op: "write", Net: "udp", Err: os.NewSyscallError("write", syscall.ECONNREFUSED)},
		},
		sent: make(chan []byte, 1),
	}
	d := &dispatcher{queue: q, sock: sock}

	done := make(chan error, 1)
	go func() { done <- d.run() }()
	t.Cleanup(q.close)

	q.push([]byte("too large"))
	q.push([]byte("refused"))
	q.push([]byte("ok"))

	select {
	case b := <-sock.sent:
		if string(b) != "ok" {
			t.Errorf("Expected ok, got %q", b)
		}
	case err := <-done:
		t.Fatalf("Dispatcher stopped: %v", err)
	case <-time.After(time.Second):
		t.Fatalf("Frame after the failed sends was not sent")
	}
}

// TestConnectWrapsErrors tests that the connector error stays inspectable
func TestConnectWrapsErrors(t *testing.T) {
	tr := NewBaseClientTransport(testConnector{})
	err := tr.Connect(common.ClientConfig{Endpoint: "127.0.0.1:not-a-port"})
	if err == nil {
		t.Fatal("Expected an error for an invalid endpoint")
	}
	var addrErr *net.AddrError
	var opErr *net.OpError
	if !errors.As(err, &addrErr) && !errors.As(err, &opErr) {
		t.Errorf("Expected a wrapped net error, got %T: %v", err, err)
	}
}

// TestDispatcherStopsOnClose tests the clean stop of the dispatcher
func TestDispatcherStopsOnClose(t *testing.T) {
	q := newOutboundQueue()
	d := &dispatcher{queue: q, sock: failingSendHalf{}}

	done := make(chan error, 1)
	go func() { done <- d.run() }()
	q.close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Dispatcher did not stop")
	}
}

// TestWaitersAreIndependent makes sure unrelated ids never see each others responses
func TestWaitersAreIndependent(t *testing.T) {
	peer := startEchoPeer(t)
	tr, _ := startTransport(t, peer.LocalAddr().String())

	type call struct {
		key    string
		waiter *transport.Waiter
	}
	calls := make([]call, 20)
	for i := range calls {
		key := uuid.NewString()
		p, _ := frame.Encode(common.NewGetRequest([]byte(key)), frame.RandomIDs)
		w, _, err := tr.Dispatch(p)
		if err != nil {
			t.Fatalf("Failed to dispatch: %v", err)
		}
		calls[i] = call{key: key, waiter: w}
	}

	for _, c := range calls {
		o := waitOutcome(t, c.waiter)
		if string(o.Value) != c.key {
			t.Errorf("Expected %s, got %q", c.key, o.Value)
		}
	}
}
