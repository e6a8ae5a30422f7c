package testing

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/twinkle/rpc/common"
	"github.com/ValentinKolb/twinkle/rpc/frame"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("peer")

// PeerOptions controls how a Peer misbehaves
type PeerOptions struct {
	// DropFirst drops the first n datagrams of every correlation id
	DropFirst int
	// Delay delays every answer, answers may overtake each other
	Delay time.Duration
	// Silent receives requests but never answers
	Silent bool
	// Noise sends a truncated datagram and a response for an unknown id before every answer
	Noise bool
	// Duplicate sends every answer twice
	Duplicate bool
}

// Peer is an in-memory twinkle server on a loopback UDP socket, used to test clients.
// It keeps the store in memory and executes every request it answers, including retries.
type Peer struct {
	conn *net.UDPConn
	opts PeerOptions

	store    *xsync.MapOf[string, []byte]
	attempts *xsync.MapOf[uuid.UUID, int]
	received atomic.Int64

	closed atomic.Bool
	wg     sync.WaitGroup
}

// StartPeer starts a peer on an ephemeral loopback port
func StartPeer(opts PeerOptions) (*Peer, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %v", err)
	}

	p := &Peer{
		conn:     conn,
		opts:     opts,
		store:    xsync.NewMapOf[string, []byte](),
		attempts: xsync.NewMapOf[uuid.UUID, int](),
	}

	p.wg.Add(1)
	go p.serve()

	Logger.Debugf("Peer listening on %s", conn.LocalAddr())
	return p, nil
}

// Addr returns the address clients should connect to
func (p *Peer) Addr() string {
	return p.conn.LocalAddr().String()
}

// Received returns the number of datagrams the peer read
func (p *Peer) Received() int {
	return int(p.received.Load())
}

// Attempts returns how many request datagrams carried id
func (p *Peer) Attempts(id uuid.UUID) int {
	n, _ := p.attempts.Load(id)
	return n
}

// Store sets a key directly, bypassing the protocol
func (p *Peer) Store(key, value []byte) {
	p.store.Store(string(key), append([]byte{}, value...))
}

// Close stops the peer, delayed answers still pending are dropped
func (p *Peer) Close() error {
	p.closed.Store(true)
	err := p.conn.Close()
	p.wg.Wait()
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// serve reads requests until the socket is closed
func (p *Peer) serve() {
	defer p.wg.Done()

	buf := make([]byte, common.MaxDatagramSize)
	for {
		n, addr, err := p.conn.ReadFromUDP(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				Logger.Errorf("Peer read error: %v", err)
			}
			return
		}
		p.received.Add(1)
		p.handle(buf[:n], addr)
	}
}

// handle answers one request datagram according to the options
func (p *Peer) handle(b []byte, addr *net.UDPAddr) {
	id, req, err := frame.DecodeRequest(b)
	if err != nil {
		Logger.Warningf("Peer dropped invalid request: %v", err)
		return
	}

	attempt, _ := p.attempts.Compute(id, func(old int, _ bool) (int, bool) {
		return old + 1, false
	})
	if attempt <= p.opts.DropFirst || p.opts.Silent {
		Logger.Debugf("Peer dropped attempt %d of %s", attempt, id)
		return
	}

	ok, payload := p.execute(req)
	resp := frame.EncodeResponse(id, ok, payload)

	if p.opts.Delay > 0 {
		time.AfterFunc(p.opts.Delay, func() { p.answer(resp, addr) })
		return
	}
	p.answer(resp, addr)
}

// execute applies req to the store
func (p *Peer) execute(req common.Request) (bool, []byte) {
	switch req.Op() {
	case common.OpPing:
		return true, nil
	case common.OpGet:
		value, found := p.store.Load(string(req.Key()))
		return found, value
	case common.OpSet:
		p.store.Store(string(req.Key()), req.Value())
		return true, nil
	case common.OpUnset:
		p.store.Delete(string(req.Key()))
		return true, nil
	default:
		return false, nil
	}
}

// answer writes a response, optionally surrounded by noise
func (p *Peer) answer(resp []byte, addr *net.UDPAddr) {
	if p.closed.Load() {
		return
	}

	if p.opts.Noise {
		p.write([]byte{byte(common.StatusSuccess)}, addr)
		p.write(frame.EncodeResponse(uuid.New(), true, []byte("noise")), addr)
	}

	p.write(resp, addr)
	if p.opts.Duplicate {
		p.write(resp, addr)
	}
}

func (p *Peer) write(b []byte, addr *net.UDPAddr) {
	if _, err := p.conn.WriteToUDP(b, addr); err != nil && !p.closed.Load() {
		Logger.Warningf("Peer failed to answer %s: %v", addr, err)
	}
}
