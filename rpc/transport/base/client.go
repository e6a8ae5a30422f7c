package base

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/twinkle/rpc/common"
	"github.com/ValentinKolb/twinkle/rpc/frame"
	"github.com/ValentinKolb/twinkle/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/errgroup"
	"net"
	"sync"
	"sync/atomic"
)

var Logger = logger.GetLogger("transport/rpc")

// runningTransports counts transports inside Run, exported as a gauge
var runningTransports atomic.Int64

// clientTransport implements the core client transport functionality
// independent of the specific datagram socket (udp, ...).
type clientTransport struct {
	connector transport.IClientConnector
	config    common.ClientConfig

	conn       net.Conn
	table      *table
	queue      *outboundQueue
	dispatcher *dispatcher
	listener   *listener

	running  atomic.Bool
	stopping atomic.Bool // set as soon as the transport shuts down, for whatever reason
	closed   atomic.Bool // set by Close only
	stopOnce sync.Once
}

// -----------------------------------------------------------
// Transport Factory Method (used for udp, ...)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector transport.IClientConnector) transport.IClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if config.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}
	if t.conn != nil {
		return fmt.Errorf("transport already connected to %s", t.config.Endpoint)
	}

	conn, err := t.connector.Connect(config.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", config.Endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := t.connector.UpgradeConnection(conn, config); err != nil {
		conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %w", config.Endpoint, err)
	}

	// the halves are moved into their loops, nothing else touches the socket
	send, recv := transport.Split(conn)

	t.config = config
	t.conn = conn
	t.table = newTable()
	t.queue = newOutboundQueue()
	t.dispatcher = &dispatcher{queue: t.queue, sock: send}
	t.listener = &listener{sock: recv, table: t.table}

	Logger.Infof("Connected to %s using %s transport (local address %s)",
		config.Endpoint, t.connector.GetName(), conn.LocalAddr())

	return nil
}

func (t *clientTransport) Run() error {
	if t.conn == nil {
		return fmt.Errorf("transport is not connected")
	}
	if !t.running.CompareAndSwap(false, true) {
		return fmt.Errorf("transport is already running")
	}
	if t.stopping.Load() {
		return fmt.Errorf("transport is already stopped: %w", common.ErrTransportClosed)
	}

	runningTransports.Add(1)
	defer runningTransports.Add(-1)

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(t.dispatcher.run)
	g.Go(t.listener.run)

	// the first loop to fail takes the other one down with it
	go func() {
		<-ctx.Done()
		t.shutdown()
	}()

	err := g.Wait()
	if t.closed.Load() {
		Logger.Infof("Transport to %s closed", t.config.Endpoint)
		return nil
	}
	if err != nil {
		Logger.Errorf("Transport to %s failed: %v", t.config.Endpoint, err)
	}
	return err
}

func (t *clientTransport) Dispatch(p frame.Packet) (*transport.Waiter, *transport.Waiter, error) {
	if t.conn == nil {
		return nil, nil, fmt.Errorf("transport is not connected: %w", common.ErrTransportClosed)
	}
	if t.stopping.Load() {
		return nil, nil, common.ErrTransportClosed
	}

	// register before queuing so a fast response always finds its waiter
	w := transport.NewWaiter()
	prev := t.table.register(p.ID, w)

	if !t.queue.push(p.Bytes) {
		return nil, prev, common.ErrTransportClosed
	}
	return w, prev, nil
}

func (t *clientTransport) Close() error {
	t.closed.Store(true)
	if t.conn == nil {
		return nil
	}
	return t.shutdown()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// shutdown stops both loops and releases the socket, only the first call has an effect
func (t *clientTransport) shutdown() (err error) {
	t.stopOnce.Do(func() {
		t.stopping.Store(true)
		t.queue.close()
		err = t.conn.Close()
		t.table.clear()
	})
	return err
}

// pending returns the number of outstanding table entries and queued frames
func (t *clientTransport) pending() (entries int, frames int) {
	return t.table.len(), t.queue.len()
}
