package transport

import (
	"github.com/ValentinKolb/twinkle/rpc/common"
	"github.com/ValentinKolb/twinkle/rpc/frame"
	"net"
)

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IClientTransport is the interface for the datagram client transport
type IClientTransport interface {
	// Connect opens the socket to the configured endpoint and prepares the
	// dispatcher and listener. It does not start them, see Run.
	Connect(config common.ClientConfig) error
	// Run runs the dispatcher and listener until Close is called or one of them
	// fails. A failure of either loop is returned, a Close results in nil.
	Run() error
	// Dispatch registers a fresh waiter for the packet id and queues the frame for sending.
	// If the id already had a waiter it is superseded and returned as previous.
	Dispatch(p frame.Packet) (current *Waiter, previous *Waiter, err error)
	// Close stops both loops and closes the socket
	Close() error
}

// --------------------------------------------------------------------------
// Connector
// --------------------------------------------------------------------------

// IClientConnector defines the interface for socket specific connection operations
type IClientConnector interface {
	// Connect returns a connected datagram socket for the endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g. "udp")
	GetName() string

	// UpgradeConnection applies socket settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// --------------------------------------------------------------------------
// Socket halves
// --------------------------------------------------------------------------

// SendHalf is the write side of a connected datagram socket, every Send is one datagram
type SendHalf interface {
	Send(b []byte) error
}

// RecvHalf is the read side of a connected datagram socket, every Recv returns one datagram
type RecvHalf interface {
	Recv(buf []byte) (int, error)
}

type sendHalf struct{ conn net.Conn }

func (s sendHalf) Send(b []byte) error {
	_, err := s.conn.Write(b)
	return err
}

type recvHalf struct{ conn net.Conn }

func (r recvHalf) Recv(buf []byte) (int, error) {
	return r.conn.Read(buf)
}

// Split returns the two halves of conn. Each half must be owned by exactly one goroutine.
func Split(conn net.Conn) (SendHalf, RecvHalf) {
	return sendHalf{conn}, recvHalf{conn}
}
