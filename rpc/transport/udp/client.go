package udp

import (
	"fmt"
	"github.com/ValentinKolb/twinkle/rpc/common"
	"github.com/ValentinKolb/twinkle/rpc/transport"
	"github.com/ValentinKolb/twinkle/rpc/transport/base"
	"net"
)

// clientConnector implements the IClientConnector interface for UDP sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "udp"
}

// Connect binds an ephemeral local port and connects it to the endpoint,
// so only datagrams from the endpoint are received
func (c *clientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("udp", endpoint)
}

func (c *clientConnector) UpgradeConnection(conn net.Conn, config common.ClientConfig) error {
	udpConn, ok := conn.(*net.UDPConn)
	if !ok {
		return fmt.Errorf("expected *net.UDPConn, got %T", conn)
	}

	if size := config.Socket.ReadBufferSize; size > 0 {
		if err := udpConn.SetReadBuffer(size); err != nil {
			return fmt.Errorf("failed to set read buffer to %d bytes: %w", size, err)
		}
	}
	if size := config.Socket.WriteBufferSize; size > 0 {
		if err := udpConn.SetWriteBuffer(size); err != nil {
			return fmt.Errorf("failed to set write buffer to %d bytes: %w", size, err)
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Client Transport Factory Method
// --------------------------------------------------------------------------

// NewUDPClientTransport creates a new UDP client transport
func NewUDPClientTransport() transport.IClientTransport {
	return base.NewBaseClientTransport(&clientConnector{})
}
