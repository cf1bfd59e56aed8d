package tradewire

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// DialFunc opens the raw byte stream to the gateway. The controller only
// sees the stream; whether it runs over plain TCP or a websocket proxy is
// the dialer's business.
type DialFunc func(ctx context.Context) (io.ReadWriteCloser, error)

// TcpDial returns the default dialer, one TCP connection to host:port.
func TcpDial(host string, port int, connectTimeout time.Duration) DialFunc {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		dialer := &net.Dialer{
			Timeout: connectTimeout,
		}
		conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", host, port))
		if err != nil {
			return nil, err
		}
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			tcpConn.SetNoDelay(true)
		}
		return conn, nil
	}
}

// WsDial returns a dialer for gateways reachable only through a websocket
// proxy that relays the byte protocol in binary messages.
func WsDial(url string, handshakeTimeout time.Duration) DialFunc {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		dialer := &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		}
		ws, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		return &wsStream{ws: ws}, nil
	}
}

// wsStream adapts a websocket connection to the byte-stream interface the
// framer expects. Message boundaries are not meaningful here; the framer
// reassembles frames from the concatenated bytes either way.
type wsStream struct {
	ws      *websocket.Conn
	current io.Reader
}

func (self *wsStream) Read(b []byte) (int, error) {
	for {
		if self.current == nil {
			messageType, reader, err := self.ws.NextReader()
			if err != nil {
				return 0, err
			}
			if messageType != websocket.BinaryMessage {
				continue
			}
			self.current = reader
		}
		n, err := self.current.Read(b)
		if err == io.EOF {
			self.current = nil
			if n == 0 {
				continue
			}
			return n, nil
		}
		return n, err
	}
}

func (self *wsStream) Write(b []byte) (int, error) {
	if err := self.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (self *wsStream) Close() error {
	return self.ws.Close()
}
