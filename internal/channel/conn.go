package channel

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// DefaultWriteTimeout bounds a single write to a client.
const DefaultWriteTimeout = 10 * time.Second

// Conn is a message-oriented, bidirectional client connection.
type Conn interface {
	// ReadMessage blocks for the next data message from the client.
	ReadMessage() ([]byte, error)
	// WriteMessage sends one text message to the client.
	WriteMessage(data []byte) error
	Close() error
}

// wsConn is the server side of an upgraded WebSocket connection. Data
// messages and control replies share wmu so frames never interleave.
type wsConn struct {
	conn         net.Conn
	writeTimeout time.Duration

	wmu sync.Mutex
}

// NewWSConn wraps a connection returned by ws.UpgradeHTTP.
func NewWSConn(conn net.Conn) Conn {
	return NewWSConnTimeout(conn, DefaultWriteTimeout)
}

// NewWSConnTimeout is NewWSConn with a custom per-write deadline.
func NewWSConnTimeout(conn net.Conn, writeTimeout time.Duration) Conn {
	return &wsConn{conn: conn, writeTimeout: writeTimeout}
}

// ReadMessage answers pings and returns wsutil.ClosedError on a close frame.
func (c *wsConn) ReadMessage() ([]byte, error) {
	rd := wsutil.Reader{
		Source:         c.conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: c.handleControl,
	}
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return nil, err
		}
		if hdr.OpCode.IsControl() {
			if err := c.handleControl(hdr, &rd); err != nil {
				return nil, err
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := rd.Discard(); err != nil {
				return nil, err
			}
			continue
		}
		return io.ReadAll(&rd)
	}
}

// handleControl reads the control payload off the wire, then replies under
// the write lock.
func (c *wsConn) handleControl(hdr ws.Header, r io.Reader) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.setWriteDeadline()
	return wsutil.ControlHandler{
		Src:                 bytes.NewReader(payload),
		Dst:                 c.conn,
		State:               ws.StateServerSide,
		DisableSrcCiphering: true,
	}.Handle(hdr)
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.setWriteDeadline()
	return wsutil.WriteServerMessage(c.conn, ws.OpText, data)
}

func (c *wsConn) setWriteDeadline() {
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
