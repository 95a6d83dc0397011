package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// Connection is the subset of a websocket connection used by Client
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() string
}

// connectionWrapper adapts *websocket.Conn to Connection
type connectionWrapper struct {
	*websocket.Conn
}

// NewConnection wraps a gorilla connection
func NewConnection(conn *websocket.Conn) Connection {
	return &connectionWrapper{Conn: conn}
}

func (c *connectionWrapper) RemoteAddr() string {
	if addr := c.Conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
