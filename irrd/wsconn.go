package irrd

import (
	"io"

	"github.com/gorilla/websocket"
)

// WebSocketStream adapts a WebSocket connection to the byte-stream transport
// contract, flattening binary messages into one continuous stream. It lets
// the query protocol run through WebSocket tunnels in front of servers that
// are not directly reachable on the whois port.
type WebSocketStream struct {
	conn   *websocket.Conn
	reader io.Reader
}

// NewWebSocketStream wraps an established WebSocket connection.
func NewWebSocketStream(conn *websocket.Conn) *WebSocketStream {
	return &WebSocketStream{conn: conn}
}

func (stream *WebSocketStream) Read(p []byte) (int, error) {
	for {
		if stream.reader == nil {
			_, reader, err := stream.conn.NextReader()
			if err != nil {
				return 0, err
			}
			stream.reader = reader
		}
		n, err := stream.reader.Read(p)
		if err == io.EOF {
			// Message exhausted; continue with the next one.
			stream.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (stream *WebSocketStream) Write(p []byte) (int, error) {
	if err := stream.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close closes the underlying WebSocket connection.
func (stream *WebSocketStream) Close() error {
	return stream.conn.Close()
}

// DialWebSocket establishes a session with a server reachable through a
// WebSocket tunnel at the given URL.
func DialWebSocket(url string, options ...Option) (*Conn, error) {
	wsConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, NewError(ConnectionError, "websocket dial failed", err)
	}
	conn, err := NewConn(NewWebSocketStream(wsConn), options...)
	if err != nil {
		_ = wsConn.Close()
		return nil, err
	}
	return conn, nil
}
