package comms

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

// ErrMalformed is returned for a frame that arrived intact but could not be
// decoded.
var ErrMalformed = errors.New("malformed message")

// ConnectionWrapper wraps a subscriber connection. Writes go through
// WriteChannel so that only one goroutine touches the socket.
type ConnectionWrapper struct {
	Socket       *websocket.Conn
	WriteChannel chan Message
	Codec        Codec
}

func NewConnectionWrapper(socket *websocket.Conn, codec Codec) *ConnectionWrapper {
	return &ConnectionWrapper{
		Socket:       socket,
		WriteChannel: make(chan Message, 8),
		Codec:        codec,
	}
}

func (c *ConnectionWrapper) ReadMessage() (Message, error) {
	var message Message
	_, data, err := c.Socket.ReadMessage()
	if err != nil {
		return message, err
	}
	if err := c.Codec.Decode(data, &message); err != nil {
		return message, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return message, nil
}

func (c *ConnectionWrapper) WriteMessage(message Message) error {
	data, err := c.Codec.Encode(message)
	if err != nil {
		return err
	}
	frame := websocket.TextMessage
	if c.Codec.Binary() {
		frame = websocket.BinaryMessage
	}
	return c.Socket.WriteMessage(frame, data)
}

// Close stops the writer and closes the socket.
func (c *ConnectionWrapper) Close() {
	close(c.WriteChannel)
	c.Socket.Close()
}
