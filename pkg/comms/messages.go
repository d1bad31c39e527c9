package comms

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// Message is the envelope for everything sent to feed subscribers.
type Message struct {
	Type     string      `json:"type" msgpack:"type"`
	Contents interface{} `json:"contents" msgpack:"contents"`
}

// ToMessage wraps contents in a Message named after its type.
func ToMessage(contents interface{}) Message {
	return Message{
		Type:     reflect.TypeOf(contents).Name(),
		Contents: contents,
	}
}

// Error returned to the client
type ErrorResponse struct {
	Reason string `json:"reason" msgpack:"reason"`
}

// Codec turns messages into frames and back.
type Codec interface {
	Encode(m Message) ([]byte, error)
	Decode(data []byte, m *Message) error
	// Binary reports whether frames must be sent as binary websocket frames.
	Binary() bool
}

func NewCodec(format string) (Codec, error) {
	switch format {
	case "", "json":
		return jsonCodec{}, nil
	case "msgpack":
		return msgpackCodec{}, nil
	}
	return nil, fmt.Errorf("unknown message format %q", format)
}

type jsonCodec struct{}

func (jsonCodec) Encode(m Message) ([]byte, error) { return json.Marshal(m) }

func (jsonCodec) Decode(data []byte, m *Message) error { return json.Unmarshal(data, m) }

func (jsonCodec) Binary() bool { return false }

type msgpackCodec struct{}

func (msgpackCodec) Encode(m Message) ([]byte, error) { return msgpack.Marshal(&m) }

func (msgpackCodec) Decode(data []byte, m *Message) error { return msgpack.Unmarshal(data, m) }

func (msgpackCodec) Binary() bool { return true }
