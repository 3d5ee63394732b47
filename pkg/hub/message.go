// Package hub fans dashboard updates out to websocket clients through a
// single goroutine that owns the client set.
package hub

// MessageType indicates the websocket message format.
type MessageType int

const (
	JSONMessage   MessageType = iota // status and log updates
	BinaryMessage                    // JPEG frames
)

// Message is one broadcast payload.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps binary data.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}
