package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Engine.IO v4 packet types.
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
	engineUpgrade = '5'
	engineNoop    = '6'
)

// Socket.IO v5 packet types carried inside an Engine.IO message.
const (
	socketConnect      = '0'
	socketDisconnect   = '1'
	socketEvent        = '2'
	socketAck          = '3'
	socketConnectError = '4'
)

var errEmptyPacket = errors.New("empty packet")

// openPacket is the Engine.IO handshake sent by the server.
type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
	MaxPayload   int    `json:"maxPayload"`
}

// readTimeout is how long the client waits for traffic before treating
// the connection as dead.
func (o openPacket) readTimeout() time.Duration {
	d := time.Duration(o.PingInterval+o.PingTimeout) * time.Millisecond
	if d <= 0 {
		return 45 * time.Second
	}
	return d
}

// packet is a decoded text frame. Socket is zero unless Engine is a message.
type packet struct {
	Engine byte
	Socket byte
	Data   []byte
}

// decodePacket splits a text frame into its Engine.IO and Socket.IO parts.
func decodePacket(msg []byte) (packet, error) {
	if len(msg) == 0 {
		return packet{}, errEmptyPacket
	}

	p := packet{Engine: msg[0], Data: msg[1:]}
	if p.Engine != engineMessage {
		return p, nil
	}
	if len(p.Data) == 0 {
		return packet{}, fmt.Errorf("message packet without socket type")
	}

	p.Socket = p.Data[0]
	p.Data = stripNamespaceAndAck(p.Data[1:])
	return p, nil
}

// stripNamespaceAndAck drops a "/nsp," prefix and a numeric ack id so only
// the JSON payload is left. Only the default namespace is used.
func stripNamespaceAndAck(data []byte) []byte {
	if len(data) > 0 && data[0] == '/' {
		if i := bytes.IndexByte(data, ','); i >= 0 {
			data = data[i+1:]
		} else {
			return nil
		}
	}
	i := 0
	for i < len(data) && data[i] >= '0' && data[i] <= '9' {
		i++
	}
	return data[i:]
}

// decodeOpen parses the payload of an Engine.IO open packet.
func decodeOpen(p packet) (openPacket, error) {
	if p.Engine != engineOpen {
		return openPacket{}, fmt.Errorf("expected open packet, got type %q", p.Engine)
	}
	var o openPacket
	if err := json.Unmarshal(p.Data, &o); err != nil {
		return openPacket{}, fmt.Errorf("decoding open packet: %w", err)
	}
	return o, nil
}

// decodeEvent parses a Socket.IO event payload: ["name", arg...].
func decodeEvent(data []byte) (string, []json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return "", nil, fmt.Errorf("decoding event: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("event without name")
	}

	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("decoding event name: %w", err)
	}
	return name, parts[1:], nil
}

// connectError extracts the message of a CONNECT_ERROR packet.
func connectError(data []byte) error {
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		return errors.New(body.Message)
	}
	return errors.New("connection refused by server")
}

// encodeEvent builds a Socket.IO event frame for the default namespace.
func encodeEvent(name string, args ...any) ([]byte, error) {
	parts := append([]any{name}, args...)
	data, err := json.Marshal(parts)
	if err != nil {
		return nil, fmt.Errorf("encoding event %q: %w", name, err)
	}
	return append([]byte{engineMessage, socketEvent}, data...), nil
}

var (
	connectFrame    = []byte{engineMessage, socketConnect}
	disconnectFrame = []byte{engineMessage, socketDisconnect}
	pongFrame       = []byte{enginePong}
)
