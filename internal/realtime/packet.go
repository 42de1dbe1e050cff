package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Engine.IO v4 packet types.
const (
	engineOpen    byte = '0'
	engineClose   byte = '1'
	enginePing    byte = '2'
	enginePong    byte = '3'
	engineMessage byte = '4'
	engineUpgrade byte = '5'
	engineNoop    byte = '6'
)

// Socket.IO v5 packet types, carried inside an Engine.IO message.
const (
	socketConnect      byte = '0'
	socketDisconnect   byte = '1'
	socketEvent        byte = '2'
	socketAck          byte = '3'
	socketConnectError byte = '4'
)

var errEmptyPacket = errors.New("empty packet")

// Packet is one decoded websocket frame.
type Packet struct {
	Engine    byte
	Socket    byte // only for engineMessage
	Namespace string
	AckID     int // -1 when the sender wants no ack
	Data      json.RawMessage
}

// Handshake is the payload of the Engine.IO open packet.
type Handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

// Deadline is how long to wait for the next frame: one ping interval plus
// the ping timeout, per Engine.IO heartbeat rules.
func (h Handshake) Deadline() time.Duration {
	interval := time.Duration(h.PingInterval) * time.Millisecond
	timeout := time.Duration(h.PingTimeout) * time.Millisecond
	if interval <= 0 {
		interval = 25 * time.Second
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return interval + timeout
}

func DecodePacket(frame []byte) (Packet, error) {
	if len(frame) == 0 {
		return Packet{}, errEmptyPacket
	}
	p := Packet{Engine: frame[0], AckID: -1, Namespace: "/"}
	rest := frame[1:]

	switch p.Engine {
	case engineOpen, engineClose, enginePing, enginePong, engineUpgrade, engineNoop:
		p.Data = rest
		return p, nil
	case engineMessage:
	default:
		return Packet{}, fmt.Errorf("unknown engine packet type %q", p.Engine)
	}

	if len(rest) == 0 {
		return Packet{}, fmt.Errorf("message packet without socket type")
	}
	p.Socket = rest[0]
	rest = rest[1:]

	if len(rest) > 0 && rest[0] == '/' {
		end := bytes.IndexByte(rest, ',')
		if end < 0 {
			p.Namespace = string(rest)
			rest = nil
		} else {
			p.Namespace = string(rest[:end])
			rest = rest[end+1:]
		}
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.Atoi(string(rest[:digits]))
		if err != nil {
			return Packet{}, fmt.Errorf("bad ack id: %w", err)
		}
		p.AckID = id
		rest = rest[digits:]
	}

	p.Data = rest
	return p, nil
}

// Event splits an event packet into its name and raw arguments.
func (p Packet) Event() (string, json.RawMessage, error) {
	if p.Engine != engineMessage || p.Socket != socketEvent {
		return "", nil, fmt.Errorf("not an event packet")
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(p.Data, &parts); err != nil {
		return "", nil, fmt.Errorf("decode event: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("event without name")
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("decode event name: %w", err)
	}
	args, err := json.Marshal(parts[1:])
	if err != nil {
		return "", nil, err
	}
	return name, args, nil
}

// ConnectError extracts the message of a connect_error packet.
func (p Packet) ConnectError() string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(p.Data, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return string(p.Data)
}

func encodeConnect(namespace string) []byte {
	if namespace == "" || namespace == "/" {
		return []byte{engineMessage, socketConnect}
	}
	return append([]byte{engineMessage, socketConnect}, namespace+","...)
}

func encodeAck(namespace string, id int) []byte {
	out := []byte{engineMessage, socketAck}
	if namespace != "" && namespace != "/" {
		out = append(out, namespace+","...)
	}
	out = strconv.AppendInt(out, int64(id), 10)
	return append(out, "[]"...)
}
