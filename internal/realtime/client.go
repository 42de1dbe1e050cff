package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"yoketrip/internal/events"
	"yoketrip/internal/metrics"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second
)

var (
	// ErrConnectRejected means the server refused the socket, normally over the token.
	ErrConnectRejected = errors.New("socket connection rejected")
	ErrServerClosed    = errors.New("socket closed by server")
)

// Publisher receives decoded socket events.
type Publisher interface {
	Publish(event *events.Event)
}

// Client is a single Socket.IO connection over the websocket transport.
type Client struct {
	url       string
	namespace string
	dialer    *websocket.Dialer
	bus       Publisher
	logger    *zerolog.Logger

	writeMu sync.Mutex
}

func NewClient(url string, dialer *websocket.Dialer, bus Publisher, logger *zerolog.Logger) *Client {
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: http.ProxyFromEnvironment}
	}
	return &Client{url: url, namespace: "/", dialer: dialer, bus: bus, logger: logger}
}

// Run dials, joins the namespace, calls connected once joined, then publishes
// every event until the connection ends or ctx is done.
func (c *Client) Run(ctx context.Context, connected func()) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("%w: http %d", ErrConnectRejected, resp.StatusCode)
		}
		return fmt.Errorf("dial socket: %w", err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	hs, err := c.open(conn)
	if err != nil {
		return c.wrap(ctx, err)
	}
	if connected != nil {
		connected()
	}
	c.logger.Debug().Str("sid", hs.SID).Msg("socket connected")

	deadline := hs.Deadline()
	for {
		conn.SetReadDeadline(time.Now().Add(deadline))
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return c.wrap(ctx, fmt.Errorf("read socket: %w", err))
		}
		if err := c.handle(conn, frame); err != nil {
			return c.wrap(ctx, err)
		}
	}
}

// open performs the Engine.IO handshake and the namespace connect.
func (c *Client) open(conn *websocket.Conn) (Handshake, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	p, err := c.read(conn)
	if err != nil {
		return Handshake{}, err
	}
	if p.Engine != engineOpen {
		return Handshake{}, fmt.Errorf("expected open packet, got %q", p.Engine)
	}
	var hs Handshake
	if err := json.Unmarshal(p.Data, &hs); err != nil {
		return Handshake{}, fmt.Errorf("decode handshake: %w", err)
	}

	if err := c.write(conn, encodeConnect(c.namespace)); err != nil {
		return Handshake{}, err
	}

	for {
		p, err := c.read(conn)
		if err != nil {
			return Handshake{}, err
		}
		switch {
		case p.Engine == enginePing:
			if err := c.write(conn, []byte{enginePong}); err != nil {
				return Handshake{}, err
			}
		case p.Engine == engineMessage && p.Socket == socketConnect:
			return hs, nil
		case p.Engine == engineMessage && p.Socket == socketConnectError:
			return Handshake{}, fmt.Errorf("%w: %s", ErrConnectRejected, p.ConnectError())
		case p.Engine == engineClose:
			return Handshake{}, ErrServerClosed
		}
	}
}

func (c *Client) handle(conn *websocket.Conn, frame []byte) error {
	p, err := DecodePacket(frame)
	if err != nil {
		c.logger.Warn().Err(err).Msg("skip malformed socket frame")
		return nil
	}

	switch p.Engine {
	case enginePing:
		return c.write(conn, []byte{enginePong})
	case engineClose:
		return ErrServerClosed
	case engineMessage:
	default:
		return nil
	}

	switch p.Socket {
	case socketEvent:
		name, args, err := p.Event()
		if err != nil {
			c.logger.Warn().Err(err).Msg("skip malformed socket event")
			return nil
		}
		metrics.IncRealtimeEvent(name)
		c.bus.Publish(&events.Event{Type: name, Payload: args, ReceivedAt: time.Now()})
		if p.AckID >= 0 {
			return c.write(conn, encodeAck(p.Namespace, p.AckID))
		}
	case socketDisconnect:
		return ErrServerClosed
	case socketConnectError:
		return fmt.Errorf("%w: %s", ErrConnectRejected, p.ConnectError())
	}
	return nil
}

func (c *Client) read(conn *websocket.Conn) (Packet, error) {
	_, frame, err := conn.ReadMessage()
	if err != nil {
		return Packet{}, fmt.Errorf("read socket: %w", err)
	}
	return DecodePacket(frame)
}

func (c *Client) write(conn *websocket.Conn, frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write socket: %w", err)
	}
	return nil
}

// wrap reports cancellation as ctx.Err so callers can tell unmount from failure.
func (c *Client) wrap(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
