package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yuronglin/bililive-feed/internal/event"
	"github.com/yuronglin/bililive-feed/internal/frame"
)

// client owns one live socket from dial to teardown: login handshake,
// heartbeat timer, read loop. It never reconnects on its own; it reports a
// termination reason to the supervisor and dies.
type client struct {
	epoch  string
	params Params
	cfg    Config
	logger *slog.Logger

	conn      *websocket.Conn
	watchStop chan struct{}
	closeOnce sync.Once

	// All socket writes (login, heartbeats) go through writeMu.
	writeMu sync.Mutex

	events chan<- event.ServerEvent
	online func(uint32)
}

func newClient(epoch string, params Params, cfg Config, events chan<- event.ServerEvent, online func(uint32), logger *slog.Logger) *client {
	if logger == nil {
		logger = slog.Default()
	}
	return &client{
		epoch:  epoch,
		params: params,
		cfg:    cfg,
		logger: logger.With("epoch", epoch),
		events: events,
		online: online,
	}
}

// dial tries the candidate endpoints in order and keeps the first socket
// that opens.
func (c *client) dial(ctx context.Context) error {
	if len(c.params.Endpoints) == 0 {
		return ErrNoEndpoints
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	var lastErr error
	for _, url := range c.params.Endpoints {
		conn, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			c.logger.Warn("dial failed", "url", url, "error", err)
			lastErr = err
			continue
		}
		c.conn = conn
		c.logger.Debug("socket connected", "url", url)

		// From this point cancellation must abort any in-flight read,
		// the login handshake included. Closing the socket is the only
		// way to unblock one.
		c.watchStop = make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-c.watchStop:
			}
		}()
		return nil
	}
	return fmt.Errorf("all endpoints failed: %w", lastErr)
}

// login sends the login frame and blocks until the server acknowledges it.
// Any decode failure here is a handshake failure, not a skippable frame.
func (c *client) login(ctx context.Context) error {
	if err := c.write(frame.EncodeLogin(c.params.RoomID, c.params.UID, c.params.Key)); err != nil {
		return fmt.Errorf("send login: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read login ack: %w", err)
		}

		frames, err := frame.DecodeAll(data)
		if err != nil {
			return fmt.Errorf("decode login ack: %w", err)
		}
		for _, f := range frames {
			ev, err := event.Decode(f)
			if err != nil {
				return fmt.Errorf("decode login ack: %w", err)
			}
			ack, ok := ev.(event.LoginAck)
			if !ok {
				// Server occasionally pushes events before the ack.
				c.logger.Debug("frame before login ack", "op", f.Op)
				continue
			}
			if ack.Code != 0 {
				return &AuthError{Code: ack.Code}
			}
			c.logger.Debug("login acknowledged")
			return nil
		}
	}
}

// run drives the heartbeat timer and the read loop until the socket dies or
// ctx is canceled. The returned error is the termination reason. The
// heartbeat goroutine is reaped before returning, so no session goroutine
// outlives its epoch.
func (c *client) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		c.heartbeatLoop(ctx)
	}()

	err := c.readLoop(ctx)
	cancel()
	<-hbDone
	return err
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		if c.watchStop != nil {
			close(c.watchStop)
		}
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// heartbeatLoop writes a client heartbeat every interval while the session
// lives. A write failure closes the socket, which the read loop observes.
func (c *client) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		if err := c.write(frame.EncodeHeartbeat()); err != nil {
			select {
			case <-ctx.Done():
			default:
				c.logger.Warn("heartbeat write failed", "error", err)
				c.conn.Close()
			}
			return
		}
		c.logger.Debug("heartbeat sent")

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// readLoop reads socket messages, decodes them, and routes events. Malformed
// frames outside the handshake are logged and skipped; only socket errors
// end the loop.
func (c *client) readLoop(ctx context.Context) error {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return ErrSocketEOF
			}
			return fmt.Errorf("socket read: %w", err)
		}

		frames, err := frame.DecodeAll(data)
		if err != nil {
			// Frames decoded before the malformed tail are still routed.
			c.logger.Warn("bad frame in message", "error", err)
		}

		for _, f := range frames {
			if err := c.route(ctx, f); err != nil {
				return err
			}
		}
	}
}

func (c *client) route(ctx context.Context, f frame.Frame) error {
	ev, err := event.Decode(f)
	if err != nil {
		// Recoverable: skip the frame, keep the session.
		if errors.Is(err, event.ErrBadDanmu) {
			c.logger.Debug("bad danmu skipped", "error", err)
		} else {
			c.logger.Warn("bad event skipped", "op", f.Op, "error", err)
		}
		return nil
	}

	switch ev := ev.(type) {
	case event.Heartbeat:
		c.online(ev.Online)
		return nil
	case event.LoginAck:
		// Already handshaken; nothing to do.
		c.logger.Debug("late login ack", "code", ev.Code)
		return nil
	default:
		// Backpressure: block until the consumer drains or the session is
		// torn down. Frames are never dropped for a slow consumer.
		select {
		case c.events <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
