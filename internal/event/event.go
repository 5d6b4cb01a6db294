// Package event turns decoded wire frames into typed domain events.
//
// The decoder is stateless and performs no I/O. Unrecognized op codes and
// unrecognized notification cmds are not errors: they decode to UnknownOp
// and Unknown so the client keeps working when the platform ships new
// message kinds.
package event

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yuronglin/bililive-feed/internal/frame"
)

var (
	// ErrBadBody marks a frame body that failed JSON decoding.
	ErrBadBody = errors.New("event: malformed body")
	// ErrBadDanmu marks a chat message whose positional array is missing
	// the required prefix.
	ErrBadDanmu = errors.New("event: malformed danmu")
)

// ServerEvent is one decoded server message. Implementations: LoginAck,
// Heartbeat, Notification, UnknownOp.
type ServerEvent interface {
	serverEvent()
}

// LoginAck acknowledges the login frame. Code 0 is success.
type LoginAck struct {
	Code int
}

// Heartbeat is the server's reply to a client heartbeat, carrying the
// room's current online count.
type Heartbeat struct {
	Online uint32
}

// Notification is a server-pushed room event.
type Notification struct {
	Payload Payload
}

// UnknownOp preserves a frame with an op code outside the known set.
type UnknownOp struct {
	Op   uint32
	Body []byte
}

func (LoginAck) serverEvent()     {}
func (Heartbeat) serverEvent()    {}
func (Notification) serverEvent() {}
func (UnknownOp) serverEvent()    {}

// Decode dispatches a frame by op code into a typed event.
func Decode(f frame.Frame) (ServerEvent, error) {
	switch f.Op {
	case frame.OpServerHeartbeat:
		if len(f.Body) < 4 {
			return nil, fmt.Errorf("%w: heartbeat body is %d bytes", ErrBadBody, len(f.Body))
		}
		return Heartbeat{Online: binary.BigEndian.Uint32(f.Body[:4])}, nil

	case frame.OpLoginAck:
		// The server has been observed to send both an empty body and a
		// small JSON object here; an empty body means success.
		ack := LoginAck{}
		if len(f.Body) > 0 {
			var body struct {
				Code int `json:"code"`
			}
			if err := json.Unmarshal(f.Body, &body); err != nil {
				return nil, fmt.Errorf("%w: login ack: %v", ErrBadBody, err)
			}
			ack.Code = body.Code
		}
		return ack, nil

	case frame.OpNotification:
		p, err := decodeNotification(f.Body)
		if err != nil {
			return nil, err
		}
		return Notification{Payload: p}, nil

	default:
		return UnknownOp{Op: f.Op, Body: f.Body}, nil
	}
}
