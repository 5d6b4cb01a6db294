// Package frame implements the 16-byte binary header codec for the bilibili
// live chat wire protocol.
//
// Header layout (16 bytes, big-endian):
//
//	[0-3]   total_length    uint32  (header + body)
//	[4-5]   header_length   uint16  (always 16)
//	[6-7]   proto_version   uint16  (0=online count, 1=plain body, 2=zlib body)
//	[8-11]  op_code         uint32
//	[12-15] sequence        uint32
//
// A proto_version 2 body, once inflated, is itself a concatenation of
// complete frames.
package frame

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

const HeaderSize = 16

// Op codes.
const (
	OpClientHeartbeat uint32 = 2 // client → server keepalive
	OpServerHeartbeat uint32 = 3 // server → client, body carries online count
	OpNotification    uint32 = 5 // server-pushed room event
	OpLogin           uint32 = 7 // client → server login
	OpLoginAck        uint32 = 8 // server → client login acknowledgment
)

// Protocol versions.
const (
	VerOnline uint16 = 0 // body is a raw 4-byte big-endian integer
	VerPlain  uint16 = 1 // body is the literal payload
	VerZlib   uint16 = 2 // body is zlib-compressed nested frames
)

var (
	ErrBadHeader = errors.New("frame: bad header")
	ErrTruncated = errors.New("frame: truncated body")
	ErrInflate   = errors.New("frame: inflate body")
)

// Frame is one decoded unit of the wire protocol.
type Frame struct {
	Op      uint32
	Version uint16
	Seq     uint32
	Body    []byte
}

// Encode serialises one frame: 16-byte header followed by the raw payload.
// Sequence is always written as 1, matching what the platform expects from
// clients.
func Encode(op uint32, version uint16, payload []byte) []byte {
	out := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(HeaderSize+len(payload)))
	binary.BigEndian.PutUint16(out[4:6], HeaderSize)
	binary.BigEndian.PutUint16(out[6:8], version)
	binary.BigEndian.PutUint32(out[8:12], op)
	binary.BigEndian.PutUint32(out[12:16], 1)
	copy(out[HeaderSize:], payload)
	return out
}

// DecodeAll walks buf as a sequence of frames. Version-2 bodies are inflated
// and walked in place, so one socket message may yield many frames.
//
// On error the frames decoded so far are still returned; a malformed tail
// does not discard messages already parsed out of the same buffer.
func DecodeAll(buf []byte) ([]Frame, error) {
	frames := make([]Frame, 0, 4)

	// Buffers still to walk. Inflated bodies are processed immediately and
	// the remainder of the enclosing buffer is pushed here, so nesting
	// depth never grows the call stack and stream order is preserved.
	pending := [][]byte{buf}

	for len(pending) > 0 {
		cur := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		for len(cur) > 0 {
			if len(cur) < HeaderSize {
				return frames, fmt.Errorf("%w: %d bytes remaining", ErrBadHeader, len(cur))
			}

			total := binary.BigEndian.Uint32(cur[0:4])
			headLen := binary.BigEndian.Uint16(cur[4:6])
			version := binary.BigEndian.Uint16(cur[6:8])
			op := binary.BigEndian.Uint32(cur[8:12])
			seq := binary.BigEndian.Uint32(cur[12:16])

			if headLen != HeaderSize || total < uint32(HeaderSize) {
				return frames, fmt.Errorf("%w: total=%d header=%d", ErrBadHeader, total, headLen)
			}
			if int(total) > len(cur) {
				return frames, fmt.Errorf("%w: total=%d have=%d", ErrTruncated, total, len(cur))
			}

			body := cur[HeaderSize:total]
			cur = cur[total:]

			if version == VerZlib {
				inflated, err := inflate(body)
				if err != nil {
					return frames, fmt.Errorf("%w: %v", ErrInflate, err)
				}
				if len(cur) > 0 {
					pending = append(pending, cur)
				}
				cur = inflated
				continue
			}

			frames = append(frames, Frame{Op: op, Version: version, Seq: seq, Body: body})
		}
	}

	return frames, nil
}

// loginBody is the JSON payload of an OpLogin frame.
type loginBody struct {
	UID      uint64 `json:"uid,omitempty"`
	RoomID   uint64 `json:"roomid"`
	ProtoVer int    `json:"protover"`
	Platform string `json:"platform"`
	Type     int    `json:"type"`
	Key      string `json:"key"`
}

// EncodeLogin builds the login frame sent immediately after the socket opens.
// A zero uid is omitted, which the server treats as an anonymous viewer.
func EncodeLogin(roomID, uid uint64, key string) []byte {
	payload, _ := json.Marshal(loginBody{
		UID:      uid,
		RoomID:   roomID,
		ProtoVer: 2,
		Platform: "web",
		Type:     2,
		Key:      key,
	})
	return Encode(OpLogin, VerPlain, payload)
}

// EncodeHeartbeat builds the periodic client heartbeat frame. The body is the
// literal string the web client sends.
func EncodeHeartbeat() []byte {
	return Encode(OpClientHeartbeat, VerPlain, []byte("[object Object]"))
}
