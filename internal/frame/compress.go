package frame

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

// inflate decompresses a zlib-wrapped deflate stream.
func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Deflate zlib-compresses payload. The live protocol itself never requires
// the client to compress; this exists for building version-2 frames in tests
// and tooling.
func Deflate(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
