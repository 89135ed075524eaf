package pose

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// maxMessageSize bounds a single framed message (a 1080p JPEG is well below this)
const maxMessageSize = 32 << 20

// poseRequest is sent to the model process for every frame
type poseRequest struct {
	FrameData []byte      `msgpack:"frame_data"`
	Width     int         `msgpack:"width"`
	Height    int         `msgpack:"height"`
	Format    string      `msgpack:"format"`
	Meta      requestMeta `msgpack:"meta"`
}

type requestMeta struct {
	InstanceID string `msgpack:"instance_id"`
	Seq        uint64 `msgpack:"seq"`
	Timestamp  string `msgpack:"timestamp"`
	TraceID    string `msgpack:"trace_id"`
}

// poseResponse is the model's answer. Landmarks is empty when no body was found.
type poseResponse struct {
	Seq       uint64              `msgpack:"seq"`
	Landmarks map[string]Landmark `msgpack:"landmarks"`
	Timing    responseTiming      `msgpack:"timing"`
	Error     string              `msgpack:"error,omitempty"`
}

type responseTiming struct {
	TotalMS     float64 `msgpack:"total_ms"`
	InferenceMS float64 `msgpack:"inference_ms"`
}

// writeMessage writes v as a 4-byte big-endian length followed by msgpack
func writeMessage(w io.Writer, v any) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal msgpack: %w", err)
	}

	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// readMessage reads one length-prefixed msgpack message into v
func readMessage(r io.Reader, v any) error {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return err
	}

	n := binary.BigEndian.Uint32(prefix[:])
	if n > maxMessageSize {
		return fmt.Errorf("message of %d bytes exceeds limit %d", n, maxMessageSize)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("read message body: %w", err)
	}

	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal msgpack: %w", err)
	}
	return nil
}
