package wire

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// Codec reads and writes the wire messages for one connection. It streams
// JSON values directly off the connection with json.Decoder rather than
// reading into a single fixed-size buffer, which resolves spec.md §9 Open
// Question 2 (the source's short-read truncation hazard) without
// introducing a new framing format: json.Decoder already tracks value
// boundaries across partial reads.
type Codec struct {
	dec *json.Decoder
	enc *json.Encoder
}

// NewCodec wraps a connection for handshake/recipe reads and status/response
// writes.
func NewCodec(rw io.ReadWriter) *Codec {
	return &Codec{
		dec: json.NewDecoder(rw),
		enc: json.NewEncoder(rw),
	}
}

// ReadHandshake decodes the next JSON value as a Handshake. It reports an
// error if the value isn't a well-typed handshake object (spec.md §4.2).
func (c *Codec) ReadHandshake() (Handshake, error) {
	var h Handshake
	var raw struct {
		Hello   *string `json:"hello"`
		Version *int    `json:"version"`
	}
	if err := c.dec.Decode(&raw); err != nil {
		return h, errors.Wrap(err, "wire: decode handshake")
	}
	if raw.Hello == nil || raw.Version == nil {
		return h, errors.New("wire: handshake missing hello/version")
	}
	h.Hello, h.Version = *raw.Hello, *raw.Version
	return h, nil
}

// ReadRecipeBody reads the next JSON value verbatim (as raw bytes) so the
// caller can distinguish "not an array at all" (connection-closing) from
// "array with some bad instructions" (per-instruction skip) per spec.md
// §4.6.
func (c *Codec) ReadRecipeBody() (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "wire: decode recipe body")
	}
	return raw, nil
}

// WriteStatus writes a Status message.
func (c *Codec) WriteStatus(s Status) error {
	return errors.Wrap(c.enc.Encode(s), "wire: write status")
}

// WriteResponse writes the full response array: zero or more report events
// followed by the terminal status (spec.md §4.2).
func (c *Codec) WriteResponse(events []json.RawMessage) error {
	out := make([]json.RawMessage, 0, len(events)+1)
	out = append(out, events...)
	statusBytes, err := json.Marshal(OKStatus())
	if err != nil {
		return errors.Wrap(err, "wire: marshal terminal status")
	}
	out = append(out, statusBytes)
	return errors.Wrap(c.enc.Encode(out), "wire: write response")
}

// EncodeReportEvent renders a REPORT event: a JSON object mapping each
// chosen register index (as a string key, since JSON object keys are
// strings) to its current integer value (spec.md §3, §4.1).
func EncodeReportEvent(snapshot map[int]int64, order []int) (json.RawMessage, error) {
	obj := make(map[string]int64, len(order))
	for _, idx := range order {
		v, ok := snapshot[idx]
		if !ok {
			continue
		}
		obj[strconv.Itoa(idx)] = v
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, errors.Wrap(err, "wire: marshal report event")
	}
	return b, nil
}
