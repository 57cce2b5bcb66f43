package providers

import (
	"errors"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// StreamDecoder turns arbitrarily split UTF-8 byte chunks into text. A
// multi-byte sequence cut across chunks is held back until it completes;
// invalid bytes become U+FFFD.
type StreamDecoder struct {
	t       transform.Transformer
	pending []byte
}

func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{t: unicode.UTF8.NewDecoder()}
}

// Decode returns the text completed by chunk.
func (d *StreamDecoder) Decode(chunk []byte) string {
	if len(chunk) == 0 {
		return ""
	}
	src := append(d.pending, chunk...)
	d.pending = nil
	return d.run(src, false)
}

// Flush returns whatever is still held back, replacing an incomplete
// trailing sequence with U+FFFD.
func (d *StreamDecoder) Flush() string {
	src := d.pending
	d.pending = nil
	out := d.run(src, true)
	d.t.Reset()
	return out
}

func (d *StreamDecoder) run(src []byte, atEOF bool) string {
	var out []byte
	dst := make([]byte, 3*len(src)+8)
	for {
		nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]
		switch {
		case err == nil:
			return string(out)
		case errors.Is(err, transform.ErrShortDst):
			dst = make([]byte, 2*len(dst))
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), src...)
			return string(out)
		default:
			return string(out)
		}
	}
}

// DecodeAll decodes a complete body.
func DecodeAll(body []byte) string {
	d := NewStreamDecoder()
	return d.Decode(body) + d.Flush()
}
