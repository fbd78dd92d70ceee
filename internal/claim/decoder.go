package claim

import (
	"errors"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// StreamDecoder turns a byte stream into text chunk by chunk. A multi-byte
// UTF-8 sequence split across chunks is held back until it completes;
// invalid bytes decode to U+FFFD.
type StreamDecoder struct {
	dec     *encoding.Decoder
	pending []byte
}

// NewStreamDecoder returns a decoder for one stream.
func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{dec: unicode.UTF8.NewDecoder()}
}

// Decode returns the text completed by chunk.
func (d *StreamDecoder) Decode(chunk []byte) string {
	return d.decode(chunk, false)
}

// Flush returns whatever is still buffered, treating the stream as ended.
func (d *StreamDecoder) Flush() string {
	out := d.decode(nil, true)
	d.dec.Reset()
	return out
}

func (d *StreamDecoder) decode(chunk []byte, atEOF bool) string {
	src := make([]byte, 0, len(d.pending)+len(chunk))
	src = append(src, d.pending...)
	src = append(src, chunk...)
	d.pending = d.pending[:0]
	if len(src) == 0 {
		return ""
	}

	// Worst case every byte becomes a 3-byte replacement rune.
	dst := make([]byte, 3*len(src)+4)
	var out []byte
	for {
		nDst, nSrc, err := d.dec.Transform(dst, src, atEOF)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]
		if errors.Is(err, transform.ErrShortDst) && (nDst > 0 || nSrc > 0) {
			continue
		}
		break
	}
	// Anything left is an incomplete sequence waiting for the next chunk.
	d.pending = append(d.pending, src...)
	return string(out)
}
