// Package stream turns a chunked response body into complete lines.
package stream

import "bytes"

// Reassembler buffers a trailing partial line across chunk boundaries. The
// zero value is ready to use. It is not safe for concurrent use; each stream
// owns one.
type Reassembler struct {
	buf []byte
}

// Feed appends chunk to the carry-over buffer and returns every line it
// completes, without the newline. The final segment, possibly empty, is kept
// for the next call. Splitting on the newline byte never cuts a multi-byte
// UTF-8 sequence, so a rune split across chunks is rejoined here.
func (r *Reassembler) Feed(chunk []byte) []string {
	r.buf = append(r.buf, chunk...)

	var lines []string
	start := 0
	for {
		i := bytes.IndexByte(r.buf[start:], '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(r.buf[start:start+i]))
		start += i + 1
	}

	if start > 0 {
		r.buf = append(r.buf[:0], r.buf[start:]...)
	}
	return lines
}

// Flush returns the buffered partial line, if any, and resets the buffer.
// The last message of a stream may arrive without a trailing newline.
func (r *Reassembler) Flush() (string, bool) {
	if len(r.buf) == 0 {
		return "", false
	}
	line := string(r.buf)
	r.buf = r.buf[:0]
	return line, true
}

// Buffered reports how many bytes are waiting for a newline.
func (r *Reassembler) Buffered() int {
	return len(r.buf)
}
