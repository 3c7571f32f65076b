package stream

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
)

// chunkSize is the read size used against the transport. Lines may be longer;
// the reassembler imposes no limit.
const chunkSize = 32 * 1024

// Result wraps a line or an error from reading a stream.
type Result struct {
	Line string
	Err  error
}

// ReadLines reads body until EOF and delivers complete lines in order on the
// returned channel. The body is decoded as UTF-8 text: a leading BOM is
// dropped and invalid sequences become U+FFFD. A read error is delivered as
// the final Result and the buffered partial line is discarded with it. The
// caller owns body and must close it.
func ReadLines(body io.Reader) <-chan Result {
	out := make(chan Result)
	go readLines(body, out)
	return out
}

func readLines(body io.Reader, out chan<- Result) {
	defer close(out)

	src := unicode.UTF8BOM.NewDecoder().Reader(body)
	buf := make([]byte, chunkSize)
	var asm Reassembler

	for {
		n, err := src.Read(buf)
		if n > 0 {
			for _, line := range asm.Feed(buf[:n]) {
				out <- Result{Line: line}
			}
		}

		if errors.Is(err, io.EOF) {
			if line, ok := asm.Flush(); ok {
				out <- Result{Line: line}
			}
			return
		}
		if err != nil {
			out <- Result{Err: fmt.Errorf("stream read error: %w", err)}
			return
		}
	}
}
