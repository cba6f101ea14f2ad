package llm

import (
	"bufio"
	"bytes"
	"io"
)

// maxEventSize bounds a single SSE line.
const maxEventSize = 1 << 20

// sseReader splits a text/event-stream body into events.
type sseReader struct {
	r *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the event name and the data lines joined by "\n".
// It returns io.EOF once the body is exhausted with no pending data.
func (s *sseReader) Next() (string, []byte, error) {
	var (
		event string
		data  [][]byte
		size  int
	)
	flush := func() (string, []byte, error) {
		return event, bytes.Join(data, []byte("\n")), nil
	}

	for {
		line, err := s.readLine(maxEventSize - size)
		if err != nil && err != io.EOF {
			return "", nil, err
		}
		size += len(line)
		line = bytes.TrimRight(line, "\r\n")

		switch {
		case len(line) == 0:
			if len(data) > 0 {
				return flush()
			}
			event, size = "", 0
		case line[0] == ':':
			// comment / keep-alive
		case bytes.HasPrefix(line, []byte("event:")):
			event = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			data = append(data, bytes.TrimSpace(line[len("data:"):]))
		}

		if err == io.EOF {
			if len(data) > 0 {
				return flush()
			}
			return "", nil, io.EOF
		}
	}
}

// readLine reads up to and including the next newline. It fails with
// ErrMalformedChunk as soon as the line grows past limit bytes, so an
// endless line is never buffered whole.
func (s *sseReader) readLine(limit int) ([]byte, error) {
	var line []byte
	for {
		frag, err := s.r.ReadSlice('\n')
		if len(line)+len(frag) > limit {
			return nil, ErrMalformedChunk
		}
		line = append(line, frag...)
		if err != bufio.ErrBufferFull {
			return line, err
		}
	}
}
