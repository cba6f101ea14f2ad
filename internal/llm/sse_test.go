package llm

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSSEReader(t *testing.T) {
	input := ": keep-alive\n" +
		"event: message_start\n" +
		"data: {\"a\":1}\n\n" +
		"data: line one\r\n" +
		"data: line two\r\n\r\n" +
		"id: 7\n" +
		"retry: 100\n\n" +
		"data:tail"

	r := newSSEReader(strings.NewReader(input))

	event, data, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, "message_start", event)
	require.Equal(t, `{"a":1}`, string(data))

	event, data, err = r.Next()
	require.NoError(t, err)
	require.Empty(t, event)
	require.Equal(t, "line one\nline two", string(data))

	_, data, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, "tail", string(data))

	_, _, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestSSEReaderEmpty(t *testing.T) {
	r := newSSEReader(strings.NewReader("\n\n: ping\n\n"))
	_, _, err := r.Next()
	require.ErrorIs(t, err, io.EOF)
}

// endless yields the same byte forever and counts what was read.
type endless struct {
	b    byte
	read int
}

func (e *endless) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = e.b
	}
	e.read += len(p)
	return len(p), nil
}

func TestSSEReaderStopsOnEndlessLine(t *testing.T) {
	src := &endless{b: 'a'}
	r := newSSEReader(io.MultiReader(strings.NewReader("data: "), src))

	_, _, err := r.Next()
	require.ErrorIs(t, err, ErrMalformedChunk)
	// never buffers much more than one event's worth
	require.Less(t, src.read, maxEventSize+128*1024)
}

func TestSSEReaderLongLineAcrossBuffers(t *testing.T) {
	payload := strings.Repeat("x", 200*1024)
	r := newSSEReader(strings.NewReader("data: " + payload + "\n\n"))

	_, data, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, payload, string(data))
}

func TestSSEReaderEventLimitSpansLines(t *testing.T) {
	line := "data: " + strings.Repeat("y", 300*1024) + "\n"
	r := newSSEReader(strings.NewReader(strings.Repeat(line, 4) + "\n"))

	_, _, err := r.Next()
	require.ErrorIs(t, err, ErrMalformedChunk)
}
