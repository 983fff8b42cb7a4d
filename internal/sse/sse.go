// Package sse decodes the line-oriented Server-Sent Events streams that the
// chat completion endpoints return. Each vendor dialect is expressed as a
// LineParser; Decode owns the buffering, line splitting and accumulation.
package sse

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxLineSize is the maximum allowed size of a single SSE line (1MB).
const MaxLineSize = 1024 * 1024

// Chunk is the result of parsing one line of a stream.
type Chunk struct {
	Content string // text delta, may be empty
	Done    bool   // the stream finished successfully
	Err     error  // the server reported an error inside the stream
}

// LineParser turns one trimmed line into a Chunk. ok is false for lines
// that carry nothing of interest (comments, pings, unknown events).
type LineParser func(line string) (chunk Chunk, ok bool)

// StreamError represents an error that occurred during streaming,
// preserving any partial content received before the error.
type StreamError struct {
	Partial string // Content received before error
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// Decode reads r line by line, passes every non-empty line to parse and
// calls onDelta for every piece of content. A line split across two reads
// is held back until its newline arrives.
//
// Decode returns the accumulated content. Any failure after the first
// byte of content is wrapped in a *StreamError carrying that content.
func Decode(ctx context.Context, r io.Reader, parse LineParser, onDelta func(string) error) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	var content strings.Builder
	fail := func(err error) (string, error) {
		return content.String(), &StreamError{Partial: content.String(), Err: err}
	}

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		chunk, ok := parse(line)
		if !ok {
			continue
		}
		if chunk.Err != nil {
			return fail(chunk.Err)
		}
		if chunk.Content != "" {
			content.WriteString(chunk.Content)
			if onDelta != nil {
				if err := onDelta(chunk.Content); err != nil {
					return fail(err)
				}
			}
		}
		if chunk.Done {
			return content.String(), nil
		}
	}

	if err := scanner.Err(); err != nil {
		// A canceled request shows up as a read error on the body.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail(ctxErr)
		}
		if errors.Is(err, bufio.ErrTooLong) {
			return fail(fmt.Errorf("line exceeds %d bytes: %w", MaxLineSize, err))
		}
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	return content.String(), nil
}

// Field splits an SSE line into its field name and value. The single
// optional space after the colon is removed. Comment lines (leading ':')
// report ok=false.
func Field(line string) (name, value string, ok bool) {
	if line == "" || line[0] == ':' {
		return "", "", false
	}
	name, value, found := strings.Cut(line, ":")
	if !found {
		return line, "", true
	}
	value = strings.TrimPrefix(value, " ")
	return name, value, true
}

// Data returns the payload of a "data:" line.
func Data(line string) (string, bool) {
	name, value, ok := Field(line)
	if !ok || name != "data" {
		return "", false
	}
	return value, true
}

// Event returns the event name of an "event:" line.
func Event(line string) (string, bool) {
	name, value, ok := Field(line)
	if !ok || name != "event" {
		return "", false
	}
	return value, true
}
