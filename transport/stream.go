package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var ErrTimeout = errors.New("timeout waiting for prompt")

// stream pumps a reader in the background so reads can honour a context and a timeout
type stream struct {
	chunks chan []byte
	done   chan struct{}
	err    error
	trace  func(string)
}

func newStream(r io.Reader, trace func(string)) *stream {
	s := &stream{
		chunks: make(chan []byte, 16),
		done:   make(chan struct{}),
		trace:  trace,
	}
	go func() {
		buffer := make([]byte, BufferSize)
		for {
			n, err := r.Read(buffer)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buffer[:n])
				select {
				case s.chunks <- chunk:
				case <-s.done:
					return
				}
			}
			if err != nil {
				s.err = err
				close(s.chunks)
				return
			}
		}
	}()
	return s
}

// stop releases the pump goroutine; the underlying reader must be closed by the owner
func (s *stream) stop() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// readUntilAny reads until the accumulated output contains one of patterns
func (s *stream) readUntilAny(ctx context.Context, patterns []string, timeout time.Duration) (string, error) {
	if len(patterns) == 0 {
		return "", fmt.Errorf("no completion pattern given")
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var output strings.Builder
	output.Grow(BufferSize)
	for {
		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				if s.err == io.EOF {
					return output.String(), fmt.Errorf("read error: connection closed")
				}
				return output.String(), fmt.Errorf("read error: %w", s.err)
			}
			output.Write(chunk)
			if s.trace != nil {
				s.trace(string(chunk))
			}
			text := output.String()
			for _, pattern := range patterns {
				if strings.Contains(text, pattern) {
					return text, nil
				}
			}
		case <-expired:
			return output.String(), fmt.Errorf("%w %s", ErrTimeout, strings.Join(patterns, ", "))
		case <-ctx.Done():
			return output.String(), ctx.Err()
		}
	}
}

// trimResponse drops the echoed command line and the trailing prompt line
func trimResponse(output string) string {
	output = strings.ReplaceAll(output, "\r", "")
	lines := strings.Split(output, "\n")
	if len(lines) > 1 {
		return strings.Join(lines[1:len(lines)-1], "\n")
	}
	return ""
}
