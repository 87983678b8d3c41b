package gateway

import (
	"strings"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/model"
)

// Chunk is an incremental piece of a role's reply. A Reset chunk tells the
// consumer to discard everything received so far for Role: the attempt that
// produced it failed and a later attempt starts over.
type Chunk struct {
	Role  core.AgentRole `json:"role"`
	Text  string         `json:"text,omitempty"`
	Reset bool           `json:"reset,omitempty"`
}

// Result is the final outcome of one Invoke.
type Result struct {
	Role     core.AgentRole    `json:"role"`
	Message  core.AgentMessage `json:"message"`
	Route    Route             `json:"route"`
	Degraded bool              `json:"degraded"`
	Attempts int               `json:"attempts"`
	Usage    *model.TokenUsage `json:"usage,omitempty"`
}

// Stream delivers the chunks of one Invoke and, once finished, its Result.
// Chunks are delivered in order; the channel is closed before the result is
// available.
type Stream struct {
	chunks chan Chunk
	done   chan struct{}
	res    Result
	err    error
}

func newStream() *Stream {
	return &Stream{chunks: make(chan Chunk, 64), done: make(chan struct{})}
}

// Chunks returns the ordered token stream.
func (s *Stream) Chunks() <-chan Chunk { return s.chunks }

// Done is closed once the result is available.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Result drains any unread chunks and waits for the outcome. The error is
// non-nil only when the call was cancelled or could not be issued at all.
func (s *Stream) Result() (Result, error) {
	for range s.chunks {
	}
	<-s.done
	return s.res, s.err
}

func (s *Stream) finish(res Result, err error) {
	s.res, s.err = res, err
	close(s.chunks)
	close(s.done)
}

// Collect reads the stream to completion and returns the visible text,
// honoring Reset chunks, together with the result.
func Collect(s *Stream) (string, Result, error) {
	var sb strings.Builder
	for c := range s.Chunks() {
		if c.Reset {
			sb.Reset()
			continue
		}
		sb.WriteString(c.Text)
	}
	res, err := s.Result()
	return sb.String(), res, err
}
