// Package clients talks to the speech recognition services: a streaming
// websocket recognizer and a chunked REST transcription service.
package clients

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrClosed reports that the recognizer connection went away.
var ErrClosed = errors.New("recognizer connection closed")

// Result is one recognition hypothesis. Interim results may be revised by
// later ones; a Final result is not.
type Result struct {
	Text  string
	Final bool
}

// Recognizer turns a stream of PCM16 blocks into text results.
//
// Recognize returns nil once audio is closed and pending results have been
// delivered, or when ctx is cancelled. It never closes out.
type Recognizer interface {
	Recognize(ctx context.Context, audio <-chan []byte, out chan<- Result) error
}

type HTTP struct{ c *http.Client }

func NewHTTP() *HTTP { return &HTTP{c: &http.Client{Timeout: 60 * time.Second}} }

// NewHTTPWith wraps an existing client, e.g. one from httptest.
func NewHTTPWith(c *http.Client) *HTTP { return &HTTP{c: c} }

func deliver(ctx context.Context, out chan<- Result, r Result) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}
