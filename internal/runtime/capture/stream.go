// Package capture models speech capture as a cancellable stream of interim
// text terminated by at most one final value.
package capture

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/tiger/pitchroom/internal/runtime/provider/contracts"
)

// interimBuffer bounds undelivered interim values; older values are dropped first.
const interimBuffer = 8

// Source runs one recording. It reports partial text through interim and
// returns the final text, or "" when nothing was said.
type Source func(ctx context.Context, interim func(string)) (string, error)

// FromTranscriber adapts a batch transcriber over one audio payload.
func FromTranscriber(t contracts.Transcriber, audio io.Reader, mimeType string) Source {
	return func(ctx context.Context, interim func(string)) (string, error) {
		return t.Transcribe(ctx, audio, mimeType, interim)
	}
}

// Stream is one running capture.
type Stream struct {
	interim chan string
	done    chan struct{}
	cancel  context.CancelFunc

	mu    sync.Mutex
	final string
	ok    bool
	err   error
}

// Start runs src on its own goroutine.
func Start(ctx context.Context, src Source) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		interim: make(chan string, interimBuffer),
		done:    make(chan struct{}),
		cancel:  cancel,
	}
	go s.run(ctx, src)
	return s
}

func (s *Stream) run(ctx context.Context, src Source) {
	defer close(s.done)
	defer close(s.interim)
	defer s.cancel()

	if src == nil {
		s.finish("", errors.New("capture source is required"))
		return
	}
	text, err := src(ctx, s.push)
	if err == nil {
		err = ctx.Err()
	}
	s.finish(text, err)
}

func (s *Stream) push(text string) {
	for {
		select {
		case s.interim <- text:
			return
		default:
		}
		select {
		case <-s.interim:
		default:
		}
	}
}

func (s *Stream) finish(text string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	text = strings.TrimSpace(text)
	if err == nil && text != "" {
		s.final = text
		s.ok = true
	}
}

// Interim yields partial transcripts; it is closed when the stream ends.
func (s *Stream) Interim() <-chan string {
	return s.interim
}

// Done is closed once the final value is settled.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Final blocks until the stream ends. ok is false when the recording was
// cancelled, failed, or produced no speech.
func (s *Stream) Final() (string, bool) {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.final, s.ok
}

// Err returns the source error, if any, after the stream ends.
func (s *Stream) Err() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel stops the recording. Final will report ok=false unless the source
// already produced its value.
func (s *Stream) Cancel() {
	s.cancel()
}

// Capture runs src to completion, forwarding interim text to onInterim and
// the final text to onFinal. onFinal fires at most once and never for a
// recording without speech. Either callback may be nil.
func Capture(ctx context.Context, src Source, onInterim func(string), onFinal func(string)) error {
	stream := Start(ctx, src)
	for text := range stream.Interim() {
		if onInterim != nil {
			onInterim(text)
		}
	}
	final, ok := stream.Final()
	err := stream.Err()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if ok && onFinal != nil {
		onFinal(final)
	}
	return err
}
