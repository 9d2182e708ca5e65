package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/meetnote/meetnote/internal/chat"
	"github.com/meetnote/meetnote/internal/tools"
)

var (
	// ErrBusy is returned when a send is attempted while one is in flight.
	ErrBusy = errors.New("a generation is already in flight")
	// ErrNoStream is returned by Resume: streams are not resumable, a new
	// send must be issued instead.
	ErrNoStream = errors.New("no resumable stream")
)

// SendConfig carries everything one generation turn needs. The transport
// takes ownership of Conns and closes them when the turn ends.
type SendConfig struct {
	System   string
	Messages []chat.Message
	Tools    *tools.Registry
	Conns    []*tools.Conn
	MaxSteps int

	// OnChunk receives streamed fragments in order. Required.
	OnChunk func(Chunk)
	// OnFinish receives the final assistant message of a completed turn.
	// Not called on abort or error. Optional.
	OnFinish func(*chat.Message)
}

// Transport runs generation turns one at a time against a model streamer.
//
// Lifecycle: idle until the first send, submitted once a send is accepted,
// streaming after the first chunk, then ready on completion or abort, or
// error on failure. Abort (Stop or context cancellation) ends the turn
// quietly: no error chunk, no OnFinish, status ready.
type Transport struct {
	streamer ModelStreamer
	limiter  *rate.Limiter
	logger   *slog.Logger

	mu       sync.Mutex
	status   Status
	cancel   context.CancelFunc
	teardown func()
}

// NewTransport creates a transport. limiter may be nil to disable send rate
// limiting.
func NewTransport(streamer ModelStreamer, limiter *rate.Limiter, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		streamer: streamer,
		limiter:  limiter,
		logger:   logger,
		status:   StatusIdle,
	}
}

// Status returns the current lifecycle state.
func (t *Transport) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// SendMessages runs one generation turn. It returns ErrBusy when a turn is
// already in flight. Model failures do not return an error: they surface as
// an error chunk through OnChunk and leave the transport in the error state.
// An aborted turn returns nil with no error chunk.
func (t *Transport) SendMessages(ctx context.Context, cfg SendConfig) error {
	if cfg.OnChunk == nil {
		return errors.New("OnChunk is required")
	}

	sendCtx, cancel := context.WithCancel(ctx)
	conns := cfg.Conns
	var once sync.Once
	teardown := func() {
		once.Do(func() {
			cancel()
			for _, conn := range conns {
				if err := conn.Close(); err != nil {
					t.logger.Debug("closing tool provider", "provider", conn.Name(), "error", err)
				}
			}
		})
	}

	t.mu.Lock()
	if t.status.Busy() {
		t.mu.Unlock()
		teardown()
		return ErrBusy
	}
	t.status = StatusSubmitted
	t.cancel = cancel
	t.teardown = teardown
	t.mu.Unlock()

	defer teardown()

	if t.limiter != nil {
		if err := t.limiter.Wait(sendCtx); err != nil {
			t.setStatus(StatusReady)
			if sendCtx.Err() != nil {
				return nil
			}
			return fmt.Errorf("rate limiting send: %w", err)
		}
	}

	emit := func(chunk Chunk) error {
		t.setStatus(StatusStreaming)
		cfg.OnChunk(chunk)
		return sendCtx.Err()
	}

	msg, err := t.streamer.Stream(sendCtx, Request{
		System:   cfg.System,
		Messages: cfg.Messages,
		Tools:    cfg.Tools,
		MaxSteps: cfg.MaxSteps,
	}, emit)

	switch {
	case sendCtx.Err() != nil:
		// Aborted. The partial output already streamed stands; nothing
		// further is emitted.
		t.logger.Debug("generation aborted")
		t.setStatus(StatusReady)
		return nil

	case err != nil:
		t.logger.Error("generation failed", "error", err)
		cfg.OnChunk(Chunk{ErrorText: ErrorMessage(err)})
		t.setStatus(StatusError)
		return nil

	default:
		t.setStatus(StatusReady)
		if cfg.OnFinish != nil {
			cfg.OnFinish(msg)
		}
		return nil
	}
}

// Stop aborts the turn in flight, if any. Safe to call at any time.
func (t *Transport) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Resume reports that no stream can be resumed. Generation streams are not
// persistent; the caller should issue a new send.
func (t *Transport) Resume(context.Context) error {
	return ErrNoStream
}

// Cleanup aborts any turn in flight and closes its tool connections. Used on
// shutdown; idempotent.
func (t *Transport) Cleanup() {
	t.mu.Lock()
	teardown := t.teardown
	t.mu.Unlock()
	if teardown != nil {
		teardown()
	}
}

func (t *Transport) setStatus(s Status) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}
