// Package generate drives one streamed model generation turn: it adapts the
// conversation to the model API, streams chunks back to the caller, and owns
// the turn's tool connections until the turn ends.
package generate

// Status is the lifecycle state of the transport. Exactly one generation can
// be in flight at a time.
type Status string

const (
	// StatusIdle means no generation has been started yet.
	StatusIdle Status = "idle"
	// StatusSubmitted means a send was accepted but no chunk has arrived.
	StatusSubmitted Status = "submitted"
	// StatusStreaming means at least one chunk has been received.
	StatusStreaming Status = "streaming"
	// StatusReady means the last generation completed or was aborted.
	StatusReady Status = "ready"
	// StatusError means the last generation failed.
	StatusError Status = "error"
)

// Busy reports whether a generation is currently in flight.
func (s Status) Busy() bool {
	return s == StatusSubmitted || s == StatusStreaming
}
