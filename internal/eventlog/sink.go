// Package eventlog provides notification sinks for ledger events.
package eventlog

import (
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/cofund/pkg/types"
)

// LogSink writes each event as one structured log line.
type LogSink struct {
	log zerolog.Logger
}

var _ types.EventSink = (*LogSink)(nil)

// NewLogSink returns a sink writing to l.
func NewLogSink(l zerolog.Logger) *LogSink {
	return &LogSink{log: l.With().Str("component", "events").Logger()}
}

// Emit logs e at info level.
func (s *LogSink) Emit(e types.Event) {
	ev := s.log.Info().
		Str("event_id", e.EventID).
		Str("kind", e.Kind).
		Int("revision", int(e.Revision)).
		Time("at", e.CreatedAt)
	if e.Who != "" {
		ev = ev.Str("who", e.Who.String())
	}
	switch e.Kind {
	case types.EventContributed, types.EventWithdrawn, types.EventRefunded:
		ev = ev.Str("amount", e.Amount.String())
	case types.EventRefundsToggled:
		ev = ev.Bool("enabled", e.Enabled)
	case types.EventUpgradeAuthorized, types.EventMigrated:
		ev = ev.Str("logic", e.Logic)
	}
	ev.Msg("ledger event")
}

// Multi fans events out to several sinks in order.
type Multi []types.EventSink

// Emit forwards e to every sink.
func (m Multi) Emit(e types.Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// Recorder keeps every emitted event in memory.
type Recorder struct {
	Events []types.Event
}

// Emit appends e.
func (r *Recorder) Emit(e types.Event) {
	r.Events = append(r.Events, e)
}

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []string {
	kinds := make([]string, len(r.Events))
	for i, e := range r.Events {
		kinds[i] = e.Kind
	}
	return kinds
}
