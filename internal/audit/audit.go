// Package audit consumes the event stream and turns it into two
// durable forms: leveled human-readable log lines and rows in the
// sqlite event log.
package audit

import (
	"github.com/charmbracelet/log"

	"github.com/llehouerou/scrubber/internal/events"
)

// bufferSize is the audit subscription's event buffer. It is larger
// than the hub default: losing audit rows costs more than losing a UI
// update.
const bufferSize = 256

// EventSink persists audit events. *state.Manager satisfies it.
type EventSink interface {
	AppendEvents(evts []events.Event) error
}

// Logger subscribes to a hub and records every event it sees.
type Logger struct {
	hub    *events.Hub
	sink   EventSink
	logger *log.Logger

	sub  *events.Subscription
	done chan struct{}
}

// NewLogger creates an audit logger. sink may be nil, in which case
// only log lines are written.
func NewLogger(hub *events.Hub, sink EventSink, logger *log.Logger) *Logger {
	if logger == nil {
		logger = log.Default()
	}
	return &Logger{hub: hub, sink: sink, logger: logger}
}

// Start subscribes to the hub and begins recording in the background.
func (l *Logger) Start() {
	l.sub = l.hub.SubscribeBuffered(bufferSize)
	l.done = make(chan struct{})
	go l.run()
}

// Stop detaches from the hub and waits for buffered events to be
// recorded.
func (l *Logger) Stop() {
	if l.sub == nil {
		return
	}
	l.hub.Unsubscribe(l.sub)
	<-l.done
	l.sub = nil
}

func (l *Logger) run() {
	defer close(l.done)

	for e := range l.sub.Events {
		batch := []events.Event{e}
		// Drain whatever else is already buffered so one insert
		// covers the burst.
	drain:
		for {
			select {
			case next, ok := <-l.sub.Events:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}

		for _, ev := range batch {
			l.logEvent(ev)
		}
		if l.sink != nil {
			if err := l.sink.AppendEvents(batch); err != nil {
				l.logger.Error("failed to persist audit events",
					"count", len(batch), "err", err)
			}
		}
	}
}

func (l *Logger) logEvent(e events.Event) {
	kv := []any{"kind", string(e.Kind)}
	if e.RunID != "" {
		kv = append(kv, "run", e.RunID)
	}
	if e.BatchID != "" {
		kv = append(kv, "batch", e.BatchID)
	}
	if e.Track != nil {
		kv = append(kv, "artist", e.Track.Artist, "track", e.Track.Name)
	}
	if e.Edit != nil && e.Edit.TrackName != e.Edit.TrackNameOriginal {
		kv = append(kv, "renamed_to", e.Edit.TrackName)
	}
	if e.Anchor != 0 {
		kv = append(kv, "anchor", e.Anchor)
	}
	if e.Error != "" {
		kv = append(kv, "err", e.Error)
	}

	switch e.Kind {
	case events.KindError, events.KindTrackEditFailed:
		l.logger.Error(e.Message, kv...)
	case events.KindTrackSkipped, events.KindTrackProcessed, events.KindSleeping:
		l.logger.Debug(e.Message, kv...)
	default:
		l.logger.Info(e.Message, kv...)
	}
}
