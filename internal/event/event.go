// Package event builds change events from reconciliation results and
// formats them as CloudEvents.
package event

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/edtacey/jsonmapper/internal/diff"
	"github.com/edtacey/jsonmapper/internal/upsert"
)

// Type names the kind of change an event reports.
type Type string

const (
	TypeCreated   Type = "entity.created"
	TypeUpdated   Type = "entity.updated"
	TypeUnchanged Type = "entity.unchanged"
)

// Data carries the document snapshots of a change.
type Data struct {
	New     map[string]any `json:"new"`
	Old     map[string]any `json:"old,omitempty"`
	Changes []diff.Change  `json:"changes,omitempty"`
}

// Payload is the change event handed to publishers.
type Payload struct {
	Data      Data           `json:"data"`
	EventType Type           `json:"eventType"`
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TypeFor maps a reconciliation outcome to an event type. An update that
// changed nothing is reported as unchanged.
func TypeFor(op upsert.Operation, changes []diff.Change) Type {
	switch {
	case op == upsert.OpInsert:
		return TypeCreated
	case op == upsert.OpUpdate && len(changes) > 0:
		return TypeUpdated
	default:
		return TypeUnchanged
	}
}

// Build assembles the payload for one processed document. old is the
// matched record (nil on insert) and final the persisted document.
func Build(op upsert.Operation, old, final map[string]any, changes []diff.Change, at time.Time, metadata map[string]any) Payload {
	p := Payload{
		Data:      Data{New: final},
		EventType: TypeFor(op, changes),
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Metadata:  metadata,
	}
	if old != nil {
		p.Data.Old = old
	}
	if len(changes) > 0 {
		p.Data.Changes = changes
	}
	return p
}

// SpecVersion is the CloudEvents version produced by ToCloudEvent.
const SpecVersion = "1.0"

// CloudEvent is the CloudEvents 1.0 JSON envelope.
type CloudEvent struct {
	SpecVersion     string  `json:"specversion"`
	Type            string  `json:"type"`
	Source          string  `json:"source"`
	ID              string  `json:"id"`
	Time            string  `json:"time"`
	Subject         string  `json:"subject,omitempty"`
	DataContentType string  `json:"datacontenttype"`
	Data            Payload `json:"data"`
}

// ToCloudEvent wraps p in an envelope. It only formats; the payload is not
// changed.
func ToCloudEvent(p Payload, source, id, subject string) CloudEvent {
	return CloudEvent{
		SpecVersion:     SpecVersion,
		Type:            string(p.EventType),
		Source:          source,
		ID:              id,
		Time:            p.Timestamp,
		Subject:         subject,
		DataContentType: "application/json",
		Data:            p,
	}
}

// Publisher delivers change events. Implemented by store.Store (outbox),
// LogPublisher, LinePublisher and Recorder.
type Publisher interface {
	Publish(ctx context.Context, ev CloudEvent) error
}

// LogPublisher writes events to a logger. Useful when no outbox is
// configured.
type LogPublisher struct {
	Logger *slog.Logger
}

// Publish implements Publisher.
func (p LogPublisher) Publish(ctx context.Context, ev CloudEvent) error {
	l := p.Logger
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "change event",
		"id", ev.ID,
		"type", ev.Type,
		"subject", ev.Subject,
		"changes", len(ev.Data.Data.Changes))
	return nil
}

// LinePublisher writes each event as one line of JSON.
type LinePublisher struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLinePublisher returns a publisher writing to w.
func NewLinePublisher(w io.Writer) *LinePublisher {
	return &LinePublisher{w: w}
}

// Publish implements Publisher.
func (p *LinePublisher) Publish(_ context.Context, ev CloudEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = p.w.Write(append(data, '\n'))
	return err
}

// Recorder keeps published events in memory, in publish order.
type Recorder struct {
	mu     sync.Mutex
	events []CloudEvent
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, ev CloudEvent) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []CloudEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CloudEvent(nil), r.events...)
}
