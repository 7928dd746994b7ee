package store

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/edtacey/jsonmapper/internal/document"
	"github.com/edtacey/jsonmapper/internal/event"
	"github.com/edtacey/jsonmapper/internal/ruleset"
	"github.com/edtacey/jsonmapper/internal/valuemap"
)

// marshalDocument converts a document to canonical JSON TEXT for storage.
func marshalDocument(doc map[string]any) (string, error) {
	data, err := document.MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	return string(data), nil
}

// unmarshalDocument parses stored JSON TEXT into a document.
func unmarshalDocument(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return map[string]any{}, nil
	}
	doc, err := document.DecodeObject([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}

// marshalEntity converts an entity definition to JSON TEXT. Schema property
// order is kept, so this is not canonical.
func marshalEntity(e *ruleset.Entity) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal entity %s: %w", e.ID, err)
	}
	return string(data), nil
}

func unmarshalEntity(data string) (*ruleset.Entity, error) {
	var e ruleset.Entity
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, fmt.Errorf("unmarshal entity: %w", err)
	}
	return &e, nil
}

func marshalValueMapping(m *valuemap.ValueMapping) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal value mapping %s: %w", m.ID, err)
	}
	return string(data), nil
}

func unmarshalValueMapping(data string) (*valuemap.ValueMapping, error) {
	var m valuemap.ValueMapping
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("unmarshal value mapping: %w", err)
	}
	return &m, nil
}

// marshalEvent converts a CloudEvent to JSON TEXT for the outbox.
func marshalEvent(ev event.CloudEvent) (string, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal event %s: %w", ev.ID, err)
	}
	return string(data), nil
}

// unmarshalEvent parses an outbox payload. Document values inside the
// payload come back as float64 numbers, like every decoded document.
func unmarshalEvent(data string) (event.CloudEvent, error) {
	var ev event.CloudEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return event.CloudEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return ev, nil
}
