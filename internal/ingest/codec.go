package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"telemetry/internal/domain"
)

// EventSink receives decoded events from ingest interfaces.
// Params: raw events in submission order.
// Returns: appended count and first validation error.
type EventSink interface {
	IngestBatch(events []domain.RawEvent) (int, error)
}

// DecodePayload auto-detects batch vs single payload.
// Batch items decode one at a time; the first malformed item stops decoding.
// Params: raw JSON bytes with one object or one array of objects.
// Returns: events in payload order (an empty array yields none) or validation error.
// On a malformed batch item the items before it are returned with an event[i] error.
func DecodePayload(raw []byte) ([]domain.RawEvent, error) {
	payload := bytes.TrimSpace(raw)
	if len(payload) == 0 {
		return nil, domain.NewValidationError("body", "empty payload")
	}
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()

	if payload[0] != '[' {
		var event domain.RawEvent
		if err := decoder.Decode(&event); err != nil {
			return nil, domain.NewValidationError("body", "decode event: %v", err)
		}
		if err := ensureJSONEOF(decoder); err != nil {
			return nil, err
		}
		return []domain.RawEvent{event}, nil
	}

	var items []json.RawMessage
	if err := decoder.Decode(&items); err != nil {
		return nil, domain.NewValidationError("body", "decode event batch: %v", err)
	}
	if err := ensureJSONEOF(decoder); err != nil {
		return nil, err
	}
	events := make([]domain.RawEvent, 0, len(items))
	for i, item := range items {
		event, err := decodeEvent(item)
		if err != nil {
			return events, domain.NewValidationError(fmt.Sprintf("event[%d]", i), "decode event: %v", err)
		}
		events = append(events, event)
	}
	return events, nil
}

func decodeEvent(item json.RawMessage) (domain.RawEvent, error) {
	decoder := json.NewDecoder(bytes.NewReader(item))
	decoder.UseNumber()
	var event domain.RawEvent
	err := decoder.Decode(&event)
	return event, err
}

// ensureJSONEOF rejects trailing tokens after a decoded JSON payload.
// Params: decoder positioned after primary decode.
// Returns: nil on EOF or validation error on trailing tokens.
func ensureJSONEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return domain.NewValidationError("body", "decode trailing json: %v", err)
	}
	return domain.NewValidationError("body", "unexpected trailing json tokens")
}

// Submit decodes payload and forwards events to sink.
// A malformed batch item still lets the items before it through.
// Params: sink and raw JSON payload.
// Returns: appended count and the first decode or validation error.
func Submit(sink EventSink, raw []byte) (int, error) {
	events, decodeErr := DecodePayload(raw)
	if decodeErr != nil && len(events) == 0 {
		return 0, decodeErr
	}
	n, err := sink.IngestBatch(events)
	if err != nil {
		return n, err
	}
	return n, decodeErr
}
