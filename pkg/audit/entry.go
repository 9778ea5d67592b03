// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package audit provides the append-only JSON Lines audit trail.
package audit

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"
)

// TimestampLayout is the ISO-8601 form used for every entry: UTC,
// millisecond precision, Z suffix.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Entry is a single line of the audit log.
// Timestamp and Event are always present; Fields carries whatever the
// event kind adds (sessionData, tool, command, file, plugin, ...).
type Entry struct {
	Timestamp time.Time
	Event     string
	Fields    map[string]any
}

// NewEntry creates an entry for event stamped with t.
func NewEntry(t time.Time, event string, fields map[string]any) Entry {
	return Entry{
		Timestamp: t,
		Event:     event,
		Fields:    fields,
	}
}

// MarshalJSON encodes the entry as one flat object: timestamp, event, then
// the extension fields in key order. Extension keys that collide with the
// required keys are dropped, as are nil values.
func (e Entry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"timestamp":`)
	if err := writeValue(&buf, e.Timestamp.UTC().Format(TimestampLayout)); err != nil {
		return nil, err
	}
	buf.WriteString(`,"event":`)
	if err := writeValue(&buf, e.Event); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		if k == "timestamp" || k == "event" || v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		buf.WriteByte(',')
		if err := writeValue(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeValue(&buf, e.Fields[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// writeValue appends the JSON form of v without HTML escaping, so shell
// commands such as "git log > out" stay readable in the log.
func writeValue(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
