// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package hooks defines the plugin contract of the host agent runtime and a
// registry that loads plugins and dispatches host callbacks to them.
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
)

// HookName identifies a host callback.
type HookName string

const (
	// HookEvent receives every lifecycle event.
	HookEvent HookName = "event"
	// HookToolExecuteAfter runs after any tool finishes executing.
	HookToolExecuteAfter HookName = "tool.execute.after"
)

// Lifecycle event types emitted by the host.
const (
	EventSessionCreated = "session.created"
	EventSessionIdle    = "session.idle"
	EventSessionError   = "session.error"
)

// PluginInput is what the host hands a plugin at load time.
type PluginInput struct {
	// Directory is the absolute working directory of the session.
	Directory string `json:"directory"`
	Worktree  string `json:"worktree,omitempty"`
}

// Plugin is a plugin entry point. It runs once when the host loads the
// plugin and returns the callbacks the plugin subscribes to.
type Plugin func(ctx context.Context, in PluginInput) (*Hooks, error)

// EventHandlerFunc handles a lifecycle event.
type EventHandlerFunc func(ctx context.Context, event Event) error

// ToolHandlerFunc handles a finished tool execution. Either argument may be
// nil when the host does not supply it.
type ToolHandlerFunc func(ctx context.Context, in *ToolInput, out *ToolOutput) error

// Hooks are the callbacks returned by a plugin. Nil members are not
// subscribed.
type Hooks struct {
	Event            EventHandlerFunc
	ToolExecuteAfter ToolHandlerFunc
}

// Subscribes reports whether the hooks handle the named callback.
func (h *Hooks) Subscribes(name HookName) bool {
	if h == nil {
		return false
	}
	switch name {
	case HookEvent:
		return h.Event != nil
	case HookToolExecuteAfter:
		return h.ToolExecuteAfter != nil
	default:
		return false
	}
}

// Event is a host lifecycle event. Payload is the full original event
// object as the host sent it, including its "type" discriminant.
type Event struct {
	Type    string
	Payload map[string]any
}

// NewEvent builds an event from a host payload.
func NewEvent(payload map[string]any) Event {
	e := Event{Payload: payload}
	if t, ok := payload["type"].(string); ok {
		e.Type = t
	}
	return e
}

// MarshalJSON emits the original payload.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return json.Marshal(map[string]any{"type": e.Type})
	}
	return json.Marshal(e.Payload)
}

// UnmarshalJSON keeps the whole object as the payload.
func (e *Event) UnmarshalJSON(data []byte) error {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if payload == nil {
		return fmt.Errorf("event must be a JSON object")
	}
	*e = NewEvent(payload)
	return nil
}

// ToolInput describes the tool call as it was requested.
type ToolInput struct {
	Tool      string         `json:"tool"`
	SessionID string         `json:"sessionID,omitempty"`
	CallID    string         `json:"callID,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
}

// ToolOutput describes the finished tool call. Args mirrors or overrides
// the arguments the tool actually ran with.
type ToolOutput struct {
	Title    string         `json:"title,omitempty"`
	Output   string         `json:"output,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Args     map[string]any `json:"args,omitempty"`
}

// Arg returns the named argument, preferring the output's arguments over
// the input's. A key present with a null value counts as absent.
func Arg(in *ToolInput, out *ToolOutput, key string) (any, bool) {
	if out != nil {
		if v, ok := out.Args[key]; ok && v != nil {
			return v, true
		}
	}
	if in != nil {
		if v, ok := in.Args[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
