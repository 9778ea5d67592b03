// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package agentaudit is the cross-agent audit plugin. It records session
// lifecycle transitions, shell commands that touch gt/gh/git/bun, and file
// writes and edits to <dir>/_logs/agent-audit.jsonl.
//
// Recording is best-effort: handlers always return nil, and a failed write
// only leaves a gap in the log.
package agentaudit

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cicd-ai-toolkit/agent-audit/pkg/audit"
	"github.com/cicd-ai-toolkit/agent-audit/pkg/config"
	"github.com/cicd-ai-toolkit/agent-audit/pkg/hooks"
)

// PluginName is recorded in the plugin.init entry.
const PluginName = "agent-audit"

// Audit event names.
const (
	EventPluginInit = "plugin.init"
	EventToolShell  = "tool.shell"
	EventToolFile   = "tool.file"
)

var sessionEvents = map[string]bool{
	hooks.EventSessionIdle:    true,
	hooks.EventSessionError:   true,
	hooks.EventSessionCreated: true,
}

// Option configures the plugin.
type Option func(*options)

type options struct {
	audit config.AuditConfig
	now   func() time.Time
}

// WithConfig applies the audit section of the configuration.
func WithConfig(cfg config.AuditConfig) Option {
	return func(o *options) {
		if cfg.LogDir != "" {
			o.audit.LogDir = cfg.LogDir
		}
		if cfg.LogFile != "" {
			o.audit.LogFile = cfg.LogFile
		}
		if len(cfg.ShellTokens) > 0 {
			o.audit.ShellTokens = cfg.ShellTokens
		}
	}
}

// WithShellTokens replaces the command words that make a shell run worth
// recording.
func WithShellTokens(tokens ...string) Option {
	return func(o *options) {
		if len(tokens) > 0 {
			o.audit.ShellTokens = tokens
		}
	}
}

// WithClock sets the time source for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Logger holds the state shared by the plugin's handlers: the writer
// rooted at the session's working directory.
type Logger struct {
	writer *audit.Writer
	shell  *regexp.Regexp
}

// NewLogger builds a logger for the given working directory without
// registering it or writing anything.
func NewLogger(directory string, opts ...Option) *Logger {
	o := &options{
		audit: config.DefaultConfig().Audit,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Logger{
		writer: audit.NewWriter(directory,
			audit.WithDirName(o.audit.LogDir),
			audit.WithFileName(o.audit.LogFile),
			audit.WithClock(o.now),
		),
		shell: shellPattern(o.audit.ShellTokens),
	}
}

// New returns the plugin entry point. Loading it records plugin.init,
// which also creates the log directory, before any handler can run.
func New(opts ...Option) hooks.Plugin {
	return func(ctx context.Context, in hooks.PluginInput) (*hooks.Hooks, error) {
		l := NewLogger(in.Directory, opts...)
		l.writer.Log(EventPluginInit, map[string]any{"plugin": PluginName})
		return l.Hooks(), nil
	}
}

// Hooks binds the logger's handlers.
func (l *Logger) Hooks() *hooks.Hooks {
	return &hooks.Hooks{
		Event:            l.OnEvent,
		ToolExecuteAfter: l.OnToolExecuteAfter,
	}
}

// Path returns the audit log file.
func (l *Logger) Path() string {
	return l.writer.Path()
}

// OnEvent records session.idle, session.error and session.created with the
// whole event under sessionData. Other events are ignored.
func (l *Logger) OnEvent(ctx context.Context, event hooks.Event) error {
	if !sessionEvents[event.Type] {
		return nil
	}

	payload := event.Payload
	if payload == nil {
		payload = map[string]any{"type": event.Type}
	}
	l.writer.Log(event.Type, map[string]any{"sessionData": payload})
	return nil
}

// OnToolExecuteAfter records matching shell commands and file writes.
func (l *Logger) OnToolExecuteAfter(ctx context.Context, in *hooks.ToolInput, out *hooks.ToolOutput) error {
	if in == nil {
		return nil
	}

	switch in.Tool {
	case "bash", "shell":
		command := ""
		if v, ok := hooks.Arg(in, out, "command"); ok {
			command = stringify(v)
		}
		if l.shell.MatchString(command) {
			l.writer.Log(EventToolShell, map[string]any{
				"tool":    in.Tool,
				"command": command,
			})
		}

	case "write", "edit":
		// file is omitted from the entry when neither side names it
		file, _ := hooks.Arg(in, out, "filePath")
		l.writer.Log(EventToolFile, map[string]any{
			"tool": in.Tool,
			"file": file,
		})
	}

	return nil
}

// shellPattern matches any token as a whole word.
func shellPattern(tokens []string) *regexp.Regexp {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
}

// stringify renders a decoded JSON value the way the host runtime's
// String() would: arrays join their elements with commas and objects
// become "[object Object]", which no token matches.
func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []any:
		parts := make([]string, len(s))
		for i, e := range s {
			parts[i] = stringify(e)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		return "[object Object]"
	default:
		return fmt.Sprint(s)
	}
}
