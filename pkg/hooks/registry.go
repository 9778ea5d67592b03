// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cicd-ai-toolkit/agent-audit/pkg/errors"
)

// Registry manages loaded plugins and fans host callbacks out to them.
type Registry struct {
	mu      sync.RWMutex
	plugins []*loadedPlugin
	now     func() time.Time
}

type loadedPlugin struct {
	id    string
	name  string
	hooks *Hooks
}

// Info describes a loaded plugin.
type Info struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Hooks []HookName `json:"hooks"`
}

// Result represents the result of one plugin handling one callback.
type Result struct {
	PluginID string        `json:"plugin_id"`
	Name     string        `json:"name"`
	Hook     HookName      `json:"hook"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock sets the time source used for result durations.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		plugins: make([]*loadedPlugin, 0),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load runs the plugin entry point and keeps the hooks it returns.
// It returns the generated plugin id.
func (r *Registry) Load(ctx context.Context, name string, plugin Plugin, in PluginInput) (string, error) {
	if plugin == nil {
		return "", errors.PluginError(fmt.Sprintf("plugin %q has no entry point", name), nil)
	}

	h, err := plugin(ctx, in)
	if err != nil {
		return "", errors.PluginError(fmt.Sprintf("plugin %q failed to initialize", name), err)
	}
	if h == nil {
		h = &Hooks{}
	}

	p := &loadedPlugin{
		id:    uuid.NewString(),
		name:  name,
		hooks: h,
	}

	r.mu.Lock()
	r.plugins = append(r.plugins, p)
	r.mu.Unlock()

	return p.id, nil
}

// Plugins returns the loaded plugins in load order.
func (r *Registry) Plugins() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.plugins))
	for _, p := range r.plugins {
		info := Info{ID: p.id, Name: p.name, Hooks: make([]HookName, 0, 2)}
		for _, name := range []HookName{HookEvent, HookToolExecuteAfter} {
			if p.hooks.Subscribes(name) {
				info.Hooks = append(info.Hooks, name)
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// DispatchEvent delivers a lifecycle event to every subscribed plugin.
func (r *Registry) DispatchEvent(ctx context.Context, event Event) []*Result {
	return r.dispatch(HookEvent, func(h *Hooks) error {
		return h.Event(ctx, event)
	})
}

// DispatchToolExecuteAfter delivers a finished tool execution to every
// subscribed plugin.
func (r *Registry) DispatchToolExecuteAfter(ctx context.Context, in *ToolInput, out *ToolOutput) []*Result {
	return r.dispatch(HookToolExecuteAfter, func(h *Hooks) error {
		return h.ToolExecuteAfter(ctx, in, out)
	})
}

func (r *Registry) dispatch(name HookName, call func(h *Hooks) error) []*Result {
	r.mu.RLock()
	plugins := make([]*loadedPlugin, len(r.plugins))
	copy(plugins, r.plugins)
	r.mu.RUnlock()

	results := make([]*Result, 0, len(plugins))
	for _, p := range plugins {
		if !p.hooks.Subscribes(name) {
			continue
		}
		results = append(results, r.execute(p, name, call))
	}
	return results
}

// execute runs one handler, turning a panic into a failed result.
func (r *Registry) execute(p *loadedPlugin, name HookName, call func(h *Hooks) error) (result *Result) {
	start := r.now()
	result = &Result{
		PluginID: p.id,
		Name:     p.name,
		Hook:     name,
	}

	defer func() {
		if rec := recover(); rec != nil {
			result.Success = false
			result.Error = fmt.Sprintf("panic: %v", rec)
		}
		result.Duration = r.now().Sub(start)
	}()

	if err := call(p.hooks); err != nil {
		result.Error = err.Error()
		return result
	}
	result.Success = true
	return result
}

// Close unloads all plugins.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.plugins = r.plugins[:0]
	return nil
}
