// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package observability

import (
	"sync"
	"time"
)

// Metrics counts host callbacks handled by the adapter.
type Metrics struct {
	mu       sync.Mutex
	counters map[string]*Counter
}

// Counter aggregates one hook's dispatches.
type Counter struct {
	Dispatched int           `json:"dispatched"`
	Failed     int           `json:"failed"`
	Total      time.Duration `json:"total_ns"`
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{counters: make(map[string]*Counter)}
}

// RecordDispatch records one plugin handling one hook.
func (m *Metrics) RecordDispatch(hook string, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.counters[hook]
	if !ok {
		c = &Counter{}
		m.counters[hook] = c
	}
	c.Dispatched++
	c.Total += duration
	if !success {
		c.Failed++
	}
}

// Snapshot returns a copy of the counters keyed by hook name.
func (m *Metrics) Snapshot() map[string]Counter {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Counter, len(m.counters))
	for k, c := range m.counters {
		out[k] = *c
	}
	return out
}
