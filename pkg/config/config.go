// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package config provides configuration management for agent-audit.
//
// Configuration Loading Order (later overrides earlier):
// 1. Defaults (hardcoded)
// 2. Project Config: <dir>/.agent-audit.yaml
// 3. Explicit Config: --config flag or AGENT_AUDIT_CONFIG
// 4. Environment Variables: AGENT_AUDIT_*
package config

// Config represents the complete application configuration.
type Config struct {
	Audit  AuditConfig  `yaml:"audit"`
	Global GlobalConfig `yaml:"global"`
}

// AuditConfig contains the audit trail settings.
type AuditConfig struct {
	LogDir      string   `yaml:"log_dir"`      // relative to the working directory
	LogFile     string   `yaml:"log_file"`     // base name inside log_dir
	ShellTokens []string `yaml:"shell_tokens"` // whole-word command tokens worth logging
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"` // debug, info, warn, error
}

// DefaultShellTokens are the command words whose shell runs are audited.
var DefaultShellTokens = []string{"gt", "gh", "git", "bun"}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	tokens := make([]string, len(DefaultShellTokens))
	copy(tokens, DefaultShellTokens)

	return &Config{
		Audit: AuditConfig{
			LogDir:      "_logs",
			LogFile:     "agent-audit.jsonl",
			ShellTokens: tokens,
		},
		Global: GlobalConfig{
			LogLevel: "warn",
		},
	}
}
