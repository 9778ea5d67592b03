// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cicd-ai-toolkit/agent-audit/pkg/errors"
)

const (
	// EnvPrefix is the prefix for all environment variables.
	EnvPrefix = "AGENT_AUDIT"
	// EnvConfigFile names an explicit config file.
	EnvConfigFile = EnvPrefix + "_CONFIG"
	// ProjectConfigFile is the project-level config file name.
	ProjectConfigFile = ".agent-audit.yaml"
)

// Loader loads configuration from files and environment.
type Loader struct {
	projectRoot string
	configFile  string
	getenv      func(string) string
}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{getenv: os.Getenv}
}

// WithProjectRoot sets the directory searched for the project config.
func (l *Loader) WithProjectRoot(root string) *Loader {
	l.projectRoot = root
	return l
}

// WithConfigFile sets an explicit config file. Unlike the project config
// it must exist.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnv replaces the environment lookup.
func (l *Loader) WithEnv(getenv func(string) string) *Loader {
	l.getenv = getenv
	return l
}

// Load loads configuration with full precedence order:
// 1. Defaults
// 2. Project Config (<root>/.agent-audit.yaml)
// 3. Explicit Config (WithConfigFile, else AGENT_AUDIT_CONFIG)
// 4. Environment Variables (AGENT_AUDIT_*)
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	// Project config is optional
	projectCfg, err := l.loadProjectConfig()
	if err != nil {
		return nil, err
	}
	if projectCfg != nil {
		mergeConfig(cfg, projectCfg)
	}

	explicit := l.configFile
	if explicit == "" {
		explicit = l.getenv(EnvConfigFile)
	}
	if explicit != "" {
		fileCfg, err := l.LoadFromPath(explicit)
		if err != nil {
			return nil, err
		}
		mergeConfig(cfg, fileCfg)
	}

	l.applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errors.ValidationError("config validation failed", err)
	}

	return cfg, nil
}

// LoadFromPath parses a single config file without defaults.
func (l *Loader) LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("failed to read config file: %s", path), err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("failed to parse config file: %s", path), err)
	}

	return &cfg, nil
}

// loadProjectConfig returns nil when the project has no readable config
// file. A file that exists but does not parse is an error.
func (l *Loader) loadProjectConfig() (*Config, error) {
	root := l.projectRoot
	if root == "" {
		root = "."
	}

	projectPath := filepath.Join(root, ProjectConfigFile)
	if _, err := os.Stat(projectPath); err != nil {
		return nil, nil
	}
	return l.LoadFromPath(projectPath)
}

// applyEnvOverrides applies environment variable overrides.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if v := l.getenv(EnvPrefix + "_LOG_LEVEL"); v != "" {
		cfg.Global.LogLevel = v
	}
	if v := l.getenv(EnvPrefix + "_LOG_DIR"); v != "" {
		cfg.Audit.LogDir = v
	}
	if v := l.getenv(EnvPrefix + "_LOG_FILE"); v != "" {
		cfg.Audit.LogFile = v
	}
}

// mergeConfig merges src into dst (src overrides dst).
func mergeConfig(dst, src *Config) {
	if src.Audit.LogDir != "" {
		dst.Audit.LogDir = src.Audit.LogDir
	}
	if src.Audit.LogFile != "" {
		dst.Audit.LogFile = src.Audit.LogFile
	}
	if len(src.Audit.ShellTokens) > 0 {
		dst.Audit.ShellTokens = src.Audit.ShellTokens
	}

	if src.Global.LogLevel != "" {
		dst.Global.LogLevel = src.Global.LogLevel
	}
}
