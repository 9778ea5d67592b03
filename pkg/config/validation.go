// Package config handles configuration loading and validation
package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`^\w+$`)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}

	if err := c.Audit.Validate(); err != nil {
		return fmt.Errorf("audit config: %w", err)
	}

	if err := c.Global.Validate(); err != nil {
		return fmt.Errorf("global config: %w", err)
	}

	return nil
}

// Validate validates the audit trail settings
func (a *AuditConfig) Validate() error {
	if strings.TrimSpace(a.LogDir) == "" {
		return fmt.Errorf("log_dir is required")
	}

	if strings.TrimSpace(a.LogFile) == "" {
		return fmt.Errorf("log_file is required")
	}
	if filepath.Base(a.LogFile) != a.LogFile || a.LogFile == "." || a.LogFile == ".." {
		return fmt.Errorf("log_file must be a file name, got %q", a.LogFile)
	}

	if len(a.ShellTokens) == 0 {
		return fmt.Errorf("shell_tokens must not be empty")
	}
	for i, token := range a.ShellTokens {
		if !tokenPattern.MatchString(token) {
			return fmt.Errorf("shell_tokens[%d]: %q is not a single word", i, token)
		}
	}

	return nil
}

// Validate validates global settings
func (g *GlobalConfig) Validate() error {
	if !validLogLevels[strings.ToLower(g.LogLevel)] {
		return fmt.Errorf("invalid log_level %q (must be one of: debug, info, warn, error)", g.LogLevel)
	}
	return nil
}
