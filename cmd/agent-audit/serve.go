// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Read host callbacks from stdin and record them",
		Long: `Load the audit plugin for the working directory and process host
callbacks streamed to stdin, one JSON envelope per line:

  {"hook":"event","event":{"type":"session.idle",...}}
  {"hook":"tool.execute.after","input":{"tool":"bash","args":{...}},"output":{"args":{...}}}

Serving ends at EOF or on SIGINT/SIGTERM. Audit write failures never
affect the exit status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := setup(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}

			stats, err := s.server.Serve(cmd.Context(), cmd.InOrStdin())
			s.logger.Info("Host stream closed",
				"envelopes", stats.Envelopes,
				"skipped", stats.Skipped,
				"failures", stats.Failures,
				"metrics", s.server.Metrics().Snapshot(),
			)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
