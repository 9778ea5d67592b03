package host

import (
	"context"
	"io"
	"log/slog"

	"github.com/cicd-ai-toolkit/agent-audit/pkg/errors"
	"github.com/cicd-ai-toolkit/agent-audit/pkg/hooks"
	"github.com/cicd-ai-toolkit/agent-audit/pkg/observability"
)

// Stats summarizes a Serve run.
type Stats struct {
	Envelopes int `json:"envelopes"`
	Skipped   int `json:"skipped"`
	Failures  int `json:"failures"`
}

// Server drives a registry from a stream of envelopes.
type Server struct {
	registry *hooks.Registry
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewServer creates a server. A nil logger discards diagnostics.
func NewServer(registry *hooks.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = observability.Discard()
	}
	return &Server{
		registry: registry,
		logger:   logger,
		metrics:  observability.NewMetrics(),
	}
}

// Metrics returns the per-hook dispatch counters.
func (s *Server) Metrics() *observability.Metrics {
	return s.metrics
}

// decoded is one Decoder.Next result handed from the reading goroutine.
type decoded struct {
	env  *Envelope
	line int
	err  error
}

// Serve dispatches envelopes from r in order until EOF or until ctx is
// cancelled. Bad lines are logged and skipped.
//
// Reading happens on a separate goroutine so that cancellation is noticed
// while r blocks. After cancellation that goroutine stays parked in r.Read
// until r returns; closing r releases it.
func (s *Server) Serve(ctx context.Context, r io.Reader) (Stats, error) {
	var stats Stats
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	readCtx, stop := context.WithCancel(ctx)
	defer stop()
	lines := s.read(readCtx, r)

	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case d := <-lines:
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			if d.err == io.EOF {
				return stats, nil
			}
			if d.err != nil {
				if errors.IsType(d.err, errors.ErrProtocol) {
					stats.Skipped++
					s.logger.Warn("Skipping envelope", "line", d.line, "error", d.err)
					continue
				}
				return stats, d.err
			}

			stats.Envelopes++
			stats.Failures += s.Dispatch(ctx, d.env)
		}
	}
}

// read decodes r on its own goroutine. It stops after the first result
// that ends the stream or when ctx is done.
func (s *Server) read(ctx context.Context, r io.Reader) <-chan decoded {
	lines := make(chan decoded)
	go func() {
		dec := NewDecoder(r)
		for {
			env, err := dec.Next()
			select {
			case lines <- decoded{env: env, line: dec.Line(), err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil && !errors.IsType(err, errors.ErrProtocol) {
				return
			}
		}
	}()
	return lines
}

// Dispatch delivers one envelope to the registry and returns the number of
// plugins that failed to handle it.
func (s *Server) Dispatch(ctx context.Context, env *Envelope) int {
	var results []*hooks.Result
	switch env.Hook {
	case hooks.HookEvent:
		results = s.registry.DispatchEvent(ctx, *env.Event)
	case hooks.HookToolExecuteAfter:
		results = s.registry.DispatchToolExecuteAfter(ctx, env.Input, env.Output)
	}

	failures := 0
	for _, res := range results {
		s.metrics.RecordDispatch(string(res.Hook), res.Duration, res.Success)
		if !res.Success {
			failures++
			s.logger.Warn("Plugin hook failed",
				"plugin", res.Name,
				"hook", res.Hook,
				"error", res.Error,
			)
			continue
		}
		s.logger.Debug("Plugin hook handled",
			"plugin", res.Name,
			"hook", res.Hook,
			"duration", res.Duration,
		)
	}
	return failures
}
