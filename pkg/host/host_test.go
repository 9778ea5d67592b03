package host_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cicd-ai-toolkit/agent-audit/pkg/agentaudit"
	"github.com/cicd-ai-toolkit/agent-audit/pkg/errors"
	"github.com/cicd-ai-toolkit/agent-audit/pkg/hooks"
	"github.com/cicd-ai-toolkit/agent-audit/pkg/host"
	"github.com/cicd-ai-toolkit/agent-audit/pkg/observability"
)

const stream = `{"hook":"event","event":{"type":"session.created","properties":{"info":{"id":"ses_1"}}}}

{"hook":"tool.execute.after","input":{"tool":"bash","sessionID":"ses_1","callID":"c1","args":{"command":"git status"}},"output":{"title":"git status","output":"clean","args":{"command":"git status"}}}
{"hook":"tool.execute.after","input":{"tool":"bash","args":{"command":"ls -la"}},"output":{"args":{}}}
{"hook":"tool.execute.after","input":{"tool":"write","args":{"filePath":"/a/b.txt"}},"output":{"args":{"filePath":"/a/b.txt"}}}
{"hook":"event","event":{"type":"message.updated"}}
{"hook":"event","event":{"type":"session.idle","properties":{"sessionID":"ses_1"}}}
`

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		entries = append(entries, m)
	}
	return entries
}

func TestDecoder(t *testing.T) {
	dec := host.NewDecoder(strings.NewReader(stream))

	var hooksSeen []hooks.HookName
	for {
		env, err := dec.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		hooksSeen = append(hooksSeen, env.Hook)
	}

	assert.Equal(t, []hooks.HookName{
		hooks.HookEvent,
		hooks.HookToolExecuteAfter,
		hooks.HookToolExecuteAfter,
		hooks.HookToolExecuteAfter,
		hooks.HookEvent,
		hooks.HookEvent,
	}, hooksSeen)
	assert.Equal(t, 7, dec.Line())
}

func TestDecoderEnvelopeFields(t *testing.T) {
	dec := host.NewDecoder(strings.NewReader(
		`{"hook":"tool.execute.after","input":{"tool":"edit","callID":"c9","args":{"filePath":"/x.go"}}}`))

	env, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "edit", env.Input.Tool)
	assert.Equal(t, "c9", env.Input.CallID)
	assert.Equal(t, "/x.go", env.Input.Args["filePath"])
	assert.Nil(t, env.Output)
}

func TestDecoderErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"not json", `git status`},
		{"missing hook", `{"event":{"type":"session.idle"}}`},
		{"unknown hook", `{"hook":"tool.execute.before","input":{"tool":"bash"}}`},
		{"event without event", `{"hook":"event"}`},
		{"null event", `{"hook":"event","event":null}`},
		{"event not object", `{"hook":"event","event":"session.idle"}`},
		{"tool without input", `{"hook":"tool.execute.after","output":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := host.NewDecoder(strings.NewReader(tt.line + "\n" + `{"hook":"event","event":{"type":"session.idle"}}`))

			_, err := dec.Next()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrProtocol), "got %v", err)

			// The decoder recovers on the next line.
			env, err := dec.Next()
			require.NoError(t, err)
			assert.Equal(t, "session.idle", env.Event.Type)
		})
	}
}

func TestDecoderReadError(t *testing.T) {
	dec := host.NewDecoder(iotest.ErrReader(stderrors.New("stdin gone")))

	_, err := dec.Next()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrIO), "got %v", err)
}

func newAuditServer(t *testing.T) (*host.Server, string) {
	t.Helper()

	dir := t.TempDir()
	reg := hooks.NewRegistry()
	_, err := reg.Load(context.Background(), agentaudit.PluginName, agentaudit.New(), hooks.PluginInput{Directory: dir})
	require.NoError(t, err)
	return host.NewServer(reg, nil), dir
}

func TestServeEndToEnd(t *testing.T) {
	srv, dir := newAuditServer(t)

	stats, err := srv.Serve(context.Background(), strings.NewReader(stream))
	require.NoError(t, err)
	assert.Equal(t, host.Stats{Envelopes: 6}, stats)

	entries := readEntries(t, filepath.Join(dir, "_logs", "agent-audit.jsonl"))
	require.Len(t, entries, 5)

	events := make([]string, len(entries))
	for i, e := range entries {
		events[i] = e["event"].(string)
	}
	assert.Equal(t, []string{"plugin.init", "session.created", "tool.shell", "tool.file", "session.idle"}, events)

	assert.Equal(t, map[string]any{
		"type":       "session.created",
		"properties": map[string]any{"info": map[string]any{"id": "ses_1"}},
	}, entries[1]["sessionData"])
	assert.Equal(t, "git status", entries[2]["command"])
	assert.Equal(t, "/a/b.txt", entries[3]["file"])

	snap := srv.Metrics().Snapshot()
	assert.Equal(t, 3, snap["event"].Dispatched)
	assert.Equal(t, 3, snap["tool.execute.after"].Dispatched)
}

func TestServeSkipsBadLines(t *testing.T) {
	var logs bytes.Buffer
	srv := host.NewServer(hooks.NewRegistry(), observability.NewLogger("warn", &logs))

	input := "{oops\n" + `{"hook":"event","event":{"type":"session.idle"}}` + "\n"
	stats, err := srv.Serve(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, host.Stats{Envelopes: 1, Skipped: 1}, stats)
	assert.Contains(t, logs.String(), "Skipping envelope")
}

func TestServeOversizedEnvelope(t *testing.T) {
	srv, dir := newAuditServer(t)

	// A read tool with 17 MiB of output, then a shell command.
	big := `{"hook":"tool.execute.after","input":{"tool":"read","args":{"filePath":"/big.log"}},"output":{"output":"` +
		strings.Repeat("x", 17<<20) + `"}}`
	input := big + "\n" + `{"hook":"tool.execute.after","input":{"tool":"bash","args":{"command":"git push"}}}` + "\n"

	stats, err := srv.Serve(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, host.Stats{Envelopes: 2}, stats)

	entries := readEntries(t, filepath.Join(dir, "_logs", "agent-audit.jsonl"))
	require.Len(t, entries, 2)
	assert.Equal(t, "tool.shell", entries[1]["event"])
	assert.Equal(t, "git push", entries[1]["command"])
}

func TestServeCountsPluginFailures(t *testing.T) {
	reg := hooks.NewRegistry()
	_, err := reg.Load(context.Background(), "broken", func(ctx context.Context, in hooks.PluginInput) (*hooks.Hooks, error) {
		return &hooks.Hooks{Event: func(ctx context.Context, e hooks.Event) error {
			return stderrors.New("nope")
		}}, nil
	}, hooks.PluginInput{})
	require.NoError(t, err)

	srv := host.NewServer(reg, nil)
	stats, err := srv.Serve(context.Background(), strings.NewReader(`{"hook":"event","event":{"type":"session.idle"}}`))
	require.NoError(t, err)
	assert.Equal(t, host.Stats{Envelopes: 1, Failures: 1}, stats)
	assert.Equal(t, 1, srv.Metrics().Snapshot()["event"].Failed)
}

func TestServeStopsOnCancel(t *testing.T) {
	srv, _ := newAuditServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := srv.Serve(ctx, strings.NewReader(stream))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Envelopes)
}

func TestServeCancelWhileWaitingForInput(t *testing.T) {
	srv, dir := newAuditServer(t)
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := srv.Serve(ctx, pr)
		done <- err
	}()

	_, err := io.WriteString(pw, `{"hook":"event","event":{"type":"session.idle"}}`+"\n")
	require.NoError(t, err)
	logFile := filepath.Join(dir, "_logs", "agent-audit.jsonl")
	require.Eventually(t, func() bool {
		data, _ := os.ReadFile(logFile)
		return bytes.Count(data, []byte("\n")) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Serve is now blocked on the pipe with nothing left to read.
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeReadError(t *testing.T) {
	srv, _ := newAuditServer(t)

	stats, err := srv.Serve(context.Background(), iotest.ErrReader(stderrors.New("stdin gone")))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrIO), "got %v", err)
	assert.Zero(t, stats.Envelopes)
}

func TestDispatch(t *testing.T) {
	srv, dir := newAuditServer(t)

	env, err := host.NewDecoder(strings.NewReader(
		`{"hook":"tool.execute.after","input":{"tool":"bash","args":{"command":"bun install"}}}`)).Next()
	require.NoError(t, err)
	assert.Zero(t, srv.Dispatch(context.Background(), env))

	entries := readEntries(t, filepath.Join(dir, "_logs", "agent-audit.jsonl"))
	require.Len(t, entries, 2)
	assert.Equal(t, "bun install", entries[1]["command"])
}
