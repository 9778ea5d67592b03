// Package host adapts a host agent runtime that delivers plugin callbacks
// as JSON Lines envelopes on a stream (stdin for the CLI).
package host

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cicd-ai-toolkit/agent-audit/pkg/errors"
	"github.com/cicd-ai-toolkit/agent-audit/pkg/hooks"
)

// Envelope is one host callback.
//
//	{"hook":"event","event":{"type":"session.idle",...}}
//	{"hook":"tool.execute.after","input":{"tool":"bash","args":{...}},"output":{"args":{...}}}
type Envelope struct {
	Hook   hooks.HookName    `json:"hook"`
	Event  *hooks.Event      `json:"event,omitempty"`
	Input  *hooks.ToolInput  `json:"input,omitempty"`
	Output *hooks.ToolOutput `json:"output,omitempty"`
}

// Validate checks that the envelope carries what its hook needs.
func (e *Envelope) Validate() error {
	switch e.Hook {
	case hooks.HookEvent:
		if e.Event == nil {
			return fmt.Errorf("event envelope without event")
		}
	case hooks.HookToolExecuteAfter:
		if e.Input == nil {
			return fmt.Errorf("tool.execute.after envelope without input")
		}
	case "":
		return fmt.Errorf("envelope without hook")
	default:
		return fmt.Errorf("unknown hook %q", e.Hook)
	}
	return nil
}

// Decoder reads envelopes line by line. Lines have no length limit: a
// tool output of any size is one envelope.
type Decoder struct {
	reader *bufio.Reader
	line   int
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Line returns the number of the last line read.
func (d *Decoder) Line() int {
	return d.line
}

// Next returns the next envelope, or io.EOF at the end of the stream.
// Blank lines are skipped. A malformed line yields an ErrProtocol error and
// the decoder stays usable for the following lines. A failing reader yields
// an ErrIO error.
func (d *Decoder) Next() (*Envelope, error) {
	for {
		line, err := d.reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, errors.IOError("failed to read envelope", err).WithContext("line", d.line+1)
		}
		if len(line) == 0 {
			// err is io.EOF here
			return nil, io.EOF
		}
		d.line++

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			return nil, errors.ProtocolError("malformed envelope", err).WithContext("line", d.line)
		}
		if err := env.Validate(); err != nil {
			return nil, errors.ProtocolError("invalid envelope", err).WithContext("line", d.line)
		}
		return &env, nil
	}
}
