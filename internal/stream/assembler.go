// Package stream reassembles chat-completion deltas from a server-sent-events
// body that arrives in arbitrarily sized chunks.
package stream

import (
	"bytes"
	"encoding/json"
	"strings"

	"skillshare-backend/internal/models"
)

const (
	dataPrefix   = "data: "
	DoneSentinel = "[DONE]"
)

type scanState int

const (
	scanning scanState = iota
	awaitingInput
)

type lineResult int

const (
	lineSkipped lineResult = iota
	lineDelta
	lineDone
	lineIncomplete
)

// Assembler accumulates the assistant message carried by one event stream.
// It is owned by a single request and is not safe for concurrent use.
type Assembler struct {
	pending []byte
	content strings.Builder
	done    bool
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Feed appends chunk to the pending buffer and resolves every complete line
// it can. It returns one snapshot of the accumulated content per delta, in
// order, and reports whether the [DONE] sentinel has been seen. Input fed
// after [DONE] is ignored.
func (a *Assembler) Feed(chunk []byte) ([]string, bool) {
	if a.done {
		return nil, true
	}
	a.pending = append(a.pending, chunk...)
	return a.scan(false), a.done
}

// Finish resolves whatever is left once the body has ended: lines that were
// deferred as incomplete JSON can no longer be completed and are dropped, and
// a final line without a trailing newline is processed as if it had one.
func (a *Assembler) Finish() []string {
	if a.done {
		return nil
	}
	snapshots := a.scan(true)
	if !a.done && len(a.pending) > 0 {
		line := string(a.pending)
		a.pending = nil
		if a.processLine(line) == lineDelta {
			snapshots = append(snapshots, a.content.String())
		}
	}
	a.pending = nil
	return snapshots
}

// Content returns the text accumulated so far.
func (a *Assembler) Content() string {
	return a.content.String()
}

// Done reports whether the [DONE] sentinel was observed.
func (a *Assembler) Done() bool {
	return a.done
}

// Pending returns the number of buffered bytes not yet resolved into a line.
func (a *Assembler) Pending() int {
	return len(a.pending)
}

func (a *Assembler) scan(final bool) []string {
	var snapshots []string

	state := scanning
	for state == scanning {
		idx := bytes.IndexByte(a.pending, '\n')
		if idx < 0 {
			state = awaitingInput
			continue
		}

		line := string(a.pending[:idx])
		a.pending = a.pending[idx+1:]

		switch a.processLine(line) {
		case lineDelta:
			snapshots = append(snapshots, a.content.String())
		case lineDone:
			a.done = true
			a.pending = nil
			state = awaitingInput
		case lineIncomplete:
			if final {
				continue
			}
			// Retry the whole line once more bytes arrive.
			restored := make([]byte, 0, len(line)+1+len(a.pending))
			restored = append(restored, line...)
			restored = append(restored, '\n')
			a.pending = append(restored, a.pending...)
			state = awaitingInput
		}
	}

	return snapshots
}

func (a *Assembler) processLine(line string) lineResult {
	line = strings.TrimSuffix(line, "\r")

	if line == "" || strings.HasPrefix(line, ":") || strings.TrimSpace(line) == "" {
		return lineSkipped
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return lineSkipped
	}

	payload := strings.TrimSpace(line[len(dataPrefix):])
	if payload == DoneSentinel {
		return lineDone
	}

	if !json.Valid([]byte(payload)) {
		return lineIncomplete
	}

	var chunk models.ChatCompletionChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		// Well-formed JSON of an unexpected shape carries no delta.
		return lineSkipped
	}

	delta := chunk.DeltaContent()
	if delta == "" {
		return lineSkipped
	}
	a.content.WriteString(delta)
	return lineDelta
}
