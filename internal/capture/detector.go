// Package capture contains the PTY session driver and the command boundary
// detector that turns the raw output byte stream into discrete command
// records.
package capture

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/valter-silva-au/recli/pkg/models"
)

// Detector states. Commands are sequential within one shell, so exactly one
// entry is open at a time.
type detectorState int

const (
	// stateAwaitingCommand: between commands, watching for the next prompt.
	stateAwaitingCommand detectorState = iota
	// stateReadingCommand: prompt ended, user input is being echoed.
	stateReadingCommand
	// stateCapturingOutput: a command is running, bytes are its output.
	stateCapturingOutput
)

// ansiPattern strips CSI escape sequences before prompt matching.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

// defaultPromptPattern is the fallback heuristic from plain prompt text: a
// line whose prefix ends in a common prompt terminator followed by a space.
// Used only when no boundary marker has been observed in the stream.
var defaultPromptPattern = regexp.MustCompile(`^[^$%#>]{0,64}[$%#>]\s`)

// Detector consumes the PTY output byte stream in strict arrival order and
// emits finished CommandEntry records to its sink. It is purely synchronous:
// Feed never blocks and never reorders.
//
// Primary framing uses OSC semantic prompt marks (sequence 133 by default):
// A = prompt start, B = command start, C = command executed, D;code =
// command finished. OSC 7 reports the working directory. When no marks are
// present the detector falls back to prompt-pattern heuristics and records
// exit codes as unknown.
type Detector struct {
	sink func(models.CommandEntry)
	now  func() time.Time

	marker  string // e.g. "133"
	prompts []*regexp.Regexp

	state   detectorState
	line    []byte
	cmdMark int // line length at the command-start marker

	inEscape bool
	inOSC    bool
	oscEsc   bool
	osc      []byte

	current    *models.CommandEntry
	output     strings.Builder
	cwd        string
	offset     int
	markerSeen bool
}

// NewDetector creates a detector for one session. The sink receives
// ownership of each finished entry; it is invoked synchronously from Feed.
func NewDetector(cfg models.DetectorConfig, sink func(models.CommandEntry)) (*Detector, error) {
	marker := cfg.Marker
	if marker == 0 {
		marker = 133
	}

	prompts := []*regexp.Regexp{defaultPromptPattern}
	for _, pattern := range cfg.Prompts {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling prompt pattern %q: %w", pattern, err)
		}
		prompts = append(prompts, re)
	}

	return &Detector{
		sink:    sink,
		now:     time.Now,
		marker:  strconv.Itoa(marker),
		prompts: prompts,
	}, nil
}

// SetCwd seeds the working directory before any OSC 7 report arrives.
func (d *Detector) SetCwd(cwd string) {
	d.cwd = cwd
}

// Feed processes a chunk of PTY output. Chunks must arrive in stream order;
// escape sequences split across chunks are reassembled internally.
func (d *Detector) Feed(data []byte) {
	for _, b := range data {
		switch {
		case d.inOSC:
			d.feedOSC(b)
		case d.inEscape:
			d.inEscape = false
			if b == ']' {
				d.inOSC = true
				d.osc = d.osc[:0]
			} else {
				// Other escapes (CSI etc.) stay in the line; the ANSI
				// stripper removes them before prompt matching.
				d.line = append(d.line, 0x1b, b)
			}
		case b == 0x1b:
			d.inEscape = true
		case b == '\n':
			d.processLine()
		case b == '\r':
			// part of \r\n, or an in-place redraw; either way not a boundary
		case b == 0x08 || b == 0x7f:
			if n := len(d.line); n > 0 {
				d.line = d.line[:n-1]
				if d.cmdMark > n-1 {
					d.cmdMark = n - 1
				}
			}
		default:
			d.line = append(d.line, b)
		}
	}
}

// feedOSC accumulates an OSC payload until BEL or ST terminates it.
func (d *Detector) feedOSC(b byte) {
	switch {
	case b == 0x07:
		d.endOSC()
	case d.oscEsc:
		d.oscEsc = false
		if b == '\\' {
			d.endOSC()
		} else {
			d.osc = append(d.osc, 0x1b, b)
		}
	case b == 0x1b:
		d.oscEsc = true
	default:
		d.osc = append(d.osc, b)
	}
}

func (d *Detector) endOSC() {
	payload := string(d.osc)
	d.inOSC = false
	d.oscEsc = false
	d.osc = d.osc[:0]
	d.handleOSC(payload)
}

// handleOSC interprets semantic prompt marks and cwd reports. Anything else
// (window titles, hyperlinks) is dropped from detection but was already
// forwarded verbatim to the user's terminal by the driver.
func (d *Detector) handleOSC(payload string) {
	if cwd, ok := parseCwdReport(payload); ok {
		d.cwd = cwd
		return
	}

	rest, ok := strings.CutPrefix(payload, d.marker+";")
	if !ok {
		return
	}
	d.markerSeen = true

	code, arg, _ := strings.Cut(rest, ";")
	switch code {
	case "A": // prompt start: whatever ran before has finished
		if d.state == stateCapturingOutput && len(d.line) > 0 {
			d.output.WriteString(string(d.line))
			d.output.WriteByte('\n')
		}
		d.finishCurrent(nil, false)
		d.state = stateAwaitingCommand
		d.line = d.line[:0]
		d.cmdMark = 0
	case "B": // prompt end, user input begins
		d.state = stateReadingCommand
		d.cmdMark = len(d.line)
	case "C": // command executed, output begins
		if d.current != nil {
			d.state = stateCapturingOutput
		}
	case "D": // command finished, optionally with its exit code
		if d.current != nil {
			if code, err := strconv.Atoi(arg); err == nil {
				d.current.ExitCode = intPtr(code)
			}
		}
	}
}

// processLine runs at every line feed, the only place command boundaries can
// occur in the byte stream.
func (d *Detector) processLine() {
	line := string(d.line)
	d.line = d.line[:0]

	switch d.state {
	case stateReadingCommand:
		mark := d.cmdMark
		if mark > len(line) {
			mark = len(line)
		}
		d.cmdMark = 0
		command := strings.TrimSpace(stripANSI(line[mark:]))
		if command == "" {
			d.state = stateAwaitingCommand
			return
		}
		d.open(command, false)
		d.state = stateCapturingOutput

	case stateCapturingOutput:
		if !d.markerSeen {
			// Heuristic mode: a line that looks like "prompt command" both
			// closes the running command and starts the next one.
			if command, ok := d.splitPromptLine(line); ok {
				d.finishCurrent(nil, true)
				d.open(command, true)
				return
			}
		}
		d.output.WriteString(line)
		d.output.WriteByte('\n')

	case stateAwaitingCommand:
		if !d.markerSeen {
			if command, ok := d.splitPromptLine(line); ok {
				d.open(command, true)
				d.state = stateCapturingOutput
			}
		}
	}
}

// splitPromptLine applies the fallback heuristic: when the ANSI-stripped
// line starts with a prompt-looking prefix, the remainder is a command.
func (d *Detector) splitPromptLine(line string) (string, bool) {
	clean := stripANSI(line)
	for _, re := range d.prompts {
		loc := re.FindStringIndex(clean)
		if loc == nil {
			continue
		}
		command := strings.TrimSpace(clean[loc[1]:])
		if command != "" {
			return command, true
		}
	}
	return "", false
}

func (d *Detector) open(command string, ambiguous bool) {
	entry := models.CommandEntry{
		Command:   command,
		Cwd:       d.cwd,
		StartedAt: d.now().UTC(),
		Offset:    d.offset,
		Ambiguous: ambiguous,
	}
	d.current = &entry
	d.output.Reset()
}

// finishCurrent closes the open entry, if any, and hands ownership to the
// sink. A nil exit override keeps whatever the D mark reported; entries
// without a D mark stay unknown rather than guessing.
func (d *Detector) finishCurrent(exit *int, ambiguous bool) {
	if d.current == nil {
		return
	}
	entry := *d.current
	d.current = nil

	entry.FinishedAt = d.now().UTC()
	if entry.FinishedAt.Before(entry.StartedAt) {
		entry.FinishedAt = entry.StartedAt
	}
	entry.Output = d.output.String()
	d.output.Reset()
	if exit != nil {
		entry.ExitCode = exit
	}
	if ambiguous {
		entry.Ambiguous = true
	}

	d.sink(entry)
	d.offset++
}

// Flush finishes an in-flight entry at session end. The entry gets the
// driver's termination time and an unknown exit code; nothing is silently
// dropped on cancellation.
func (d *Detector) Flush() {
	if len(d.line) > 0 && d.state == stateCapturingOutput {
		d.output.WriteString(string(d.line))
		d.output.WriteByte('\n')
		d.line = d.line[:0]
	}
	d.finishCurrent(nil, false)
	d.state = stateAwaitingCommand
}

// Offset returns the running per-session counter (the offset the next
// finished entry will carry).
func (d *Detector) Offset() int {
	return d.offset
}

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// parseCwdReport handles OSC 7 file://host/path working-directory reports.
func parseCwdReport(payload string) (string, bool) {
	rest, ok := strings.CutPrefix(payload, "7;")
	if !ok {
		return "", false
	}
	u, err := url.Parse(rest)
	if err != nil || u.Scheme != "file" || u.Path == "" {
		return "", false
	}
	return u.Path, true
}

func intPtr(v int) *int {
	return &v
}
