package installer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// downloadWeight is the share of a package's progress given to downloads.
	downloadWeight = 50
	// successCeiling is the highest percent reachable before the process exits.
	successCeiling = 98
	// successStep is how far each success line nudges the bar.
	successStep = 2
)

var (
	downloadPattern   = regexp.MustCompile(`Downloading (.*?)\s.*?(\d+)%`)
	collectingPattern = regexp.MustCompile(`Collecting (.*?)(?:\s|$)`)
	installingPattern = regexp.MustCompile(`Installing collected packages`)
)

const successMarker = "Successfully installed"

// Event is one progress report for the current package.
type Event struct {
	// Percent is the package's progress, 0..100.
	Percent int `json:"percent"`
	// Message is a human-readable status line.
	Message string `json:"message"`
}

// Parser classifies installer output lines and tracks the install phase.
// It is not safe for concurrent use; each job owns one.
type Parser struct {
	phase       Phase
	percent     int
	currentFile string
	lines       []string
}

// NewParser returns a Parser in PhasePreparing.
func NewParser() *Parser {
	return &Parser{phase: PhasePreparing}
}

// Phase returns the current phase.
func (p *Parser) Phase() Phase {
	return p.phase
}

// Percent returns the percent of the last emitted event.
func (p *Parser) Percent() int {
	return p.percent
}

// Feed consumes one line of installer output. It returns an event and true
// when the line carried progress information.
func (p *Parser) Feed(line string) (Event, bool) {
	p.lines = append(p.lines, line)
	text := strings.TrimSpace(line)

	if p.phase < PhaseInstalling {
		if m := downloadPattern.FindStringSubmatch(text); m != nil {
			reported, err := strconv.Atoi(m[2])
			if err == nil {
				if reported > 100 {
					reported = 100
				}
				p.phase.advance(PhaseDownloading)
				p.currentFile = strings.TrimSpace(m[1])
				return p.emit(reported*downloadWeight/100, fmt.Sprintf("Downloading: %s (%d%%)", p.currentFile, reported))
			}
		}
	}

	if installingPattern.MatchString(text) {
		if p.phase.advance(PhaseInstalling) {
			return p.emit(downloadWeight, "Download complete. Installing packages...")
		}
		return Event{}, false
	}

	switch p.phase {
	case PhasePreparing:
		if m := collectingPattern.FindStringSubmatch(text); m != nil {
			return p.emit(0, fmt.Sprintf("Finding requirement: %s...", strings.TrimSpace(m[1])))
		}
	case PhaseInstalling:
		if strings.Contains(text, successMarker) {
			next := p.percent + successStep
			if next > successCeiling {
				next = successCeiling
			}
			return p.emit(next, "Successfully installed dependencies...")
		}
	}

	return Event{}, false
}

// Finish reports the process exit. On status 0 it returns the completion
// event. Otherwise ok is false and diagnostic carries the full output.
func (p *Parser) Finish(exitCode int) (final Event, diagnostic string, ok bool) {
	if exitCode == 0 {
		ev, _ := p.emit(100, "Installation complete.")
		return ev, p.Output(), true
	}
	return Event{}, fmt.Sprintf("installer failed with return code %d.\n\nOutput:\n%s", exitCode, p.Output()), false
}

// Output returns every line seen so far, newline terminated.
func (p *Parser) Output() string {
	if len(p.lines) == 0 {
		return ""
	}
	return strings.Join(p.lines, "\n") + "\n"
}

func (p *Parser) emit(percent int, message string) (Event, bool) {
	p.percent = percent
	return Event{Percent: percent, Message: message}, true
}
