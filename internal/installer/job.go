package installer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"go.uber.org/zap"
)

// Outcome is the final report of one package install.
type Outcome struct {
	Package    string `json:"package"`
	Success    bool   `json:"success"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// InstallJob is the coordinator's view of the package being installed.
type InstallJob struct {
	Package    string `json:"package"`
	Phase      Phase  `json:"phase"`
	Percent    int    `json:"percent"`
	LastStatus string `json:"last_status"`
}

// jobMessage is what a job worker sends to the coordinator. Exactly one of
// the fields is set; the outcome is always the last message.
type jobMessage struct {
	event   *Event
	phase   Phase
	outcome *Outcome
}

const maxLineSize = 1024 * 1024

// runJob runs one installer process to completion, reporting over msgs.
// It owns the process and the parser and never touches coordinator state.
func runJob(cmd *exec.Cmd, pkg string, msgs chan<- jobMessage, logger *zap.SugaredLogger) {
	defer close(msgs)

	defer func() {
		if r := recover(); r != nil {
			msgs <- jobMessage{outcome: &Outcome{
				Package:    pkg,
				Diagnostic: fmt.Sprintf("An unexpected error occurred: %v", r),
			}}
		}
	}()

	parser := NewParser()

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		msgs <- jobMessage{outcome: &Outcome{
			Package:    pkg,
			Diagnostic: fmt.Sprintf("An unexpected error occurred: %v", err),
		}}
		return
	}

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.Close()
		waitErr <- err
	}()

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		logger.Debugw("installer output", "package", pkg, "line", line)
		if ev, ok := parser.Feed(line); ok {
			msgs <- jobMessage{event: &ev, phase: parser.Phase()}
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warnw("error scanning installer output", "package", pkg, "error", err)
		// Keep draining so the process never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, pr)
	}

	exitCode := 0
	if err := <-waitErr; err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			msgs <- jobMessage{outcome: &Outcome{
				Package:    pkg,
				Diagnostic: fmt.Sprintf("An unexpected error occurred: %v\n\nOutput:\n%s", err, parser.Output()),
			}}
			return
		}
		// -1 when the process was killed by a signal.
		exitCode = exitErr.ExitCode()
	}

	final, diagnostic, ok := parser.Finish(exitCode)
	if ok {
		msgs <- jobMessage{event: &final, phase: parser.Phase()}
	}
	msgs <- jobMessage{outcome: &Outcome{Package: pkg, Success: ok, Diagnostic: diagnostic}}
}
