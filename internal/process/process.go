package process

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-cmd/cmd"

	"github.com/R9295/thesis-public/internal/logging"
)

var cmdOptions = cmd.Options{
	Buffered:       false,
	Streaming:      true,
	LineBufferSize: 1 << 20,
}

const tailLines = 20

// Spec describes one external command. Env is passed as is; the process
// environment is never inherited.
type Spec struct {
	Name string
	Args []string
	Env  []string
	Dir  string
	// Quiet stops output lines from being logged. They are still kept for
	// the error tail.
	Quiet bool
}

func (s Spec) String() string {
	return strings.TrimSpace(s.Name + " " + strings.Join(s.Args, " "))
}

// ExitError is returned when a command runs to completion with a non-zero
// exit status.
type ExitError struct {
	Command string
	Exit    int
	Tail    []string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s stopped with exit code %d", e.Command, e.Exit)
	if len(e.Tail) > 0 {
		msg += "\n" + strings.Join(e.Tail, "\n")
	}
	return msg
}

// Run starts the command, streams its output to l line by line and waits for
// it to finish. Cancelling ctx stops the command.
func Run(ctx context.Context, spec Spec, l logging.Logger) error {
	command := cmd.NewCmdOptions(cmdOptions, spec.Name, spec.Args...)
	command.Env = spec.Env
	if command.Env == nil {
		command.Env = []string{}
	}
	command.Dir = spec.Dir

	tail := newRing(tailLines)
	doneChan := make(chan struct{})
	go commandLogger(command, spec.Quiet, l, tail, doneChan)

	l.Info(fmt.Sprintf("Running %s", spec))
	statusChan := command.Start()

	var status cmd.Status
	select {
	case status = <-statusChan:
	case <-ctx.Done():
		_ = command.Stop()
		<-statusChan
		<-doneChan
		return fmt.Errorf("%s: %w", spec, ctx.Err())
	}
	<-doneChan

	if status.Error != nil {
		return fmt.Errorf("%s: %w", spec, status.Error)
	}
	if status.Exit != 0 {
		return &ExitError{Command: spec.String(), Exit: status.Exit, Tail: tail.lines()}
	}
	return nil
}

// commandLogger forwards output lines until both streams are closed or the
// command is done, whichever comes first. Lines still buffered when the
// command finishes are drained before returning.
func commandLogger(command *cmd.Cmd, quiet bool, l logging.Logger, tail *ring, done chan struct{}) {
	defer close(done)
	handle := func(stream, line string) {
		tail.add(line)
		if !quiet {
			l.Info(fmt.Sprintf("[%s]: %s", stream, line))
		}
	}
	drain := func(stream string, ch chan string) {
		for {
			select {
			case line, open := <-ch:
				if !open {
					return
				}
				handle(stream, line)
			default:
				return
			}
		}
	}

	stdout, stderr := command.Stdout, command.Stderr
	for stdout != nil || stderr != nil {
		select {
		case line, open := <-stdout:
			if !open {
				stdout = nil
				continue
			}
			handle("stdout", line)
		case line, open := <-stderr:
			if !open {
				stderr = nil
				continue
			}
			handle("stderr", line)
		case <-command.Done():
			drain("stdout", stdout)
			drain("stderr", stderr)
			return
		}
	}
}

type ring struct {
	buf  []string
	next int
	full bool
}

func newRing(n int) *ring {
	return &ring{buf: make([]string, n)}
}

func (r *ring) add(line string) {
	r.buf[r.next] = line
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) lines() []string {
	if !r.full {
		return append([]string(nil), r.buf[:r.next]...)
	}
	return append(append([]string(nil), r.buf[r.next:]...), r.buf[:r.next]...)
}
