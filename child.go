package forktest

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Child is the handle to a spawned fork child. It is owned by exactly one
// supervising scope at a time. Close must run before that scope is left
// (the engine arranges this with a defer) and guarantees that the child is
// no longer running and that any output it produced has been relayed.
type Child struct {
	cmd      *exec.Cmd
	stdout   *os.File
	stderr   *os.File
	relayOut io.Writer
	relayErr io.Writer
	state    *os.ProcessState
	waited   bool
	closed   bool
}

// startChild spawns cmd with stdin suppressed and both output streams
// captured. The pipes are created with os.Pipe rather than exec's own
// StdoutPipe so that buffered output stays readable after the child has
// been reaped.
func startChild(cmd *exec.Cmd, relayOut, relayErr io.Writer) (*Child, error) {
	if relayOut == nil {
		relayOut = os.Stdout
	}
	if relayErr == nil {
		relayErr = os.Stderr
	}

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, err
	}

	// Stdin stays nil so the child reads from the null device.
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		outR.Close()
		outW.Close()
		errR.Close()
		errW.Close()
		return nil, err
	}
	// The write ends now live in the child; closing our copies makes the
	// read ends see EOF once the child exits.
	outW.Close()
	errW.Close()

	return &Child{
		cmd:      cmd,
		stdout:   outR,
		stderr:   errR,
		relayOut: relayOut,
		relayErr: relayErr,
	}, nil
}

// Pid returns the child's process id.
func (c *Child) Pid() int {
	return c.cmd.Process.Pid
}

// Stdout returns the read end of the child's captured standard output.
// Bytes consumed here will not be re-emitted by Close.
func (c *Child) Stdout() io.Reader {
	return c.stdout
}

// Stderr returns the read end of the child's captured standard error.
func (c *Child) Stderr() io.Reader {
	return c.stderr
}

// Wait blocks until the child exits and returns its final process state. A
// non-zero exit status is not an error here; callers decide what a failed
// child means.
func (c *Child) Wait() (*os.ProcessState, error) {
	if c.waited {
		return c.state, nil
	}
	err := c.cmd.Wait()
	if c.cmd.ProcessState == nil {
		return nil, err
	}
	c.waited = true
	c.state = c.cmd.ProcessState
	return c.state, nil
}

// Close is the guaranteed teardown step. If the child has not been waited
// on it is killed first, best effort, since it may have exited already.
// Both captured streams are then drained to end-of-stream and re-emitted
// line by line on the parent's corresponding streams, and the child is
// reaped. Close is idempotent; only the first call does any work.
func (c *Child) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if !c.waited {
		_ = c.cmd.Process.Kill()
	}

	var eg errgroup.Group
	eg.Go(func() error { return relay(c.stdout, c.relayOut) })
	eg.Go(func() error { return relay(c.stderr, c.relayErr) })
	err := eg.Wait()

	if !c.waited {
		_, _ = c.Wait()
	}
	c.stdout.Close()
	c.stderr.Close()
	return err
}

// relay copies one captured stream to the parent's corresponding stream,
// splitting on line feeds and substituting the Unicode replacement
// character for bytes that are not valid UTF-8. Test harnesses key their
// reporting on captured lines, so granularity matters more than throughput
// here. A final unterminated line is still flushed. A read error ends the
// drain of this stream only; write errors are reported.
func relay(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			s := strings.ToValidUTF8(string(line), "�")
			if _, werr := io.WriteString(w, s); werr != nil {
				return werr
			}
		}
		if err != nil {
			return nil
		}
	}
}
