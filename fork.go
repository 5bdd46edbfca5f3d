package forktest

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime/debug"
	"strings"

	"fastcat.org/go/forktest/cmdline"
)

// OccursEnv is the environment variable carrying the occurrence trail: the
// concatenated IDs of every fork point this process's lineage has already
// entered. Absence is equivalent to an empty trail. The variable is set
// once, at spawn time, and read-only from the child's perspective.
const OccursEnv = "FORKTEST_OCCURS"

// ExitFailure is the exit code a child uses to signal a failed or panicked
// test body, following the EX_SOFTWARE convention. Any other non-zero exit
// is treated the same way by default supervision.
const ExitFailure = 70

// MaxNesting caps how many fork points a single process lineage may enter.
// Reaching the cap almost certainly means a fork call ended up inside a
// loop or recursive function, so the engine panics instead of spawning a
// further level and becoming a fork bomb.
var MaxNesting = 16

// Fork simulates a process fork: the current test binary is re-executed,
// the re-executed copy runs test in-process when it reaches this same call
// site, and the original process waits for it and returns an error if the
// child did not exit cleanly.
//
// id must come from NewID evaluated at the call site. testName must exactly
// match the name of the test function being run, as the harness sees it.
// Encountering the same fork point more than once in a single execution
// sequence of a child process results in unspecified behaviour.
//
// test runs only in the child. A nil return maps to exit code 0, a non-nil
// return or a panic to ExitFailure; in either case the child process
// terminates inside Fork and control never returns to its caller there.
//
// Fork panics if the occurrence trail already holds MaxNesting entries.
func Fork(id ID, testName string, test func() error) error {
	return run(forkParams{
		id:       id,
		testName: testName,
		runArgs:  cmdline.RunTestArgs(testName),
		child:    func() int { return runBody(test) },
	})
}

// forkParams is the full parameter surface of the engine. The exported
// entry points fill in the fixed parts; tests and the exchange variant use
// the hooks directly.
type forkParams struct {
	id       ID
	testName string
	// runArgs is the fixed argument suffix selecting the single test or
	// benchmark the child should run.
	runArgs []string
	// configure, if set, adjusts the spawn descriptor before the child is
	// started. Used by the exchange channel to advertise its rendezvous
	// address.
	configure func(*exec.Cmd)
	// supervise, if set, replaces the default wait-and-require-success
	// step. It receives the owned Child; Close runs afterwards on every
	// path regardless.
	supervise func(*Child) error
	// child runs the test body in child role and reports the process exit
	// code.
	child func() int
	// relayOut and relayErr override where abandoned child output is
	// re-emitted. They default to the process's own streams.
	relayOut io.Writer
	relayErr io.Writer
}

// run is the recursive fork engine. Each invocation decides between child
// role (the occurrence trail already names this fork point: run the body
// and exit) and parent role (append the fork point to the trail, spawn,
// supervise).
func run(p forkParams) error {
	if p.id == "" {
		// An empty ID is a substring of every trail and would make every
		// invocation look like child role.
		panic("forktest: empty fork point ID")
	}
	trail := os.Getenv(OccursEnv)
	if strings.Contains(trail, string(p.id)) {
		os.Exit(p.child())
	}

	if len(trail) >= MaxNesting*idLength {
		panic(fmt.Sprintf("forktest: not forking %s: %d levels of fork nesting reached",
			p.testName, MaxNesting))
	}

	exe, err := os.Executable()
	if err != nil {
		return &SpawnError{Err: err}
	}
	args, err := cmdline.Filter(os.Args[1:])
	if err != nil {
		return err
	}
	args = append(args, p.runArgs...)

	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), OccursEnv+"="+trail+string(p.id))
	if p.configure != nil {
		p.configure(cmd)
	}

	child, err := startChild(cmd, p.relayOut, p.relayErr)
	if err != nil {
		return &SpawnError{Err: err}
	}
	defer child.Close()

	supervise := p.supervise
	if supervise == nil {
		supervise = waitForSuccess
	}
	return supervise(child)
}

// waitForSuccess is the default supervision step: wait for the child to
// exit and report any non-zero status as an error. Callers in test code
// turn that error into a failure at the fork call site.
func waitForSuccess(c *Child) error {
	state, err := c.Wait()
	if err != nil {
		return &SpawnError{Err: err}
	}
	if !state.Success() {
		return fmt.Errorf("child exited unsuccessfully with %v", state)
	}
	return nil
}

// runBody executes a child-role body and maps its outcome to a process exit
// code. Go's recover suppresses the default panic report, so the panic and
// its stack are printed to stderr first; the parent relays them.
func runBody(test func() error) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n\n%s", r, debug.Stack())
			code = ExitFailure
		}
	}()
	if err := test(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitFailure
	}
	return 0
}
