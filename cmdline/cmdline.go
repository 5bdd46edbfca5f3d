// Package cmdline rebuilds a test binary's argument list for re-execution.
//
// A forked child must be started with the arguments the parent test process
// was given, minus anything that cannot sensibly apply to a second process
// running a single test: name filters are replaced by the fork engine's own
// -test.run selection, and flags that write to a fixed output file would
// have every child clobbering the parent's results. The package keeps a
// table of the `go test` flag surface and classifies each flag as
// forwardable, stripped, or disallowed.
package cmdline

import (
	"regexp"
	"strings"
)

// UnknownFlagError reports a flag on the test process's command line that
// this package does not know how to forward to a child process.
type UnknownFlagError struct {
	Flag string
}

func (e *UnknownFlagError) Error() string {
	return "the flag '" + e.Flag + "' was passed to the test process, but forktest does not know how to handle it"
}

// DisallowedFlagError reports a flag that is recognized but cannot be
// forwarded to a child process in any sensible way.
type DisallowedFlagError struct {
	Flag   string
	Reason string
}

func (e *DisallowedFlagError) Error() string {
	return "the flag '" + e.Flag + "' was passed to the test process, but forktest cannot handle it; reason: " + e.Reason
}

type disposition int

const (
	// forwarded to the child unchanged
	pass disposition = iota
	// dropped; the fork engine supplies its own value or the flag is
	// meaningless for a single re-executed test
	strip
	// recognized but unforwardable; produces a DisallowedFlagError
	disallow
)

type flagSpec struct {
	disposition disposition
	// boolean flags never consume a separate value argument
	boolean bool
	reason  string
}

const outputFileReason = "every forked child would overwrite the same output file"

var knownFlags = map[string]flagSpec{
	// Forwarded unchanged.
	"test.v":                    {disposition: pass, boolean: true},
	"test.short":                {disposition: pass, boolean: true},
	"test.failfast":             {disposition: pass, boolean: true},
	"test.fullpath":             {disposition: pass, boolean: true},
	"test.benchmem":             {disposition: pass, boolean: true},
	"test.timeout":              {disposition: pass},
	"test.parallel":             {disposition: pass},
	"test.cpu":                  {disposition: pass},
	"test.memprofilerate":       {disposition: pass},
	"test.blockprofilerate":     {disposition: pass},
	"test.mutexprofilefraction": {disposition: pass},

	// Stripped. Selection and repetition belong to the fork engine; the
	// child runs exactly one test exactly once.
	"test.run":              {disposition: strip},
	"test.skip":             {disposition: strip},
	"test.bench":            {disposition: strip},
	"test.benchtime":        {disposition: strip},
	"test.count":            {disposition: strip},
	"test.list":             {disposition: strip},
	"test.shuffle":          {disposition: strip},
	"test.fuzz":             {disposition: strip},
	"test.fuzztime":         {disposition: strip},
	"test.fuzzminimizetime": {disposition: strip},
	"test.fuzzcachedir":     {disposition: strip},
	"test.fuzzworker":       {disposition: strip, boolean: true},
	"test.testlogfile":      {disposition: strip},
	// go test injects this into every test binary it runs. A forked child
	// reports its outcome by calling os.Exit, so inheriting the flag would
	// turn every successful child into a panic.
	"test.paniconexit0": {disposition: strip, boolean: true},

	// Profile and trace outputs go to a single file named by the flag.
	"test.coverprofile": {disposition: disallow, reason: outputFileReason},
	"test.gocoverdir":   {disposition: disallow, reason: outputFileReason},
	"test.cpuprofile":   {disposition: disallow, reason: outputFileReason},
	"test.memprofile":   {disposition: disallow, reason: outputFileReason},
	"test.blockprofile": {disposition: disallow, reason: outputFileReason},
	"test.mutexprofile": {disposition: disallow, reason: outputFileReason},
	"test.trace":        {disposition: disallow, reason: outputFileReason},
	"test.outputdir":    {disposition: disallow, reason: outputFileReason},
}

// Filter maps the current process's argument list (excluding the program
// name) to the list a forked child should receive, ahead of the arguments
// selecting the single test to run. Positional arguments are dropped; the
// child gets an explicit -test.run instead.
func Filter(args []string) ([]string, error) {
	var out []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name := strings.TrimLeft(arg, "-")
		if name == "" {
			// "-" or "--"; whatever follows is positional
			continue
		}
		name, _, hasValue := strings.Cut(name, "=")
		spec, ok := knownFlags[name]
		if !ok {
			return nil, &UnknownFlagError{Flag: arg}
		}
		consumesNext := !spec.boolean && !hasValue
		switch spec.disposition {
		case disallow:
			return nil, &DisallowedFlagError{Flag: "-" + name, Reason: spec.reason}
		case strip:
			if consumesNext {
				i++
			}
		case pass:
			out = append(out, arg)
			if consumesNext && i+1 < len(args) {
				i++
				out = append(out, args[i])
			}
		}
	}
	return out, nil
}

// RunTestArgs returns the fixed argument suffix that makes a child process
// run exactly the named test, once.
func RunTestArgs(name string) []string {
	return []string{"-test.run=" + NamePattern(name), "-test.count=1"}
}

// RunBenchArgs returns the fixed argument suffix that makes a child process
// run exactly the named benchmark and no tests.
func RunBenchArgs(name string) []string {
	return []string{"-test.run=^$", "-test.bench=" + NamePattern(name)}
}

// NamePattern converts a test name as reported by testing.T.Name into an
// anchored -test.run pattern. The harness matches subtest names segment by
// segment, so "TestFoo/bar" becomes "^TestFoo$/^bar$".
func NamePattern(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = "^" + regexp.QuoteMeta(p) + "$"
	}
	return strings.Join(parts, "/")
}
