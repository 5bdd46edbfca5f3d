package forktest

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fastcat.org/go/forktest/cmdline"
)

var bodyRan bool

func TestRunTestBodyRunsInChildProcess(t *testing.T) {
	RunTest(t, func(t *testing.T) {
		bodyRan = true
		t.Log("isolated body ran")
	})
	// The mutation happened in the child; the parent's copy is untouched.
	assert.False(t, bodyRan)
}

func TestRunTestWithSubtest(t *testing.T) {
	t.Run("nested", func(t *testing.T) {
		RunTest(t, func(t *testing.T) {
			if t.Name() != "TestRunTestWithSubtest/nested" {
				t.Fatalf("unexpected child test name %q", t.Name())
			}
		})
	})
}

// A child body that fails its t maps to ExitFailure, whether it fails
// softly or via FailNow's Goexit.
func TestRunTestChildFailureMapsToExitCode(t *testing.T) {
	var out, errOut bytes.Buffer
	var state *os.ProcessState
	err := run(forkParams{
		id:       NewID(),
		testName: t.Name(),
		runArgs:  cmdline.RunTestArgs(t.Name()),
		relayOut: &out,
		relayErr: &errOut,
		supervise: func(c *Child) error {
			var err error
			state, err = c.Wait()
			return err
		},
		child: func() int {
			runTestBody(t, func(t *testing.T) {
				t.Error("deliberate failure in child")
			})
			panic("unreachable")
		},
	})
	require.NoError(t, err)
	assert.Equal(t, ExitFailure, state.ExitCode())
}

func TestRunTestChildFatalMapsToExitCode(t *testing.T) {
	var out, errOut bytes.Buffer
	var state *os.ProcessState
	err := run(forkParams{
		id:       NewID(),
		testName: t.Name(),
		runArgs:  cmdline.RunTestArgs(t.Name()),
		relayOut: &out,
		relayErr: &errOut,
		supervise: func(c *Child) error {
			var err error
			state, err = c.Wait()
			return err
		},
		child: func() int {
			runTestBody(t, func(t *testing.T) {
				t.Fatal("deliberate fatal in child")
			})
			panic("unreachable")
		},
	})
	require.NoError(t, err)
	assert.Equal(t, ExitFailure, state.ExitCode())
}

var benchSink int

func BenchmarkIsolatedCounter(b *testing.B) {
	RunBenchmark(b, func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			benchSink += i
		}
	})
}

// Exercises the throughput path: the child sets a per-iteration byte count
// and the parent republishes it as MB/s.
func BenchmarkIsolatedThroughput(b *testing.B) {
	RunBenchmark(b, func(b *testing.B) {
		buf := make([]byte, 1024)
		b.SetBytes(int64(len(buf)))
		for i := 0; i < b.N; i++ {
			for j := range buf {
				buf[j] = byte(j)
			}
			benchSink += int(buf[0])
		}
	})
}
