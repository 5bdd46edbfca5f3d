package forktest

import (
	"encoding/binary"
	"fmt"
	"os"
	"runtime/debug"
	"testing"

	"fastcat.org/go/forktest/cmdline"
)

// RunTest runs body in a freshly spawned copy of the test binary. The fork
// point ID is derived from the call site and the test selection from
// t.Name(), so the usual shape is a one-liner at the top of the test:
//
//	func TestTouchesGlobalState(t *testing.T) {
//		forktest.RunTest(t, func(t *testing.T) {
//			// runs in its own process
//		})
//	}
//
// body executes only in the child; the t it receives there is the child's
// own. Failures (t.Error, t.Fatal), panics, and abnormal termination all
// surface in the parent as an ordinary test failure, with the child's
// output relayed. Because body runs in another process, it must not rely on
// mutating state captured from the parent.
func RunTest(t *testing.T, body func(*testing.T)) {
	t.Helper()
	runTest(t, idAt(1), body)
}

func runTest(t *testing.T, id ID, body func(*testing.T)) {
	t.Helper()
	err := run(forkParams{
		id:       id,
		testName: t.Name(),
		runArgs:  cmdline.RunTestArgs(t.Name()),
		child: func() int {
			runTestBody(t, body)
			panic("unreachable")
		},
	})
	if err != nil {
		t.Fatalf("forking test failed: %v", err)
	}
}

// runTestBody executes body against the child's own t and terminates the
// process with the matching exit code. The deferred hook fires on normal
// return, on panic, and on the Goexit performed by t.FailNow, so all three
// outcomes map onto the exit status.
func runTestBody(t *testing.T, body func(*testing.T)) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n\n%s", r, debug.Stack())
			os.Exit(ExitFailure)
		}
		if t.Failed() {
			os.Exit(ExitFailure)
		}
		os.Exit(0)
	}()
	body(t)
}

// benchResultLen is the declared wire size of a benchmark result: five
// big-endian uint64 fields (iterations, wall time in nanoseconds, bytes
// processed, allocations, allocated bytes). The exchange buffer for
// benchmarks always has exactly this length.
const benchResultLen = 5 * 8

// RunBenchmark runs body in a freshly spawned copy of the test binary and
// republishes the child's measurements on b. The child performs its own
// calibration via testing.Benchmark, serializes the result into the
// exchange buffer with the fixed layout above, and the parent reports the
// per-operation figures via b.ReportMetric, plus throughput when the body
// called b.SetBytes.
//
// Like RunTest, body executes only in the child and must not rely on
// mutating captured state.
func RunBenchmark(b *testing.B, body func(*testing.B)) {
	b.Helper()
	runBenchmark(b, idAt(1), body)
}

func runBenchmark(b *testing.B, id ID, body func(*testing.B)) {
	b.Helper()
	buf := make([]byte, benchResultLen)
	err := runExchange(forkParams{
		id:       id,
		testName: b.Name(),
		runArgs:  cmdline.RunBenchArgs(b.Name()),
	}, buf, func(data []byte) error {
		res := testing.Benchmark(body)
		binary.BigEndian.PutUint64(data[0:], uint64(res.N))
		binary.BigEndian.PutUint64(data[8:], uint64(res.T.Nanoseconds()))
		binary.BigEndian.PutUint64(data[16:], uint64(res.Bytes))
		binary.BigEndian.PutUint64(data[24:], res.MemAllocs)
		binary.BigEndian.PutUint64(data[32:], res.MemBytes)
		return nil
	})
	if err != nil {
		b.Fatalf("forking benchmark failed: %v", err)
	}

	n := binary.BigEndian.Uint64(buf[0:])
	if n == 0 {
		b.Fatalf("child reported a benchmark result with zero iterations")
	}
	ns := binary.BigEndian.Uint64(buf[8:])
	bytes := binary.BigEndian.Uint64(buf[16:])
	allocs := binary.BigEndian.Uint64(buf[24:])
	memBytes := binary.BigEndian.Uint64(buf[32:])
	b.ReportMetric(float64(ns)/float64(n), "ns/op")
	b.ReportMetric(float64(allocs)/float64(n), "allocs/op")
	b.ReportMetric(float64(memBytes)/float64(n), "B/op")
	if bytes > 0 && ns > 0 {
		// bytes is per iteration, as set by the child's b.SetBytes.
		b.ReportMetric(float64(bytes)*float64(n)/(float64(ns)/1e9)/1e6, "MB/s")
	}
}
