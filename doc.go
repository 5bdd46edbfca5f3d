// Package forktest runs individual test and benchmark bodies in freshly
// spawned copies of the test binary, so that a crash, panic, os.Exit, or
// stray global-state mutation in one test cannot corrupt or terminate its
// siblings.
//
// This is a simulated fork, not fork(2): the test binary re-executes itself
// with an argument list selecting exactly one test, and an environment
// variable records which fork points the process lineage has already
// entered. When the re-executed copy reaches the same call site it
// recognizes itself as the child, runs the body in-process, and reports the
// outcome through its exit status. The calling code must therefore be
// structured so that the child, starting from the same entry point, reaches
// the same fork call; the standard test harness plus an anchored -test.run
// pattern takes care of that for tests written against RunTest and
// RunBenchmark.
//
// The only state that crosses into the child is the process's own
// argument and environment surface, plus, for ForkData and benchmarks,
// a single fixed-length byte buffer exchanged over a loopback connection.
// Bodies must not rely on mutating captured variables; the mutation stays
// in the child.
package forktest
