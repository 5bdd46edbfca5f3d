package forktest

import (
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"

	"fastcat.org/go/forktest/cmdline"
)

// ForkData simulates a process fork like Fork, additionally round-tripping
// a byte buffer through the child: the child's test body receives a buffer
// with the same length and contents as data, and whatever it leaves there
// is copied back into data before ForkData returns.
//
// The buffer length is fixed end to end and never transmitted; both sides
// already know it from the call site, so the loopback connection carries
// raw bytes with no framing. Exactly one exchange happens per invocation.
func ForkData(id ID, testName string, test func(data []byte) error, data []byte) error {
	return runExchange(forkParams{
		id:       id,
		testName: testName,
		runArgs:  cmdline.RunTestArgs(testName),
	}, data, test)
}

// runExchange layers the data exchange protocol onto the engine: the parent
// listens on a loopback endpoint before spawning and advertises its address
// to the child through an environment variable keyed by the fork point ID.
func runExchange(p forkParams, data []byte, test func(data []byte) error) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return &ExchangeError{Op: "listen", Err: err}
	}
	defer ln.Close()
	addr := ln.Addr().String()

	id := p.id
	configure := p.configure
	p.configure = func(cmd *exec.Cmd) {
		cmd.Env = append(cmd.Env, string(id)+"="+addr)
		if configure != nil {
			configure(cmd)
		}
	}
	supervise := p.supervise
	if supervise == nil {
		supervise = waitForSuccess
	}
	p.supervise = func(c *Child) error {
		if err := exchangeParent(ln, data); err != nil {
			return err
		}
		return supervise(c)
	}
	p.child = func() int {
		return runBody(func() error {
			return exchangeChild(id, len(data), test)
		})
	}
	return run(p)
}

// exchangeParent performs the parent half of the protocol: accept exactly
// one connection, send the full buffer, read exactly as many bytes back.
// Both transfers block until the agreed byte count has moved; there is no
// timeout layer, by design.
func exchangeParent(ln net.Listener, data []byte) error {
	conn, err := ln.Accept()
	if err != nil {
		return &ExchangeError{Op: "accept", Err: err}
	}
	defer conn.Close()
	if _, err := conn.Write(data); err != nil {
		return &ExchangeError{Op: "send", Err: err}
	}
	if _, err := io.ReadFull(conn, data); err != nil {
		return &ExchangeError{Op: "receive", Err: err}
	}
	return nil
}

// exchangeChild performs the child half: dial the advertised address,
// receive the buffer, run the body over a mutable view of it, and send the
// possibly mutated bytes back. The body's own error is reported only after
// the write-back so the parent is never left with a half-finished exchange.
func exchangeChild(id ID, n int, test func(data []byte) error) error {
	addr := os.Getenv(string(id))
	if addr == "" {
		return &ExchangeError{
			Op:  "rendezvous",
			Err: fmt.Errorf("environment variable %q is not set", string(id)),
		}
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return &ExchangeError{Op: "connect", Err: err}
	}
	defer conn.Close()

	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return &ExchangeError{Op: "receive", Err: err}
	}
	testErr := test(buf)
	if _, err := conn.Write(buf); err != nil {
		return &ExchangeError{Op: "send", Err: err}
	}
	return testErr
}
