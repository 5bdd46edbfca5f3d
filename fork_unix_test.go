//go:build unix

package forktest

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fastcat.org/go/forktest/cmdline"
)

// After an abandoning supervision step returns, the teardown must have both
// killed and reaped the child: signal 0 reports no such process rather than
// reaching a live process or a zombie.
func TestAbandonedChildNoLongerRunning(t *testing.T) {
	var out, errOut bytes.Buffer
	var child *Child
	err := run(forkParams{
		id:       NewID(),
		testName: t.Name(),
		runArgs:  cmdline.RunTestArgs(t.Name()),
		relayOut: &out,
		relayErr: &errOut,
		supervise: func(c *Child) error {
			child = c
			// Handshake so the child is known to be up and blocked.
			_, err := bufio.NewReader(c.Stderr()).ReadString('\n')
			return err
		},
		child: func() int {
			fmt.Fprintln(os.Stderr, "ready")
			time.Sleep(time.Hour)
			return 0
		},
	})
	require.NoError(t, err)
	assert.ErrorIs(t, syscall.Kill(child.Pid(), 0), syscall.ESRCH)
	// Death by signal, not an exit status.
	assert.Equal(t, -1, child.state.ExitCode())
}
