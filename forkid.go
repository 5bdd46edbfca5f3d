package forktest

import (
	"fmt"
	"hash/fnv"
	"runtime"
)

// ID identifies a single fork call site. The same call site yields the same
// ID in every process of the same executable, which is what lets a
// re-executed child recognize the fork point whose child branch it is meant
// to take. Distinct call sites yield distinct IDs up to the collision
// probability of the 64-bit hash.
type ID string

// ':' plus 16 hex digits
const idLength = 17

// NewID derives the ID of its own call site. Call it directly at the site
// whose result is passed to Fork or ForkData; the value is computed from the
// caller's file and line, which are stable across processes of the same
// executable. Addresses are not, and string constants may not be unique.
func NewID() ID {
	return idAt(1)
}

func idAt(skip int) ID {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		// Caller metadata is compiled into the binary, so this cannot
		// happen for a real call site.
		panic("forktest: unable to determine fork call site")
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d", file, line)
	return ID(fmt.Sprintf(":%016x", h.Sum64()))
}
