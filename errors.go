package forktest

// SpawnError indicates that the operating system rejected creation of a
// child process, or that an already created child could not be waited on.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string {
	return "spawn failed: " + e.Err.Error()
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExchangeError indicates that the data exchange channel between parent and
// child did not complete as expected: the connection could not be
// established, or a transfer moved fewer bytes than the agreed buffer
// length. A partial exchange leaves the buffer contents undefined, so these
// failures are fatal for the invocation and never retried.
type ExchangeError struct {
	// Op names the protocol step that failed: "listen", "accept",
	// "connect", "rendezvous", "send", or "receive".
	Op  string
	Err error
}

func (e *ExchangeError) Error() string {
	return "data exchange " + e.Op + " failed: " + e.Err.Error()
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}
