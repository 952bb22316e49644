package transport

// State is a transport session's position in its connection lifecycle.
type State string

const (
	StateIdle            State = "idle"
	StateResolving       State = "resolving"
	StateConnecting      State = "connecting"
	StateTLSHandshaking  State = "tls_handshaking"
	StateWSHandshaking   State = "ws_handshaking"
	StateOpen            State = "open"
	StateClosing         State = "closing"
	StateClosed          State = "closed"
)

// StateChangeHandler is invoked whenever a session transitions state.
type StateChangeHandler func(state State)

// OnReadFunc processes the buffered bytes and returns how many of them were
// consumed. Only consumed bytes are released: the session keeps the rest
// and hands them back, followed by the next frame's bytes, on the next
// read, so a handler that needs more data returns less than len(data).
type OnReadFunc func(sess *Session, data []byte) (consumed int)

// OnConnErrFunc is invoked for fatal errors that occur before the session
// ever reaches StateOpen.
type OnConnErrFunc func(sess *Session, err error)

// OnCloseFunc is invoked when a dial fails (right after OnConnErrFunc) and
// when a read or write on an Open session fails, including one cut short by
// Close. It carries no error payload — a session that was once Open fails
// silently, matching the asymmetry between pre- and post-handshake fatal
// errors.
type OnCloseFunc func(sess *Session)

// OnWriteFunc is invoked after a queued write is flushed to the wire.
type OnWriteFunc func(sess *Session, n int)

// OnConnectFunc is invoked once a session reaches StateOpen.
type OnConnectFunc func(sess *Session)
