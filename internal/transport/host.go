package transport

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/fd1az/marketfeed/internal/logger"
)

// Host owns a set of Sessions dialed against possibly-different venues and
// drives them either on the calling goroutine (Run) or on a single
// background goroutine per session (RunBackground).
type Host struct {
	log logger.LoggerInterface

	mu       sync.Mutex
	sessions map[string]*Session

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHost constructs an empty Host.
func NewHost(log logger.LoggerInterface) *Host {
	return &Host{
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// CreateSession builds and registers a new Session dialing
// scheme://host:port/uri, keyed by name. Creating a session twice under the
// same name replaces the previous registration without closing it.
func (h *Host) CreateSession(name, scheme, host string, port int, uri string, opts ...func(*Config)) (*Session, error) {
	u := url.URL{Scheme: scheme, Host: fmt.Sprintf("%s:%d", host, port), Path: uri}
	cfg := DefaultConfig(u.String(), name)
	for _, opt := range opts {
		opt(&cfg)
	}

	sess, err := NewSession(cfg, h.log)
	if err != nil {
		return nil, fmt.Errorf("transport: create session %q: %w", name, err)
	}

	h.mu.Lock()
	h.sessions[name] = sess
	h.mu.Unlock()

	return sess, nil
}

// Session returns the registered session for name, if any.
func (h *Host) Session(name string) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[name]
	return s, ok
}

// Sessions returns a snapshot of every registered session.
func (h *Host) Sessions() []*Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// Run drives every registered session with retry/reconnect, blocking on the
// calling goroutine until ctx is cancelled or every session exits.
func (h *Host) Run(ctx context.Context) error {
	sessions := h.Sessions()
	if len(sessions) == 0 {
		return nil
	}

	errCh := make(chan error, len(sessions))
	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			errCh <- s.RunWithRetry(ctx)
		}(sess)
	}

	go func() {
		wg.Wait()
		close(errCh)
	}()

	var firstErr error
	for err := range errCh {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RunBackground starts every registered session on its own goroutine and
// returns immediately. Call Close to stop them.
func (h *Host) RunBackground(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel

	for _, sess := range h.Sessions() {
		h.wg.Add(1)
		go func(s *Session) {
			defer h.wg.Done()
			if err := s.RunWithRetry(ctx); err != nil && h.log != nil {
				h.log.Error(ctx, "transport session exited", "error", err)
			}
		}(sess)
	}
}

// Close stops every session owned by the host and waits for background
// goroutines started by RunBackground to exit.
func (h *Host) Close() error {
	if h.cancel != nil {
		h.cancel()
	}

	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}

	h.wg.Wait()
	return nil
}
