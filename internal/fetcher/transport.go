package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"
)

// NewHTTPClient returns a client for content downloads. Only the wait for
// response headers is bounded by timeout; bodies may take as long as they keep
// flowing, see WithIdleTimeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Client{}
	}

	transport = transport.Clone()
	transport.ResponseHeaderTimeout = timeout

	return &http.Client{Transport: transport}
}

// idleWatchdog cancels an attempt when no progress is reported within idle.
type idleWatchdog struct {
	// idle is the allowed silence between two reads.
	idle time.Duration
	// timer fires the cancellation.
	timer *time.Timer
}

func newIdleWatchdog(idle time.Duration, cancel context.CancelCauseFunc) *idleWatchdog {
	return &idleWatchdog{
		idle:  idle,
		timer: time.AfterFunc(idle, func() { cancel(ErrStalled) }),
	}
}

// kick restarts the idle period.
func (w *idleWatchdog) kick() {
	w.timer.Reset(w.idle)
}

func (w *idleWatchdog) stop() {
	w.timer.Stop()
}

// reader wraps r so every successful read restarts the idle period.
func (w *idleWatchdog) reader(r io.Reader) io.Reader {
	return &idleReader{r: r, watchdog: w}
}

type idleReader struct {
	r        io.Reader
	watchdog *idleWatchdog
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.watchdog.kick()
	}

	return n, err
}
