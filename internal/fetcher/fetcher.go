package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/oshokin/carnival/internal/digest"
	"github.com/oshokin/carnival/internal/logger"
	"github.com/oshokin/carnival/internal/manifest"
	"github.com/oshokin/carnival/internal/version"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3
	// DefaultDigestRetries is how many times a digest mismatch is retried before it is fatal.
	DefaultDigestRetries = 1
	// DefaultInitialInterval is the first backoff delay.
	DefaultInitialInterval = 500 * time.Millisecond
	// DefaultMaxInterval caps a single backoff delay.
	DefaultMaxInterval = 30 * time.Second
	// DefaultMaxElapsed bounds the whole retry loop for one chunk.
	DefaultMaxElapsed = time.Hour

	backoffMultiplier = 2
)

// Sink receives chunk bytes at their offset and serves them back for verification.
type Sink interface {
	io.WriterAt
	io.ReaderAt
}

// Fetcher downloads chunks with retry and post-fetch verification.
type Fetcher struct {
	// client performs the HTTP requests.
	client *http.Client
	// verifier checks chunk digests after they land in the sink.
	verifier *digest.Verifier
	// decorate adds session data (cookies) to each request.
	decorate func(*http.Request)
	// userAgent is sent with every request.
	userAgent string
	// idleTimeout aborts an attempt that receives no bytes for this long; zero disables it.
	idleTimeout time.Duration

	maxRetries      int
	digestRetries   int
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsed      time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.maxRetries = n
		}
	}
}

// WithDigestRetries sets how many digest mismatches are tolerated before failing.
func WithDigestRetries(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.digestRetries = n
		}
	}
}

// WithBackoff sets the first delay and the delay cap of the exponential backoff.
func WithBackoff(initial, maxInterval time.Duration) Option {
	return func(f *Fetcher) {
		if initial > 0 {
			f.initialInterval = initial
		}

		if maxInterval > 0 {
			f.maxInterval = maxInterval
		}
	}
}

// WithIdleTimeout aborts an attempt when the server sends nothing for d, waiting
// for headers included. The attempt then counts as a transient failure.
func WithIdleTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.idleTimeout = d
		}
	}
}

// WithRequestDecorator lets the session layer attach credentials to requests.
func WithRequestDecorator(decorate func(*http.Request)) Option {
	return func(f *Fetcher) {
		f.decorate = decorate
	}
}

// New creates a Fetcher. A nil client means http.DefaultClient; a nil verifier means SHA256.
func New(client *http.Client, verifier *digest.Verifier, opts ...Option) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}

	if verifier == nil {
		verifier = digest.New(digest.SHA256)
	}

	f := &Fetcher{
		client:          client,
		verifier:        verifier,
		userAgent:       version.UserAgent(),
		maxRetries:      DefaultMaxRetries,
		digestRetries:   DefaultDigestRetries,
		initialInterval: DefaultInitialInterval,
		maxInterval:     DefaultMaxInterval,
		maxElapsed:      DefaultMaxElapsed,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch writes chunk into sink at chunk.Offset and verifies it.
func (f *Fetcher) Fetch(ctx context.Context, chunk manifest.Chunk, sink Sink) error {
	if chunk.Length == 0 {
		return nil
	}

	var (
		attempt    int
		mismatches int
		failures   int
	)

	operation := func() (struct{}, error) {
		attempt++

		err := f.fetchOnce(ctx, chunk, sink)
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, ErrDigestMismatch):
			mismatches++
			if mismatches > f.digestRetries {
				return struct{}{}, backoff.Permanent(err)
			}

			return struct{}{}, err
		case !retryable(ctx, err):
			return struct{}{}, backoff.Permanent(err)
		default:
			failures++
			if failures > f.maxRetries {
				return struct{}{}, backoff.Permanent(err)
			}

			return struct{}{}, err
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.initialInterval
	policy.MaxInterval = f.maxInterval
	policy.Multiplier = backoffMultiplier

	notify := func(err error, delay time.Duration) {
		logger.WarnKV(ctx, "Chunk fetch failed, retrying",
			"url", chunk.URL, "offset", chunk.Offset, "attempt", attempt, "delay", delay, "error", err)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		// Transient failures and digest mismatches have separate budgets.
		backoff.WithMaxTries(uint(f.maxRetries+f.digestRetries+1)), //nolint:gosec // Both budgets are never negative.
		backoff.WithMaxElapsedTime(f.maxElapsed),
		backoff.WithNotify(notify),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}

		return fmt.Errorf("fetch %s [%d+%d] after %d attempt(s): %w",
			chunk.URL, chunk.Offset, chunk.Length, attempt, err)
	}

	return nil
}

// fetchOnce performs a single attempt: request, stream to sink, verify.
func (f *Fetcher) fetchOnce(ctx context.Context, chunk manifest.Chunk, sink Sink) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var watchdog *idleWatchdog
	if f.idleTimeout > 0 {
		watchdog = newIdleWatchdog(f.idleTimeout, cancel)
		defer watchdog.stop()
	}

	err := f.transfer(ctx, chunk, sink, watchdog)

	var sinkErr *sinkError
	if err != nil && !errors.As(err, &sinkErr) && errors.Is(context.Cause(ctx), ErrStalled) {
		return fmt.Errorf("no data for %s: %w", f.idleTimeout, ErrStalled)
	}

	return err
}

// transfer requests the chunk, streams it into sink and verifies it.
func (f *Fetcher) transfer(ctx context.Context, chunk manifest.Chunk, sink Sink, watchdog *idleWatchdog) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, chunk.URL, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	if chunk.Ranged {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", chunk.Offset, chunk.Offset+chunk.Length-1))
	}

	if f.decorate != nil {
		f.decorate(req)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	var body io.Reader = resp.Body
	if watchdog != nil {
		watchdog.kick()
		body = watchdog.reader(resp.Body)
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		// The server ignored the Range header and sent the whole source.
		if chunk.Ranged && chunk.Offset > 0 {
			if _, err = io.CopyN(io.Discard, body, chunk.Offset); err != nil {
				return fmt.Errorf("skip to offset %d: %w", chunk.Offset, err)
			}
		}
	default:
		return &StatusError{URL: chunk.URL, Code: resp.StatusCode}
	}

	// One byte past the chunk detects oversized bodies, unless the body is the
	// rest of a whole source that legitimately continues after the chunk.
	limit := chunk.Length + 1
	if chunk.Ranged && resp.StatusCode == http.StatusOK {
		limit = chunk.Length
	}

	n, err := io.Copy(sinkWriter{w: io.NewOffsetWriter(sink, chunk.Offset)}, io.LimitReader(body, limit))
	if err != nil {
		return err
	}

	if n != chunk.Length {
		return fmt.Errorf("got %d bytes, want %d: %w", n, chunk.Length, ErrLengthMismatch)
	}

	res, err := f.verifier.VerifyReader(io.NewSectionReader(sink, chunk.Offset, chunk.Length), chunk.Digest)
	if err != nil {
		return &sinkError{err: err}
	}

	if !res.Match {
		return fmt.Errorf("expected %s, got %s: %w", chunk.Digest, res.Actual, ErrDigestMismatch)
	}

	return nil
}

// retryable classifies a failed attempt.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	if errors.Is(err, ErrStalled) {
		return true
	}

	var sinkErr *sinkError
	if errors.As(err, &sinkErr) {
		return false
	}

	if errors.Is(err, errBadRequest) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}

	return true
}
