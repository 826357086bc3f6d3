package fetcher

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/carnival/internal/digest"
	"github.com/oshokin/carnival/internal/manifest"
)

var errDiskFull = errors.New("no space left on device")

// memSink is an in-memory Sink.
type memSink struct {
	mu       sync.Mutex
	data     []byte
	writeErr error
}

func (m *memSink) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return 0, m.writeErr
	}

	if end := int(off) + len(p); end > len(m.data) {
		m.data = append(m.data, make([]byte, end-len(m.data))...)
	}

	copy(m.data[off:], p)

	return len(p), nil
}

func (m *memSink) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return bytes.NewReader(m.data).ReadAt(p, off)
}

func newTestFetcher(opts ...Option) *Fetcher {
	opts = append([]Option{WithBackoff(time.Millisecond, 2*time.Millisecond)}, opts...)

	return New(nil, digest.New(digest.SHA256), opts...)
}

func sum(b []byte) string {
	return digest.New(digest.SHA256).SumBytes(b)
}

// TestFetch_WholeFile downloads a single-chunk file and verifies it.
func TestFetch_WholeFile(t *testing.T) {
	t.Parallel()

	body := []byte("hello, carnival")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.Header.Get("User-Agent"), "carnival/")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	sink := new(memSink)
	chunk := manifest.Chunk{URL: srv.URL, Length: int64(len(body)), Digest: sum(body)}

	require.NoError(t, newTestFetcher().Fetch(context.Background(), chunk, sink))
	require.Equal(t, body, sink.data)
}

// TestFetch_RetriesServerErrors retries 5xx responses until the budget allows success.
func TestFetch_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	body := []byte("eventually")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		_, _ = w.Write(body)
	}))
	defer srv.Close()

	sink := new(memSink)
	chunk := manifest.Chunk{URL: srv.URL, Length: int64(len(body)), Digest: sum(body)}

	require.NoError(t, newTestFetcher(WithMaxRetries(3)).Fetch(context.Background(), chunk, sink))
	require.Equal(t, int32(3), calls.Load())
	require.Equal(t, body, sink.data)
}

// TestFetch_ExhaustsRetryBudget gives up after maxRetries+1 attempts.
func TestFetch_ExhaustsRetryBudget(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	chunk := manifest.Chunk{URL: srv.URL, Length: 4, Digest: sum([]byte("data"))}
	err := newTestFetcher(WithMaxRetries(2)).Fetch(context.Background(), chunk, new(memSink))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.Code)
	require.Equal(t, int32(3), calls.Load())
}

// TestFetch_ClientErrorIsPermanent does not retry 4xx responses.
func TestFetch_ClientErrorIsPermanent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	chunk := manifest.Chunk{URL: srv.URL, Length: 4, Digest: sum([]byte("data"))}
	err := newTestFetcher().Fetch(context.Background(), chunk, new(memSink))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.False(t, statusErr.Temporary())
	require.Equal(t, int32(1), calls.Load())
}

// TestFetch_DigestMismatchRetriedOnce treats corruption as transient exactly once.
func TestFetch_DigestMismatchRetriedOnce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	good := []byte("pristine")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("garbage!"))
	}))
	defer srv.Close()

	chunk := manifest.Chunk{URL: srv.URL, Length: int64(len(good)), Digest: sum(good)}
	err := newTestFetcher(WithMaxRetries(5), WithDigestRetries(1)).Fetch(context.Background(), chunk, new(memSink))

	require.ErrorIs(t, err, ErrDigestMismatch)
	require.Equal(t, int32(2), calls.Load())
}

// TestFetch_DigestMismatchRecovers succeeds when the second transfer is intact.
func TestFetch_DigestMismatchRecovers(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	good := []byte("pristine")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte("garbage!"))
			return
		}

		_, _ = w.Write(good)
	}))
	defer srv.Close()

	sink := new(memSink)
	chunk := manifest.Chunk{URL: srv.URL, Length: int64(len(good)), Digest: sum(good)}

	require.NoError(t, newTestFetcher().Fetch(context.Background(), chunk, sink))
	require.Equal(t, good, sink.data)
}

// TestFetch_RangedChunks fetches byte ranges with and without server Range support.
func TestFetch_RangedChunks(t *testing.T) {
	t.Parallel()

	source := []byte("0123456789abcdefghij")

	withRange := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "bytes=10-14", r.Header.Get("Range"))
		http.ServeContent(w, r, "source.bin", time.Time{}, bytes.NewReader(source))
	}))
	defer withRange.Close()

	withoutRange := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(source)
	}))
	defer withoutRange.Close()

	for _, url := range []string{withRange.URL, withoutRange.URL} {
		sink := &memSink{data: make([]byte, len(source))}
		chunk := manifest.Chunk{URL: url, Offset: 10, Length: 5, Digest: sum(source[10:15]), Ranged: true}

		require.NoError(t, newTestFetcher().Fetch(context.Background(), chunk, sink))
		require.Equal(t, source[10:15], sink.data[10:15])
	}
}

// TestFetch_ShortBodyRetried treats a truncated transfer as transient.
func TestFetch_ShortBodyRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	body := []byte("complete")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write(body[:3])
			return
		}

		_, _ = w.Write(body)
	}))
	defer srv.Close()

	chunk := manifest.Chunk{URL: srv.URL, Length: int64(len(body)), Digest: sum(body)}
	require.NoError(t, newTestFetcher().Fetch(context.Background(), chunk, new(memSink)))
	require.Equal(t, int32(2), calls.Load())
}

// TestFetch_SinkFailureIsPermanent stops immediately on local write errors.
func TestFetch_SinkFailureIsPermanent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	body := []byte("payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	chunk := manifest.Chunk{URL: srv.URL, Length: int64(len(body)), Digest: sum(body)}
	err := newTestFetcher().Fetch(context.Background(), chunk, &memSink{writeErr: errDiskFull})

	require.ErrorIs(t, err, errDiskFull)
	require.Equal(t, int32(1), calls.Load())
}

// TestFetch_RequestDecorator applies session data to each request.
func TestFetch_RequestDecorator(t *testing.T) {
	t.Parallel()

	body := []byte("members only")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("session"); err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		_, _ = w.Write(body)
	}))
	defer srv.Close()

	decorate := func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "session", Value: "abc"})
	}

	chunk := manifest.Chunk{URL: srv.URL, Length: int64(len(body)), Digest: sum(body)}
	require.NoError(t, newTestFetcher(WithRequestDecorator(decorate)).Fetch(context.Background(), chunk, new(memSink)))
}

// TestFetch_Canceled returns promptly when the context is done.
func TestFetch_Canceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chunk := manifest.Chunk{URL: srv.URL, Length: 4, Digest: sum([]byte("data"))}
	require.Error(t, newTestFetcher().Fetch(ctx, chunk, new(memSink)))
}

// TestStatusError_Temporary classifies retryable status codes.
func TestStatusError_Temporary(t *testing.T) {
	t.Parallel()

	require.True(t, (&StatusError{Code: http.StatusInternalServerError}).Temporary())
	require.True(t, (&StatusError{Code: http.StatusTooManyRequests}).Temporary())
	require.True(t, (&StatusError{Code: http.StatusRequestTimeout}).Temporary())
	require.False(t, (&StatusError{Code: http.StatusForbidden}).Temporary())
}

// TestFetch_StalledBodyRetried aborts a transfer that stops sending data and retries it.
func TestFetch_StalledBodyRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	release := make(chan struct{})

	body := []byte("finally arrived")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Length", "15")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body[:4])
			w.(http.Flusher).Flush()

			select {
			case <-r.Context().Done():
			case <-release:
			}

			return
		}

		_, _ = w.Write(body)
	}))
	defer srv.Close()
	defer close(release)

	sink := new(memSink)
	chunk := manifest.Chunk{URL: srv.URL, Length: int64(len(body)), Digest: sum(body)}

	started := time.Now()

	require.NoError(t, newTestFetcher(WithIdleTimeout(100*time.Millisecond)).Fetch(context.Background(), chunk, sink))
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, body, sink.data)
	require.Less(t, time.Since(started), 5*time.Second)
}

// TestFetch_StalledBodyExhaustsBudget reports a stall once every attempt has stalled.
func TestFetch_StalledBodyExhaustsBudget(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()

		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	chunk := manifest.Chunk{URL: srv.URL, Length: 4, Digest: sum([]byte("data"))}
	err := newTestFetcher(WithMaxRetries(1), WithIdleTimeout(50*time.Millisecond)).
		Fetch(context.Background(), chunk, new(memSink))

	require.ErrorIs(t, err, ErrStalled)
	require.Equal(t, int32(2), calls.Load())
}

// TestNewHTTPClient_HeaderTimeout retries a server that never answers the first request.
func TestNewHTTPClient_HeaderTimeout(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	release := make(chan struct{})

	body := []byte("late")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-release:
			}

			return
		}

		_, _ = w.Write(body)
	}))
	defer srv.Close()
	defer close(release)

	f := New(NewHTTPClient(100*time.Millisecond), digest.New(digest.SHA256),
		WithBackoff(time.Millisecond, 2*time.Millisecond))
	chunk := manifest.Chunk{URL: srv.URL, Length: int64(len(body)), Digest: sum(body)}

	require.NoError(t, f.Fetch(context.Background(), chunk, new(memSink)))
	require.Equal(t, int32(2), calls.Load())
}

// TestFetch_DigestRetryWithoutTransientBudget keeps the digest retry when transient retries are off.
func TestFetch_DigestRetryWithoutTransientBudget(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	good := []byte("pristine")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte("garbage!"))
			return
		}

		_, _ = w.Write(good)
	}))
	defer srv.Close()

	sink := new(memSink)
	chunk := manifest.Chunk{URL: srv.URL, Length: int64(len(good)), Digest: sum(good)}

	require.NoError(t, newTestFetcher(WithMaxRetries(0), WithDigestRetries(1)).Fetch(context.Background(), chunk, sink))
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, good, sink.data)
}

// TestFetch_TransientBudgetIgnoresDigestRetries stops after maxRetries transient failures.
func TestFetch_TransientBudgetIgnoresDigestRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	chunk := manifest.Chunk{URL: srv.URL, Length: 4, Digest: sum([]byte("data"))}
	err := newTestFetcher(WithMaxRetries(0), WithDigestRetries(3)).Fetch(context.Background(), chunk, new(memSink))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, int32(1), calls.Load())
}
