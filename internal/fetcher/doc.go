// Package fetcher retrieves manifest chunks over HTTP into a caller-owned sink.
//
// Transient failures (network errors, 5xx, 408, 429, truncated bodies) are retried
// with exponential backoff up to a fixed budget. Client errors, local write
// failures and cancellation stop immediately. A digest mismatch after a fetch is
// retried a bounded number of times and then reported as ErrDigestMismatch.
package fetcher
