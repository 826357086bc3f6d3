package digest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultBlockSize is the read buffer used when streaming input.
const DefaultBlockSize = 64 << 10

// ErrMalformed is returned by Validate for digests that cannot come from the algorithm.
var ErrMalformed = errors.New("malformed digest")

// IOError reports that the input could not be read.
type IOError struct {
	// Path is the file being read, empty for plain readers.
	Path string
	// Err is the underlying read error.
	Err error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("read digest input: %v", e.Err)
	}

	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Result is the outcome of comparing content against an expected digest.
type Result struct {
	// Match is true when the content digest equals the expected one.
	Match bool
	// Actual is the hex digest of the content.
	Actual string
}

// Verifier streams content through an Algorithm.
type Verifier struct {
	alg       Algorithm
	blockSize int
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithBlockSize overrides the streaming buffer size.
func WithBlockSize(size int) Option {
	return func(v *Verifier) {
		if size > 0 {
			v.blockSize = size
		}
	}
}

// New returns a Verifier for alg. A nil alg means SHA256.
func New(alg Algorithm, opts ...Option) *Verifier {
	if alg == nil {
		alg = SHA256
	}

	v := &Verifier{
		alg:       alg,
		blockSize: DefaultBlockSize,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Algorithm returns the algorithm in use.
func (v *Verifier) Algorithm() Algorithm {
	return v.alg
}

// Sum returns the hex digest of everything read from r.
func (v *Verifier) Sum(r io.Reader) (string, error) {
	h := v.alg.New()
	buf := make([]byte, v.blockSize)

	// Hide WriterTo/ReaderFrom so CopyBuffer really uses buf.
	if _, err := io.CopyBuffer(struct{ io.Writer }{h}, struct{ io.Reader }{r}, buf); err != nil {
		return "", &IOError{Err: err}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumBytes returns the hex digest of b.
func (v *Verifier) SumBytes(b []byte) string {
	h := v.alg.New()
	_, _ = h.Write(b)

	return hex.EncodeToString(h.Sum(nil))
}

// VerifyReader compares the digest of r with expected.
func (v *Verifier) VerifyReader(r io.Reader, expected string) (Result, error) {
	actual, err := v.Sum(r)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Match:  strings.EqualFold(actual, strings.TrimSpace(expected)),
		Actual: actual,
	}, nil
}

// VerifyFile compares the digest of the file at path with expected.
func (v *Verifier) VerifyFile(path, expected string) (Result, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Result{}, &IOError{Path: path, Err: err}
	}

	defer func() {
		_ = f.Close()
	}()

	res, err := v.VerifyReader(f, expected)
	if err != nil {
		var ioErr *IOError
		if errors.As(err, &ioErr) {
			ioErr.Path = path
		}

		return Result{}, err
	}

	return res, nil
}

// Validate checks that s is a well-formed hex digest for the algorithm.
func (v *Verifier) Validate(s string) error {
	return Validate(v.alg, s)
}

// Validate checks that s is a well-formed hex digest for alg.
func Validate(alg Algorithm, s string) error {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("%q is not hex: %w", s, ErrMalformed)
	}

	if len(raw) != alg.Size() {
		return fmt.Errorf("%q has %d bytes, %s needs %d: %w", s, len(raw), alg.Name(), alg.Size(), ErrMalformed)
	}

	return nil
}
