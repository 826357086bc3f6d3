package digest

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Algorithm produces hashers for one digest scheme.
type Algorithm interface {
	// Name is the identifier used in settings.
	Name() string
	// New returns a fresh hasher.
	New() hash.Hash
	// Size is the digest length in bytes.
	Size() int
}

// ErrUnknownAlgorithm is returned by Lookup for unsupported names.
var ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

type algorithm struct {
	name string
	size int
	new  func() hash.Hash
}

func (a algorithm) Name() string   { return a.name }
func (a algorithm) New() hash.Hash { return a.new() }
func (a algorithm) Size() int      { return a.size }

//nolint:gochecknoglobals // Stateless strategy values.
var (
	// SHA256 is the default algorithm used by storefront manifests.
	SHA256 Algorithm = algorithm{name: "sha256", size: sha256.Size, new: sha256.New}
	// XXH64 is a fast non-cryptographic algorithm for local mirrors and tests.
	XXH64 Algorithm = algorithm{name: "xxh64", size: 8, new: func() hash.Hash { return xxhash.New() }}
)

// Lookup returns the algorithm registered under name.
func Lookup(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SHA256.Name():
		return SHA256, nil
	case XXH64.Name():
		return XXH64, nil
	default:
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownAlgorithm)
	}
}
