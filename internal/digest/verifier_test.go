package digest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var errBrokenReader = errors.New("disk on fire")

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errBrokenReader
}

// countingReader records the largest read request it served.
type countingReader struct {
	r       *bytes.Reader
	maxRead int
}

func (c *countingReader) Read(p []byte) (int, error) {
	if len(p) > c.maxRead {
		c.maxRead = len(p)
	}

	return c.r.Read(p)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)

	return hex.EncodeToString(sum[:])
}

// TestVerifyReader_MatchAndMismatch reports both outcomes as results, not errors.
func TestVerifyReader_MatchAndMismatch(t *testing.T) {
	t.Parallel()

	v := New(SHA256)
	body := []byte("the quick brown fox")

	res, err := v.VerifyReader(bytes.NewReader(body), strings.ToUpper(sha256Hex(body)))
	require.NoError(t, err)
	require.True(t, res.Match)

	res, err = v.VerifyReader(bytes.NewReader(body), sha256Hex([]byte("other")))
	require.NoError(t, err)
	require.False(t, res.Match)
	require.Equal(t, sha256Hex(body), res.Actual)
}

// TestVerifyReader_ReadError returns an IOError when the stream fails.
func TestVerifyReader_ReadError(t *testing.T) {
	t.Parallel()

	_, err := New(nil).VerifyReader(failingReader{}, sha256Hex(nil))

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	require.ErrorIs(t, err, errBrokenReader)
}

// TestVerifyFile covers match, mismatch and missing files.
func TestVerifyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "data.pak")
	body := bytes.Repeat([]byte{0xAB}, 3*DefaultBlockSize+17)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	v := New(SHA256)

	res, err := v.VerifyFile(path, sha256Hex(body))
	require.NoError(t, err)
	require.True(t, res.Match)

	res, err = v.VerifyFile(path, sha256Hex(body[1:]))
	require.NoError(t, err)
	require.False(t, res.Match)

	_, err = v.VerifyFile(filepath.Join(dir, "missing.pak"), sha256Hex(body))

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Contains(t, ioErr.Path, "missing.pak")
}

// TestSum_StreamsInFixedBlocks ensures reads never exceed the configured block size.
func TestSum_StreamsInFixedBlocks(t *testing.T) {
	t.Parallel()

	body := bytes.Repeat([]byte("x"), 10_000)
	r := &countingReader{r: bytes.NewReader(body)}

	sum, err := New(SHA256, WithBlockSize(512)).Sum(r)
	require.NoError(t, err)
	require.Equal(t, sha256Hex(body), sum)
	require.LessOrEqual(t, r.maxRead, 512)
}

// TestXXH64_IsPluggable checks the cheap algorithm produces consistent 8-byte digests.
func TestXXH64_IsPluggable(t *testing.T) {
	t.Parallel()

	v := New(XXH64)
	sum := v.SumBytes([]byte("chunk"))
	require.Len(t, sum, 16)
	require.NoError(t, v.Validate(sum))

	res, err := v.VerifyReader(strings.NewReader("chunk"), sum)
	require.NoError(t, err)
	require.True(t, res.Match)
}

// TestLookupAndValidate covers algorithm lookup and digest shape checks.
func TestLookupAndValidate(t *testing.T) {
	t.Parallel()

	alg, err := Lookup("")
	require.NoError(t, err)
	require.Equal(t, "sha256", alg.Name())

	alg, err = Lookup("XXH64")
	require.NoError(t, err)
	require.Equal(t, "xxh64", alg.Name())

	_, err = Lookup("md5")
	require.ErrorIs(t, err, ErrUnknownAlgorithm)

	require.NoError(t, Validate(SHA256, sha256Hex(nil)))
	require.ErrorIs(t, Validate(SHA256, "zz"), ErrMalformed)
	require.ErrorIs(t, Validate(SHA256, "abcd"), ErrMalformed)
}
