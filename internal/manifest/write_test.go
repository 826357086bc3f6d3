package manifest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestWrite_ParsesBack checks that written manifests resolve to the same entries in both formats.
func TestWrite_ParsesBack(t *testing.T) {
	t.Parallel()

	records := []Record{
		{Path: "readme.txt", Size: 5, Digest: sum("hello"), Source: "files/readme.txt"},
		{Path: "data/big.pak", Size: 6, Digest: sum("foobar"), Chunks: []RecordChunk{
			{Digest: sum("foo"), Length: 3},
			{Digest: sum("bar"), Length: 3},
		}},
		{Path: "empty.cfg", Size: 0, Digest: sum("")},
	}

	for name, format := range map[string]Format{"csv": FormatCSV, "yaml": FormatYAML} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			require.NoError(t, Write(&buf, format, records))

			entries, err := Parse(&buf, format, testOptions(t))
			require.NoError(t, err)
			require.Len(t, entries, 3)

			require.Equal(t, "https://cdn.example.com/builds/space-rocks/1.0/files/readme.txt", entries[0].URL)
			require.Equal(t, []Chunk{
				{URL: "https://cdn.example.com/chunks/" + sum("foo"), Offset: 0, Length: 3, Digest: sum("foo")},
				{URL: "https://cdn.example.com/chunks/" + sum("bar"), Offset: 3, Length: 3, Digest: sum("bar")},
			}, entries[1].Chunks)
			require.Empty(t, entries[2].Chunks)
		})
	}
}
