package manifest

import (
	"path/filepath"
)

// Chunk is one independently fetchable byte range of a file.
type Chunk struct {
	// URL is where the chunk bytes live.
	URL string `yaml:"url"`
	// Offset is the position of the chunk inside the target file.
	Offset int64 `yaml:"offset"`
	// Length is the chunk size in bytes.
	Length int64 `yaml:"length"`
	// Digest is the hex digest of the chunk bytes.
	Digest string `yaml:"digest"`
	// Ranged is true when URL serves the whole file and the chunk must be requested
	// with an HTTP Range starting at Offset.
	Ranged bool `yaml:"ranged,omitempty"`
}

// Entry is one file to materialise under the install root.
type Entry struct {
	// Path is the slash-separated path relative to the install root.
	Path string `yaml:"path"`
	// Size is the file length in bytes.
	Size int64 `yaml:"size"`
	// Digest is the hex digest of the whole file.
	Digest string `yaml:"digest"`
	// URL is the whole-file source, empty for chunk-store files.
	URL string `yaml:"url,omitempty"`
	// Chunks concatenate to the file, in order.
	Chunks []Chunk `yaml:"chunks,omitempty"`
}

// LocalPath returns the entry path joined to root with OS separators.
func (e *Entry) LocalPath(root string) string {
	return filepath.Join(root, filepath.FromSlash(e.Path))
}

// TotalSize sums declared file sizes.
func TotalSize(entries []Entry) int64 {
	var total int64
	for i := range entries {
		total += entries[i].Size
	}

	return total
}

// Index maps entry paths to entries.
func Index(entries []Entry) map[string]Entry {
	result := make(map[string]Entry, len(entries))
	for _, e := range entries {
		result[e.Path] = e
	}

	return result
}
