package manifest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Record is one manifest row as published, before URLs are resolved.
type Record struct {
	// Path is the slash-separated path relative to the install root.
	Path string `yaml:"path"`
	// Size is the file length in bytes.
	Size int64 `yaml:"size"`
	// Digest is the hex digest of the whole file.
	Digest string `yaml:"digest"`
	// Source is the whole-file location, relative to the manifest or absolute.
	Source string `yaml:"source,omitempty"`
	// Chunks are chunk-store parts of the file, in order.
	Chunks []RecordChunk `yaml:"chunks,omitempty"`
}

// RecordChunk is one chunk-store part of a Record.
type RecordChunk struct {
	// Digest is the hex digest of the chunk, also its chunk-store key.
	Digest string `yaml:"digest"`
	// Length is the chunk size in bytes.
	Length int64 `yaml:"length"`
}

// Write encodes records in the given format. The output is accepted by Parse.
func Write(w io.Writer, format Format, records []Record) error {
	if format == FormatYAML {
		return WriteYAML(w, records)
	}

	return WriteCSV(w, records)
}

// WriteCSV encodes records as a tabular manifest.
func WriteCSV(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{ColumnPath, ColumnSize, ColumnDigest, ColumnSource, ColumnChunks}); err != nil {
		return err
	}

	for i := range records {
		r := &records[i]

		row := []string{r.Path, strconv.FormatInt(r.Size, 10), r.Digest, r.Source, formatChunkList(r.Chunks)}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", r.Path, err)
		}
	}

	writer.Flush()

	return writer.Error()
}

// WriteYAML encodes records as a hierarchical manifest.
func WriteYAML(w io.Writer, records []Record) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	doc := struct {
		Files []Record `yaml:"files"`
	}{Files: records}

	if err := encoder.Encode(doc); err != nil {
		return err
	}

	return encoder.Close()
}

func formatChunkList(chunks []RecordChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Digest + chunkFieldSeparator + strconv.FormatInt(c.Length, 10)
	}

	return strings.Join(parts, chunkSeparator)
}
