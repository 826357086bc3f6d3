package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSV column names.
const (
	ColumnPath   = "path"
	ColumnSize   = "size"
	ColumnDigest = "digest"
	ColumnSource = "source"
	ColumnChunks = "chunks"
)

const (
	chunkSeparator      = ";"
	chunkFieldSeparator = ":"
)

// ParseCSV reads a tabular manifest: a header row naming at least path, size and
// digest, then one row per file. Chunks are ";"-separated "digest:length" pairs.
func ParseCSV(r io.Reader, opts Options) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Err: fmt.Errorf("empty document: %w", ErrBadHeader)}
	}

	if err != nil {
		return nil, &ParseError{Err: err}
	}

	columns, err := headerColumns(header)
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	b := newBuilder(opts)

	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}

		raw, err := rowToRaw(record, columns)
		if err != nil {
			return nil, &ParseError{Line: line, Path: raw.Path, Err: err}
		}

		if err = b.add(line, raw); err != nil {
			return nil, err
		}
	}

	return b.items, nil
}

func headerColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}

	for _, required := range []string{ColumnPath, ColumnSize, ColumnDigest} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("column %q: %w", required, ErrBadHeader)
		}
	}

	return columns, nil
}

func rowToRaw(record []string, columns map[string]int) (*rawEntry, error) {
	field := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}

		return strings.TrimSpace(record[i])
	}

	raw := &rawEntry{
		Path:   field(ColumnPath),
		Digest: field(ColumnDigest),
		Source: field(ColumnSource),
	}

	if s := field(ColumnSize); s != "" {
		size, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return raw, fmt.Errorf("%q: %w", s, ErrBadSize)
		}

		raw.Size = &size
	}

	chunks, err := parseChunkList(field(ColumnChunks))
	if err != nil {
		return raw, err
	}

	raw.Chunks = chunks

	return raw, nil
}

func parseChunkList(s string) ([]rawChunk, error) {
	if s == "" {
		return nil, nil
	}

	items := strings.Split(s, chunkSeparator)
	result := make([]rawChunk, 0, len(items))

	for i, item := range items {
		digestPart, lengthPart, ok := strings.Cut(strings.TrimSpace(item), chunkFieldSeparator)
		if !ok {
			return nil, fmt.Errorf("chunk %d %q: %w", i+1, item, ErrBadChunk)
		}

		length, err := strconv.ParseInt(strings.TrimSpace(lengthPart), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("chunk %d length %q: %w", i+1, lengthPart, ErrBadChunk)
		}

		result = append(result, rawChunk{Digest: digestPart, Length: &length})
	}

	return result, nil
}
