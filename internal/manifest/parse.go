package manifest

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/oshokin/carnival/internal/digest"
)

// Format selects the manifest syntax.
type Format int

// Supported formats.
const (
	FormatCSV Format = iota
	FormatYAML
)

// Options controls how retrieval info is resolved.
type Options struct {
	// Algorithm validates digest shape. Nil means SHA256.
	Algorithm digest.Algorithm
	// SourceBase resolves relative source URLs.
	SourceBase *url.URL
	// ChunkBase is the chunk store; chunk URLs are ChunkBase/<chunk digest>.
	ChunkBase *url.URL
}

// DetectFormat picks a format from a manifest reference's extension.
func DetectFormat(ref string) Format {
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		ref = u.Path
	}

	switch strings.ToLower(path.Ext(ref)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatCSV
	}
}

// Parse reads a manifest in the given format.
func Parse(r io.Reader, format Format, opts Options) ([]Entry, error) {
	if format == FormatYAML {
		return ParseYAML(r, opts)
	}

	return ParseCSV(r, opts)
}

// rawChunk and rawEntry hold one record before validation.
type rawChunk struct {
	Digest string `yaml:"digest"`
	Length *int64 `yaml:"length"`
}

type rawEntry struct {
	Path   string     `yaml:"path"`
	Size   *int64     `yaml:"size"`
	Digest string     `yaml:"digest"`
	Source string     `yaml:"source"`
	Chunks []rawChunk `yaml:"chunks"`
}

// builder turns raw records into entries, enforcing document-wide rules.
type builder struct {
	opts  Options
	alg   digest.Algorithm
	seen  map[string]struct{}
	items []Entry
}

func newBuilder(opts Options) *builder {
	alg := opts.Algorithm
	if alg == nil {
		alg = digest.SHA256
	}

	return &builder{
		opts: opts,
		alg:  alg,
		seen: make(map[string]struct{}),
	}
}

func (b *builder) add(line int, raw *rawEntry) error {
	fail := func(err error) error {
		return &ParseError{Line: line, Path: raw.Path, Err: err}
	}

	entryPath, err := cleanPath(raw.Path)
	if err != nil {
		return fail(err)
	}

	if _, dup := b.seen[entryPath]; dup {
		return fail(ErrDuplicatePath)
	}

	if raw.Size == nil {
		return fail(fmt.Errorf("size: %w", ErrMissingField))
	}

	if *raw.Size < 0 {
		return fail(fmt.Errorf("%d: %w", *raw.Size, ErrBadSize))
	}

	if err = b.checkDigest("digest", raw.Digest); err != nil {
		return fail(err)
	}

	entry := Entry{
		Path:   entryPath,
		Size:   *raw.Size,
		Digest: strings.ToLower(strings.TrimSpace(raw.Digest)),
	}

	if raw.Source != "" {
		if entry.URL, err = b.resolveSource(raw.Source); err != nil {
			return fail(err)
		}
	}

	if entry.Chunks, err = b.chunks(&entry, raw.Chunks); err != nil {
		return fail(err)
	}

	b.seen[entryPath] = struct{}{}
	b.items = append(b.items, entry)

	return nil
}

func (b *builder) chunks(entry *Entry, raws []rawChunk) ([]Chunk, error) {
	if len(raws) == 0 {
		if entry.Size == 0 {
			return nil, nil
		}

		if entry.URL == "" {
			return nil, ErrNoSource
		}

		return []Chunk{{
			URL:    entry.URL,
			Length: entry.Size,
			Digest: entry.Digest,
		}}, nil
	}

	if entry.URL == "" && b.opts.ChunkBase == nil {
		return nil, fmt.Errorf("chunk store URL not configured: %w", ErrNoSource)
	}

	result := make([]Chunk, 0, len(raws))

	var offset int64

	for i, rc := range raws {
		if rc.Length == nil || *rc.Length <= 0 {
			return nil, fmt.Errorf("chunk %d: length must be positive: %w", i+1, ErrBadChunk)
		}

		if err := b.checkDigest(fmt.Sprintf("chunk %d digest", i+1), rc.Digest); err != nil {
			return nil, err
		}

		// Compared before adding so the running total cannot overflow.
		if *rc.Length > entry.Size-offset {
			return nil, fmt.Errorf("chunk %d ends past size %d: %w", i+1, entry.Size, ErrChunkSum)
		}

		chunkDigest := strings.ToLower(strings.TrimSpace(rc.Digest))
		c := Chunk{
			Offset: offset,
			Length: *rc.Length,
			Digest: chunkDigest,
		}

		if entry.URL != "" {
			c.URL = entry.URL
			c.Ranged = true
		} else {
			c.URL = b.opts.ChunkBase.JoinPath(chunkDigest).String()
		}

		offset += c.Length
		result = append(result, c)
	}

	if offset != entry.Size {
		return nil, fmt.Errorf("chunks total %d, size is %d: %w", offset, entry.Size, ErrChunkSum)
	}

	return result, nil
}

func (b *builder) checkDigest(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s: %w", field, ErrMissingField)
	}

	if err := digest.Validate(b.alg, value); err != nil {
		return fmt.Errorf("%s: %w: %w", field, ErrBadDigest, err)
	}

	return nil
}

func (b *builder) resolveSource(source string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(source))
	if err != nil {
		return "", fmt.Errorf("source %q: %w", source, ErrNoSource)
	}

	if u.IsAbs() {
		return u.String(), nil
	}

	if b.opts.SourceBase == nil {
		return "", fmt.Errorf("relative source %q without base URL: %w", source, ErrNoSource)
	}

	return b.opts.SourceBase.ResolveReference(u).String(), nil
}

// cleanPath normalises separators and rejects paths leaving the install root.
func cleanPath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, `\`, "/"))
	if p == "" {
		return "", fmt.Errorf("path: %w", ErrMissingField)
	}

	cleaned := path.Clean(p)
	if cleaned == "." || path.IsAbs(cleaned) || strings.Contains(cleaned, ":") ||
		!filepath.IsLocal(filepath.FromSlash(cleaned)) {
		return "", fmt.Errorf("%q: %w", p, ErrUnsafePath)
	}

	return cleaned, nil
}
