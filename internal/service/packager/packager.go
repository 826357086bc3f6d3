package packager

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/carnival/internal/digest"
	"github.com/oshokin/carnival/internal/lockfile"
	"github.com/oshokin/carnival/internal/logger"
	"github.com/oshokin/carnival/internal/manifest"
)

const (
	// DefaultSourcePrefix is prepended to whole-file sources.
	DefaultSourcePrefix = "files/"
	// DefaultChunkDirname is the chunk store created next to the manifest.
	DefaultChunkDirname = "chunks"
	// DefaultWorkers is the number of files hashed in parallel.
	DefaultWorkers = 4

	// DefaultFileMode is used for the manifest and chunk files.
	DefaultFileMode = 0o644
	// DefaultDirMode is used for created directories.
	DefaultDirMode = 0o755
)

var (
	// ErrEmptyBuild is returned when the build directory holds no files.
	ErrEmptyBuild = errors.New("build directory has no files")
	// errOutputRequired is returned when no manifest path is given.
	errOutputRequired = errors.New("output manifest path must be provided")
)

// Options describe one packaging run.
type Options struct {
	// Dir is the build directory.
	Dir string
	// Output is the manifest path; a .yml or .yaml extension selects YAML.
	Output string
	// SourcePrefix is prepended to each path to form whole-file sources.
	SourcePrefix string
	// ChunkSize splits files into chunks of at most this many bytes when positive.
	ChunkSize int64
	// ChunkDir receives chunk files; empty means "chunks" next to Output.
	ChunkDir string
	// Workers bounds parallel hashing.
	Workers int
}

// Result summarises a packaging run.
type Result struct {
	// Output is the written manifest.
	Output string
	// Files is the number of manifest entries.
	Files int
	// Bytes is the total size of all files.
	Bytes int64
	// Chunks is the number of distinct chunks in the store.
	Chunks int
	// ChunkDir is the chunk store, empty for whole-file manifests.
	ChunkDir string
}

// packager holds the state of one run.
type packager struct {
	// opts are the normalised options.
	opts Options
	// verifier hashes files and chunks.
	verifier *digest.Verifier
	// skip holds absolute paths that are never packaged.
	skip map[string]struct{}
}

// Run hashes every file under opts.Dir and writes the manifest.
func Run(ctx context.Context, verifier *digest.Verifier, opts Options) (*Result, error) {
	ctx = logger.WithName(ctx, "packager")

	p, err := newPackager(verifier, opts)
	if err != nil {
		return nil, err
	}

	paths, err := p.collect()
	if err != nil {
		return nil, err
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("%s: %w", p.opts.Dir, ErrEmptyBuild)
	}

	logger.InfoKV(ctx, "Hashing build", "dir", p.opts.Dir, "files", len(paths))

	records := make([]manifest.Record, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for i, rel := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			record, err := p.record(rel)
			if err != nil {
				return fmt.Errorf("%s: %w", rel, err)
			}

			records[i] = record

			return nil
		})
	}

	if err = g.Wait(); err != nil {
		return nil, err
	}

	if err = p.write(records); err != nil {
		return nil, err
	}

	result := p.summarize(records)
	p.printNextSteps(ctx, result)

	return result, nil
}

func newPackager(verifier *digest.Verifier, opts Options) (*packager, error) {
	if opts.Output == "" {
		return nil, errOutputRequired
	}

	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", dir)
	}

	opts.Dir = dir

	if opts.Output, err = filepath.Abs(opts.Output); err != nil {
		return nil, err
	}

	if opts.SourcePrefix == "" {
		opts.SourcePrefix = DefaultSourcePrefix
	}

	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	p := &packager{
		verifier: verifier,
		skip:     map[string]struct{}{opts.Output: {}},
	}

	if opts.ChunkSize > 0 {
		if opts.ChunkDir == "" {
			opts.ChunkDir = filepath.Join(filepath.Dir(opts.Output), DefaultChunkDirname)
		}

		if opts.ChunkDir, err = filepath.Abs(opts.ChunkDir); err != nil {
			return nil, err
		}

		if err = os.MkdirAll(opts.ChunkDir, DefaultDirMode); err != nil {
			return nil, fmt.Errorf("create chunk store: %w", err)
		}

		p.skip[opts.ChunkDir] = struct{}{}
	} else {
		opts.ChunkDir = ""
	}

	p.opts = opts

	return p, nil
}

// collect lists regular files under the build directory as slash paths.
func (p *packager) collect() ([]string, error) {
	var paths []string

	err := filepath.WalkDir(p.opts.Dir, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if _, skip := p.skip[name]; skip {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() || d.Name() == lockfile.DefaultName {
			return nil
		}

		rel, err := filepath.Rel(p.opts.Dir, name)
		if err != nil {
			return err
		}

		paths = append(paths, filepath.ToSlash(rel))

		return nil
	})

	return paths, err
}

// record hashes one file, storing its chunks when chunking is enabled.
func (p *packager) record(rel string) (manifest.Record, error) {
	if p.opts.ChunkSize <= 0 {
		return p.wholeFile(rel)
	}

	file, err := os.Open(filepath.Join(p.opts.Dir, filepath.FromSlash(rel)))
	if err != nil {
		return manifest.Record{}, err
	}

	defer file.Close()

	record := manifest.Record{Path: rel}
	whole := p.verifier.Algorithm().New()
	buf := make([]byte, p.opts.ChunkSize)

	for {
		n, readErr := io.ReadFull(file, buf)
		if n > 0 {
			part := buf[:n]

			_, _ = whole.Write(part)

			chunk := manifest.RecordChunk{Digest: p.verifier.SumBytes(part), Length: int64(n)}
			if err = p.storeChunk(chunk.Digest, part); err != nil {
				return manifest.Record{}, err
			}

			record.Chunks = append(record.Chunks, chunk)
			record.Size += int64(n)
		}

		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}

		if readErr != nil {
			return manifest.Record{}, readErr
		}
	}

	record.Digest = hex.EncodeToString(whole.Sum(nil))

	return record, nil
}

func (p *packager) wholeFile(rel string) (manifest.Record, error) {
	file, err := os.Open(filepath.Join(p.opts.Dir, filepath.FromSlash(rel)))
	if err != nil {
		return manifest.Record{}, err
	}

	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return manifest.Record{}, err
	}

	sum, err := p.verifier.Sum(file)
	if err != nil {
		return manifest.Record{}, err
	}

	return manifest.Record{
		Path:   rel,
		Size:   info.Size(),
		Digest: sum,
		Source: p.source(rel),
	}, nil
}

func (p *packager) source(rel string) string {
	if strings.Contains(p.opts.SourcePrefix, "://") {
		return strings.TrimSuffix(p.opts.SourcePrefix, "/") + "/" + rel
	}

	return path.Join(p.opts.SourcePrefix, rel)
}

// storeChunk writes a chunk to the store unless an identical one is there.
func (p *packager) storeChunk(sum string, data []byte) error {
	target := filepath.Join(p.opts.ChunkDir, sum)

	if info, err := os.Stat(target); err == nil && info.Size() == int64(len(data)) {
		return nil
	}

	tmp, err := os.CreateTemp(p.opts.ChunkDir, sum+".*.part")
	if err != nil {
		return err
	}

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return err
	}

	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	if err = os.Chmod(tmp.Name(), DefaultFileMode); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), target)
}

// write saves the manifest in the format implied by its extension.
func (p *packager) write(records []manifest.Record) error {
	if err := os.MkdirAll(filepath.Dir(p.opts.Output), DefaultDirMode); err != nil {
		return err
	}

	file, err := os.OpenFile(p.opts.Output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, DefaultFileMode)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}

	if err = manifest.Write(file, manifest.DetectFormat(p.opts.Output), records); err != nil {
		_ = file.Close()
		return fmt.Errorf("write manifest: %w", err)
	}

	return file.Close()
}

func (p *packager) summarize(records []manifest.Record) *Result {
	result := &Result{
		Output:   p.opts.Output,
		Files:    len(records),
		ChunkDir: p.opts.ChunkDir,
	}

	chunks := make(map[string]struct{})

	for i := range records {
		result.Bytes += records[i].Size

		for _, c := range records[i].Chunks {
			chunks[c.Digest] = struct{}{}
		}
	}

	result.Chunks = len(chunks)

	return result
}

// printNextSteps logs where the produced files have to be uploaded.
func (p *packager) printNextSteps(ctx context.Context, result *Result) {
	var builder strings.Builder

	builder.WriteString("Manifest written to ")
	builder.WriteString(result.Output)

	if result.ChunkDir != "" {
		builder.WriteString("\nUpload the contents of ")
		builder.WriteString(result.ChunkDir)
		builder.WriteString(" to the chunk store (content_url)")
	} else {
		builder.WriteString("\nUpload the build directory ")
		builder.WriteString(p.opts.Dir)
		builder.WriteString(" as ")
		builder.WriteString(p.opts.SourcePrefix)
		builder.WriteString(" next to the manifest")
	}

	logger.Info(ctx, builder.String())
}
