package manifest

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// document is the hierarchical manifest form.
type document struct {
	Files []rawEntry `yaml:"files"`
}

// ParseYAML reads a hierarchical manifest:
//
//	files:
//	  - path: bin/game.exe
//	    size: 300
//	    digest: <hex>
//	    chunks:
//	      - {digest: <hex>, length: 100}
//	      - {digest: <hex>, length: 200}
func ParseYAML(r io.Reader, opts Options) ([]Entry, error) {
	var doc document

	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Err: fmt.Errorf("empty document: %w", ErrMissingField)}
		}

		return nil, &ParseError{Err: err}
	}

	b := newBuilder(opts)

	for i := range doc.Files {
		if err := b.add(i+1, &doc.Files[i]); err != nil {
			return nil, err
		}
	}

	return b.items, nil
}
