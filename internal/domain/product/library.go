package product

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

// maxSuggestions caps the "did you mean" list on a missing slug.
const maxSuggestions = 3

// ErrProductNotFound is returned when a slug is not part of the library.
var ErrProductNotFound = errors.New("could not find product in library")

// Library is the purchased catalog as last synced.
type Library struct {
	// Products is the user's collection in storefront order.
	Products []Product `yaml:"collection"`
}

// Find returns the product with the given slug.
// The error lists close slugs when there is no exact match.
func (l *Library) Find(slug string) (*Product, error) {
	for i := range l.Products {
		if l.Products[i].Slug == slug {
			return &l.Products[i], nil
		}
	}

	suggestions := l.suggest(slug)
	if len(suggestions) == 0 {
		return nil, fmt.Errorf("%s: %w", slug, ErrProductNotFound)
	}

	return nil, fmt.Errorf("%s (did you mean %s?): %w",
		slug, strings.Join(suggestions, ", "), ErrProductNotFound)
}

func (l *Library) suggest(slug string) []string {
	slugs := make([]string, len(l.Products))
	for i := range l.Products {
		slugs[i] = l.Products[i].Slug
	}

	matches := fuzzy.Find(slug, slugs)

	result := make([]string, 0, maxSuggestions)
	for _, m := range matches {
		if len(result) == maxSuggestions {
			break
		}

		result = append(result, m.Str)
	}

	return result
}
