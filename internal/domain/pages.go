package domain

import (
	"context"
	"fmt"
)

// maxPages bounds AllPages so a misbehaving server cannot keep the client paging forever
const maxPages = 500

// Page is the paginated collection shape returned by every list endpoint
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next,omitempty"`
	Previous *string `json:"previous,omitempty"`
	Results  []T     `json:"results"`
}

// HasNext reports whether another page follows this one
func (p *Page[T]) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

// AllPages follows next links starting at page 1 and concatenates the results
func AllPages[T any](ctx context.Context, fetch func(ctx context.Context, page int) (*Page[T], error)) ([]T, error) {
	var all []T
	for page := 1; page <= maxPages; page++ {
		p, err := fetch(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}
		all = append(all, p.Results...)
		if !p.HasNext() {
			return all, nil
		}
	}
	return all, nil
}
