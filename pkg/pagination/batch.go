package pagination

import (
	"context"
	"fmt"

	"google.golang.org/api/iterator"
)

// Batcher chunks a Source into groups of a fixed size. The final group may
// be smaller; group order and member order follow the source.
type Batcher[T any] struct {
	src  Source[T]
	size int
	err  error
}

// NewBatcher creates a batcher. size must be positive.
func NewBatcher[T any](src Source[T], size int) *Batcher[T] {
	if size <= 0 {
		panic(fmt.Sprintf("pagination: batch size must be positive (got %d)", size))
	}
	return &Batcher[T]{src: src, size: size}
}

// Next returns the next group, or iterator.Done once the source is exhausted.
// If the source fails mid-group, the partial group is dropped and the error returned.
func (b *Batcher[T]) Next(ctx context.Context) ([]T, error) {
	if b.err != nil {
		return nil, b.err
	}

	group := make([]T, 0, b.size)
	for len(group) < b.size {
		item, err := b.src.Next(ctx)
		if err == iterator.Done {
			b.err = iterator.Done
			break
		}
		if err != nil {
			b.err = err
			return nil, err
		}
		group = append(group, item)
	}

	if len(group) == 0 {
		return nil, iterator.Done
	}
	return group, nil
}
