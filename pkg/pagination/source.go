package pagination

import (
	"context"

	"google.golang.org/api/iterator"
)

// Source is a pull-based sequence. Next returns iterator.Done after the last item.
type Source[T any] interface {
	Next(ctx context.Context) (T, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc[T any] func(ctx context.Context) (T, error)

// Next calls f.
func (f SourceFunc[T]) Next(ctx context.Context) (T, error) {
	return f(ctx)
}

// FromSlice returns a Source over items, in order.
func FromSlice[T any](items []T) Source[T] {
	i := 0
	return SourceFunc[T](func(ctx context.Context) (T, error) {
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if i >= len(items) {
			return zero, iterator.Done
		}
		item := items[i]
		i++
		return item, nil
	})
}

// Collect drains src into a slice. Items read before an error are returned with it.
func Collect[T any](ctx context.Context, src Source[T]) ([]T, error) {
	var items []T
	for {
		item, err := src.Next(ctx)
		if err == iterator.Done {
			return items, nil
		}
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
}

// ForEach calls fn for every item of src until Done, or the first error from src or fn.
func ForEach[T any](ctx context.Context, src Source[T], fn func(T) error) error {
	for {
		item, err := src.Next(ctx)
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(item); err != nil {
			return err
		}
	}
}

// Map projects every item of src through fn.
func Map[T, U any](src Source[T], fn func(T) U) Source[U] {
	return SourceFunc[U](func(ctx context.Context) (U, error) {
		item, err := src.Next(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(item), nil
	})
}

// Take yields at most n items of src; n < 0 yields all of them.
func Take[T any](src Source[T], n int) Source[T] {
	taken := 0
	return SourceFunc[T](func(ctx context.Context) (T, error) {
		var zero T
		if n >= 0 && taken >= n {
			return zero, iterator.Done
		}
		item, err := src.Next(ctx)
		if err != nil {
			return zero, err
		}
		taken++
		return item, nil
	})
}
