package pagination

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
)

var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "htrc_pages_fetched_total",
		Help: "Total result pages fetched by paginated iterators",
	})

	recordsYieldedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "htrc_records_yielded_total",
		Help: "Total records yielded by paginated iterators",
	})
)

// Page is one bounded slice of a paginated result plus the server-reported total.
type Page[T any] struct {
	Items []T
	Total int
}

// PageFetcher fetches a single page of at most rows items starting at offset start.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, start, rows int) (Page[T], error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc[T any] func(ctx context.Context, start, rows int) (Page[T], error)

// FetchPage calls f.
func (f PageFetcherFunc[T]) FetchPage(ctx context.Context, start, rows int) (Page[T], error) {
	return f(ctx, start, rows)
}

// Iterator yields the items of a paginated result one at a time.
// It is not safe for concurrent use.
type Iterator[T any] struct {
	fetcher  PageFetcher[T]
	pageSize int
	limit    int
	logger   zerolog.Logger

	total   int // -1 until the first page arrives
	yielded int
	pages   int
	buf     []T
	err     error // sticky: iterator.Done or the first failure
}

// NewIterator creates an iterator that requests pageSize items per page.
func NewIterator[T any](fetcher PageFetcher[T], pageSize int) *Iterator[T] {
	if pageSize <= 0 {
		panic(fmt.Sprintf("pagination: page size must be positive (got %d)", pageSize))
	}
	return &Iterator[T]{
		fetcher:  fetcher,
		pageSize: pageSize,
		limit:    -1,
		logger:   log.With().Str("component", "pagination").Logger(),
		total:    -1,
	}
}

// Limit caps the number of items yielded; n < 0 removes the cap.
// It must be called before the first Next.
func (it *Iterator[T]) Limit(n int) *Iterator[T] {
	it.limit = n
	return it
}

// WithLogger replaces the iterator's logger.
func (it *Iterator[T]) WithLogger(logger zerolog.Logger) *Iterator[T] {
	it.logger = logger
	return it
}

// Total returns the total reported by the first page, or -1 before it is fetched.
func (it *Iterator[T]) Total() int {
	return it.total
}

// Yielded returns the number of items produced so far.
func (it *Iterator[T]) Yielded() int {
	return it.yielded
}

// Next returns the next item, iterator.Done at the end of the sequence, or
// the error of the page request that failed. After Done or an error, every
// subsequent call returns the same value.
func (it *Iterator[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if it.err != nil {
		return zero, it.err
	}

	if it.limit >= 0 && it.yielded >= it.limit {
		return zero, it.finish(iterator.Done)
	}

	if len(it.buf) == 0 {
		if it.total >= 0 && it.yielded >= it.total {
			return zero, it.finish(iterator.Done)
		}
		if err := it.fetch(ctx); err != nil {
			return zero, it.finish(err)
		}
		if len(it.buf) == 0 {
			return zero, it.finish(iterator.Done)
		}
	}

	item := it.buf[0]
	it.buf = it.buf[1:]
	it.yielded++
	recordsYieldedTotal.Inc()
	return item, nil
}

// fetch loads the next page into buf, trimmed to what the first total allows.
func (it *Iterator[T]) fetch(ctx context.Context) error {
	rows := it.pageSize
	if it.limit >= 0 && it.limit-it.yielded < rows {
		rows = it.limit - it.yielded
	}

	page, err := it.fetcher.FetchPage(ctx, it.yielded, rows)
	if err != nil {
		it.logger.Debug().
			Err(err).
			Int("start", it.yielded).
			Int("page", it.pages).
			Msg("Page fetch failed")
		return err
	}
	it.pages++
	pagesFetchedTotal.Inc()

	if it.total < 0 {
		it.total = page.Total
		it.logger.Debug().
			Int("total", it.total).
			Int("page_size", it.pageSize).
			Msg("Starting paginated iteration")
	} else if page.Total != it.total {
		it.logger.Warn().
			Int("first_total", it.total).
			Int("page_total", page.Total).
			Msg("Result total changed between pages; keeping first total")
	}

	remaining := it.total - it.yielded
	items := page.Items
	if len(items) > remaining {
		items = items[:remaining]
	}

	if len(items) == 0 && remaining > 0 {
		it.logger.Warn().
			Int("total", it.total).
			Int("yielded", it.yielded).
			Msg("Empty page before reported total was reached; ending iteration")
	}

	it.buf = items
	return nil
}

func (it *Iterator[T]) finish(err error) error {
	it.err = err
	it.buf = nil
	if err == iterator.Done && it.pages > 0 {
		it.logger.Debug().
			Int("yielded", it.yielded).
			Int("pages", it.pages).
			Msg("Iteration complete")
	}
	return err
}
