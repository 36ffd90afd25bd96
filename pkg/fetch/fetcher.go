// Package fetch downloads one aggregate per identifier into a target
// directory. A failed request for one identifier is logged and recorded, and
// the run moves on; local write failures and cancellation end the run.
package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/htrc-client/pkg/client"
	"github.com/Sternrassler/htrc-client/pkg/pagination"
	"github.com/Sternrassler/htrc-client/pkg/ratelimit"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
)

var itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "htrc_fetch_items_total",
	Help: "Total identifiers processed by the aggregate fetcher, by result",
}, []string{"result"})

// Aggregator fetches the aggregate archive of one identifier.
// *dataapi.Client satisfies it.
type Aggregator interface {
	FetchAggregate(ctx context.Context, id string) ([]byte, error)
}

// Summary describes a finished run.
type Summary struct {
	Fetched int
	Failed  int

	// Errors holds every per-identifier request failure
	// (*multierror.Error), nil when there were none.
	Errors error

	Duration time.Duration
}

// Fetcher writes aggregates to a directory.
type Fetcher struct {
	api     Aggregator
	dir     string
	limiter *ratelimit.Limiter
	logger  zerolog.Logger
}

// NewFetcher creates a fetcher writing into dir, which must exist.
// A nil limiter means unlimited.
func NewFetcher(api Aggregator, dir string, limiter *ratelimit.Limiter) (*Fetcher, error) {
	if err := CheckDir(dir); err != nil {
		return nil, err
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited()
	}
	return &Fetcher{
		api:     api,
		dir:     dir,
		limiter: limiter,
		logger:  log.With().Str("component", "fetch").Str("dir", dir).Logger(),
	}, nil
}

// Path returns where the aggregate of id is written.
func (f *Fetcher) Path(id string) string {
	return filepath.Join(f.dir, FileName(id))
}

// FetchOne downloads and writes a single aggregate.
func (f *Fetcher) FetchOne(ctx context.Context, id string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	data, err := f.api.FetchAggregate(ctx, id)
	if err != nil {
		f.limiter.Observe(client.StatusCode(err))
		return "", err
	}

	path := f.Path(id)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write aggregate %s: %w", id, err)
	}
	return path, nil
}

// FetchAll fetches every identifier of ids in order. The returned error is
// non-nil only when the run was aborted: by a local write failure, a failure
// of ids itself, or ctx ending. Per-identifier request failures end up in
// Summary.Errors.
func (f *Fetcher) FetchAll(ctx context.Context, ids pagination.Source[string]) (Summary, error) {
	var (
		summary Summary
		merr    *multierror.Error
	)
	start := time.Now()

	finish := func(err error) (Summary, error) {
		summary.Errors = merr.ErrorOrNil()
		summary.Duration = time.Since(start)
		f.logger.Info().
			Int("fetched", summary.Fetched).
			Int("failed", summary.Failed).
			Dur("duration", summary.Duration).
			Bool("aborted", err != nil).
			Msg("Fetch run finished")
		return summary, err
	}

	for {
		id, err := ids.Next(ctx)
		if err == iterator.Done {
			return finish(nil)
		}
		if err != nil {
			return finish(err)
		}

		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}

		path, err := f.FetchOne(ctx, id)
		switch {
		case err == nil:
			summary.Fetched++
			itemsTotal.WithLabelValues("fetched").Inc()
			f.logger.Info().Str("htid", id).Str("path", path).Msg("Wrote aggregate")

		case ctx.Err() != nil:
			return finish(ctx.Err())

		case client.IsRequestError(err):
			summary.Failed++
			itemsTotal.WithLabelValues("failed").Inc()
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", id, err))
			f.logger.Warn().
				Err(err).
				Str("htid", id).
				Int("status", client.StatusCode(err)).
				Msg("Error with request")

		default:
			itemsTotal.WithLabelValues("aborted").Inc()
			return finish(err)
		}
	}
}
