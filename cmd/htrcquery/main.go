// Command htrcquery runs a query against the HTRC Solr proxy and writes the
// matching records, their count, their ids or their MARC records.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/api/iterator"

	"github.com/Sternrassler/htrc-client/internal/cli"
	"github.com/Sternrassler/htrc-client/pkg/archive"
	"github.com/Sternrassler/htrc-client/pkg/marc"
	"github.com/Sternrassler/htrc-client/pkg/pagination"
	"github.com/Sternrassler/htrc-client/pkg/solr"
)

type options struct {
	cli.Options

	fields    []string
	outfile   string
	numFound  bool
	ids       bool
	marcFile  string
	marcDB    string
	max       int
	batchSize int
}

func main() {
	os.Exit(cli.Execute(newRootCmd()))
}

func newRootCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "htrcquery QUERY",
		Short: "Query the HTRC Solr proxy",
		Long: `Runs a Solr query against the HTRC Solr proxy. By default every matching
record is written as JSON; -n, -i and -m select the count, the id stream or
the MARC records instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&o.fields, "fields", "f", nil, "fields to include with the results")
	flags.StringVarP(&o.outfile, "outfile", "o", "", "write output to this file (default stdout)")
	flags.BoolVarP(&o.numFound, "numfound", "n", false, "print the total number of results")
	flags.BoolVarP(&o.ids, "ids", "i", false, "print a stream of document ids")
	flags.StringVarP(&o.marcFile, "marc", "m", "", "retrieve MARC records into this zip file")
	flags.StringVar(&o.marcDB, "marcdb", "", "retrieve MARC records into this SQLite database")
	flags.IntVar(&o.max, "max", -1, "maximum number of results to retrieve (-1 for all)")
	flags.IntVar(&o.batchSize, "batch-size", 0, "ids per MARC request (default from config)")
	cmd.MarkFlagsMutuallyExclusive("numfound", "ids", "marc", "marcdb")

	cli.AddCommonFlags(cmd, &o.Options)
	return cmd
}

func run(cmd *cobra.Command, o *options, queryString string) (err error) {
	ctx := cmd.Context()

	env, err := cli.Setup(ctx, cmd, &o.Options)
	if err != nil {
		return err
	}
	defer env.Close()

	sc, err := env.Solr()
	if err != nil {
		return err
	}
	q := solr.Query{Q: queryString, Fields: o.fields}
	if err := q.Validate(); err != nil {
		return err
	}

	switch {
	case o.marcFile != "":
		return cli.Interrupted(ctx, writeMARCZip(ctx, sc, q, o))
	case o.marcDB != "":
		return cli.Interrupted(ctx, writeMARCDB(ctx, sc, q, o))
	}

	out := cmd.OutOrStdout()
	if o.outfile != "" {
		f, err := os.Create(o.outfile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("closing output file: %w", cerr)
			}
		}()
		out = f
	}

	switch {
	case o.numFound:
		n, err := sc.Count(ctx, q)
		if err != nil {
			return cli.Interrupted(ctx, err)
		}
		_, err = fmt.Fprintf(out, "%d\n", n)
		return err

	case o.ids:
		ids := pagination.Take(sc.IDs(q), o.max)
		return cli.Interrupted(ctx, pagination.ForEach(ctx, ids, func(id string) error {
			_, err := fmt.Fprintln(out, id)
			return err
		}))

	default:
		return cli.Interrupted(ctx, writeResults(ctx, out, sc.Iter(q).Limit(o.max)))
	}
}

// writeResults writes `{ "results" : [` followed by every record indented by
// four spaces, comma-separated, and the closing `]}`.
func writeResults(ctx context.Context, w io.Writer, records pagination.Source[solr.Record]) error {
	if _, err := io.WriteString(w, "{ \"results\" : [\n"); err != nil {
		return err
	}

	first := true
	for {
		r, err := records.Next(ctx)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return err
		}

		data, err := marshalRecord(r)
		if err != nil {
			return err
		}
		if !first {
			if _, err := io.WriteString(w, ",\n"); err != nil {
				return err
			}
		}
		first = false
		if _, err := w.Write(data); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, "\n]}")
	return err
}

func marshalRecord(r solr.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encoding record %s: %w", r.ID(), err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func marcBatches(sc *solr.Client, q solr.Query, o *options) pagination.Source[[]string] {
	if o.max >= 0 {
		return pagination.NewBatcher(pagination.Take(sc.IDs(q), o.max), batchSize(sc, o))
	}
	return sc.BatchIDs(q, o.batchSize)
}

func batchSize(sc *solr.Client, o *options) int {
	if o.batchSize > 0 {
		return o.batchSize
	}
	return sc.Config().BatchSize
}

// writeMARCZip merges the MARC bundles of every batch into one zip file.
func writeMARCZip(ctx context.Context, sc *solr.Client, q solr.Query, o *options) (err error) {
	f, err := os.Create(o.marcFile)
	if err != nil {
		return fmt.Errorf("creating marc file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing marc file: %w", cerr)
		}
	}()

	m := archive.NewMerger(f)
	defer func() {
		if cerr := m.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("finishing marc file: %w", cerr)
		}
	}()

	return pagination.ForEach(ctx, marcBatches(sc, q, o), func(ids []string) error {
		data, err := sc.FetchRecords(ctx, ids)
		if err != nil {
			return err
		}
		_, err = m.Add(data)
		return err
	})
}

// writeMARCDB stores the MARC records of every batch in a SQLite database.
func writeMARCDB(ctx context.Context, sc *solr.Client, q solr.Query, o *options) error {
	store, err := marc.Create(o.marcDB)
	if err != nil {
		return err
	}
	defer store.Close()

	return pagination.ForEach(ctx, marcBatches(sc, q, o), func(ids []string) error {
		data, err := sc.FetchRecords(ctx, ids)
		if err != nil {
			return err
		}
		_, err = store.ImportZip(ctx, data)
		return err
	})
}
