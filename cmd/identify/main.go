// Command identify scans a MARC database and prints the ids of records whose
// subject headings mention any of the given terms.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/htrc-client/internal/cli"
	"github.com/Sternrassler/htrc-client/pkg/marc"
	"github.com/Sternrassler/htrc-client/pkg/pagination"
)

type options struct {
	cli.Options

	out string
}

func main() {
	os.Exit(cli.Execute(newRootCmd()))
}

func newRootCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "identify MARCDB TERM...",
		Short: "Identify records by subject heading",
		Long: `Prints the id of every record in MARCDB with a subject heading that
contains one of TERM, ignoring case. Ids are also written to --out if given.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, args[0], args[1:])
		},
	}

	cmd.Flags().StringVar(&o.out, "out", "", "also write matching ids to this file")
	cli.AddCommonFlags(cmd, &o.Options)
	return cmd
}

func run(cmd *cobra.Command, o *options, dbPath string, terms []string) (err error) {
	ctx := cmd.Context()

	store, err := marc.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	env, err := cli.Setup(ctx, cmd, &o.Options)
	if err != nil {
		return err
	}
	defer env.Close()

	var out io.Writer = cmd.OutOrStdout()
	if o.out != "" {
		f, err := os.Create(o.out)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("closing output file: %w", cerr)
			}
		}()
		out = io.MultiWriter(out, f)
	}

	matcher := marc.NewMatcher(terms...)
	if len(matcher.Terms()) == 0 {
		return fmt.Errorf("no usable terms in %q", terms)
	}

	records, err := store.Records(ctx)
	if err != nil {
		return err
	}
	defer records.Close()

	var scanned, matched int
	err = pagination.ForEach(ctx, records, func(r *marc.Record) error {
		scanned++
		if !matcher.Match(r) {
			return nil
		}
		matched++
		_, err := fmt.Fprintln(out, r.ID())
		return err
	})
	if err != nil {
		return cli.Interrupted(ctx, err)
	}

	env.Logger.Info().
		Int("scanned", scanned).
		Int("matched", matched).
		Strs("terms", matcher.Terms()).
		Msg("Identification finished")
	return nil
}
