// Command getdocs downloads HathiTrust Data API aggregates for a list of
// volume identifiers, read from a file or interactively from stdin.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Sternrassler/htrc-client/internal/cli"
	"github.com/Sternrassler/htrc-client/pkg/fetch"
)

const prompt = "Enter target htid >> "

type options struct {
	cli.Options

	strict bool
}

func main() {
	os.Exit(cli.Execute(newRootCmd()))
}

func newRootCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "getdocs TARGETDIR [IDFILE]",
		Short: "Retrieve volume aggregates from the HathiTrust Data API",
		Long: `Downloads the aggregate zip of every identifier in IDFILE into TARGETDIR.
Without IDFILE identifiers are read from stdin, one per line, until EOF or
interrupt. Failed requests are logged and the run continues.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, args)
		},
	}

	cmd.Flags().BoolVar(&o.strict, "strict", false, "exit non-zero when any identifier failed")
	cli.AddCommonFlags(cmd, &o.Options)
	return cmd
}

func run(cmd *cobra.Command, o *options, args []string) error {
	ctx := cmd.Context()
	targetDir := args[0]

	// Local inputs are checked before anything touches the network.
	if err := fetch.CheckDir(targetDir); err != nil {
		return err
	}

	var ids *fetch.LineSource
	if len(args) == 2 {
		f, err := fetch.OpenIDFile(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		ids = fetch.NewLineSource(f)
	} else {
		ids = interactive(cmd.InOrStdin(), cmd.OutOrStdout())
	}
	defer ids.Close()

	env, err := cli.Setup(ctx, cmd, &o.Options)
	if err != nil {
		return err
	}
	defer env.Close()

	api, err := env.DataAPI(ctx)
	if err != nil {
		return err
	}
	limiter, err := env.Limiter()
	if err != nil {
		return err
	}
	fetcher, err := fetch.NewFetcher(api, targetDir, limiter)
	if err != nil {
		return err
	}

	summary, err := fetcher.FetchAll(ctx, ids)
	if err != nil {
		return cli.Interrupted(ctx, err)
	}
	if o.strict && summary.Errors != nil {
		return fmt.Errorf("%d of %d identifiers failed: %w",
			summary.Failed, summary.Failed+summary.Fetched, summary.Errors)
	}
	return nil
}

// interactive reads identifiers from in, prompting on out when in is a terminal.
func interactive(in io.Reader, out io.Writer) *fetch.LineSource {
	ids := fetch.NewLineSource(in)
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		ids.WithPrompt(out, prompt)
	}
	return ids
}
