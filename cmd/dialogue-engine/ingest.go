// cmd/dialogue-engine/ingest.go
package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	documentloader "dialogue-engine/internal/workers/dialogue/document-loader"
)

type ingestCommander struct {
	root      *rootOptions
	recursive bool
}

func newIngestCmd(root *rootOptions) *cobra.Command {
	cmder := &ingestCommander{root: root}

	cmd := &cobra.Command{
		Use:   "ingest <file-or-directory>",
		Short: "Load text and markdown documents into the knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}

	cmd.Flags().BoolVarP(&cmder.recursive, "recursive", "r", false, "Descend into subdirectories")

	return cmd
}

func (c *ingestCommander) run(ctx context.Context, out io.Writer, path string) error {
	cfg, err := c.root.loadConfig()
	if err != nil {
		return err
	}
	zapLog, log := c.root.newLogger(cfg, true)
	defer zapLog.Sync()

	comps, err := newComponents(ctx, cfg, zapLog, log)
	if err != nil {
		return err
	}
	defer comps.Close()

	res, err := comps.loader.Execute(ctx, &documentloader.Input{Path: path, Recursive: c.recursive})
	if res != nil {
		printLoadResult(out, res)
	}
	return err
}

func printLoadResult(out io.Writer, res *documentloader.LoadResult) {
	fmt.Fprintln(out, res.Message)
	if res.Dimension > 0 {
		fmt.Fprintf(out, "dimension: %d, embedder: %s\n", res.Dimension, res.Embedder)
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(out, "skipped: %s\n", s)
	}
	for _, f := range res.Failed {
		fmt.Fprintf(out, "failed: %s\n", f)
	}
}
