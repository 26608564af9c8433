// cmd/dialogue-engine/index.go
package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	knowledgeretriever "dialogue-engine/internal/workers/dialogue/knowledge-retriever"
)

func newIndexStatusCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index-status",
		Short: "Show knowledge base size and dimension",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndexStatus(cmd.Context(), root, cmd.OutOrStdout())
		},
	}
}

func runIndexStatus(ctx context.Context, root *rootOptions, out io.Writer) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	zapLog, log := root.newLogger(cfg, true)
	defer zapLog.Sync()

	comps, err := newComponents(ctx, cfg, zapLog, log)
	if err != nil {
		return err
	}
	defer comps.Close()

	stats, err := comps.retriever.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "backend:   %s\n", cfg.APIs.VectorIndex.Backend)
	fmt.Fprintf(out, "vectors:   %d\n", stats.TotalVectorCount)
	fmt.Fprintf(out, "dimension: %d\n", stats.Dimension)

	names := make([]string, 0, len(stats.Namespaces))
	for ns := range stats.Namespaces {
		names = append(names, ns)
	}
	sort.Strings(names)
	for _, ns := range names {
		label := ns
		if label == "" {
			label = "(root)"
		}
		fmt.Fprintf(out, "  %-20s %d\n", label, stats.Namespaces[ns])
	}
	return nil
}

type searchCommander struct {
	root *rootOptions
	topK int
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	cmder := &searchCommander{root: root}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query the knowledge base without generating an answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}

	cmd.Flags().IntVarP(&cmder.topK, "top-k", "k", 0, "Matches requested per namespace (default: dialogue.top_k)")

	return cmd
}

func (c *searchCommander) run(ctx context.Context, out io.Writer, query string) error {
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

	topK := c.topK
	if topK <= 0 {
		topK = cfg.Dialogue.TopK
	}
	res := comps.retriever.Search(ctx, query, topK)
	fmt.Fprintln(out, knowledgeretriever.FormatResults(res, comps.retrieverConfig.RelevanceThreshold))
	return nil
}
