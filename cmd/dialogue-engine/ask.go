// cmd/dialogue-engine/ask.go
package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"dialogue-engine/internal/models"
)

type askCommander struct {
	root *rootOptions
	mode string
}

func newAskCmd(root *rootOptions) *cobra.Command {
	cmder := &askCommander{root: root}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&cmder.mode, "mode", "m", "", "Answer mode: hybrid, redmine, knowledge_only or web_only (default: dialogue.default_mode)")

	return cmd
}

func (c *askCommander) run(ctx context.Context, out io.Writer, question string) error {
	cfg, err := c.root.loadConfig()
	if err != nil {
		return err
	}
	zapLog, log := c.root.newLogger(cfg, true)
	defer zapLog.Sync()

	modeName := c.mode
	if modeName == "" {
		modeName = cfg.Dialogue.DefaultMode
	}
	mode, err := models.ParseMode(modeName)
	if err != nil {
		return err
	}

	comps, err := newComponents(ctx, cfg, zapLog, log)
	if err != nil {
		return err
	}
	defer comps.Close()

	state := comps.engine.ProcessTurn(ctx, models.ConversationState{Mode: mode}, question)
	printTurn(out, state)
	return nil
}

func printTurn(out io.Writer, state models.ConversationState) {
	fmt.Fprintln(out, state.FinalAnswer)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "source: %s", state.AnswerSource)
	if state.Action != nil {
		fmt.Fprintf(out, " | action: %s", state.Action.Name)
	}
	if state.Metadata.Score > 0 {
		fmt.Fprintf(out, " | score: %.3f", state.Metadata.Score)
	}
	if state.Metadata.FallbackReason != "" {
		fmt.Fprintf(out, " | fallback: %s", state.Metadata.FallbackReason)
	}
	fmt.Fprintln(out)
}
