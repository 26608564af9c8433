// cmd/dialogue-engine/root.go
package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dialogue-engine/internal/common/config"
	"dialogue-engine/internal/common/logger"
)

const rootLongDesc string = `dialogue-engine answers questions from a knowledge base, the web and a
Redmine instance, and runs Redmine actions on request.

  dialogue-engine serve           Run the HTTP API
  dialogue-engine ask "..."       Answer one question from the terminal
  dialogue-engine ingest <path>   Load documents into the knowledge base
  dialogue-engine index-status    Show knowledge base size
  dialogue-engine search "..."    Query the knowledge base directly
  dialogue-engine actions list    Show the action catalogue`

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "dialogue-engine",
		Short:         "Dialogue orchestration engine",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a config file (default: configs/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newIngestCmd(opts),
		newIndexStatusCmd(opts),
		newSearchCmd(opts),
		newActionsCmd(),
	)
	return cmd
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFromFile(o.configPath)
	}
	return config.Load()
}

// newLogger builds the process logger. Quiet commands log warnings to stderr
// and keep stdout for their own output.
func (o *rootOptions) newLogger(cfg *config.Config, quiet bool) (*zap.Logger, logger.Logger) {
	level, output := cfg.Logging.Level, cfg.Logging.Output
	if quiet {
		level = "warn"
		if output == "" || output == "stdout" {
			output = "stderr"
		}
	}
	if o.logLevel != "" {
		level = o.logLevel
	}
	zapLog := logger.NewWithOptions(logger.Options{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: output,
	})
	return zapLog, logger.NewZapAdapter(zapLog)
}
