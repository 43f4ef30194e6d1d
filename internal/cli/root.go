// Package cli wires the plannerd commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/nhle/plannerd/internal/model"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand creates the plannerd root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "plannerd",
		Short: "Template-driven project planner daemon",
		Long: `plannerd serves the project planning API: project templates,
template expansion and instantiation, event reconciliation, and reminder
scheduling against an external task runner.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", model.DefaultConfigPath(), "path to config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewCredentialCommand())

	return cmd
}
