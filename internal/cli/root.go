// Package cli builds the wordsync command tree.
package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mrlokans/wordsync/internal/config"
)

const defaultCommandTimeout = 2 * time.Minute

// app carries state shared by every subcommand.
type app struct {
	cfg *config.Config

	logLevel string
	userID   string
	asJSON   bool
	timeout  time.Duration
}

// NewRootCmd constructs the root command; exposed for testing.
func NewRootCmd(version string) *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "wordsync",
		Short:         "Offline-first vocabulary trainer with spaced repetition",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.cfg = config.NewConfig()
			if a.logLevel != "" {
				a.cfg.Global.LogLevel = a.logLevel
			}
			if a.userID != "" {
				a.cfg.Session.UserID = a.userID
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVarP(&a.userID, "user", "u", "", "User to sign in as (overrides USER_ID)")
	rootCmd.PersistentFlags().BoolVar(&a.asJSON, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().DurationVar(&a.timeout, "timeout", defaultCommandTimeout, "Deadline for one-shot commands")

	rootCmd.AddCommand(
		newServeCmd(a, version),
		newAgentCmd(a, version),
		newSyncCmd(a),
		newSearchCmd(a),
		newDefineCmd(a),
		newReviewCmd(a),
		newDueCmd(a),
	)

	return rootCmd
}

func newServeCmd(a *app, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the authoritative store and dictionary origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(a.cfg, version)
		},
	}
}

func newAgentCmd(a *app, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Run the local offline-first engine with its HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(a.cfg, version)
		},
	}
}
