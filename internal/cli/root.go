// Package cli implements the toolurls command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/git-pkgs/toolurls/config"
	"github.com/git-pkgs/toolurls/internal/logging"
)

type commandContext struct {
	correlationID uuid.UUID
	startedAt     time.Time
	cfg           *config.Config
	log           zerolog.Logger
}

type commandContextKey struct{}

type rootFlags struct {
	root     string
	catalog  string
	logLevel string
	pretty   bool
}

// NewRootCmd builds the command tree. Each call returns an independent tree.
func NewRootCmd() *cobra.Command {
	var flags rootFlags

	rootCmd := &cobra.Command{
		Use:   "toolurls",
		Short: "toolurls - download URL repository for developer tools",
		Long: `toolurls discovers the released versions of developer tools, builds
their per-platform download URLs, verifies them and keeps the results in a
file-backed repository that installers can query.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)

			info := commandContext{
				correlationID: uuid.New(),
				startedAt:     time.Now(),
				cfg:           cfg,
			}
			info.log = logging.New(logging.Config{
				Level:  cfg.LogLevel,
				Pretty: cfg.LogPretty,
				Output: cmd.ErrOrStderr(),
			}).With().Str("correlation_id", info.correlationID.String()).Logger()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, commandContextKey{}, info))
			info.log.Info().Str("command", cmd.CommandPath()).Msg("command start")
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			info, ok := cmd.Context().Value(commandContextKey{}).(commandContext)
			if !ok {
				return
			}
			info.log.Info().
				Str("command", cmd.CommandPath()).
				Int64("duration_ms", time.Since(info.startedAt).Milliseconds()).
				Msg("command end")
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.root, "root", "", "repository root (TOOLURLS_ROOT)")
	rootCmd.PersistentFlags().StringVar(&flags.catalog, "catalog", "", "tool catalog file (TOOLURLS_CATALOG)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&flags.pretty, "pretty", false, "human-readable logs (LOG_PRETTY)")

	rootCmd.AddCommand(
		newUpdateCmd(),
		newResolveCmd(),
		newListCmd(),
		newDepsCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// apply overrides environment settings with explicitly set flags.
func (f rootFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	pf := cmd.Flags()
	if pf.Changed("root") {
		cfg.Root = f.root
	}
	if pf.Changed("catalog") {
		cfg.Catalog = f.catalog
	}
	if pf.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if pf.Changed("pretty") {
		cfg.LogPretty = f.pretty
	}
}

func fromContext(ctx context.Context) commandContext {
	info, ok := ctx.Value(commandContextKey{}).(commandContext)
	if !ok {
		cfg, _ := config.Load()
		return commandContext{cfg: cfg, log: logging.Nop(), startedAt: time.Now()}
	}
	return info
}

// Execute runs the command line and exits non-zero on failure.
func Execute(ctx context.Context) {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// errPartial marks a run where some tools failed while others succeeded.
var errPartial = errors.New("some tools failed")

func exitCode(err error) int {
	if errors.Is(err, errPartial) {
		return 2
	}
	return 1
}

func fprintf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
