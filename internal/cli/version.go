package cli

import (
	"github.com/spf13/cobra"
)

var (
	// Version is set during build
	Version = "dev"
	// Commit is set during build
	Commit = "none"
	// BuildDate is set during build
	BuildDate = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fprintf(out, "toolurls %s\n", Version)
			fprintf(out, "  commit: %s\n", Commit)
			fprintf(out, "  built:  %s\n", BuildDate)
		},
	}
}
