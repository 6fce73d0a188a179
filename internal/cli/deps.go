package cli

import (
	"github.com/spf13/cobra"

	"github.com/git-pkgs/toolurls/repository"
)

func newDepsCmd() *cobra.Command {
	var dependents bool

	cmd := &cobra.Command{
		Use:   "deps <tool>",
		Short: "Show the tools a tool requires, or with --dependents the tools requiring it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := fromContext(cmd.Context())
			repo, err := repository.Open(cc.cfg.Root)
			if err != nil {
				return err
			}
			deps, err := repo.LoadDependencies()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if dependents {
				for _, name := range deps.Dependents(args[0]) {
					fprintf(out, "%s\n", name)
				}
				return nil
			}
			for _, d := range deps.For(args[0]) {
				fprintf(out, "%s %s\n", d.Tool, d.VersionRange.Raw())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dependents, "dependents", false, "list tools that depend on <tool>")
	return cmd
}
