package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/toolurls/repository"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [tool [edition]]",
		Short: "List tools, editions of a tool, or versions of an edition",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := fromContext(cmd.Context())
			repo, err := repository.Open(cc.cfg.Root)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				tools, err := repo.Tools()
				if err != nil {
					return err
				}
				for _, t := range tools {
					fprintf(out, "%s\n", t)
				}
				return nil
			}

			tool, err := repo.Tool(args[0])
			if err != nil {
				return err
			}
			if len(args) == 1 {
				editions, err := tool.Editions()
				if err != nil {
					return err
				}
				for _, e := range editions {
					fprintf(out, "%s\n", e)
				}
				return nil
			}

			edition, err := tool.Edition(args[1])
			if err != nil {
				return err
			}
			for v, err := range edition.Versions() {
				if err != nil {
					return err
				}
				platforms := make([]string, 0)
				for _, p := range v.Platforms() {
					if v.VerifiedPlatform(p) {
						platforms = append(platforms, p.String())
					}
				}
				fprintf(out, "%s\t%s\n", v, strings.Join(platforms, ","))
			}
			return nil
		},
	}
}
