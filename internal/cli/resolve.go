package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/toolurls/repository"
	"github.com/git-pkgs/toolurls/version"
)

func newResolveCmd() *cobra.Command {
	var (
		edition  string
		platform string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <tool> [range]",
		Short: "Print the newest verified download matching a version range",
		Long: `Print the newest published version of a tool inside the range
(default "*") that has a verified URL for the platform, falling back to a
platform-independent artifact.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := fromContext(cmd.Context())

			rng := version.Any()
			if len(args) == 2 {
				rng = version.ParseRange(args[1])
				if !rng.Valid() {
					return fmt.Errorf("invalid version range %q", args[1])
				}
			}
			p := repository.CurrentPlatform()
			if platform != "" {
				var err error
				if p, err = repository.ParsePlatform(platform); err != nil {
					return err
				}
			}

			repo, err := repository.Open(cc.cfg.Root)
			if err != nil {
				return err
			}
			res, err := repo.Resolve(cmd.Context(), repository.Query{
				Tool:    args[0],
				Edition: edition,
				Range:   rng,
				OS:      p.OS,
				Arch:    p.Arch,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fprintf(out, "%s %s %s\n", res.Version, res.Platform, res.URL)
			if res.Checksum != "" {
				fprintf(out, "checksum %s\n", res.Checksum)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&edition, "edition", "", "edition (defaults to the tool name)")
	cmd.Flags().StringVar(&platform, "platform", "", "target platform such as linux-x64 (defaults to this machine)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
