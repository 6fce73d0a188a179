package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/toolurls/client"
	"github.com/git-pkgs/toolurls/config"
	"github.com/git-pkgs/toolurls/fetch"
	"github.com/git-pkgs/toolurls/internal/core"
	"github.com/git-pkgs/toolurls/internal/logging"
	"github.com/git-pkgs/toolurls/internal/metrics"
	"github.com/git-pkgs/toolurls/repository"

	_ "github.com/git-pkgs/toolurls/all"
)

func newUpdateCmd() *cobra.Command {
	var revalidate bool

	cmd := &cobra.Command{
		Use:   "update [tool...]",
		Short: "Crawl upstream sources and publish verified download URLs",
		Long: `Crawl every catalog entry, or only the named tools, concurrently.
A tool whose source is unavailable is reported and skipped; the others
still run. The exit status is 2 when some tools failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := fromContext(cmd.Context())
			if revalidate {
				cc.cfg.Revalidate = true
			}

			cfgs, err := config.LoadCatalog(cc.cfg.Catalog)
			if err != nil {
				return err
			}
			cfgs, err = selectTools(cfgs, args)
			if err != nil {
				return err
			}
			repo, err := repository.Open(cc.cfg.Root)
			if err != nil {
				return err
			}

			m := metrics.New()
			runners, failed := buildRunners(cc, cfgs, repo, m)
			reports := core.RunAllWithConcurrency(cmd.Context(), runners, cc.cfg.Concurrency)
			printReports(cmd.OutOrStdout(), reports)

			if cc.cfg.MetricsFile != "" {
				if err := m.WriteTextfile(cc.cfg.MetricsFile); err != nil {
					cc.log.Warn().Err(err).Str("path", cc.cfg.MetricsFile).Msg("writing metrics failed")
				}
			}

			for _, r := range reports {
				if !r.OK() {
					failed++
				}
			}
			total := core.Totals(reports)
			cc.log.Info().
				Int("tools", len(cfgs)).
				Int("failed", failed).
				Int("published", total.Published).
				Msg("update finished")
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errPartial, failed, len(cfgs))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&revalidate, "revalidate", false, "re-probe successful URLs older than the freshness window")
	return cmd
}

// selectTools keeps every edition of the named tools, or all entries when
// none are named.
func selectTools(cfgs []core.ToolConfig, names []string) ([]core.ToolConfig, error) {
	if len(names) == 0 {
		return cfgs, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	found := make(map[string]bool, len(names))
	var out []core.ToolConfig
	for _, c := range cfgs {
		if want[c.Tool] {
			out = append(out, c)
			found[c.Tool] = true
		}
	}
	var missing []string
	for _, n := range names {
		if !found[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("not in catalog: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// buildRunners creates one updater per entry. Entries whose source cannot
// be built are logged and counted as failures.
func buildRunners(cc commandContext, cfgs []core.ToolConfig, repo *repository.Repository, m *metrics.Metrics) ([]core.Runner, int) {
	httpClient := client.NewClient(
		client.WithTimeout(cc.cfg.HTTPTimeout),
		client.WithRateLimit(cc.cfg.RateLimit, 1),
	)
	fetcher := fetch.NewCircuitBreakerFetcher(
		fetch.NewFetcher(fetch.WithTimeout(cc.cfg.HTTPTimeout)),
		cc.cfg.BreakerThreshold,
	)

	failed := 0
	runners := make([]core.Runner, 0, len(cfgs))
	for _, tc := range cfgs {
		log := logging.ForTool(cc.log, tc.Tool, tc.EditionName())
		if tc.Source == "github" && tc.Token == "" {
			tc.Token = cc.cfg.GitHubToken
		}
		src, err := core.New(tc, httpClient)
		if err != nil {
			log.Error().Err(err).Msg("cannot build source")
			failed++
			continue
		}
		runners = append(runners, core.NewUpdater(tc, src, repo, fetcher,
			core.WithLogger(log),
			core.WithMetrics(m),
			core.WithFreshness(cc.cfg.Freshness),
			core.WithRevalidate(cc.cfg.Revalidate),
			core.WithProbeConcurrency(cc.cfg.ProbeConcurrency),
		))
	}
	return runners, failed
}

func printReports(w io.Writer, reports []core.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fprintf(tw, "TOOL\tEDITION\tPUBLISHED\tUPDATED\tSKIPPED\tREJECTED\tFAILED\tERROR\n")
	for _, r := range reports {
		errText := "-"
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n", r.Tool, r.Edition, r.Published, r.Updated, r.Skipped, r.Rejected, r.Failed, errText)
	}
	_ = tw.Flush()
}
