package main

import (
	"time"

	"github.com/openbuilders/sepa-collector/internal/generator"
	"github.com/openbuilders/sepa-collector/internal/i18n"
	"github.com/openbuilders/sepa-collector/internal/types"

	"github.com/spf13/cobra"
)

type proposalsOutput struct {
	Year               int                          `json:"year,omitempty"`
	ContributionTotals map[string]types.BucketTotal `json:"contributionTotals,omitempty"`
	Contributions      *types.ContributionBuckets   `json:"contributions,omitempty"`
	End                *time.Time                   `json:"end,omitempty"`
	TabTotals          map[string]types.BucketTotal `json:"tabTotals,omitempty"`
	Tabs               *types.TabBuckets            `json:"tabs,omitempty"`
}

func proposalsCmd() *cobra.Command {
	var (
		year          int
		end           string
		contributions bool
		tabs          bool
		details       bool
	)

	cmd := &cobra.Command{
		Use:   "proposals",
		Short: "Print the proposed contribution and tab instructions",
		Long: `Generate the proposals without committing anything.

By default both contributions and personal tabs are generated and only the
bucket totals are printed. Use --details to print every proposal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if !contributions && !tabs {
				contributions, tabs = true, true
			}

			now := time.Now()
			tr := i18n.New(a.cfg.Organisation, a.cfg.ContactPhone, a.cfg.Location)
			gen := generator.New(&generator.Config{Epoch: a.cfg.Epoch, Location: a.cfg.Location}, a.db, tr)

			var out proposalsOutput

			if contributions {
				if year == 0 {
					year = types.AssociationYear(now.In(a.cfg.Location))
				}

				buckets, err := gen.ContributionInstructions(cmd.Context(), year, now)
				if err != nil {
					return err
				}

				out.Year = year
				out.ContributionTotals = buckets.Totals()
				if details {
					out.Contributions = buckets
				}
			}

			if tabs {
				until := now
				if end != "" {
					until, err = time.ParseInLocation(time.DateOnly, end, a.cfg.Location)
					if err != nil {
						return err
					}
				}

				buckets, err := gen.TabInstructions(cmd.Context(), until)
				if err != nil {
					return err
				}

				out.End = &until
				out.TabTotals = buckets.Totals()
				if details {
					out.Tabs = buckets
				}
			}

			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "association year of the contributions (default: current)")
	cmd.Flags().StringVar(&end, "end", "", "collect tab transactions before this date, YYYY-MM-DD (default: now)")
	cmd.Flags().BoolVar(&contributions, "contributions", false, "only generate contributions")
	cmd.Flags().BoolVar(&tabs, "tabs", false, "only generate personal tabs")
	cmd.Flags().BoolVar(&details, "details", false, "print every proposal, not only the totals")

	return cmd
}
