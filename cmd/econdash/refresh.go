package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"EconDash/internal/calculator"
	"EconDash/internal/model"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh [name...]",
	Short: "Fetch the missing dates of the configured series",
	Long:  "Bring the local cache of the named series (or all series) up to date and print a summary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		specs := cfg.Series
		if len(args) > 0 {
			specs = make([]model.SeriesSpec, 0, len(args))
			for _, name := range args {
				spec, ok := cfg.FindSeries(name)
				if !ok {
					return fmt.Errorf("unknown series %q (configured: %v)", name, cfg.SeriesNames())
				}
				specs = append(specs, spec)
			}
		}

		a := newApp(cfg)
		defer a.Close()

		results := a.acc.RefreshAll(cmd.Context(), specs)

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tKEY\tSTATUS\tNEW\tROWS\tLATEST\tERROR")
		for _, r := range results {
			latest := "-"
			if c, ok := calculator.LatestChange(r.Table); ok {
				latest = fmt.Sprintf("%s %s", c.Latest.Date, c.Latest.Value.Decimal)
			}
			errText := ""
			if r.Err != nil {
				errText = r.Err.Error()
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n", r.Name, r.Key, r.Status, r.Fetched, len(r.Table), latest, errText)
		}
		return tw.Flush()
	},
}

var indicesCmd = &cobra.Command{
	Use:   "indices",
	Short: "Print the current global stock indices",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a := newApp(cfg)
		defer a.Close()

		quotes, err := a.markets.Indices(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetch indices: %w", err)
		}
		if err := a.recorder.RecordIndexQuotes(quotes); err != nil {
			fmt.Fprintf(os.Stderr, "record index quotes: %v\n", err)
		}
		if limit > 0 && len(quotes) > limit {
			quotes = quotes[:limit]
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SYMBOL\tNAME\tCOUNTRY\tCLOSE\tCHANGE%")
		for _, q := range quotes {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", q.Symbol, q.Name, q.Country, nullString(q.Close), nullString(q.DailyPercentChange))
		}
		return tw.Flush()
	},
}

func init() {
	indicesCmd.Flags().Int("limit", model.IndicesLimit, "maximum rows to print (0 for all)")
}

func nullString(v decimal.NullDecimal) string {
	if !v.Valid {
		return "-"
	}
	return v.Decimal.String()
}
