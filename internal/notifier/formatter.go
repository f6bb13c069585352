package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"EconDash/internal/accumulator"
	"EconDash/internal/calculator"
	"EconDash/internal/model"

	"github.com/shopspring/decimal"
)

// RecentRows is how many rows a series message lists.
const RecentRows = 5

// FormatDigest summarizes one refresh run across all series.
func FormatDigest(results []accumulator.Result, at time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>EconDash refresh</b> | %s\n\n", at.Format("2006-01-02 15:04")))

	for _, r := range results {
		icon := "✅"
		switch r.Status {
		case accumulator.StatusStale:
			icon = "⚠️"
		case accumulator.StatusEmpty:
			icon = "❌"
		case accumulator.StatusUpToDate:
			icon = "➖"
		}
		b.WriteString(fmt.Sprintf("%s <b>%s</b>: %s", icon, html.EscapeString(r.Name), r.Status))
		if r.Fetched > 0 {
			b.WriteString(fmt.Sprintf(" (+%d rows)", r.Fetched))
		}
		if c, ok := calculator.LatestChange(r.Table); ok {
			b.WriteString(fmt.Sprintf("\n   latest %s = %s", c.Latest.Date, formatValue(c.Latest.Value)))
			if c.HasPrev {
				b.WriteString(fmt.Sprintf(" (%s)", signed(c.Delta)))
			}
		}
		if r.Err != nil {
			b.WriteString(fmt.Sprintf("\n   %s", html.EscapeString(r.Err.Error())))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatSeries renders the most recent rows of a series. Percent series also
// show their position within the observed range.
func FormatSeries(spec model.SeriesSpec, t model.Table) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📈 <b>%s</b> (%s)\n\n", html.EscapeString(spec.Title), html.EscapeString(spec.Key)))
	if len(t) == 0 {
		b.WriteString("No data available")
		return b.String()
	}

	if spec.Percent {
		derived := calculator.NormalizeToPercent(t)
		for _, d := range derived[len(derived)-min(RecentRows, len(derived)):] {
			b.WriteString(fmt.Sprintf("%s  %s  %s%%\n", d.Date, formatValue(d.Value), formatPercent(d.ValuePercent)))
		}
	} else {
		for _, o := range t.Tail(RecentRows) {
			b.WriteString(fmt.Sprintf("%s  %s\n", o.Date, formatValue(o.Value)))
		}
	}

	if lo, hi, ok := calculator.MinMax(t); ok {
		b.WriteString(fmt.Sprintf("\nrange %s … %s over %d rows", lo.String(), hi.String(), len(t)))
	}
	return b.String()
}

// FormatIndices renders up to limit rows of the global indices list.
func FormatIndices(quotes []model.IndexQuote, limit int) string {
	if len(quotes) == 0 {
		return "🌍 <b>Global Stock Indices</b>\n\nNo data available"
	}
	if limit > 0 && len(quotes) > limit {
		quotes = quotes[:limit]
	}
	var b strings.Builder
	b.WriteString("🌍 <b>Global Stock Indices</b>\n\n")
	for _, q := range quotes {
		b.WriteString(fmt.Sprintf("%s  %s", html.EscapeString(q.Symbol), formatValue(q.Close)))
		if q.DailyPercentChange.Valid {
			b.WriteString(fmt.Sprintf(" (%s%%)", signed(q.DailyPercentChange.Decimal)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatSeriesList lists the configured series and the available commands.
func FormatSeriesList(specs []model.SeriesSpec) string {
	var b strings.Builder
	b.WriteString("📋 <b>Series</b>\n")
	for _, s := range specs {
		b.WriteString(fmt.Sprintf("• %s: %s [%s]\n", html.EscapeString(s.Name), html.EscapeString(s.Title), html.EscapeString(s.Key)))
	}
	b.WriteString("\nCommands:\n• /series &lt;name&gt;\n• /indices\n• /refresh\n• /list")
	return b.String()
}

func formatValue(v decimal.NullDecimal) string {
	if !v.Valid {
		return "n/a"
	}
	return v.Decimal.String()
}

func formatPercent(v decimal.NullDecimal) string {
	if !v.Valid {
		return "n/a"
	}
	return v.Decimal.StringFixed(2)
}

func signed(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(2)
	}
	return "+" + d.StringFixed(2)
}
