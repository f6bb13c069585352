package dashboard

import (
	"fmt"
	"html"
	"strings"

	"EconDash/internal/model"
)

// ChartConfig holds rendering parameters for the line chart.
type ChartConfig struct {
	Width        int
	Height       int
	MarginTop    int
	MarginRight  int
	MarginBottom int
	MarginLeft   int
	LineColor    string
	GridColor    string
	TextColor    string
	FontSize     int
}

// DefaultChartConfig returns the dimensions used on series pages.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:        900,
		Height:       320,
		MarginTop:    20,
		MarginRight:  30,
		MarginBottom: 40,
		MarginLeft:   80,
		LineColor:    "#1f77b4",
		GridColor:    "#e8e8e8",
		TextColor:    "#333333",
		FontSize:     11,
	}
}

func (c ChartConfig) plotArea() (x, y, w, h int) {
	return c.MarginLeft, c.MarginTop,
		c.Width - c.MarginLeft - c.MarginRight,
		c.Height - c.MarginTop - c.MarginBottom
}

// chartPoint is one x position of the chart. Points without a value leave a
// gap in the line.
type chartPoint struct {
	Date  model.Date
	Value float64
	Valid bool
}

func valuePoints(t model.Table) []chartPoint {
	pts := make([]chartPoint, len(t))
	for i, o := range t {
		pts[i] = chartPoint{Date: o.Date, Value: o.Value.Decimal.InexactFloat64(), Valid: o.Value.Valid}
	}
	return pts
}

func percentPoints(rows []model.DerivedObservation) []chartPoint {
	pts := make([]chartPoint, len(rows))
	for i, d := range rows {
		pts[i] = chartPoint{Date: d.Date, Value: d.ValuePercent.Decimal.InexactFloat64(), Valid: d.ValuePercent.Valid}
	}
	return pts
}

// LineChart renders pts, in order, as an inline SVG line chart.
func LineChart(pts []chartPoint, cfg ChartConfig) string {
	if cfg.Width == 0 {
		cfg = DefaultChartConfig()
	}

	var lo, hi float64
	valid := 0
	for _, p := range pts {
		if !p.Valid {
			continue
		}
		if valid == 0 || p.Value < lo {
			lo = p.Value
		}
		if valid == 0 || p.Value > hi {
			hi = p.Value
		}
		valid++
	}
	if valid == 0 {
		return emptySVG(cfg, "No data available")
	}
	span := hi - lo
	if span == 0 {
		span = 1
		lo -= 0.5
	}

	px, py, pw, ph := cfg.plotArea()
	xOf := func(i int) float64 {
		if len(pts) == 1 {
			return float64(px) + float64(pw)/2
		}
		return float64(px) + float64(pw)*float64(i)/float64(len(pts)-1)
	}
	yOf := func(v float64) float64 {
		return float64(py+ph) - (v-lo)/span*float64(ph)
	}

	var sb strings.Builder
	sb.WriteString(svgHeader(cfg))

	// Horizontal grid with value labels
	gridLines := 4
	for i := 0; i <= gridLines; i++ {
		v := lo + span*float64(i)/float64(gridLines)
		y := yOf(v)
		sb.WriteString(fmt.Sprintf(`<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="%s" stroke-dasharray="3,3"/>`,
			px, y, px+pw, y, cfg.GridColor))
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="%.1f" font-size="%d" fill="%s" text-anchor="end">%s</text>`,
			px-6, y+4, cfg.FontSize, cfg.TextColor, formatAxis(v)))
	}

	// First and last date under the x axis
	sb.WriteString(fmt.Sprintf(`<text x="%d" y="%d" font-size="%d" fill="%s">%s</text>`,
		px, py+ph+20, cfg.FontSize, cfg.TextColor, pts[0].Date))
	sb.WriteString(fmt.Sprintf(`<text x="%d" y="%d" font-size="%d" fill="%s" text-anchor="end">%s</text>`,
		px+pw, py+ph+20, cfg.FontSize, cfg.TextColor, pts[len(pts)-1].Date))

	var path strings.Builder
	pen := false
	for i, p := range pts {
		if !p.Valid {
			pen = false
			continue
		}
		cmd := "L"
		if !pen {
			cmd = "M"
			pen = true
		}
		path.WriteString(fmt.Sprintf("%s%.1f,%.1f ", cmd, xOf(i), yOf(p.Value)))
	}
	sb.WriteString(fmt.Sprintf(`<path d="%s" fill="none" stroke="%s" stroke-width="2"/>`,
		strings.TrimSpace(path.String()), cfg.LineColor))

	// Markers make isolated points visible.
	for i, p := range pts {
		if p.Valid {
			sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="2.5" fill="%s"><title>%s: %s</title></circle>`,
				xOf(i), yOf(p.Value), cfg.LineColor, p.Date, formatAxis(p.Value)))
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}

func svgHeader(cfg ChartConfig) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="100%%" font-family="sans-serif">`,
		cfg.Width, cfg.Height)
}

func emptySVG(cfg ChartConfig, msg string) string {
	return svgHeader(cfg) +
		fmt.Sprintf(`<text x="%d" y="%d" font-size="14" fill="#999999" text-anchor="middle">%s</text>`,
			cfg.Width/2, cfg.Height/2, html.EscapeString(msg)) +
		"</svg>"
}

func formatAxis(v float64) string {
	switch {
	case v >= 1000 || v <= -1000:
		return fmt.Sprintf("%.0f", v)
	case v >= 10 || v <= -10:
		return fmt.Sprintf("%.1f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
