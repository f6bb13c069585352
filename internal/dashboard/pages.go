package dashboard

import (
	"bytes"
	"context"
	"html/template"
	"log"
	"net/http"
	"time"

	"EconDash/internal/accumulator"
	"EconDash/internal/calculator"
	"EconDash/internal/collector"
	"EconDash/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// recentRows is how many rows the "Recent ... Data" table shows.
const recentRows = 5

// overviewIndices is how many indices the overview page lists.
const overviewIndices = 10

var templateFuncs = template.FuncMap{
	"signed": func(v decimal.NullDecimal) string {
		if !v.Valid {
			return "n/a"
		}
		return signed(v.Decimal)
	},
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02 15:04")
	},
	"value": formatValue,
}

type layout struct {
	Title      string
	Active     string
	Series     []model.SeriesSpec
	HasIndices bool
	Version    string
}

type overviewCard struct {
	Spec   model.SeriesSpec
	Latest string
	Date   string
	Change string
	Rows   int
	Status accumulator.Status
	Error  string
}

type overviewPage struct {
	layout
	Cards        []overviewCard
	Indices      []model.IndexQuote
	IndicesError string
	UpdatedAt    string
}

type rowView struct {
	Date    string
	Value   string
	Percent string
}

type seriesPage struct {
	layout
	Spec   model.SeriesSpec
	Chart  template.HTML
	Rows   []rowView
	Status accumulator.Status
	Error  string
}

type indicesPage struct {
	layout
	Quotes []model.IndexQuote
	Error  string
}

type errorPage struct {
	layout
	Message string
}

func (s *Server) base(title, active string) layout {
	return layout{
		Title:      title,
		Active:     active,
		Series:     s.series,
		HasIndices: s.markets != nil,
		Version:    s.version,
	}
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	page := overviewPage{
		layout:    s.base("Economic Dashboard", "overview"),
		Cards:     make([]overviewCard, len(s.series)),
		UpdatedAt: s.now().Format("2006-01-02 15:04"),
	}

	// Accumulations serialize on the store lock; the indices call overlaps them.
	g, gctx := errgroup.WithContext(r.Context())
	for i, spec := range s.series {
		i, spec := i, spec
		g.Go(func() error {
			page.Cards[i] = cardFor(spec, s.acc.Refresh(gctx, spec))
			return nil
		})
	}
	if s.markets != nil {
		g.Go(func() error {
			quotes, err := s.fetchIndices(gctx)
			if err != nil {
				page.IndicesError = err.Error()
			}
			if len(quotes) > overviewIndices {
				quotes = quotes[:overviewIndices]
			}
			page.Indices = quotes
			return nil
		})
	}
	g.Wait()

	s.render(w, http.StatusOK, "overview.html", page)
}

func cardFor(spec model.SeriesSpec, res accumulator.Result) overviewCard {
	card := overviewCard{Spec: spec, Rows: len(res.Table), Status: res.Status}
	if res.Err != nil {
		card.Error = res.Err.Error()
	}
	c, ok := calculator.LatestChange(res.Table)
	if !ok {
		return card
	}
	card.Latest = c.Latest.Value.Decimal.String()
	card.Date = c.Latest.Date.String()
	if c.HasPrev {
		card.Change = signed(c.Delta)
	}
	return card
}

func (s *Server) handleSeriesPage(w http.ResponseWriter, r *http.Request) {
	spec, ok := s.findSeries(chi.URLParam(r, "name"))
	if !ok {
		s.renderError(w, http.StatusNotFound, "Unknown series")
		return
	}

	res := s.acc.Refresh(r.Context(), spec)
	page := seriesPage{
		layout: s.base(spec.Title, spec.Name),
		Spec:   spec,
		Status: res.Status,
	}
	if res.Err != nil {
		page.Error = res.Err.Error()
	}

	if len(res.Table) > 0 {
		if spec.Percent {
			derived := calculator.NormalizeToPercent(res.Table)
			page.Chart = template.HTML(LineChart(percentPoints(derived), DefaultChartConfig()))
			for _, d := range derived[len(derived)-min(recentRows, len(derived)):] {
				page.Rows = append(page.Rows, rowView{
					Date:    d.Date.String(),
					Value:   formatValue(d.Value),
					Percent: formatPercent(d.ValuePercent),
				})
			}
		} else {
			page.Chart = template.HTML(LineChart(valuePoints(res.Table), DefaultChartConfig()))
			for _, o := range res.Table.Tail(recentRows) {
				page.Rows = append(page.Rows, rowView{Date: o.Date.String(), Value: formatValue(o.Value)})
			}
		}
	}

	s.render(w, http.StatusOK, "series.html", page)
}

func (s *Server) handleIndicesPage(w http.ResponseWriter, r *http.Request) {
	if s.markets == nil {
		s.renderError(w, http.StatusNotFound, "Stock indices are not configured")
		return
	}
	page := indicesPage{layout: s.base("Global Stock Market Indices", "indices")}
	quotes, err := s.fetchIndices(r.Context())
	if err != nil {
		page.Error = err.Error()
	}
	if len(quotes) > model.IndicesLimit {
		quotes = quotes[:model.IndicesLimit]
	}
	page.Quotes = quotes
	s.render(w, http.StatusOK, "indices.html", page)
}

func (s *Server) fetchIndices(ctx context.Context) ([]model.IndexQuote, error) {
	started := time.Now()
	quotes, err := s.markets.Indices(ctx)
	outcome := "ok"
	if err != nil {
		outcome = string(collector.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
		log.Printf("[WARN] indices: %v", err)
	}
	s.metrics.ObserveFetch("markets", outcome, time.Since(started))
	return quotes, err
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("[ERROR] render %s: %v", name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, status int, msg string) {
	s.render(w, status, "error.html", errorPage{
		layout:  s.base(http.StatusText(status), ""),
		Message: msg,
	})
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
