package main

import (
	"log"

	"EconDash/internal/accumulator"
	"EconDash/internal/collector"
	"EconDash/internal/config"
	"EconDash/internal/metrics"
	"EconDash/internal/recorder"
	"EconDash/internal/store"
)

// app holds the components shared by every command.
type app struct {
	store    *store.Store
	fred     *collector.FREDFetcher
	markets  *collector.MarketsClient
	acc      *accumulator.Accumulator
	recorder recorder.Recorder
	metrics  *metrics.Metrics
}

func newApp(cfg *config.Config) *app {
	a := &app{
		store:   store.New(cfg.Store.Path, cfg.SeriesNames()),
		fred:    collector.NewFREDFetcher(cfg.FRED.BaseURL, cfg.FRED.APIKey, cfg.Proxy),
		markets: collector.NewMarketsClient(cfg.Markets.BaseURL, cfg.Markets.APIKey, cfg.Proxy),
	}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
	}

	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			a.recorder = recorder.NewNoopRecorder()
		} else {
			a.recorder = sr
		}
	} else {
		a.recorder = recorder.NewNoopRecorder()
	}

	a.acc = accumulator.New(a.store, a.fred)
	a.acc.Providers["fred"] = a.fred
	a.acc.Providers["markets"] = a.markets
	a.acc.Recorder = a.recorder
	a.acc.Metrics = a.metrics
	a.acc.HistoryDays = cfg.HistoryDays

	log.Printf("[INFO] store: %s, %d series, history %d days", cfg.Store.Path, len(cfg.Series), cfg.HistoryDays)
	return a
}

func (a *app) Close() {
	if err := a.recorder.Close(); err != nil {
		log.Printf("[ERROR] close recorder: %v", err)
	}
}
