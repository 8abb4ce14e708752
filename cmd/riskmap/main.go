package main

import (
	"flag"
	"io"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"riskmap/internal/catalog"
	"riskmap/internal/classify"
	"riskmap/internal/config"
	"riskmap/internal/geom"
	"riskmap/internal/observability"
	"riskmap/internal/overlay"
	"riskmap/internal/tui"
)

func main() {
	dateFlag := flag.String("date", "", "initial date (YYYY-MM-DD), default today")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	var date time.Time
	if *dateFlag != "" {
		if date, err = catalog.ParseDate(*dateFlag); err != nil {
			log.Fatal(err)
		}
	}

	// The terminal belongs to the viewer; logs only go to LOG_FILE.
	var w io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		w = f
	}
	logger := observability.NewLogger(cfg, w)

	fields := geom.DefaultFields
	fields.Mean = cfg.MeanField
	table := classify.R0Table()
	builder := overlay.NewBuilder(table, overlay.DefaultView(), fields, logger, observability.NewUnregisteredMetrics())

	m := tui.New(tui.Options{
		Renderer: builder,
		Catalog:  catalog.New(cfg),
		Logger:   logger,
		Table:    table,
		Date:     date,
	})
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion()).Run(); err != nil {
		log.Fatal(err)
	}
}
