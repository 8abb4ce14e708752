// Command render builds the overlay for one date and writes it to disk.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"riskmap/internal/catalog"
	"riskmap/internal/classify"
	"riskmap/internal/config"
	"riskmap/internal/geom"
	"riskmap/internal/observability"
	"riskmap/internal/overlay"
)

func main() {
	dateFlag := flag.String("date", "", "date to render (YYYY-MM-DD), default today")
	pngPath := flag.String("png", "overlay.png", "output PNG path")
	htmlPath := flag.String("html", "", "optional output HTML map path")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stderr)

	date := catalog.Today()
	if *dateFlag != "" {
		if date, err = catalog.ParseDate(*dateFlag); err != nil {
			logger.Error("invalid date", "error", err)
			os.Exit(1)
		}
	}
	if !catalog.Selectable().Contains(date) {
		logger.Error("date out of range", "date", date.Format(catalog.DateLayout))
		os.Exit(1)
	}

	fields := geom.DefaultFields
	fields.Mean = cfg.MeanField
	builder := overlay.NewBuilder(classify.R0Table(), overlay.DefaultView(), fields, logger, observability.NewUnregisteredMetrics())

	mp, err := builder.Build(context.Background(), catalog.New(cfg).Request(date))
	if err != nil {
		logger.Error("render failed", "error", err)
		os.Exit(1)
	}
	if err := mp.SavePNG(*pngPath); err != nil {
		logger.Error("write png", "error", err)
		os.Exit(1)
	}
	logger.Info("overlay written", "path", *pngPath, "bounds", mp.Bounds, "nodata", mp.Counts.NoData)

	if *htmlPath != "" {
		if err := writeHTML(mp, *htmlPath); err != nil {
			logger.Error("write html", "error", err)
			os.Exit(1)
		}
		logger.Info("map written", "path", *htmlPath)
	}
}

func writeHTML(mp *overlay.Map, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := mp.WriteHTML(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
