// Package overlay renders one raster band into a colorized map overlay with
// district boundaries.
package overlay

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"riskmap/internal/classify"
	"riskmap/internal/geom"
	"riskmap/internal/observability"
	"riskmap/internal/raster"
)

// LatLngBounds is the overlay extent as [[south, west], [north, east]].
type LatLngBounds [2][2]float64

// BoundsFor converts raster bounds to [[bottom, left], [top, right]].
func BoundsFor(b raster.Bounds) LatLngBounds {
	return LatLngBounds{{b.Bottom, b.Left}, {b.Top, b.Right}}
}

// TileLayer is the base map.
type TileLayer struct {
	Name        string
	URL         string
	Attribution string
}

// View holds the fixed presentation of the map page.
type View struct {
	Center          [2]float64 // lat, lng
	Zoom            int
	ZoomControl     bool
	ScrollWheelZoom bool
	Tiles           TileLayer

	OverlayName    string
	OverlayOpacity float64
	OverlayZIndex  int

	BoundaryName        string
	BoundaryColor       string
	BoundaryWeight      float64
	BoundaryFillOpacity float64

	TooltipBackground string
	TooltipSticky     bool
}

// DefaultView centers Germany on a light CartoDB base map.
func DefaultView() View {
	return View{
		Center:          [2]float64{51.125, 10.375},
		Zoom:            6,
		ZoomControl:     true,
		ScrollWheelZoom: false,
		Tiles: TileLayer{
			Name:        "CartoDB positron",
			URL:         "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
			Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors &copy; <a href="https://carto.com/attributions">CARTO</a>`,
		},
		OverlayName:         "R0-Werte",
		OverlayOpacity:      0.6,
		OverlayZIndex:       1,
		BoundaryName:        "Landkreisgrenzen",
		BoundaryColor:       "black",
		BoundaryWeight:      1,
		BoundaryFillOpacity: 0,
		TooltipBackground:   "#F0EFEF",
		TooltipSticky:       false,
	}
}

// Request selects one band of one raster plus the boundary file to draw over it.
type Request struct {
	RasterPath   string
	BoundaryPath string
	// Day is the 1-based band index.
	Day int
	// Date is informational and may be zero.
	Date time.Time
}

// Map is a composed render result. It is never shared between calls.
type Map struct {
	Date       time.Time
	Day        int
	Band       *raster.Band
	Image      *image.RGBA
	Bounds     LatLngBounds
	Counts     classify.Counts
	Legend     []classify.LegendEntry
	Boundaries *geom.Layer
	View       View
}

// Sample returns the raster value at lon/lat.
func (m *Map) Sample(lon, lat float64) (float64, bool) {
	return m.Band.Sample(lon, lat)
}

// Builder renders requests. It holds no per-call state and is safe for
// concurrent use.
type Builder struct {
	table   classify.Table
	view    View
	fields  geom.Fields
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewBuilder creates a Builder.
func NewBuilder(table classify.Table, view View, fields geom.Fields, logger *slog.Logger, metrics *observability.Metrics) *Builder {
	return &Builder{
		table:   table,
		view:    view,
		fields:  fields,
		logger:  logger,
		metrics: metrics,
	}
}

// Table returns the classification table in use.
func (b *Builder) Table() classify.Table { return b.table }

// Build reads the requested band, classifies it and loads the boundaries.
// Any failure returns no Map.
func (b *Builder) Build(ctx context.Context, req Request) (*Map, error) {
	start := time.Now()
	m, err := b.build(ctx, req)

	outcome := "success"
	if err != nil {
		outcome = "error"
		b.logger.Warn("render failed", "raster", req.RasterPath, "day", req.Day, "error", err)
	} else {
		b.logger.Debug("render complete",
			"raster", req.RasterPath,
			"day", req.Day,
			"width", m.Image.Rect.Dx(),
			"height", m.Image.Rect.Dy(),
			"boundaries", len(m.Boundaries.Boundaries),
			"duration", time.Since(start),
		)
	}
	b.metrics.Renders.WithLabelValues(outcome).Inc()
	b.metrics.RenderDuration.Observe(time.Since(start).Seconds())
	return m, err
}

func (b *Builder) build(ctx context.Context, req Request) (*Map, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	band, err := readBand(req.RasterPath, req.Day)
	if err != nil {
		return nil, fmt.Errorf("read raster: %w", err)
	}

	img, counts := b.table.Apply(band)
	b.recordCounts(counts)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	layer, err := geom.LoadBoundaries(req.BoundaryPath, b.fields)
	if err != nil {
		return nil, err
	}

	return &Map{
		Date:       req.Date,
		Day:        req.Day,
		Band:       band,
		Image:      img,
		Bounds:     BoundsFor(band.Bounds()),
		Counts:     counts,
		Legend:     b.table.Legend(),
		Boundaries: layer,
		View:       b.view,
	}, nil
}

// readBand releases the dataset before returning.
func readBand(path string, day int) (*raster.Band, error) {
	ds, err := raster.Open(path)
	if err != nil {
		return nil, err
	}
	defer ds.Close()
	return ds.ReadBand(day)
}

func (b *Builder) recordCounts(c classify.Counts) {
	for i, n := range c.Classes {
		if n > 0 {
			b.metrics.CellsClassified.WithLabelValues(b.table.Classes[i].Label).Add(float64(n))
		}
	}
	if c.NoData > 0 {
		b.metrics.CellsClassified.WithLabelValues("nodata").Add(float64(c.NoData))
	}
	if c.Unclassified > 0 {
		b.metrics.CellsClassified.WithLabelValues("unclassified").Add(float64(c.Unclassified))
	}
}
