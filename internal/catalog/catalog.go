// Package catalog maps dates onto the raster and boundary files of the data
// directory.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"riskmap/internal/config"
	"riskmap/internal/overlay"
)

// DateLayout is the date format accepted on the command line and over HTTP.
const DateLayout = "2006-01-02"

// MinDate is the first day with model output.
var MinDate = time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

// clock is a package-level time source so tests can freeze "today" via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Today returns the current calendar date at midnight UTC.
func Today() time.Time {
	return dateOf(clock.Now())
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want %s", s, DateLayout)
	}
	return t, nil
}

// Range is an inclusive span of selectable dates.
type Range struct {
	Min, Max time.Time
}

// Selectable is MinDate through today.
func Selectable() Range {
	return Range{Min: MinDate, Max: Today()}
}

// Contains reports whether the date of t lies within r.
func (r Range) Contains(t time.Time) bool {
	d := dateOf(t)
	return !d.Before(r.Min) && !d.After(r.Max)
}

// Clamp moves t into r.
func (r Range) Clamp(t time.Time) time.Time {
	d := dateOf(t)
	if d.Before(r.Min) {
		return r.Min
	}
	if d.After(r.Max) {
		return r.Max
	}
	return d
}

// Catalog resolves file paths under a data directory.
type Catalog struct {
	dataDir      string
	mode         string
	boundaryFile string
}

// New creates a Catalog from the data directory and boundary settings.
func New(cfg *config.Config) *Catalog {
	return &Catalog{
		dataDir:      cfg.DataDir,
		mode:         cfg.BoundaryMode,
		boundaryFile: cfg.BoundaryFile,
	}
}

// DataDir returns the root directory.
func (c *Catalog) DataDir() string { return c.dataDir }

// RasterPath is the multi-band raster holding one band per day of year.
func (c *Catalog) RasterPath(year int) string {
	return filepath.Join(c.dataDir, "geotif", "WNV"+strconv.Itoa(year)+".tif")
}

// BoundaryPath is the district file for year, or the fixed simplified file.
func (c *Catalog) BoundaryPath(year int) string {
	if c.mode == config.BoundaryFixed {
		return filepath.Join(c.dataDir, c.boundaryFile)
	}
	return filepath.Join(c.dataDir, "vector", "kreise_germany_"+strconv.Itoa(year)+".geojson")
}

// Request builds the render request for date.
func (c *Catalog) Request(date time.Time) overlay.Request {
	d := dateOf(date)
	return overlay.Request{
		RasterPath:   c.RasterPath(d.Year()),
		BoundaryPath: c.BoundaryPath(d.Year()),
		Day:          d.YearDay(),
		Date:         d,
	}
}

// Years lists the years with a raster file, ascending.
func (c *Catalog) Years() ([]int, error) {
	matches, err := filepath.Glob(filepath.Join(c.dataDir, "geotif", "WNV*.tif"))
	if err != nil {
		return nil, err
	}
	var years []int
	for _, m := range matches {
		s := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "WNV"), ".tif")
		if y, err := strconv.Atoi(s); err == nil {
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years, nil
}

// CheckReady reports an error when the data directory is missing.
func (c *Catalog) CheckReady() error {
	fi, err := os.Stat(c.dataDir)
	if err != nil {
		return fmt.Errorf("data directory: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("data directory %s is not a directory", c.dataDir)
	}
	return nil
}
