package catalog

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskmap/internal/config"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func freeze(t *testing.T, now time.Time) {
	t.Helper()
	SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { SetClock(nil) })
}

func newCatalog(dir, mode string) *Catalog {
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.BoundaryMode = mode
	return New(cfg)
}

func TestRequest_Yearly(t *testing.T) {
	c := newCatalog("data", config.BoundaryYearly)

	req := c.Request(time.Date(2022, 7, 19, 15, 30, 0, 0, time.UTC))
	assert.Equal(t, filepath.Join("data", "geotif", "WNV2022.tif"), req.RasterPath)
	assert.Equal(t, filepath.Join("data", "vector", "kreise_germany_2022.geojson"), req.BoundaryPath)
	assert.Equal(t, 200, req.Day)
	assert.Equal(t, date(2022, 7, 19), req.Date)
}

func TestRequest_Fixed(t *testing.T) {
	c := newCatalog("data", config.BoundaryFixed)

	req := c.Request(date(2019, 1, 1))
	assert.Equal(t, filepath.Join("data", "geotif", "WNV2019.tif"), req.RasterPath)
	assert.Equal(t, filepath.Join("data", "kreise_germany_simplified_500.geojson"), req.BoundaryPath)
	assert.Equal(t, 1, req.Day)
}

func TestRequest_DayOfYear(t *testing.T) {
	c := newCatalog("data", config.BoundaryYearly)
	assert.Equal(t, 366, c.Request(date(2020, 12, 31)).Day)
	assert.Equal(t, 365, c.Request(date(2021, 12, 31)).Day)
	assert.Equal(t, 60, c.Request(date(2020, 2, 29)).Day)
}

func TestSelectable(t *testing.T) {
	freeze(t, time.Date(2024, 5, 10, 23, 59, 0, 0, time.UTC))
	r := Selectable()

	assert.Equal(t, MinDate, r.Min)
	assert.Equal(t, date(2024, 5, 10), r.Max)
	assert.True(t, r.Contains(date(2017, 1, 1)))
	assert.True(t, r.Contains(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(date(2016, 12, 31)))
	assert.False(t, r.Contains(date(2024, 5, 11)))

	assert.Equal(t, MinDate, r.Clamp(date(2010, 6, 1)))
	assert.Equal(t, date(2024, 5, 10), r.Clamp(date(2030, 1, 1)))
	assert.Equal(t, date(2020, 3, 3), r.Clamp(time.Date(2020, 3, 3, 8, 0, 0, 0, time.UTC)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2022-07-19 ")
	require.NoError(t, err)
	assert.Equal(t, date(2022, 7, 19), d)

	for _, s := range []string{"", "19.07.2022", "2022-13-01", "2022-02-30"} {
		_, err := ParseDate(s)
		assert.Error(t, err, s)
	}
}

func TestYears(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "geotif"), 0o755))
	for _, name := range []string{"WNV2022.tif", "WNV2017.tif", "WNVdraft.tif", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "geotif", name), nil, 0o644))
	}

	years, err := newCatalog(dir, config.BoundaryYearly).Years()
	require.NoError(t, err)
	assert.Equal(t, []int{2017, 2022}, years)
}

func TestCheckReady(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, newCatalog(dir, config.BoundaryYearly).CheckReady())

	err := newCatalog(filepath.Join(dir, "missing"), config.BoundaryYearly).CheckReady()
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
