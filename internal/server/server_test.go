package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskmap/internal/catalog"
	"riskmap/internal/classify"
	"riskmap/internal/config"
	"riskmap/internal/geom"
	"riskmap/internal/observability"
	"riskmap/internal/overlay"
	"riskmap/internal/raster"
	"riskmap/internal/raster/rastertest"
)

const kreise = `{"type": "FeatureCollection", "features": [
  {"type": "Feature",
   "properties": {"gen": "Dresden", "bez": "Kreisfreie Stadt", "r_mean_b17": 1.1},
   "geometry": {"type": "Polygon", "coordinates": [[[13, 50], [14, 50], [14, 51], [13, 51], [13, 50]]]}}
]}`

// newTestServer lays out a data directory with a two-band raster for 2022,
// so 2022-01-01 and 2022-01-02 render and later days have no band.
func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	catalog.SetClock(clockwork.NewFakeClockAt(time.Date(2022, 3, 1, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { catalog.SetClock(nil) })

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "geotif"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vector"), 0o755))
	require.NoError(t, rastertest.GeoTIFF{
		Width: 2, Height: 2,
		Bands:    [][]float32{{0.9, 1.1, 1.3, 1.6}, {1.6, 1.6, 1.6, 1.6}},
		Left:     13,
		Top:      51,
		CellSize: 0.5,
	}.Write(filepath.Join(dir, "geotif", "WNV2022.tif")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vector", "kreise_germany_2022.geojson"), []byte(kreise), 0o644))

	cfg := config.Default()
	cfg.DataDir = dir
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	table := classify.R0Table()
	builder := overlay.NewBuilder(table, overlay.DefaultView(), geom.DefaultFields, logger, observability.NewMetricsForTesting())
	return NewServer(":0", builder, catalog.New(cfg), table.Legend(), logger), dir
}

func get(t *testing.T, srv http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "healthy", decodeJSON(t, rec)["status"])
}

func TestReadyz(t *testing.T) {
	srv, dir := newTestServer(t)
	rec := get(t, srv, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decodeJSON(t, rec)["status"])

	require.NoError(t, os.RemoveAll(dir))
	rec = get(t, srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", decodeJSON(t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestLegend(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/legend")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Classes []classify.LegendEntry `json:"classes"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Classes, 4)
	assert.Equal(t, "#d73027", body.Classes[3].Color)
}

func TestOverlayPNG(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/overlay.png?date=2022-01-01")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "[[50,13],[51,14]]", rec.Header().Get("X-Overlay-Bounds"))

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	r, _, _, _ := img.At(1, 1).RGBA()
	assert.Equal(t, uint32(215), r>>8)
}

func TestMapHTML(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/map?date=2022-01-02")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), "R0-Werte 2022-01-02")
	assert.Contains(t, rec.Body.String(), "Dresden")
}

func TestDateValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	tests := []struct {
		target string
		status int
	}{
		{"/map?date=19.07.2022", http.StatusBadRequest},
		{"/map?date=2016-12-31", http.StatusBadRequest},
		{"/overlay.png?date=2022-03-02", http.StatusBadRequest},
		{"/overlay.png?date=2022-01-05", http.StatusNotFound},
		{"/overlay.png?date=2021-06-01", http.StatusNotFound},
		// defaults to the frozen "today", 2022-03-01, which has no band
		{"/overlay.png", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, srv, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decodeJSON(t, rec)["error"])
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("load: %w", fs.ErrNotExist), http.StatusNotFound},
		{&raster.ReadError{Path: "x.tif", Band: 400, Err: raster.ErrBandIndex}, http.StatusNotFound},
		{fmt.Errorf("read: %w", raster.ErrFormat), http.StatusInternalServerError},
		{fmt.Errorf("build: %w", context.Canceled), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
