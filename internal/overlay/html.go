package overlay

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"riskmap/internal/classify"
	"riskmap/internal/geom"
)

var pageTmpl = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html lang="de">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
html, body, #map { height: 100%; margin: 0; }
.riskmap-tooltip { background-color: {{.TooltipBackground}}; }
.riskmap-tooltip th { text-align: left; padding-right: 6px; }
.riskmap-legend { background: #fff; padding: 6px 8px; font: 12px sans-serif; line-height: 18px; }
.riskmap-legend i { display: inline-block; width: 14px; height: 14px; margin-right: 6px; vertical-align: middle; opacity: 0.6; }
</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map("map", {center: {{.View.Center}}, zoom: {{.View.Zoom}}, zoomControl: {{.View.ZoomControl}}, scrollWheelZoom: {{.View.ScrollWheelZoom}}});
var tiles = L.tileLayer({{.View.Tiles.URL}}, {attribution: {{.Attribution}}, subdomains: "abcd", maxZoom: 20}).addTo(map);
var overlay = L.imageOverlay({{.ImageURL}}, {{.Bounds}}, {opacity: {{.View.OverlayOpacity}}, zIndex: {{.View.OverlayZIndex}}}).addTo(map);
var fields = {{.Fields}}, labels = {{.Labels}};
var boundaries = L.geoJSON({{.GeoJSON}}, {
  style: function () { return {{.Style}}; },
  onEachFeature: function (feature, layer) {
    var p = feature.properties || {};
    var rows = fields.map(function (k, i) {
      var v = p[k] == null ? "" : String(p[k]).split("&").join("&amp;").split("<").join("&lt;");
      return "<tr><th>" + labels[i] + "</th><td>" + v + "</td></tr>";
    });
    layer.bindTooltip("<table>" + rows.join("") + "</table>", {sticky: {{.View.TooltipSticky}}, className: "riskmap-tooltip"});
  }
}).addTo(map);
L.control.layers({ {{.View.Tiles.Name}}: tiles }, { {{.View.OverlayName}}: overlay, {{.View.BoundaryName}}: boundaries }).addTo(map);
var legend = L.control({position: "bottomright"});
legend.onAdd = function () {
  var div = L.DomUtil.create("div", "riskmap-legend");
  div.innerHTML = {{.Legend}}.map(function (e) { return "<i style=\"background:" + e.color + "\"></i>" + e.label; }).join("<br>");
  return div;
};
legend.addTo(map);
</script>
</body>
</html>
`))

type page struct {
	Title             string
	View              View
	Attribution       string
	TooltipBackground template.CSS
	ImageURL          string
	Bounds            LatLngBounds
	Fields            []string
	Labels            []string
	GeoJSON           json.RawMessage
	Style             map[string]any
	Legend            []classify.LegendEntry
}

// WriteHTML renders a standalone Leaflet page with the overlay embedded as a
// data URI and the boundaries inline.
func (m *Map) WriteHTML(w io.Writer) error {
	uri, err := m.DataURI()
	if err != nil {
		return err
	}
	gj, err := m.Boundaries.GeoJSON()
	if err != nil {
		return fmt.Errorf("encode boundaries: %w", err)
	}
	title := "R0-Werte"
	if !m.Date.IsZero() {
		title += " " + m.Date.Format("2006-01-02")
	}
	f := m.Boundaries.Fields
	p := page{
		Title:             title,
		View:              m.View,
		Attribution:       m.View.Tiles.Attribution,
		TooltipBackground: template.CSS(m.View.TooltipBackground),
		ImageURL:          uri,
		Bounds:            m.Bounds,
		Fields:            []string{f.Name, f.Kind, f.Mean},
		Labels:            geom.TooltipLabels[:],
		GeoJSON:           gj,
		Style: map[string]any{
			"color":       m.View.BoundaryColor,
			"weight":      m.View.BoundaryWeight,
			"fillOpacity": m.View.BoundaryFillOpacity,
		},
		Legend: m.Legend,
	}
	if err := pageTmpl.Execute(w, p); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}
