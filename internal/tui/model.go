package tui

import (
	"context"
	"io"
	"log/slog"
	"time"

	list "github.com/charmbracelet/bubbles/list"
	table "github.com/charmbracelet/bubbles/table"
	textinput "github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"riskmap/internal/catalog"
	"riskmap/internal/classify"
	"riskmap/internal/geom"
	"riskmap/internal/overlay"
)

// Renderer builds a Map for a request.
type Renderer interface {
	Build(ctx context.Context, req overlay.Request) (*overlay.Map, error)
}

// Catalog resolves dates to files and lists the available years.
type Catalog interface {
	Request(date time.Time) overlay.Request
	Years() ([]int, error)
}

// Options wires the viewer to its data sources.
type Options struct {
	Renderer Renderer
	Catalog  Catalog
	Logger   *slog.Logger
	// Table colors raster cells; the zero value means the R0 table.
	Table classify.Table
	// Date is the initial date; zero means today.
	Date time.Time
}

type Model struct {
	width  int
	height int

	showSidebar bool
	helpVisible bool
	showLegend  bool

	zoom    float64
	offsetX int
	offsetY int

	status string

	renderer Renderer
	catalog  Catalog
	logger   *slog.Logger
	table    classify.Table

	// Date selection
	date      time.Time
	rendering bool
	renderSeq int

	// Year sidebar
	l     list.Model
	items []list.Item

	// Current map
	mp       *overlay.Map
	bbox     geom.BBox
	lines    [][][2]float64
	polygons [][][][2]float64

	// map canvas size, kept in sync with the window by Update
	mapW int
	mapH int

	// date entry
	dateMode bool
	ti       textinput.Model

	// layer visibility
	showRaster bool
	showPolys  bool

	// inspect popup
	inspectPopup string

	// hover state
	hovering      bool
	hoverCellX    int
	hoverCellY    int
	hoverHasGeo   bool
	hoverLon      float64
	hoverLat      float64
	hoverHasValue bool
	hoverValue    float64
	hoverDistrict string

	// attributes table
	showAttrs bool
	tbl       table.Model
}

func New(opts Options) Model {
	m := Model{
		showSidebar: false,
		helpVisible: true,
		showLegend:  true,
		zoom:        1.0,
		renderer:    opts.Renderer,
		catalog:     opts.Catalog,
		logger:      opts.Logger,
		table:       opts.Table,
		rendering:   true,
		showRaster:  true,
		showPolys:   true,
	}
	if len(m.table.Classes) == 0 {
		m.table = classify.R0Table()
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	m.date = catalog.Selectable().Clamp(opts.Date)
	if opts.Date.IsZero() {
		m.date = catalog.Today()
	}
	m.status = "rendering " + m.date.Format(catalog.DateLayout) + " …"
	// list setup
	d := list.NewDefaultDelegate()
	d.ShowDescription = false
	m.l = list.New(nil, d, 0, 0)
	m.l.Title = "Years"
	m.l.SetShowHelp(false)
	m.l.SetShowStatusBar(false)
	m.l.SetFilteringEnabled(true)
	// date entry setup
	m.ti = textinput.New()
	m.ti.Placeholder = catalog.DateLayout
	m.ti.CharLimit = len(catalog.DateLayout)
	m.ti.Width = len(catalog.DateLayout) + 1
	m.ti.Prompt = "date: "
	// attributes table setup (columns come from the boundary layer)
	m.tbl = table.New(table.WithFocused(true))
	m.tbl.SetHeight(12)
	m.refreshYears()
	return m
}

// Init renders the initial date.
func (m Model) Init() tea.Cmd {
	return m.renderCmd(m.renderSeq, m.date)
}
