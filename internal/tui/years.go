package tui

import (
	"strconv"
	"time"

	list "github.com/charmbracelet/bubbles/list"
)

type yearItem struct {
	year int
}

func (y yearItem) Title() string       { return strconv.Itoa(y.year) }
func (y yearItem) Description() string { return "" }
func (y yearItem) FilterValue() string { return strconv.Itoa(y.year) }

func (m *Model) refreshYears() {
	years, err := m.catalog.Years()
	if err != nil {
		m.status = "read data dir error: " + err.Error()
		return
	}
	items := make([]list.Item, 0, len(years))
	for _, y := range years {
		items = append(items, yearItem{year: y})
	}
	m.items = items
	m.l.SetItems(items)
	if len(items) == 0 {
		m.status = "no rasters in data directory"
	}
}

// sameDayIn moves d to year, keeping month and day. Feb 29 rolls to Mar 1.
func sameDayIn(d time.Time, year int) time.Time {
	return time.Date(year, d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
