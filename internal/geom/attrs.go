package geom

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Attributes unions the property keys of all features. Tooltip fields come
// first, the remaining keys follow sorted.
func (l *Layer) Attributes() ([]string, [][]string) {
	order := []string{}
	seen := map[string]bool{}
	for _, k := range []string{l.Fields.Name, l.Fields.Kind, l.Fields.Mean} {
		if k != "" && !seen[k] {
			seen[k] = true
			order = append(order, k)
		}
	}
	var extra []string
	for _, f := range l.Collection.Features {
		for k := range f.Properties {
			if !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	rows := make([][]string, 0, len(l.Collection.Features))
	for _, f := range l.Collection.Features {
		vals := make([]string, 0, len(order))
		for _, k := range order {
			vals = append(vals, FormatValue(f.Properties[k]))
		}
		rows = append(rows, vals)
	}
	return order, rows
}

// FormatValue renders a property value for display.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		bs, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(bs)
	}
}

// TooltipLabels are the captions shown before the name, type and mean fields.
var TooltipLabels = [3]string{"Name:", "Typ:", "Mittlerer R0-Wert"}

// Tooltip returns the labelled tooltip lines for b.
func (b *Boundary) Tooltip() []string {
	mean := "-"
	if b.HasMean {
		mean = strconv.FormatFloat(b.Mean, 'f', 3, 64)
	}
	return []string{
		TooltipLabels[0] + " " + b.Name,
		TooltipLabels[1] + " " + b.Kind,
		TooltipLabels[2] + " " + mean,
	}
}
