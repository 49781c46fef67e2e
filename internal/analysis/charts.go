package analysis

import (
	"sort"
	"strings"

	"github.com/rayhanfay/sistem-rangkuman-data/internal/dataset"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/query"
)

// Point is one chart datum.
type Point struct {
	X string `json:"x"`
	Y int64  `json:"y"`
}

// ChartData is the visualization payload for the dashboard and stats
// tools: condition and inventory-result counts, top locations by value,
// and a monthly inventory trend.
type ChartData struct {
	Kondisi        []Point `json:"kondisi,omitempty"`
	HasilInventory []Point `json:"hasilInventory,omitempty"`
	AssetValue     []Point `json:"assetValue,omitempty"`
	TrenInventory  []Point `json:"trenInventory,omitempty"`
}

const (
	colLokasiSpesifik = "LOKASI SPESIFIK PER-INVENTORY"
	colTglInventory   = "TANGGAL INVENTORY"
)

// BuildChartData derives the chart payload from a normalized dataset.
func BuildChartData(ds *dataset.Dataset) ChartData {
	var out ChartData
	if ds.Empty() {
		return out
	}

	out.Kondisi = valueCounts(ds, "KONDISI")
	out.HasilInventory = valueCounts(ds, "HASIL INVENTORY")

	if ds.HasColumn(dataset.ValueColumn) && ds.HasColumn(colLokasiSpesifik) {
		sums := map[string]int64{}
		var order []string
		for _, row := range ds.Rows {
			loc := dataset.CellString(row[colLokasiSpesifik])
			if _, seen := sums[loc]; !seen {
				order = append(order, loc)
			}
			sums[loc] += query.ParseValue(dataset.CellString(row[dataset.ValueColumn]))
		}
		sort.SliceStable(order, func(a, b int) bool { return sums[order[a]] > sums[order[b]] })
		if len(order) > 10 {
			order = order[:10]
		}
		for _, loc := range order {
			out.AssetValue = append(out.AssetValue, Point{X: loc, Y: sums[loc]})
		}
	}

	if ds.HasColumn(colTglInventory) {
		monthly := map[string]int64{}
		for _, row := range ds.Rows {
			ts, ok := query.ParseSheetDate(dataset.CellString(row[colTglInventory]))
			if !ok {
				continue
			}
			monthly[ts.Format("2006-01")]++
		}
		months := make([]string, 0, len(monthly))
		for m := range monthly {
			months = append(months, m)
		}
		sort.Strings(months)
		for _, m := range months {
			out.TrenInventory = append(out.TrenInventory, Point{X: m, Y: monthly[m]})
		}
	}

	return out
}

// valueCounts tallies a column's distinct values, most frequent first.
func valueCounts(ds *dataset.Dataset, col string) []Point {
	if !ds.HasColumn(col) {
		return nil
	}
	counts := map[string]int64{}
	var order []string
	for _, row := range ds.Rows {
		v := strings.TrimSpace(dataset.CellString(row[col]))
		if v == "" {
			continue
		}
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}
	sort.SliceStable(order, func(a, b int) bool { return counts[order[a]] > counts[order[b]] })
	out := make([]Point, 0, len(order))
	for _, v := range order {
		out = append(out, Point{X: v, Y: counts[v]})
	}
	return out
}
