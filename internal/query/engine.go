package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rayhanfay/sistem-rangkuman-data/internal/dataset"
)

// Column names the engine derives helpers from.
const (
	colArea         = "AREA"
	colNoAsset      = "NO ASSET"
	colNamaAset     = "NAMA ASET"
	colKondisi      = "KONDISI"
	colModelType    = "MODEL/TYPE"
	colSerialNumber = "SERIAL NUMBER"
	colManufacture  = "MANUFACTURE"
	colPICTeam      = "PIC TEAM FAV"
	colLokasiSAP    = "KODE LOKASI SAP"
	colHasilInv     = "HASIL INVENTORY"
	colTglInventory = "TANGGAL INVENTORY"
	colTglUpdate    = "TANGGAL UPDATE"
)

// kondisiKeywords are physical-condition phrasings. A hasil_inventory value
// containing one of these was meant as a kondisi filter.
var kondisiKeywords = []string{"tidak ditemukan", "rusak", "rusak berat", "rusak ringan", "penghapusan", "baik"}

type dateSeries struct {
	at []time.Time
	ok []bool
}

// table is the engine's working state: the normalized dataset, the indices
// of surviving rows, and the derived numeric/date helper columns.
type table struct {
	ds      *dataset.Dataset
	keep    []int
	numeric []int64
	dates   map[string]dateSeries
	dateCol string
}

// Execute runs the full pipeline: normalization, alias resolution, derived
// columns, filtering, task execution, sort/limit, scalar calculation, and
// cleanup. It is deterministic for a given dataset snapshot.
func Execute(ds *dataset.Dataset, req Request) (Result, error) {
	if ds.Empty() {
		source := strings.ToUpper(req.SourceUsed)
		return statusResult(dataset.Row{
			"status":          StatusSourceNotFound,
			"requested_sheet": req.RequestedSheet,
			"source_used":     source,
			"message":         fmt.Sprintf("Sheet '%s' tidak ditemukan atau kosong di sumber %s.", req.RequestedSheet, source),
		}), nil
	}

	norm := ds.Normalized()

	groupBy, countBy, sortBy := req.GroupByField, req.CountField, req.SortBy
	if groupBy != "" {
		groupBy = ResolveField(groupBy)
	}
	if countBy != "" {
		countBy = ResolveField(countBy)
	}
	if sortBy != "" {
		sortBy = ResolveField(sortBy)
	}

	t := newTable(norm)

	kondisi, hasilInv := remapConditionFilters(req.Kondisi, req.HasilInv)

	t.applyFilters(req, kondisi, hasilInv)

	switch req.Task {
	case TaskDistribution:
		if t.ds.HasColumn(groupBy) {
			return t.distribution(groupBy), nil
		}
	case TaskTopValues:
		if t.ds.HasColumn(groupBy) {
			return t.topValues(groupBy, req.Limit), nil
		}
	case TaskTopPerGroup:
		if groupBy == "" || countBy == "" {
			return Result{}, ErrFieldsRequired
		}
		if !t.ds.HasColumn(groupBy) || !t.ds.HasColumn(countBy) {
			return statusResult(dataset.Row{
				"status": fmt.Sprintf("Kolom %s atau %s tidak ditemukan.", groupBy, countBy),
			}), nil
		}
		return t.topPerGroup(groupBy, countBy), nil
	case TaskBreakdown:
		if groupBy == "" || countBy == "" {
			return Result{}, ErrFieldsRequired
		}
		if !t.ds.HasColumn(groupBy) || !t.ds.HasColumn(countBy) {
			return statusResult(dataset.Row{
				"status": fmt.Sprintf("Kolom %s atau %s tidak ditemukan.", groupBy, countBy),
			}), nil
		}
		return t.breakdown(groupBy, countBy), nil
	}

	// Generic sort; a date filter implies ascending date order when no
	// explicit sort field was supplied.
	if sortBy != "" {
		t.sortBy(sortBy, req.SortDirection != SortDescending)
	} else if (req.StartDate != "" || req.EndDate != "") && t.dateCol != "" {
		t.sortBy(t.dateCol, true)
	}

	if req.Limit > 0 && len(t.keep) > req.Limit {
		t.keep = t.keep[:req.Limit]
	}

	if req.Calculation != "" {
		return t.calculate(req, kondisi), nil
	}

	if len(t.keep) == 0 {
		return statusResult(dataset.Row{"status": StatusNoMatch}), nil
	}
	return rowsResult(t.outputRows()), nil
}

func newTable(ds *dataset.Dataset) *table {
	t := &table{ds: ds, keep: make([]int, len(ds.Rows)), dates: map[string]dateSeries{}}
	for i := range ds.Rows {
		t.keep[i] = i
	}

	if ds.HasColumn(dataset.ValueColumn) {
		t.numeric = make([]int64, len(ds.Rows))
		for i, row := range ds.Rows {
			t.numeric[i] = ParseValue(dataset.CellString(row[dataset.ValueColumn]))
		}
	}

	for _, col := range []string{colTglInventory, colTglUpdate} {
		if !ds.HasColumn(col) {
			continue
		}
		s := dateSeries{at: make([]time.Time, len(ds.Rows)), ok: make([]bool, len(ds.Rows))}
		for i, row := range ds.Rows {
			s.at[i], s.ok[i] = ParseSheetDate(dataset.CellString(row[col]))
		}
		t.dates[col] = s
		if t.dateCol == "" {
			t.dateCol = col
		}
	}
	return t
}

// remapConditionFilters tolerates callers that conflate physical condition
// with inventory results: a kondisi of "match"/"not match" is really an
// inventory-result filter, and a hasil_inventory carrying a condition
// keyword is really a kondisi filter.
func remapConditionFilters(kondisi, hasilInv string) (string, string) {
	if hasilInv != "" && kondisi == "" {
		low := strings.ToLower(strings.TrimSpace(hasilInv))
		for _, key := range kondisiKeywords {
			if strings.Contains(low, key) {
				return hasilInv, ""
			}
		}
	}
	if kondisi != "" && hasilInv == "" {
		low := strings.ToLower(strings.TrimSpace(kondisi))
		if low == "match" || low == "not match" {
			return "", kondisi
		}
	}
	return kondisi, hasilInv
}

// applyFilters narrows the kept rows in a fixed order so later, more exact
// filters operate on the smaller set.
func (t *table) applyFilters(req Request, kondisi, hasilInv string) {
	t.filterContains(colArea, req.Area)
	t.filterContains(colHasilInv, hasilInv)
	t.filterContains(colNamaAset, req.NamaAset)
	t.filterContains(colModelType, req.ModelType)
	t.filterContains(colSerialNumber, req.SerialNumber)
	t.filterContains(colManufacture, req.Manufaktur)
	t.filterContains(colPICTeam, req.PICTeam)

	if req.KodeLokasiSAP != "" && t.ds.HasColumn(colLokasiSAP) {
		want := commaSet(req.KodeLokasiSAP)
		t.filter(func(row dataset.Row) bool {
			_, ok := want[cleanLower(dataset.CellString(row[colLokasiSAP]))]
			return ok
		})
	}

	if req.NoAsset != "" && t.ds.HasColumn(colNoAsset) {
		target := CleanAssetNumber(req.NoAsset)
		t.filter(func(row dataset.Row) bool {
			return CleanAssetNumber(dataset.CellString(row[colNoAsset])) == target
		})
	}

	if kondisi != "" && t.ds.HasColumn(colKondisi) {
		if cleanLower(kondisi) == "rusak" {
			t.filter(func(row dataset.Row) bool {
				return strings.Contains(strings.ToLower(dataset.CellString(row[colKondisi])), "rusak")
			})
		} else {
			want := commaSet(kondisi)
			t.filter(func(row dataset.Row) bool {
				_, ok := want[cleanLower(dataset.CellString(row[colKondisi]))]
				return ok
			})
		}
	}

	if req.KondisiNot != "" && t.ds.HasColumn(colKondisi) {
		exclude := commaSet(req.KondisiNot)
		t.filter(func(row dataset.Row) bool {
			_, ok := exclude[cleanLower(dataset.CellString(row[colKondisi]))]
			return !ok
		})
	}

	if t.numeric != nil {
		if req.NilaiAsetMin != nil {
			min := *req.NilaiAsetMin
			t.filterIdx(func(i int) bool { return t.numeric[i] >= min })
		}
		if req.NilaiAsetMax != nil {
			max := *req.NilaiAsetMax
			t.filterIdx(func(i int) bool { return t.numeric[i] <= max })
		}
	}

	if t.dateCol != "" {
		s := t.dates[t.dateCol]
		if from, ok := parseISODate(req.StartDate); ok {
			t.filterIdx(func(i int) bool { return s.ok[i] && !s.at[i].Before(from) })
		}
		if until, ok := parseISODate(req.EndDate); ok {
			// Inclusive upper bound: anything before the end of that day.
			limit := until.Add(24*time.Hour - time.Nanosecond)
			t.filterIdx(func(i int) bool { return s.ok[i] && !s.at[i].After(limit) })
		}
	}
}

func (t *table) filter(pred func(dataset.Row) bool) {
	t.filterIdx(func(i int) bool { return pred(t.ds.Rows[i]) })
}

func (t *table) filterIdx(pred func(int) bool) {
	out := t.keep[:0]
	for _, i := range t.keep {
		if pred(i) {
			out = append(out, i)
		}
	}
	t.keep = out
}

func (t *table) filterContains(col, needle string) {
	if needle == "" || !t.ds.HasColumn(col) {
		return
	}
	want := cleanLower(needle)
	t.filter(func(row dataset.Row) bool {
		return strings.Contains(cleanLower(dataset.CellString(row[col])), want)
	})
}

// groupCounts tallies distinct values of a column over kept rows, tracking
// first-encountered order for deterministic tie-breaks.
func (t *table) groupCounts(col string) ([]string, map[string]int) {
	counts := map[string]int{}
	var order []string
	for _, i := range t.keep {
		v := dataset.CellString(t.ds.Rows[i][col])
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}
	return order, counts
}

func sortByCountDesc(order []string, counts map[string]int) []string {
	sorted := make([]string, len(order))
	copy(sorted, order)
	sort.SliceStable(sorted, func(a, b int) bool {
		return counts[sorted[a]] > counts[sorted[b]]
	})
	return sorted
}

func (t *table) distribution(groupBy string) Result {
	order, counts := t.groupCounts(groupBy)
	total := len(t.keep)
	rows := make([]dataset.Row, 0, len(order))
	for _, v := range sortByCountDesc(order, counts) {
		pct := float64(counts[v]) / float64(total) * 100
		rows = append(rows, dataset.Row{
			"grup":       v,
			"jumlah":     counts[v],
			"persentase": fmt.Sprintf("%.2f%%", pct),
		})
	}
	return rowsResult(rows)
}

func (t *table) topValues(groupBy string, limit int) Result {
	if limit <= 0 {
		limit = 5
	}
	order, counts := t.groupCounts(groupBy)
	rows := make([]dataset.Row, 0, limit)
	for _, v := range sortByCountDesc(order, counts) {
		if len(rows) == limit {
			break
		}
		rows = append(rows, dataset.Row{"grup": v, "jumlah": counts[v]})
	}
	return rowsResult(rows)
}

func (t *table) topPerGroup(groupBy, countBy string) Result {
	type tally struct {
		counts map[string]int
		order  []string
	}
	groups := map[string]*tally{}
	var groupOrder []string
	for _, i := range t.keep {
		g := dataset.CellString(t.ds.Rows[i][groupBy])
		v := dataset.CellString(t.ds.Rows[i][countBy])
		tl, ok := groups[g]
		if !ok {
			tl = &tally{counts: map[string]int{}}
			groups[g] = tl
			groupOrder = append(groupOrder, g)
		}
		if _, seen := tl.counts[v]; !seen {
			tl.order = append(tl.order, v)
		}
		tl.counts[v]++
	}
	sort.Strings(groupOrder)

	rows := make([]dataset.Row, 0, len(groupOrder))
	for _, g := range groupOrder {
		tl := groups[g]
		// Most frequent value; ties broken by first-encountered order.
		best, bestN := "", -1
		for _, v := range tl.order {
			if tl.counts[v] > bestN {
				best, bestN = v, tl.counts[v]
			}
		}
		rows = append(rows, dataset.Row{groupBy: g, countBy: best, "count": bestN})
	}
	return rowsResult(rows)
}

func (t *table) breakdown(groupBy, countBy string) Result {
	values := map[string]struct{}{}
	out := map[string]map[string]int{}
	for _, i := range t.keep {
		g := dataset.CellString(t.ds.Rows[i][groupBy])
		v := dataset.CellString(t.ds.Rows[i][countBy])
		values[v] = struct{}{}
		cell, ok := out[g]
		if !ok {
			cell = map[string]int{}
			out[g] = cell
		}
		cell[v]++
	}
	// Zero-fill absent combinations so every group carries every value.
	for _, cell := range out {
		for v := range values {
			if _, ok := cell[v]; !ok {
				cell[v] = 0
			}
		}
	}
	return Result{Kind: KindBreakdown, Breakdown: out}
}

func (t *table) sortBy(field string, ascending bool) {
	switch {
	case field == dataset.ValueColumn && t.numeric != nil:
		sort.SliceStable(t.keep, func(a, b int) bool {
			if ascending {
				return t.numeric[t.keep[a]] < t.numeric[t.keep[b]]
			}
			return t.numeric[t.keep[a]] > t.numeric[t.keep[b]]
		})
	case t.hasDates(field):
		s := t.dates[field]
		t.filterIdx(func(i int) bool { return s.ok[i] })
		sort.SliceStable(t.keep, func(a, b int) bool {
			if ascending {
				return s.at[t.keep[a]].Before(s.at[t.keep[b]])
			}
			return s.at[t.keep[a]].After(s.at[t.keep[b]])
		})
	case t.ds.HasColumn(field):
		t.filter(func(row dataset.Row) bool { return row[field] != nil })
		sort.SliceStable(t.keep, func(a, b int) bool {
			va := dataset.CellString(t.ds.Rows[t.keep[a]][field])
			vb := dataset.CellString(t.ds.Rows[t.keep[b]][field])
			if ascending {
				return va < vb
			}
			return va > vb
		})
	}
}

func (t *table) hasDates(col string) bool {
	_, ok := t.dates[col]
	return ok
}

func (t *table) calculate(req Request, kondisi string) Result {
	var parts []string
	if req.Area != "" {
		parts = append(parts, "Area: "+req.Area)
	}
	if req.KodeLokasiSAP != "" {
		parts = append(parts, "Lokasi: "+req.KodeLokasiSAP)
	}
	if kondisi != "" {
		parts = append(parts, "Kondisi: "+kondisi)
	}
	label := strings.Join(parts, " | ")

	switch req.Calculation {
	case CalcSumValue:
		if t.numeric != nil {
			var sum int64
			for _, i := range t.keep {
				sum += t.numeric[i]
			}
			return Result{Kind: KindCalculation, Calculation: &Calculation{
				Label:      label,
				TotalValue: FormatCurrency(sum),
			}}
		}
		fallthrough
	default:
		n := len(t.keep)
		return Result{Kind: KindCalculation, Calculation: &Calculation{
			Label:   label,
			Count:   &n,
			Details: "Data dihitung berdasarkan filter yang diminta.",
		}}
	}
}

// outputRows copies surviving rows, normalizing null-like cells to nil.
// Derived helper columns live outside the rows, so nothing internal leaks.
func (t *table) outputRows() []dataset.Row {
	rows := make([]dataset.Row, 0, len(t.keep))
	for _, i := range t.keep {
		src := t.ds.Rows[i]
		row := make(dataset.Row, len(src))
		for _, col := range t.ds.Columns {
			v := src[col]
			if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
				v = nil
			}
			row[col] = v
		}
		rows = append(rows, row)
	}
	return rows
}

// --- parsing helpers ---

// ParseValue strips every non-digit rune and parses the remainder,
// turning "2.980.700" into 2980700. Unparsable values become 0, the
// identity element for sums.
func ParseValue(s string) int64 {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// FormatCurrency renders an amount as "Rp 2,980,700".
func FormatCurrency(n int64) string {
	digits := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")
	var parts []string
	for len(digits) > 3 {
		parts = append([]string{digits[len(digits)-3:]}, parts...)
		digits = digits[:len(digits)-3]
	}
	parts = append([]string{digits}, parts...)
	out := "Rp " + strings.Join(parts, ",")
	if neg {
		out = "Rp -" + strings.Join(parts, ",")
	}
	return out
}

// dayFirstLayouts covers the date shapes seen in inventory sheets, with the
// day-first convention so "03-04-2022" reads as 3 April.
var dayFirstLayouts = []string{
	"02-01-2006",
	"2-1-2006",
	"02/01/2006",
	"2/1/2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"02 January 2006",
	"2 January 2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func ParseSheetDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dayFirstLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func parseISODate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func cleanLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func commaSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, part := range strings.Split(s, ",") {
		out[cleanLower(part)] = struct{}{}
	}
	return out
}

// CleanAssetNumber strips a trailing ".0" left by numeric spreadsheet
// cells before exact comparison.
func CleanAssetNumber(s string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ".0"))
}
