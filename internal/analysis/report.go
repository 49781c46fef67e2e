// Package analysis runs the full asset analysis pass: report assembly,
// chart payloads, the latest-result cache, and the background supervisor
// that executes passes off the dispatch path.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rayhanfay/sistem-rangkuman-data/config"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/dataset"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/llm"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/query"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/sheets"
)

// Progress statuses reported over the analysis/progress notification.
const (
	StatusStarting  = "starting"
	StatusProgress  = "progress"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Reporter receives phase transitions as the pass runs.
type Reporter func(status, message string)

// cycleColumns are the columns shown in the problem-asset table, in order.
var cycleColumns = []string{"NO", "NO ASSET", "NAMA ASET", "KONDISI", "KETERANGAN", "LOKASI SPESIFIK PER-INVENTORY", "TANGGAL UPDATE", "AREA"}

// Runner executes one analysis pass against the data source and the
// completion service, storing the outcome in the cache.
type Runner struct {
	Source    sheets.DataSource
	Completer llm.Completer
	Cache     *Cache
	Clock     func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

// Run performs the pass, reporting each phase. On failure the cache is
// replaced whole with an unavailable marker carrying the message, so
// readers never observe a half-written result.
func (r *Runner) Run(ctx context.Context, opts Options, report Reporter) error {
	err := r.run(ctx, opts, report)
	if err != nil {
		msg := fmt.Sprintf("Terjadi kesalahan fatal saat analisis: %v", err)
		log.Ctx(ctx).Error().Err(err).Msg("analysis pass failed")
		report(StatusError, msg)
		r.Cache.Set(&Result{DataAvailable: false, Message: msg, AnalysisTime: r.now()})
	}
	return err
}

func (r *Runner) run(ctx context.Context, opts Options, report Reporter) error {
	available, err := r.Source.ListSheets(ctx, sheets.SourceMaster)
	if err != nil {
		return fmt.Errorf("list sheets: %w", err)
	}
	sheet := config.DefaultMasterSheet
	if opts.SheetName != "" {
		found := false
		for _, name := range available {
			if name == opts.SheetName {
				found = true
				break
			}
		}
		if found {
			sheet = opts.SheetName
		} else {
			log.Ctx(ctx).Warn().Str("sheet", opts.SheetName).Msg("requested sheet not found, using default")
		}
	}

	report(StatusStarting, fmt.Sprintf("Analisis untuk sheet '%s' telah dimulai...", sheet))

	raw, err := r.Source.Fetch(ctx, sheet, sheets.SourceMaster)
	if err != nil {
		return fmt.Errorf("fetch data: %w", err)
	}
	if raw.Empty() {
		return fmt.Errorf("tidak ada data di sheet '%s'", sheet)
	}
	ds := raw.Normalized()

	report(StatusProgress, "Memproses data dan menjalankan analisis...")

	var parts []string
	if opts.DataOverview {
		parts = append(parts, dataOverview(ds, sheet))
	}

	cycle := cycleAssetsTable(ds)

	if opts.Summarize {
		report(StatusProgress, "Menghubungi AI untuk membuat Ringkasan Eksekutif...")
		summary, err := r.Completer.Complete(ctx, summaryPrompt(renderDocument(ds)))
		if err != nil {
			return fmt.Errorf("generate summary: %w", err)
		}
		parts = append(parts, summary)
	}

	if ds.HasColumn("AREA") {
		if opts.Insight {
			if text := conditionInsight(ds); text != "" {
				parts = append(parts, text)
			}
		}
		if opts.FinancialAnalysis {
			if text := financialSummary(ds); text != "" {
				parts = append(parts, text)
			}
		}
	} else if opts.Insight || opts.FinancialAnalysis {
		report(StatusProgress, "Peringatan: Kolom 'AREA' tidak ditemukan, beberapa analisis dilewati.")
	}

	if opts.CheckDuplicates {
		parts = append(parts, duplicateReport(ds))
	}

	opts.SheetName = sheet
	r.Cache.Set(&Result{
		DataAvailable: true,
		Dataset:       ds,
		Summary:       joinSections(parts),
		ChartData:     BuildChartData(ds),
		CycleAssets:   cycle,
		Options:       opts,
		AnalysisTime:  r.now(),
	})
	report(StatusCompleted, "Analisis berhasil diselesaikan.")
	return nil
}

func joinSections(parts []string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	return strings.Join(kept, "\n\n")
}

func summaryPrompt(document string) string {
	return "Anda adalah analis data ahli. Berdasarkan data berikut, buat laporan ringkas yang terdiri dari dua bagian: " +
		"RINGKASAN EKSEKUTIF dan REKOMENDASI TINDAK LANJUT.\n\n" +
		"PENTING: Jangan gunakan format Markdown. Tulis semua output sebagai teks biasa tanpa karakter seperti '**', '*', atau '#'.\n\n" +
		"Data:\n" + document
}

// renderDocument flattens the dataset into tab-separated text for the
// completion service.
func renderDocument(ds *dataset.Dataset) string {
	var b strings.Builder
	b.WriteString(strings.Join(ds.Columns, "\t"))
	for _, row := range ds.Rows {
		b.WriteByte('\n')
		for i, col := range ds.Columns {
			if i > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(dataset.CellString(row[col]))
		}
	}
	return b.String()
}

// dataOverview summarizes row count, distinct areas, and the update-date
// range of the dataset.
func dataOverview(ds *dataset.Dataset, sheet string) string {
	areas := map[string]struct{}{}
	if ds.HasColumn("AREA") {
		for _, row := range ds.Rows {
			if v := strings.TrimSpace(dataset.CellString(row["AREA"])); v != "" {
				areas[v] = struct{}{}
			}
		}
	}

	dateRange := "Informasi tanggal tidak tersedia"
	if ds.HasColumn("TANGGAL UPDATE") {
		var min, max time.Time
		for _, row := range ds.Rows {
			ts, ok := query.ParseSheetDate(dataset.CellString(row["TANGGAL UPDATE"]))
			if !ok {
				continue
			}
			if min.IsZero() || ts.Before(min) {
				min = ts
			}
			if max.IsZero() || ts.After(max) {
				max = ts
			}
		}
		if !min.IsZero() {
			dateRange = fmt.Sprintf("%s hingga %s", min.Format("02 January 2006"), max.Format("02 January 2006"))
		}
	}

	return strings.Join([]string{
		"DATA OVERVIEW",
		fmt.Sprintf("\n- Sumber Data: Sheet '%s'", sheet),
		fmt.Sprintf("- Jumlah Total Aset: %d unit", len(ds.Rows)),
		fmt.Sprintf("- Jumlah Area Unik: %d", len(areas)),
		fmt.Sprintf("- Rentang Waktu Data (berdasarkan Tgl. Update): %s", dateRange),
	}, "\n")
}

// cycleAssetsTable selects rows recommended for follow-up: a problem
// condition or a non-empty remark, excluding healthy/in-use states.
func cycleAssetsTable(ds *dataset.Dataset) []dataset.Row {
	if !ds.HasColumn("KONDISI") || !ds.HasColumn("KETERANGAN") {
		return nil
	}
	var cols []string
	for _, c := range cycleColumns {
		if ds.HasColumn(c) {
			cols = append(cols, c)
		}
	}

	problem := []string{"rusak", "penghapusan", "ditemukan"}
	excluded := map[string]bool{"digunakan": true, "cadangan": true, "baik": true}

	var out []dataset.Row
	for _, row := range ds.Rows {
		kondisi := dataset.CellString(row["KONDISI"])
		keterangan := strings.TrimSpace(dataset.CellString(row["KETERANGAN"]))
		low := strings.ToLower(kondisi)

		hasProblem := false
		for _, kw := range problem {
			if strings.Contains(low, kw) {
				hasProblem = true
				break
			}
		}
		hasRemark := keterangan != "" && keterangan != "-"
		if (!hasProblem && !hasRemark) || excluded[strings.ToLower(strings.TrimSpace(kondisi))] {
			continue
		}

		rec := make(dataset.Row, len(cols))
		for _, c := range cols {
			rec[c] = row[c]
		}
		out = append(out, rec)
	}
	return out
}

// conditionStates are the condition phrasings tallied per area, in report
// order.
var conditionStates = []struct {
	label   string
	keyword string
}{
	{"Kondisi Baik", "baik"},
	{"Digunakan", "digunakan"},
	{"Cadangan", "cadangan"},
	{"Rusak Ringan", "rusak ringan"},
	{"Rusak Berat", "rusak berat"},
	{"Tidak Ditemukan", "tidak ditemukan"},
	{"Penghapusan", "penghapusan"},
}

// conditionInsight tallies condition states per area.
func conditionInsight(ds *dataset.Dataset) string {
	if !ds.HasColumn("AREA") || !ds.HasColumn("KONDISI") {
		return ""
	}
	type tally struct {
		total  int
		states map[string]int
	}
	byArea := map[string]*tally{}
	var areas []string
	for _, row := range ds.Rows {
		area := dataset.CellString(row["AREA"])
		t, ok := byArea[area]
		if !ok {
			t = &tally{states: map[string]int{}}
			byArea[area] = t
			areas = append(areas, area)
		}
		t.total++
		low := strings.ToLower(dataset.CellString(row["KONDISI"]))
		for _, st := range conditionStates {
			if strings.Contains(low, st.keyword) {
				t.states[st.keyword]++
			}
		}
	}
	sort.Strings(areas)

	parts := []string{"INSIGHT UTAMA"}
	for _, area := range areas {
		t := byArea[area]
		lines := []string{fmt.Sprintf("\nArea %s:", area), fmt.Sprintf("- Total Aset: %d", t.total)}
		for _, st := range conditionStates {
			lines = append(lines, fmt.Sprintf("- %s: %d", st.label, t.states[st.keyword]))
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	return strings.Join(parts, "\n")
}

// financialSummary reports total value and the most/least expensive asset
// per area. Zero-valued assets are excluded from the cheapest pick.
func financialSummary(ds *dataset.Dataset) string {
	if !ds.HasColumn("AREA") || !ds.HasColumn(dataset.ValueColumn) || !ds.HasColumn("NAMA ASET") {
		return ""
	}
	type extreme struct {
		name  string
		value int64
	}
	type tally struct {
		total    int64
		max, min extreme
		hasMin   bool
	}
	byArea := map[string]*tally{}
	var areas []string
	for _, row := range ds.Rows {
		area := strings.TrimSpace(dataset.CellString(row["AREA"]))
		if area == "" {
			continue
		}
		t, ok := byArea[area]
		if !ok {
			t = &tally{}
			byArea[area] = t
			areas = append(areas, area)
		}
		v := query.ParseValue(dataset.CellString(row[dataset.ValueColumn]))
		name := dataset.CellString(row["NAMA ASET"])
		t.total += v
		if v >= t.max.value {
			t.max = extreme{name: name, value: v}
		}
		if v > 0 && (!t.hasMin || v < t.min.value) {
			t.min = extreme{name: name, value: v}
			t.hasMin = true
		}
	}
	sort.Strings(areas)

	parts := []string{"ANALISA KEUANGAN ASET"}
	for _, area := range areas {
		t := byArea[area]
		cheapest := "N/A (Rp 0)"
		if t.hasMin {
			cheapest = fmt.Sprintf("%s (%s)", t.min.name, query.FormatCurrency(t.min.value))
		}
		parts = append(parts, fmt.Sprintf(
			"\nArea %s:\n- Total Nilai Aset: %s\n- Aset Termahal: %s (%s)\n- Aset Termurah: %s",
			area, query.FormatCurrency(t.total), t.max.name, query.FormatCurrency(t.max.value), cheapest,
		))
	}
	return strings.Join(parts, "\n")
}

// duplicateReport flags asset numbers and serial numbers that repeat.
func duplicateReport(ds *dataset.Dataset) string {
	parts := []string{"CEK DUPLIKASI"}
	for _, col := range []string{"NO ASSET", "SERIAL NUMBER"} {
		if !ds.HasColumn(col) {
			continue
		}
		counts := map[string]int{}
		var order []string
		for _, row := range ds.Rows {
			v := strings.TrimSpace(dataset.CellString(row[col]))
			if v == "" || v == "-" {
				continue
			}
			if _, seen := counts[v]; !seen {
				order = append(order, v)
			}
			counts[v]++
		}
		var dups []string
		for _, v := range order {
			if counts[v] > 1 {
				dups = append(dups, fmt.Sprintf("%s (%dx)", v, counts[v]))
			}
		}
		if len(dups) == 0 {
			parts = append(parts, fmt.Sprintf("- %s: tidak ada duplikasi.", col))
		} else {
			parts = append(parts, fmt.Sprintf("- %s duplikat: %s", col, strings.Join(dups, ", ")))
		}
	}
	return strings.Join(parts, "\n")
}
