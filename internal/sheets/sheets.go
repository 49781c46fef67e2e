// Package sheets provides the tabular data provider: spreadsheet-shaped
// asset data addressed by sheet name within a configured source workbook.
package sheets

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/rayhanfay/sistem-rangkuman-data/internal/dataset"
)

// Source identifiers understood by the server.
const (
	SourceMaster = "master"
	SourceSiklus = "siklus"
)

// Key columns whose joint presence marks the header row. Sheets often
// carry title/preamble rows above the real header.
var keyHeaderColumns = []string{"NO ASSET", "KONDISI"}

// DataSource fetches rectangular datasets by sheet name. A missing sheet
// or source yields an empty dataset, not an error; errors are reserved for
// unreachable or unreadable workbooks.
type DataSource interface {
	Fetch(ctx context.Context, sheetName, sourceID string) (*dataset.Dataset, error)
	ListSheets(ctx context.Context, sourceID string) ([]string, error)
}

// WorkbookSource reads from local Excel workbooks, one per source id.
type WorkbookSource struct {
	paths map[string]string
}

// NewWorkbookSource maps source ids to workbook paths.
func NewWorkbookSource(paths map[string]string) *WorkbookSource {
	return &WorkbookSource{paths: paths}
}

// ListSheets returns the sheet names of the source workbook, or nil when
// the source id is unknown.
func (w *WorkbookSource) ListSheets(ctx context.Context, sourceID string) ([]string, error) {
	path, ok := w.paths[sourceID]
	if !ok {
		return nil, nil
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// Fetch loads a sheet, locates the header row by the key columns, and
// returns the data below it with whitespace-collapsed, deduplicated
// column names. Rows with no content are dropped; rows wider than the
// header are truncated to it.
func (w *WorkbookSource) Fetch(ctx context.Context, sheetName, sourceID string) (*dataset.Dataset, error) {
	path, ok := w.paths[sourceID]
	if !ok {
		log.Ctx(ctx).Warn().Str("source", sourceID).Msg("unknown data source id")
		return &dataset.Dataset{}, nil
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		if isMissingSheet(err) {
			log.Ctx(ctx).Warn().Str("sheet", sheetName).Str("source", sourceID).Msg("sheet not found")
			return &dataset.Dataset{}, nil
		}
		return nil, err
	}

	header, headerIdx := findHeaderRow(rows)
	if headerIdx < 0 {
		log.Ctx(ctx).Warn().Str("sheet", sheetName).Msg("header row with key columns not found")
		return &dataset.Dataset{}, nil
	}

	columns := dataset.UniqueHeader(header)
	var cells [][]any
	for _, row := range rows[headerIdx+1:] {
		if rowEmpty(row) {
			continue
		}
		rec := make([]any, 0, len(columns))
		for i := range columns {
			if i < len(row) {
				rec = append(rec, row[i])
			} else {
				rec = append(rec, nil)
			}
		}
		cells = append(cells, rec)
	}

	ds := dataset.New(columns, cells)
	log.Ctx(ctx).Info().Str("sheet", sheetName).Str("source", sourceID).Int("rows", len(ds.Rows)).Msg("dataset fetched")
	return ds, nil
}

// findHeaderRow scans for the first row containing every key column after
// case and whitespace normalization. It returns the collapsed (but not
// case-folded) header cells and the row index, or -1 when absent.
func findHeaderRow(rows [][]string) ([]string, int) {
	for i, row := range rows {
		present := map[string]bool{}
		for _, cell := range row {
			present[dataset.CleanName(cell)] = true
		}
		found := true
		for _, key := range keyHeaderColumns {
			if !present[key] {
				found = false
				break
			}
		}
		if !found {
			continue
		}
		header := make([]string, len(row))
		for c, cell := range row {
			header[c] = strings.Join(strings.Fields(cell), " ")
		}
		return header, i
	}
	return nil, -1
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func isMissingSheet(err error) bool {
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "doesn't exist") || strings.Contains(low, "does not exist")
}
