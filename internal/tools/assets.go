package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rayhanfay/sistem-rangkuman-data/config"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/dataset"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/query"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/sheets"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/storage"
	"github.com/rayhanfay/sistem-rangkuman-data/pkg/mcperr"
)

// resolveSource maps the optional source/sheet arguments to a concrete
// source id and sheet name.
func resolveSource(source, sheetName string) (string, string) {
	sourceID := sheets.SourceMaster
	defaultSheet := config.DefaultMasterSheet
	if source == sheets.SourceSiklus {
		sourceID = sheets.SourceSiklus
		defaultSheet = config.DefaultCycleSheet
	}
	if sheetName == "" {
		sheetName = defaultSheet
	}
	return sourceID, sheetName
}

type queryAssetsArgs struct {
	query.Request
	Source    string `json:"source,omitempty"`
	SheetName string `json:"sheet_name,omitempty"`
}

// normalizeQueryArgs auto-fills the grouping and counting fields for a
// breakdown task from the filters the caller did supply.
func normalizeQueryArgs(in *queryAssetsArgs) {
	if in.Task != query.TaskBreakdown {
		return
	}
	if in.GroupByField == "" {
		if in.KodeLokasiSAP != "" {
			in.GroupByField = "KODE LOKASI SAP"
		} else if in.Area != "" {
			in.GroupByField = "AREA"
		}
	}
	if in.CountField == "" {
		in.CountField = "NO ASSET"
	}
}

func (s *Service) queryAssets(ctx context.Context, args json.RawMessage) (any, error) {
	var in queryAssetsArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	normalizeQueryArgs(&in)

	sourceID, sheet := resolveSource(in.Source, in.SheetName)
	ds, err := s.Source.Fetch(ctx, sheet, sourceID)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Execution, err, "Gagal mengambil data dari sumber data.")
	}

	req := in.Request
	req.RequestedSheet = sheet
	req.SourceUsed = sourceID
	result, err := query.Execute(ds, req)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Validation, err, "%v", err)
	}
	return result, nil
}

type queryResourceArgs struct {
	ResourceName string `json:"resource_name" validate:"required"`
	NoAsset      string `json:"no_asset,omitempty"`
	NamaAset     string `json:"nama_aset,omitempty"`
	Kondisi      string `json:"kondisi,omitempty"`
	Area         string `json:"area,omitempty"`
}

// queryResource filters the rows of a stored JSON artifact. Missing
// resources and empty matches come back as status records, mirroring the
// main engine's two distinct empty outcomes.
func (s *Service) queryResource(ctx context.Context, args json.RawMessage) (any, error) {
	var in queryResourceArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}

	file, err := s.Files.FindByFilename(in.ResourceName)
	if errors.Is(err, storage.ErrNotFound) {
		return []dataset.Row{{"status": "Resource dengan nama '" + in.ResourceName + "' tidak ditemukan."}}, nil
	}
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err, "Gagal mengakses penyimpanan resource.")
	}
	if file.JSONContent == "" {
		return []dataset.Row{{"status": "Resource dengan nama '" + in.ResourceName + "' tidak ditemukan."}}, nil
	}

	var rows []dataset.Row
	if err := json.Unmarshal([]byte(file.JSONContent), &rows); err != nil {
		return []dataset.Row{{"status": "Gagal memproses konten dari resource '" + in.ResourceName + "'."}}, nil
	}
	if len(rows) == 0 {
		return []dataset.Row{}, nil
	}

	// Stored artifacts may predate column normalization.
	for i, row := range rows {
		clean := make(dataset.Row, len(row))
		for k, v := range row {
			clean[dataset.CleanName(k)] = v
		}
		rows[i] = clean
	}

	rows = filterRows(rows, "AREA", in.Area)
	rows = filterRows(rows, "KONDISI", in.Kondisi)
	rows = filterRows(rows, "NAMA ASET", in.NamaAset)
	if in.NoAsset != "" {
		target := query.CleanAssetNumber(in.NoAsset)
		var kept []dataset.Row
		for _, row := range rows {
			if query.CleanAssetNumber(dataset.CellString(row["NO ASSET"])) == target {
				kept = append(kept, row)
			}
		}
		rows = kept
	}

	if len(rows) == 0 {
		return []dataset.Row{{"status": "Tidak ada data yang cocok dengan kriteria di dalam resource ini."}}, nil
	}
	return rows, nil
}

// filterRows keeps rows whose column contains needle, case-insensitive.
func filterRows(rows []dataset.Row, column, needle string) []dataset.Row {
	if needle == "" {
		return rows
	}
	needle = strings.ToLower(needle)
	var kept []dataset.Row
	for _, row := range rows {
		if strings.Contains(strings.ToLower(dataset.CellString(row[column])), needle) {
			kept = append(kept, row)
		}
	}
	return kept
}

type masterDataArgs struct {
	SheetName string `json:"sheet_name,omitempty"`
	Source    string `json:"source,omitempty"`
}

func (s *Service) getMasterData(ctx context.Context, args json.RawMessage) (any, error) {
	var in masterDataArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	sourceID, sheet := resolveSource(in.Source, in.SheetName)
	ds, err := s.Source.Fetch(ctx, sheet, sourceID)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Execution, err, "Gagal mengambil data dari sumber data.")
	}
	if ds.Empty() {
		return []dataset.Row{}, nil
	}
	return ds.Rows, nil
}

func (s *Service) getSheetNames(ctx context.Context) (any, error) {
	names, err := s.Source.ListSheets(ctx, sheets.SourceMaster)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Execution, err, "Gagal mengambil daftar sheet dari sumber data.")
	}
	return names, nil
}
