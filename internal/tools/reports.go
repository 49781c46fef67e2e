package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rayhanfay/sistem-rangkuman-data/config"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/analysis"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/dataset"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/storage"
	"github.com/rayhanfay/sistem-rangkuman-data/pkg/mcperr"
)

// sectionLabels names the report sections for saved-analysis filenames,
// in the order they appear in the report.
var sectionLabels = []struct {
	key   string
	label string
}{
	{"data_overview", "Data Overview"},
	{"summarize", "Ringkasan Eksekutif"},
	{"insight", "Insight Kondisi Aset"},
	{"check_duplicates", "Cek Duplikasi"},
	{"financial_analysis", "Rangkuman Nilai Aset"},
}

type saveAnalysisArgs struct {
	AuthToken string `json:"auth_token" validate:"required"`
}

type saveAnalysisResult struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Filename  string `json:"filename"`
}

// saveAnalysis persists the temporary analysis: one history row plus one
// JSON dataset artifact. A failed artifact write rolls the history row
// back so the two stores never disagree.
func (s *Service) saveAnalysis(ctx context.Context, args json.RawMessage) (any, error) {
	var in saveAnalysisArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}

	identity, err := s.Auth.Verify(in.AuthToken)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Validation, err, "Token otentikasi tidak valid atau kedaluwarsa.")
	}

	latest, ok := s.Cache.Get()
	if !ok || !latest.DataAvailable {
		return nil, mcperr.New(mcperr.Execution, "Tidak ada hasil analisis valid di pratinjau untuk disimpan.")
	}

	sheetName := latest.Options.SheetName
	if sheetName == "" {
		sheetName = config.DefaultMasterSheet
	}
	timestamp := latest.AnalysisTime.Format("20060102_150405")

	name := "Laporan Manual: " + sheetName + " - oleh " + titleCase(identity.Role)
	if labels := usedSections(latest.Options); len(labels) > 0 {
		name += " | " + strings.Join(labels, ", ")
	}

	cycleJSON, err := json.Marshal(latest.CycleAssets)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Internal, err, "Gagal menyiapkan data untuk disimpan.")
	}

	saved, err := s.History.Save(storage.History{
		Filename:    name,
		Summary:     latest.Summary,
		Timestamp:   timestamp,
		UploadDate:  latest.AnalysisTime,
		CycleAssets: string(cycleJSON),
		UserEmail:   identity.Email,
		SheetName:   sheetName,
	})
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err, "Gagal menyimpan riwayat analisis.")
	}

	artifactName := "data_" + strings.ReplaceAll(sheetName, " ", "_") + "_" + timestamp + ".json"
	content, err := json.Marshal(latest.Dataset.Rows)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Internal, err, "Gagal menyiapkan data untuk disimpan.")
	}
	if _, err := s.Files.Save(storage.File{
		Filename:    artifactName,
		FileType:    "json",
		JSONContent: string(content),
		UploadDate:  latest.AnalysisTime,
	}); err != nil {
		// Compensating rollback so a history row never points at a
		// missing artifact.
		if rbErr := s.History.DeleteByID(saved.ID); rbErr != nil {
			log.Ctx(ctx).Error().Err(rbErr).Int64("history_id", saved.ID).Msg("rollback of history row failed")
		}
		return nil, mcperr.Wrap(mcperr.Storage, err, "Gagal menyimpan data analisis.")
	}

	s.Cache.Clear()
	log.Ctx(ctx).Info().Str("artifact", artifactName).Str("user", identity.Email).Msg("analysis saved to history")

	return saveAnalysisResult{
		Message:   "Analisis berhasil disimpan ke riwayat.",
		Timestamp: timestamp,
		Filename:  artifactName,
	}, nil
}

func usedSections(opts analysis.Options) []string {
	enabled := map[string]bool{
		"data_overview":      opts.DataOverview,
		"summarize":          opts.Summarize,
		"insight":            opts.Insight,
		"check_duplicates":   opts.CheckDuplicates,
		"financial_analysis": opts.FinancialAnalysis,
	}
	var labels []string
	for _, sec := range sectionLabels {
		if enabled[sec.key] {
			labels = append(labels, sec.label)
		}
	}
	return labels
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

type dashboardArgs struct {
	Area string `json:"area,omitempty"`
}

// getDashboardData prefers the temporary analysis, falling back to the
// latest saved history and its stored dataset.
func (s *Service) getDashboardData(ctx context.Context, args json.RawMessage) (any, error) {
	var in dashboardArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}

	if latest, ok := s.Cache.Get(); ok && latest.DataAvailable {
		filtered := filterByArea(latest.Dataset, in.Area)
		return map[string]any{
			"data_available":     true,
			"summary_text":       latest.Summary,
			"chart_data":         analysis.BuildChartData(filtered),
			"last_updated":       latest.AnalysisTime,
			"available_areas":    availableAreas(latest.Dataset),
			"is_temporary":       true,
			"cycle_assets_table": latest.CycleAssets,
			"timestamp":          "temporary",
		}, nil
	}

	history, err := s.History.GetLatest()
	if errors.Is(err, storage.ErrNotFound) {
		return map[string]any{"data_available": false, "message": "Belum ada analisis yang disimpan ke riwayat."}, nil
	}
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err, "Gagal membaca riwayat analisis.")
	}

	full, ok := s.loadArtifact(history.Timestamp)
	if !ok {
		return map[string]any{"data_available": false, "message": "File data untuk riwayat terakhir tidak ditemukan."}, nil
	}

	filtered := filterByArea(full, in.Area)
	return map[string]any{
		"data_available":     true,
		"summary_text":       history.Summary,
		"chart_data":         analysis.BuildChartData(filtered),
		"last_updated":       history.UploadDate,
		"available_areas":    availableAreas(full),
		"is_temporary":       false,
		"cycle_assets_table": decodeCycleAssets(history.CycleAssets),
		"timestamp":          history.Timestamp,
	}, nil
}

type statsArgs struct {
	Timestamp string `json:"timestamp,omitempty"`
	Area      string `json:"area,omitempty"`
}

// getStatsData returns the full table plus charts for one analysis,
// addressed by timestamp; "temporary" or empty means the latest
// available, preferring the unsaved preview.
func (s *Service) getStatsData(ctx context.Context, args json.RawMessage) (any, error) {
	var in statsArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}

	if in.Timestamp != "" && in.Timestamp != "temporary" {
		return s.statsFromHistory(in.Timestamp, in.Area)
	}

	if latest, ok := s.Cache.Get(); ok && latest.DataAvailable {
		sheetName := latest.Options.SheetName
		if sheetName == "" {
			sheetName = config.DefaultMasterSheet
		}
		filtered := filterByArea(latest.Dataset, in.Area)
		return map[string]any{
			"data_available":     true,
			"summary_text":       latest.Summary,
			"table_data":         filtered.Rows,
			"chart_data":         analysis.BuildChartData(filtered),
			"timestamp":          "Analisis Saat Ini (Belum Disimpan)",
			"sheet_name":         sheetName,
			"available_areas":    availableAreas(latest.Dataset),
			"cycle_assets_table": latest.CycleAssets,
			"is_temporary":       true,
		}, nil
	}

	history, err := s.History.GetLatest()
	if errors.Is(err, storage.ErrNotFound) {
		return nil, mcperr.New(mcperr.NotFound, "Tidak ada data analisis yang tersedia, baik sementara maupun tersimpan.")
	}
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err, "Gagal membaca riwayat analisis.")
	}
	return s.statsFromHistory(history.Timestamp, in.Area)
}

func (s *Service) statsFromHistory(timestamp, area string) (any, error) {
	history, err := s.History.GetByTimestamp(timestamp)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, mcperr.New(mcperr.NotFound, "Riwayat analisis dengan timestamp '%s' tidak ditemukan.", timestamp)
	}
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err, "Gagal membaca riwayat analisis.")
	}

	full, ok := s.loadArtifact(history.Timestamp)
	if !ok {
		return nil, mcperr.New(mcperr.NotFound, "File data mentah untuk riwayat ini tidak ditemukan.")
	}
	if full.Empty() {
		return map[string]any{"data_available": false, "error_message": "Data analisis kosong."}, nil
	}

	filtered := filterByArea(full, area)
	return map[string]any{
		"data_available":     true,
		"summary_text":       history.Summary,
		"table_data":         filtered.Rows,
		"chart_data":         analysis.BuildChartData(filtered),
		"timestamp":          history.Timestamp,
		"sheet_name":         history.SheetName,
		"available_areas":    availableAreas(full),
		"cycle_assets_table": decodeCycleAssets(history.CycleAssets),
		"is_temporary":       false,
	}, nil
}

// loadArtifact reads and decodes the stored dataset for a history entry.
func (s *Service) loadArtifact(timestamp string) (*dataset.Dataset, bool) {
	file, err := s.Files.FindByTimestamp(timestamp)
	if err != nil || file.JSONContent == "" {
		return nil, false
	}
	var rows []dataset.Row
	if err := json.Unmarshal([]byte(file.JSONContent), &rows); err != nil {
		return nil, false
	}
	return dataset.FromRows(rows), true
}

func decodeCycleAssets(content string) []dataset.Row {
	if content == "" {
		return nil
	}
	var rows []dataset.Row
	if err := json.Unmarshal([]byte(content), &rows); err != nil {
		return nil
	}
	return rows
}

// filterByArea keeps rows whose AREA equals area exactly; "Semua Area" or
// an empty filter returns the dataset unchanged.
func filterByArea(ds *dataset.Dataset, area string) *dataset.Dataset {
	if ds.Empty() || area == "" || area == "Semua Area" || !ds.HasColumn("AREA") {
		return ds
	}
	out := &dataset.Dataset{Columns: ds.Columns}
	for _, row := range ds.Rows {
		if dataset.CellString(row["AREA"]) == area {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// availableAreas lists the distinct areas in the full dataset, with the
// "Semua Area" pseudo-entry first.
func availableAreas(ds *dataset.Dataset) []string {
	areas := []string{"Semua Area"}
	if !ds.HasColumn("AREA") {
		return areas
	}
	seen := map[string]struct{}{}
	var names []string
	for _, row := range ds.Rows {
		v := strings.TrimSpace(dataset.CellString(row["AREA"]))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			names = append(names, v)
		}
	}
	sort.Strings(names)
	return append(areas, names...)
}

type historyEntry struct {
	Filename   string        `json:"filename"`
	UploadDate string        `json:"upload_date"`
	Summary    string        `json:"summary"`
	Timestamp  string        `json:"timestamp"`
	UserEmail  string        `json:"user_email"`
	JSONData   []dataset.Row `json:"json_data"`
	FullText   string        `json:"html_data"`
}

func (s *Service) getHistory(ctx context.Context) (any, error) {
	histories, err := s.History.GetAll()
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Storage, err, "Gagal membaca riwayat analisis.")
	}

	entries := make([]historyEntry, 0, len(histories))
	for _, h := range histories {
		var rows []dataset.Row
		if file, err := s.Files.FindByTimestamp(h.Timestamp); err == nil && file.JSONContent != "" {
			if err := json.Unmarshal([]byte(file.JSONContent), &rows); err != nil {
				rows = nil
			}
		}
		summary := h.Summary
		if len(summary) > 100 {
			summary = summary[:100] + "..."
		}
		entries = append(entries, historyEntry{
			Filename:   h.Filename,
			UploadDate: h.UploadDate.Format("2006-01-02 15:04:05"),
			Summary:    summary,
			Timestamp:  h.Timestamp,
			UserEmail:  h.UserEmail,
			JSONData:   rows,
			FullText:   h.Summary,
		})
	}
	return entries, nil
}

type deleteHistoryArgs struct {
	Timestamp string `json:"timestamp" validate:"required"`
}

func (s *Service) deleteHistory(ctx context.Context, args json.RawMessage) (any, error) {
	var in deleteHistoryArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}

	if err := s.History.DeleteByTimestamp(in.Timestamp); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, mcperr.New(mcperr.NotFound, "Entri riwayat tidak ditemukan.")
		}
		return nil, mcperr.Wrap(mcperr.Storage, err, "Gagal menghapus riwayat analisis.")
	}
	if err := s.Files.DeleteByTimestamp(in.Timestamp); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("timestamp", in.Timestamp).Msg("history deleted but artifact cleanup failed")
	}
	return map[string]string{"message": "Riwayat dan data terkait berhasil dihapus."}, nil
}
