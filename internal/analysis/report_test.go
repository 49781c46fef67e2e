package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rayhanfay/sistem-rangkuman-data/config"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/dataset"
)

type fakeSource struct {
	mu         sync.Mutex
	sheets     []string
	data       map[string]*dataset.Dataset
	fetched    []string
	block      chan struct{} // when set, Fetch waits until closed
	listErr    error
	fetchErr   error
	fetchCalls int
}

func (f *fakeSource) ListSheets(ctx context.Context, sourceID string) ([]string, error) {
	return f.sheets, f.listErr
}

func (f *fakeSource) Fetch(ctx context.Context, sheetName, sourceID string) (*dataset.Dataset, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, sheetName)
	f.fetchCalls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if ds, ok := f.data[sheetName]; ok {
		return ds, nil
	}
	return &dataset.Dataset{}, nil
}

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func masterDataset() *dataset.Dataset {
	cols := []string{"NO", "NO ASSET", "NAMA ASET", "KONDISI", "KETERANGAN", "AREA", "NILAI ASET", "SERIAL NUMBER", "TANGGAL UPDATE", "HASIL INVENTORY", "LOKASI SPESIFIK PER-INVENTORY", "TANGGAL INVENTORY"}
	return dataset.New(cols, [][]any{
		{"1", "100", "SERVER DELL", "Kondisi Baik", "-", "DURI", "2.980.700", "SN-1", "05-01-2025", "Match", "Ruang Server", "05-01-2025"},
		{"2", "101", "PRINTER HP", "Rusak Berat", "tinta bocor", "DURI", "1.500.000", "SN-2", "03-01-2025", "Not Match", "Gudang", "03-02-2025"},
		{"3", "102", "ROUTER CISCO", "Rusak Ringan", "-", "COASTAL", "750.000", "SN-2", "01-02-2025", "Match", "Gudang", "01-02-2025"},
		{"4", "103", "SERVER HP", "Kondisi Baik", "-", "COASTAL", "4.000.000", "SN-3", "10-01-2025", "Match", "Ruang Server", "10-01-2025"},
	})
}

func newTestRunner(src *fakeSource, comp *fakeCompleter) *Runner {
	return &Runner{
		Source:    src,
		Completer: comp,
		Cache:     NewCache(),
		Clock:     func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) },
	}
}

type reportLog struct {
	mu      sync.Mutex
	entries []string
	status  []string
}

func (r *reportLog) report(status, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = append(r.status, status)
	r.entries = append(r.entries, message)
}

func (r *reportLog) terminals() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.status {
		if s == StatusCompleted || s == StatusError {
			out = append(out, s)
		}
	}
	return out
}

func allSections() Options {
	return Options{
		DataOverview:      true,
		Summarize:         true,
		Insight:           true,
		CheckDuplicates:   true,
		FinancialAnalysis: true,
	}
}

func TestCacheSwapsWholeResult(t *testing.T) {
	c := NewCache()
	_, ok := c.Get()
	require.False(t, ok)

	c.Set(&Result{DataAvailable: true, Summary: "a"})
	got, ok := c.Get()
	require.True(t, ok)
	require.Equal(t, "a", got.Summary)

	c.Set(&Result{DataAvailable: false, Message: "gagal"})
	got, ok = c.Get()
	require.True(t, ok)
	require.False(t, got.DataAvailable)
	require.Equal(t, "gagal", got.Message)

	c.Clear()
	_, ok = c.Get()
	require.False(t, ok)
}

func TestRunnerProducesAllSections(t *testing.T) {
	src := &fakeSource{
		sheets: []string{config.DefaultMasterSheet},
		data:   map[string]*dataset.Dataset{config.DefaultMasterSheet: masterDataset()},
	}
	comp := &fakeCompleter{reply: "RINGKASAN EKSEKUTIF\nSemua aset dalam kondisi terkendali."}
	r := newTestRunner(src, comp)
	rl := &reportLog{}

	require.NoError(t, r.Run(context.Background(), allSections(), rl.report))
	require.Equal(t, []string{StatusCompleted}, rl.terminals())
	require.Equal(t, 1, comp.calls)

	res, ok := r.Cache.Get()
	require.True(t, ok)
	require.True(t, res.DataAvailable)
	require.Equal(t, config.DefaultMasterSheet, res.Options.SheetName)
	require.Equal(t, r.Clock(), res.AnalysisTime)

	require.Contains(t, res.Summary, "DATA OVERVIEW")
	require.Contains(t, res.Summary, "Jumlah Total Aset: 4 unit")
	require.Contains(t, res.Summary, "Jumlah Area Unik: 2")
	require.Contains(t, res.Summary, "03 January 2025 hingga 01 February 2025")
	require.Contains(t, res.Summary, "Semua aset dalam kondisi terkendali.")
	require.Contains(t, res.Summary, "INSIGHT UTAMA")
	require.Contains(t, res.Summary, "ANALISA KEUANGAN ASET")
	require.Contains(t, res.Summary, "CEK DUPLIKASI")
	require.Contains(t, res.Summary, "SN-2 (2x)")
	require.Contains(t, res.Summary, "NO ASSET: tidak ada duplikasi.")

	// Problem rows only: the two damaged assets, not the healthy ones.
	require.Len(t, res.CycleAssets, 2)
	require.Equal(t, "101", dataset.CellString(res.CycleAssets[0]["NO ASSET"]))
	require.Equal(t, "102", dataset.CellString(res.CycleAssets[1]["NO ASSET"]))

	require.NotEmpty(t, res.ChartData.Kondisi)
	require.Equal(t, "Kondisi Baik", res.ChartData.Kondisi[0].X)
	require.Equal(t, int64(2), res.ChartData.Kondisi[0].Y)
}

func TestRunnerUnknownSheetFallsBackToDefault(t *testing.T) {
	src := &fakeSource{
		sheets: []string{config.DefaultMasterSheet},
		data:   map[string]*dataset.Dataset{config.DefaultMasterSheet: masterDataset()},
	}
	r := newTestRunner(src, &fakeCompleter{reply: "ok"})
	rl := &reportLog{}

	opts := Options{SheetName: "TIDAK ADA", DataOverview: true}
	require.NoError(t, r.Run(context.Background(), opts, rl.report))
	require.Equal(t, []string{config.DefaultMasterSheet}, src.fetched)

	res, ok := r.Cache.Get()
	require.True(t, ok)
	require.Equal(t, config.DefaultMasterSheet, res.Options.SheetName)
}

func TestRunnerFailureReplacesCacheWithUnavailableMarker(t *testing.T) {
	src := &fakeSource{
		sheets: []string{config.DefaultMasterSheet},
		data:   map[string]*dataset.Dataset{config.DefaultMasterSheet: masterDataset()},
	}
	comp := &fakeCompleter{err: errors.New("quota habis")}
	r := newTestRunner(src, comp)
	r.Cache.Set(&Result{DataAvailable: true, Summary: "hasil lama"})
	rl := &reportLog{}

	err := r.Run(context.Background(), allSections(), rl.report)
	require.Error(t, err)
	require.Equal(t, []string{StatusError}, rl.terminals())

	res, ok := r.Cache.Get()
	require.True(t, ok)
	require.False(t, res.DataAvailable)
	require.Contains(t, res.Message, "Terjadi kesalahan fatal saat analisis")
	require.Empty(t, res.Summary)
}

func TestRunnerEmptySheetFails(t *testing.T) {
	src := &fakeSource{sheets: []string{config.DefaultMasterSheet}}
	r := newTestRunner(src, &fakeCompleter{reply: "ok"})
	rl := &reportLog{}

	err := r.Run(context.Background(), Options{DataOverview: true}, rl.report)
	require.Error(t, err)
	require.Equal(t, []string{StatusError}, rl.terminals())
}

func TestSupervisorRejectsConcurrentTrigger(t *testing.T) {
	block := make(chan struct{})
	src := &fakeSource{
		sheets: []string{config.DefaultMasterSheet},
		data:   map[string]*dataset.Dataset{config.DefaultMasterSheet: masterDataset()},
		block:  block,
	}
	r := newTestRunner(src, &fakeCompleter{reply: "ok"})
	sup := NewSupervisor(r)

	done := make(chan struct{})
	rl := &reportLog{}
	require.NoError(t, sup.Trigger(Options{DataOverview: true}, func(status, message string) {
		rl.report(status, message)
		if status == StatusCompleted || status == StatusError {
			close(done)
		}
	}))

	// The first pass is parked inside Fetch; a second trigger must bounce.
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.fetchCalls == 1
	}, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, sup.Trigger(Options{DataOverview: true}, rl.report), ErrAnalysisRunning)

	close(block)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("analysis pass did not finish")
	}
	require.Equal(t, []string{StatusCompleted}, rl.terminals())

	// Slot is free again once the pass ends.
	src.mu.Lock()
	src.block = nil
	src.mu.Unlock()
	require.Eventually(t, func() bool {
		err := sup.Trigger(Options{DataOverview: true}, func(string, string) {})
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestBuildChartDataOrderingAndLimits(t *testing.T) {
	data := BuildChartData(masterDataset().Normalized())

	require.Equal(t, []Point{{X: "Kondisi Baik", Y: 2}, {X: "Rusak Berat", Y: 1}, {X: "Rusak Ringan", Y: 1}}, data.Kondisi)
	require.Equal(t, []Point{{X: "Match", Y: 3}, {X: "Not Match", Y: 1}}, data.HasilInventory)

	// Locations sorted by summed value, largest first.
	require.Equal(t, "Ruang Server", data.AssetValue[0].X)
	require.Equal(t, int64(6980700), data.AssetValue[0].Y)
	require.Equal(t, "Gudang", data.AssetValue[1].X)
	require.Equal(t, int64(2250000), data.AssetValue[1].Y)

	// Months in calendar order regardless of row order.
	require.Equal(t, []Point{{X: "2025-01", Y: 2}, {X: "2025-02", Y: 2}}, data.TrenInventory)
}

func TestBuildChartDataEmptyDataset(t *testing.T) {
	data := BuildChartData(&dataset.Dataset{})
	require.Empty(t, data.Kondisi)
	require.Empty(t, data.AssetValue)
}

func TestCycleAssetsTableKeepsRemarkedRows(t *testing.T) {
	ds := dataset.New(
		[]string{"NO ASSET", "KONDISI", "KETERANGAN"},
		[][]any{
			{"100", "Kondisi Baik", "-"},
			{"101", "Kondisi Baik", "perlu pengecekan ulang"},
			{"102", "Digunakan", "mutasi ke DURI"},
			{"103", "Penghapusan", "-"},
		},
	)
	rows := cycleAssetsTable(ds)
	require.Len(t, rows, 2)
	require.Equal(t, "101", dataset.CellString(rows[0]["NO ASSET"]))
	require.Equal(t, "103", dataset.CellString(rows[1]["NO ASSET"]))
}
