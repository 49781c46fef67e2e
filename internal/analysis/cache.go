package analysis

import (
	"sync"
	"time"

	"github.com/rayhanfay/sistem-rangkuman-data/internal/dataset"
)

// Options selects which report sections an analysis pass produces.
type Options struct {
	SheetName         string `json:"sheet_name,omitempty"`
	DataOverview      bool   `json:"data_overview,omitempty"`
	Summarize         bool   `json:"summarize,omitempty"`
	Insight           bool   `json:"insight,omitempty"`
	CheckDuplicates   bool   `json:"check_duplicates,omitempty"`
	FinancialAnalysis bool   `json:"financial_analysis,omitempty"`
}

// Result is one completed (or failed) analysis pass. A failed pass keeps
// DataAvailable false and carries the error message; it fully replaces
// whatever was cached before, never leaving a half-written state.
type Result struct {
	DataAvailable bool
	Dataset       *dataset.Dataset
	Summary       string
	ChartData     ChartData
	CycleAssets   []dataset.Row
	Options       Options
	AnalysisTime  time.Time
	Message       string
}

// Cache holds the process-wide latest analysis. The slot is swapped as a
// whole value under the mutex, so concurrent readers observe either the
// old or the new result, never a torn one. Writes are routed through the
// Supervisor and the explicit save/clear paths only.
type Cache struct {
	mu     sync.RWMutex
	latest *Result
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Get returns the cached result snapshot, or false when none is set.
func (c *Cache) Get() (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.latest == nil {
		return nil, false
	}
	return c.latest, true
}

// Set replaces the cached result.
func (c *Cache) Set(r *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = r
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = nil
}
