// Package query implements the asset filter-and-aggregate engine: a pure
// function from a dataset snapshot and a request to a result. It performs
// no I/O; callers fetch the dataset and hand it over.
package query

import (
	"encoding/json"
	"errors"

	"github.com/rayhanfay/sistem-rangkuman-data/internal/dataset"
)

// Task selectors recognized by the engine. Anything else falls through to
// plain filter behavior.
const (
	TaskFilter       = "filter"
	TaskDistribution = "get_distribution_analysis"
	TaskTopValues    = "get_top_values"
	TaskTopPerGroup  = "get_top_per_group"
	TaskBreakdown    = "breakdown"
)

// Calculation directives for filter-shaped requests.
const (
	CalcCount    = "count"
	CalcSumValue = "sum_value"
)

// Sort directions.
const (
	SortAscending  = "ascending"
	SortDescending = "descending"
)

// Status strings distinguishing "no source data" from "valid empty answer".
const (
	StatusSourceNotFound = "DATA_TIDAK_DITEMUKAN"
	StatusNoMatch        = "Tidak ada data yang cocok dengan kriteria."
)

// ErrFieldsRequired is returned when an aggregation task is missing its
// grouping or counting field. It is a validation-class error: the request
// is rejected before any row is inspected.
var ErrFieldsRequired = errors.New("group_by_field and count_field are required for this task")

// Request is the immutable set of optional query parameters. Field names
// mirror the tool's wire arguments.
type Request struct {
	Task string `json:"task,omitempty" validate:"omitempty,querytask"`

	NoAsset       string `json:"no_asset,omitempty"`
	NamaAset      string `json:"nama_aset,omitempty"`
	Area          string `json:"area,omitempty"`
	Kondisi       string `json:"kondisi,omitempty"`
	KondisiNot    string `json:"kondisi_not,omitempty"`
	PICTeam       string `json:"pic_team_fav,omitempty"`
	ModelType     string `json:"model_type,omitempty"`
	SerialNumber  string `json:"serial_number,omitempty"`
	Manufaktur    string `json:"manufaktur,omitempty"`
	KodeLokasiSAP string `json:"kode_lokasi_sap,omitempty"`
	HasilInv      string `json:"hasil_inventory,omitempty"`

	NilaiAsetMin *int64 `json:"nilai_aset_min,omitempty"`
	NilaiAsetMax *int64 `json:"nilai_aset_max,omitempty"`

	StartDate string `json:"start_date,omitempty" validate:"omitempty,isodate"`
	EndDate   string `json:"end_date,omitempty" validate:"omitempty,isodate"`

	Calculation  string `json:"calculation,omitempty" validate:"omitempty,oneof=count sum_value"`
	GroupByField string `json:"group_by_field,omitempty"`
	CountField   string `json:"count_field,omitempty"`

	Limit         int    `json:"limit,omitempty" validate:"omitempty,min=1"`
	SortBy        string `json:"sort_by,omitempty"`
	SortDirection string `json:"sort_direction,omitempty" validate:"omitempty,oneof=ascending descending"`

	// Context carried into status records; not used for filtering.
	RequestedSheet string `json:"-"`
	SourceUsed     string `json:"-"`
}

// Kind tags the shape of a Result. One request yields exactly one shape.
type Kind int

const (
	KindRows Kind = iota
	KindBreakdown
	KindCalculation
)

// Calculation is the scalar-aggregate record for count/sum_value requests.
type Calculation struct {
	Label      string `json:"label"`
	Count      *int   `json:"count,omitempty"`
	TotalValue string `json:"total_value,omitempty"`
	Details    string `json:"details,omitempty"`
}

// Result is the tagged output of Execute.
type Result struct {
	Kind        Kind
	Rows        []dataset.Row
	Breakdown   map[string]map[string]int
	Calculation *Calculation
}

// MarshalJSON renders the result in the shape its kind dictates, matching
// what the tool envelope places in the content field.
func (r Result) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindBreakdown:
		return json.Marshal(r.Breakdown)
	case KindCalculation:
		return json.Marshal(map[string]*Calculation{"calculation_result": r.Calculation})
	default:
		return json.Marshal(r.Rows)
	}
}

func rowsResult(rows []dataset.Row) Result {
	return Result{Kind: KindRows, Rows: rows}
}

func statusResult(row dataset.Row) Result {
	return Result{Kind: KindRows, Rows: []dataset.Row{row}}
}

// fieldAliases maps caller phrasings to canonical column names. Resolution
// happens exactly once, before any filter or aggregation inspects a name.
var fieldAliases = map[string]string{
	"MANUFAKTUR":       "MANUFACTURE",
	"BRAND":            "MANUFACTURE",
	"PABRIKAN":         "MANUFACTURE",
	"PIC":              "PIC TEAM FAV",
	"PIC TEAM":         "PIC TEAM FAV",
	"LOKASI":           "AREA",
	"MODEL":            "MODEL/TYPE",
	"TIPE":             "MODEL/TYPE",
	"NO SERI":          "SERIAL NUMBER",
	"NILAI":            "NILAI ASET",
	"TANGGAL":          "TANGGAL INVENTORY",
	"STATUS INVENTORY": "HASIL INVENTORY",
	"STATUS":           "HASIL INVENTORY",
	"INVENTARIS":       "HASIL INVENTORY",
}

// ResolveField cleans a caller-supplied field name and applies the alias
// table. Resolving an already-canonical name returns it unchanged.
func ResolveField(name string) string {
	clean := dataset.CleanName(name)
	if canonical, ok := fieldAliases[clean]; ok {
		return canonical
	}
	return clean
}
