package dataset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanNameIdempotent(t *testing.T) {
	require.Equal(t, "NO ASSET", CleanName("  no   asset "))
	require.Equal(t, "NO ASSET", CleanName(CleanName("  no   asset ")))
	require.Equal(t, "TANGGAL UPDATE", CleanName("Tanggal\tUpdate"))
}

func TestUniqueHeaderSuffixesRepeats(t *testing.T) {
	got := UniqueHeader([]string{"AREA", "KONDISI", "AREA", "AREA", "KONDISI"})
	require.Equal(t, []string{"AREA", "KONDISI", "AREA_1", "AREA_2", "KONDISI_1"}, got)
}

func TestNormalizedRenamesValueColumnVariant(t *testing.T) {
	ds := New([]string{"no asset", "nilai aset 2024"}, [][]any{
		{"100", "2.980.700"},
	})
	norm := ds.Normalized()
	require.Equal(t, []string{"NO ASSET", ValueColumn}, norm.Columns)
	require.Equal(t, "2.980.700", norm.Rows[0][ValueColumn])
}

func TestNormalizedKeepsRowColumnAgreement(t *testing.T) {
	ds := New([]string{" Area ", "area", "Kondisi"}, [][]any{
		{"DURI", "COASTAL", "Baik"},
	})
	norm := ds.Normalized()
	require.Equal(t, []string{"AREA", "AREA_1", "KONDISI"}, norm.Columns)
	require.Equal(t, "DURI", norm.Rows[0]["AREA"])
	require.Equal(t, "COASTAL", norm.Rows[0]["AREA_1"])
}

func TestNewPadsShortRows(t *testing.T) {
	ds := New([]string{"A", "B", "C"}, [][]any{{"only"}})
	require.Equal(t, "only", ds.Rows[0]["A"])
	require.Nil(t, ds.Rows[0]["B"])
	require.Nil(t, ds.Rows[0]["C"])
}

func TestCellString(t *testing.T) {
	require.Equal(t, "", CellString(nil))
	require.Equal(t, "100", CellString(float64(100)))
	require.Equal(t, "1.5", CellString(1.5))
	require.Equal(t, "abc", CellString("abc"))
}

func TestFromRowsSortsColumnUnion(t *testing.T) {
	ds := FromRows([]Row{
		{"B": "1"},
		{"A": "2", "C": "3"},
	})
	require.Equal(t, []string{"A", "B", "C"}, ds.Columns)
	require.Len(t, ds.Rows, 2)
}
