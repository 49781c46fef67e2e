// Package tools holds the static tool catalog and the handlers that
// execute tool calls against the storage, data-source, auth, and
// completion collaborators.
package tools

import "github.com/rayhanfay/sistem-rangkuman-data/config"

// Property describes one argument in a tool's input schema.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
}

// InputSchema is the JSON-schema-shaped argument descriptor for a tool.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Tool is one catalog entry. Background-capable tools get no synchronous
// response; their results arrive via notifications.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
	Background  bool        `json:"-"`
}

func objectSchema(props map[string]Property, required ...string) InputSchema {
	if props == nil {
		props = map[string]Property{}
	}
	return InputSchema{Type: "object", Properties: props, Required: required}
}

// catalog is fixed at process start; order is the tools/list order. The
// descriptions steer the LLM client, so they carry the domain hints the
// operators rely on (COASTAL vs Dumai, the exact kondisi phrasings).
var catalog = []Tool{
	{
		Name:        "query_assets",
		Description: "Mencari, memfilter, atau membuat breakdown statistik dari data aset utama. PENTING: Untuk area Dumai gunakan 'COASTAL', untuk kondisi rusak gunakan 'Rusak Berat, Rusak Ringan'.",
		InputSchema: objectSchema(map[string]Property{
			"task": {
				Type:        "string",
				Description: "JENIS TUGAS. 'filter' (cari list), 'get_top_per_group' (mencari item terbanyak di setiap kategori), 'breakdown' (tabel silang), 'get_distribution_analysis' (statistik %), 'get_top_values' (ranking).",
				Enum:        []string{"filter", "breakdown", "get_distribution_analysis", "get_top_values", "get_top_per_group"},
			},
			"no_asset":        {Type: "string", Description: "Nomor unik aset. Contoh: '100693'."},
			"serial_number":   {Type: "string", Description: "Nomor seri perangkat (Serial Number)."},
			"nama_aset":       {Type: "string", Description: "Nama perangkat, misal: 'SERVER', 'PRINTER', 'ROUTER'."},
			"manufaktur":      {Type: "string", Description: "Brand atau Merk aset. Contoh: 'DELL', 'HP', 'CISCO'."},
			"area":            {Type: "string", Description: "Filter area. Gunakan 'COASTAL' atau 'BENGKALIS' untuk Dumai, 'DURI' untuk Duri."},
			"kode_lokasi_sap": {Type: "string", Description: "Kode lokasi unik dari SAP. Contoh: 'ROKFLDOFC'."},
			"kondisi":         {Type: "string", Description: "Kondisi fisik aset. Gunakan 'Tidak Ditemukan' untuk mencari aset yang hilang/tidak ada saat inventarisasi."},
			"kondisi_not":     {Type: "string", Description: "Kecualikan kondisi tertentu. Contoh: 'Baik' (berarti mencari yang tidak baik)."},
			"hasil_inventory": {Type: "string", Description: "Status kecocokan data. WAJIB gunakan 'Match' atau 'Not Match'. JANGAN gunakan istilah lain."},
			"nilai_aset_min":  {Type: "integer", Description: "Filter harga minimal (angka saja)."},
			"nilai_aset_max":  {Type: "integer", Description: "Filter harga maksimal (angka saja)."},
			"start_date":      {Type: "string", Description: "Cari aset SETELAH tanggal ini (Format: YYYY-MM-DD)."},
			"end_date":        {Type: "string", Description: "Cari aset SEBELUM tanggal ini (Format: YYYY-MM-DD)."},
			"calculation": {
				Type:        "string",
				Description: "Gunakan 'count' untuk menghitung jumlah unit, 'sum_value' untuk total nilai uang.",
				Enum:        []string{"count", "sum_value"},
			},
			"group_by_field": {Type: "string", Description: "Kolom untuk pengelompokan (AREA, KONDISI, MANUFACTURE)."},
			"count_field":    {Type: "string", Description: "Kolom yang dihitung jumlahnya (default: 'NO ASSET')."},
			"sort_by":        {Type: "string", Description: "Urutkan berdasarkan kolom: 'NILAI ASET', 'TANGGAL INVENTORY', atau 'NO ASSET'."},
			"sort_direction": {Type: "string", Enum: []string{"ascending", "descending"}, Default: "ascending"},
			"limit":          {Type: "integer", Default: config.DefaultQueryLimit},
		}),
	},
	{
		Name:        "query_resource",
		Description: "Mencari data spesifik dari hasil analisis (file JSON) yang sudah disimpan sebelumnya.",
		InputSchema: objectSchema(map[string]Property{
			"resource_name": {Type: "string"},
			"no_asset":      {Type: "string"},
			"nama_aset":     {Type: "string"},
			"area":          {Type: "string"},
			"kondisi":       {Type: "string"},
		}, "resource_name"),
	},
	{
		Name:        "trigger_analysis",
		Description: "HANYA digunakan untuk merefresh atau membuat ulang Dashboard Analisis utama secara keseluruhan. Tool ini tidak memberikan teks jawaban langsung ke chat.",
		Background:  true,
		InputSchema: objectSchema(map[string]Property{
			"sheet_name":         {Type: "string", Default: config.DefaultMasterSheet},
			"data_overview":      {Type: "boolean"},
			"summarize":          {Type: "boolean"},
			"insight":            {Type: "boolean"},
			"check_duplicates":   {Type: "boolean"},
			"financial_analysis": {Type: "boolean"},
		}),
	},
	{
		Name:        "save_analysis",
		Description: "Menyimpan hasil analisis terbaru ke dalam database riwayat.",
		InputSchema: objectSchema(map[string]Property{
			"auth_token": {Type: "string"},
		}, "auth_token"),
	},
	{
		Name:        "get_dashboard_data",
		Description: "Mengambil data ringkasan cepat untuk tampilan dashboard.",
		InputSchema: objectSchema(map[string]Property{
			"area": {Type: "string"},
		}),
	},
	{
		Name:        "get_stats_data",
		Description: "Mengambil data statistik detail untuk halaman Statistik, dengan opsi filter area dan timestamp.",
		InputSchema: objectSchema(map[string]Property{
			"timestamp": {Type: "string", Description: "Timestamp analisis yang ingin diambil. Gunakan 'temporary' untuk data terbaru yang belum disimpan."},
			"area":      {Type: "string", Description: "Filter area. Contoh: 'COASTAL', 'DURI', 'MINAS', atau 'Semua Area'."},
		}),
	},
	{
		Name:        "get_master_data",
		Description: "Mengambil seluruh data mentah dari sheet tertentu.",
		InputSchema: objectSchema(map[string]Property{
			"sheet_name": {Type: "string", Default: config.DefaultMasterSheet},
		}),
	},
	{
		Name:        "get_sheet_names",
		Description: "Mendapatkan daftar nama sheet yang tersedia di sumber data.",
		InputSchema: objectSchema(nil),
	},
	{
		Name:        "get_history",
		Description: "Mendapatkan riwayat analisis yang pernah dilakukan.",
		InputSchema: objectSchema(nil),
	},
	{
		Name:        "delete_history",
		Description: "Menghapus riwayat analisis berdasarkan timestamp.",
		InputSchema: objectSchema(map[string]Property{
			"timestamp": {Type: "string"},
		}, "timestamp"),
	},
	{
		Name:        "get_all_users",
		Description: "Mengambil daftar seluruh pengguna sistem (hanya untuk Admin).",
		InputSchema: objectSchema(nil),
	},
	{
		Name:        "create_user",
		Description: "Membuat akun pengguna baru di sistem (Hanya untuk Admin).",
		InputSchema: objectSchema(map[string]Property{
			"email":    {Type: "string"},
			"password": {Type: "string"},
			"role":     {Type: "string", Enum: []string{"admin", "user"}},
		}, "email", "password", "role"),
	},
	{
		Name:        "delete_user",
		Description: "Menghapus akun pengguna dari sistem berdasarkan ID (Hanya untuk Admin).",
		InputSchema: objectSchema(map[string]Property{
			"user_id": {Type: "integer"},
		}, "user_id"),
	},
	{
		Name:        "update_user_email",
		Description: "Mengubah alamat email pengguna yang sudah ada (Hanya untuk Admin).",
		InputSchema: objectSchema(map[string]Property{
			"user_id":   {Type: "integer"},
			"new_email": {Type: "string"},
		}, "user_id", "new_email"),
	},
	{
		Name:        "update_user_role",
		Description: "Mengubah peran/akses pengguna, misalnya dari 'user' menjadi 'admin' (Hanya untuk Admin).",
		InputSchema: objectSchema(map[string]Property{
			"user_id":  {Type: "integer"},
			"new_role": {Type: "string", Enum: []string{"admin", "user"}},
		}, "user_id", "new_role"),
	},
}

// Catalog returns the full tool list in discovery order.
func Catalog() []Tool {
	out := make([]Tool, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the named tool when present.
func Lookup(name string) (Tool, bool) {
	for _, t := range catalog {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}
