// Package prompts holds the fixed catalog of named analysis prompt
// templates exposed via prompts/list and prompts/get.
package prompts

import (
	"fmt"
	"regexp"
	"strings"
)

// Prompt is a named text template with {placeholder} slots.
type Prompt struct {
	Name        string
	Description string
	Template    string
}

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// catalog is fixed at process start; there is no runtime mutation.
var catalog = []Prompt{
	{
		Name:        "standard_summary",
		Description: "Prompt standar untuk membuat ringkasan eksekutif dan rekomendasi aset.",
		Template: "Anda adalah analis data ahli. Berdasarkan data berikut, buat laporan ringkas yang terdiri dari dua bagian: " +
			"RINGKASAN EKSEKUTIF dan REKOMENDASI TINDAK LANJUT.\n\n" +
			"PENTING: Jangan gunakan format Markdown. Tulis semua output sebagai teks biasa tanpa karakter seperti '**', '*', atau '#'.\n\n" +
			"Data:\n{document}",
	},
	{
		Name:        "risk_analysis",
		Description: "Prompt untuk menganalisis dan mengidentifikasi aset berisiko tinggi (rusak atau perlu perhatian).",
		Template: "Anda adalah manajer risiko aset. Dari data berikut, identifikasi 3-5 aset paling berisiko " +
			"berdasarkan kondisi dan keterangannya. Jelaskan mengapa aset tersebut berisiko dalam format poin.\n\n" +
			"PENTING: Jangan gunakan format Markdown. Tulis semua output sebagai teks biasa tanpa karakter seperti '**', '*', atau '#'.\n\n" +
			"Data:\n{document}",
	},
}

// List returns the catalog in declaration order.
func List() []Prompt {
	out := make([]Prompt, len(catalog))
	copy(out, catalog)
	return out
}

// Get returns the named prompt.
func Get(name string) (Prompt, bool) {
	for _, p := range catalog {
		if p.Name == name {
			return p, true
		}
	}
	return Prompt{}, false
}

// Render substitutes arguments into the template. Every placeholder must
// be supplied; a missing one is a validation error.
func (p Prompt) Render(args map[string]string) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(p.Template, func(m string) string {
		key := strings.Trim(m, "{}")
		v, ok := args[key]
		if !ok {
			missing = append(missing, key)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("missing prompt arguments: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
