// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stage holds the static stage catalog and the stage data guard.
// The catalog is deploy-time configuration: a fixed ordered list of stage
// ids plus per-stage key whitelists and coercion tables.
package stage

import "github.com/pdiddy/paper-engine/pkg/types"

// Catalog is the fixed total order of authoring stages. "Before" and
// "stages back" are computed purely by index difference in this list.
var Catalog = []types.StageID{
	types.StageGagasan,
	types.StageTopik,
	types.StageJudul,
	types.StageOutline,
	types.StagePendahuluan,
	types.StageTinjauanPustaka,
	types.StageMetodologi,
	types.StageHasil,
	types.StagePembahasan,
	types.StageKesimpulan,
	types.StageAbstrak,
	types.StageDaftarPustaka,
	types.StageFinalisasi,
}

var catalogIndex = func() map[types.StageID]int {
	m := make(map[types.StageID]int, len(Catalog))
	for i, s := range Catalog {
		m[s] = i
	}
	return m
}()

// Index returns the catalog position of a stage, or -1 for unknown stages
// and the completed pseudo-stage.
func Index(s types.StageID) int {
	if i, ok := catalogIndex[s]; ok {
		return i
	}
	return -1
}

// IsValid reports whether s is a catalog stage.
func IsValid(s types.StageID) bool {
	return Index(s) >= 0
}

// Next returns the stage following s in catalog order, or StageCompleted
// when s is the last stage. Unknown stages return empty.
func Next(s types.StageID) types.StageID {
	i := Index(s)
	switch {
	case i < 0:
		return ""
	case i == len(Catalog)-1:
		return types.StageCompleted
	default:
		return Catalog[i+1]
	}
}

// PreOutline reports whether s is one of the three stages before the
// outline stage. Outline propagation skips these.
func PreOutline(s types.StageID) bool {
	i := Index(s)
	return i >= 0 && i < Index(types.StageOutline)
}

// commonKeys are permitted in every stage's record.
var commonKeys = []string{
	"ringkasan",
	"ringkasanDetail",
	"webSearchReferences",
	"catatanRevisi",
	"artifactId",
	"validatedAt",
	"revisionCount",
}

// stageKeys lists the stage-specific permitted keys.
var stageKeys = map[types.StageID][]string{
	types.StageGagasan:         {"ideKasar", "latarBelakang", "referensi"},
	types.StageTopik:           {"pilihanTopik", "topikTerpilih", "rumusanMasalah", "referensi"},
	types.StageJudul:           {"opsiJudul", "judulTerpilih", "alasanPemilihan"},
	types.StageOutline:         {"kerangka", "totalWordCount", "gayaSelingkung"},
	types.StagePendahuluan:     {"draf", "tujuanPenelitian", "referensi"},
	types.StageTinjauanPustaka: {"draf", "teoriUtama", "referensi"},
	types.StageMetodologi:      {"draf", "metodePenelitian", "teknikAnalisis"},
	types.StageHasil:           {"draf", "temuanUtama", "referensi"},
	types.StagePembahasan:      {"draf", "interpretasi", "keterbatasan", "referensi"},
	types.StageKesimpulan:      {"draf", "saran"},
	types.StageAbstrak:         {"draf", "kataKunci"},
	types.StageDaftarPustaka:   {"daftarPustaka", "gayaSitasi"},
	types.StageFinalisasi:      {"catatanAkhir", "versiFinal"},
}

var whitelist = func() map[types.StageID]map[string]bool {
	m := make(map[types.StageID]map[string]bool, len(stageKeys))
	for id, keys := range stageKeys {
		set := make(map[string]bool, len(keys)+len(commonKeys))
		for _, k := range keys {
			set[k] = true
		}
		for _, k := range commonKeys {
			set[k] = true
		}
		m[id] = set
	}
	return m
}()

// arrayKeys are passed through without string coercion.
var arrayKeys = map[string]bool{
	"referensi":           true,
	"webSearchReferences": true,
	"pilihanTopik":        true,
	"opsiJudul":           true,
	"kerangka":            true,
	"teoriUtama":          true,
	"temuanUtama":         true,
	"kataKunci":           true,
	"daftarPustaka":       true,
	"saran":               true,
}

// referenceKeys carry citation candidates: their string elements are
// normalized into objects and they feed the bibliography compiler.
var referenceKeys = map[string]bool{
	"referensi":           true,
	"webSearchReferences": true,
	"daftarPustaka":       true,
}

// Allowed reports whether key is in the stage's whitelist.
func Allowed(s types.StageID, key string) bool {
	return whitelist[s][key]
}

// IsArrayKey reports whether key is array-typed.
func IsArrayKey(key string) bool {
	return arrayKeys[key]
}

// IsReferenceKey reports whether key holds citation candidates.
func IsReferenceKey(key string) bool {
	return referenceKeys[key]
}

// ReferenceKeys returns the reference-bearing keys present in the
// stage's whitelist, native fields first.
func ReferenceKeys(s types.StageID) []string {
	var keys []string
	for _, k := range []string{"referensi", "daftarPustaka", "webSearchReferences"} {
		if whitelist[s][k] {
			keys = append(keys, k)
		}
	}
	return keys
}
