package importer

import "sort"

// Dedupe collapses records to one per case-folded SKU, keeping the last
// occurrence regardless of whether the other fields changed. Output is sorted
// by folded key so a job's unit layout is deterministic.
//
// The whole record set is materialized before partitioning: global
// last-write-wins across partition boundaries takes priority over streaming,
// so peak memory is proportional to the number of distinct keys in the file.
func Dedupe(recs []Record) []Record {
	byKey := make(map[string]Record, len(recs))
	for _, r := range recs {
		byKey[r.Key()] = r
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	return out
}
