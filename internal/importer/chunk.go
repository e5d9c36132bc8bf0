package importer

// Split partitions deduplicated records into work units of at most size
// records; the last unit may be short. The split is purely size-bounded:
// after deduplication every key appears in exactly one unit, so units are
// independent and commute.
func Split(recs []Record, size int) [][]Record {
	if len(recs) == 0 || size <= 0 {
		return nil
	}

	units := make([][]Record, 0, (len(recs)+size-1)/size)
	for start := 0; start < len(recs); start += size {
		end := min(start+size, len(recs))
		units = append(units, recs[start:end])
	}
	return units
}
