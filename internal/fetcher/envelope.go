package fetcher

// recordPaths lists the candidate envelope locations probed in order. The
// upstream is an external, versionable API: the record sequence has been
// observed under several keys, sometimes nested one level inside "data".
var recordPaths = [][]string{
	{"data"},
	{"list"},
	{"result"},
	{"rows"},
	{"data", "list"},
	{"data", "rows"},
	{"data", "data"},
}

// extractRecords walks the candidate paths and returns the first sequence of
// records found, or nil when no path matches.
func extractRecords(payload map[string]any) []Record {
	for _, path := range recordPaths {
		node := any(payload)
		matched := true
		for _, key := range path {
			m, ok := node.(map[string]any)
			if !ok {
				matched = false
				break
			}
			node = m[key]
		}
		if !matched {
			continue
		}
		seq, ok := node.([]any)
		if !ok {
			continue
		}
		records := make([]Record, 0, len(seq))
		for _, item := range seq {
			if m, ok := item.(map[string]any); ok {
				records = append(records, Record(m))
			}
		}
		return records
	}
	return nil
}
