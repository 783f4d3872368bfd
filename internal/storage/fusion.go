package storage

// fuseResults merges keyword-biased and semantic result sets into one ranked,
// deduplicated list of at most n records.
//
// Keyword hits are treated as the higher-precision signal: they are inserted
// first, in their original rank order. Semantic results follow, skipping any
// ID already present, until the list reaches n. The merge is deterministic
// for fixed inputs.
func fuseResults(keyword, semantic []RetrievalRecord, n int) []RetrievalRecord {
	if n <= 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(keyword)+len(semantic))
	merged := make([]RetrievalRecord, 0, n)

	for _, rec := range keyword {
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		merged = append(merged, rec)
	}

	for _, rec := range semantic {
		if len(merged) >= n {
			break
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		merged = append(merged, rec)
	}

	if len(merged) > n {
		merged = merged[:n]
	}
	return merged
}
