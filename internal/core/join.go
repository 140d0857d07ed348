package core

// join.go implements the two spreadsheet-style lookups.
//
// Both build a hash index over the lookup ("to") dataset keyed by the
// normalized key, then walk the source ("from") dataset once. Duplicate keys
// in the lookup side resolve to the LAST row carrying that key, the same way
// a map assignment in input order would.

// keyIndex maps normalized keys to the last row holding each key.
func keyIndex(rows [][]string, col int) map[string][]string {
	idx := make(map[string][]string, len(rows))
	for _, row := range rows {
		idx[NormalizeKey(cellAt(row, col))] = row
	}
	return idx
}

// LookupMerge appends to every source row the full matching lookup row
// minus its key column. Rows without a match are copied to Unmatched.
func LookupMerge(from, to *Dataset, fromKey, toKey int) (*MergeResult, error) {
	if err := from.CheckColumn("from key", fromKey); err != nil {
		return nil, err
	}
	if err := to.CheckColumn("to key", toKey); err != nil {
		return nil, err
	}

	header := make([]string, 0, from.Width()+to.Width()-1)
	header = append(header, from.Header...)
	header = appendWithout(header, to.Header, toKey)

	idx := keyIndex(to.Rows, toKey)
	result := newMergeResult(header, from)
	for _, row := range from.Rows {
		hit, ok := idx[NormalizeKey(cellAt(row, fromKey))]
		if !ok {
			result.Unmatched = append(result.Unmatched, cloneRow(row))
			continue
		}
		merged := make([]string, 0, len(header))
		merged = append(merged, row...)
		merged = appendWithout(merged, hit, toKey)
		result.Matched = append(result.Matched, merged)
	}
	return result, nil
}

// XLookupMerge appends to every source row the single toReturn cell of its
// matching lookup row. Rows without a match are copied to Unmatched.
func XLookupMerge(from, to *Dataset, fromKey, toKey, toReturn int) (*MergeResult, error) {
	if err := from.CheckColumn("from key", fromKey); err != nil {
		return nil, err
	}
	if err := to.CheckColumn("to key", toKey); err != nil {
		return nil, err
	}
	if err := to.CheckColumn("return column", toReturn); err != nil {
		return nil, err
	}

	header := make([]string, 0, from.Width()+1)
	header = append(header, from.Header...)
	header = append(header, to.Header[toReturn])

	idx := keyIndex(to.Rows, toKey)
	result := newMergeResult(header, from)
	for _, row := range from.Rows {
		hit, ok := idx[NormalizeKey(cellAt(row, fromKey))]
		if !ok {
			result.Unmatched = append(result.Unmatched, cloneRow(row))
			continue
		}
		merged := make([]string, 0, len(header))
		merged = append(merged, row...)
		merged = append(merged, cellAt(hit, toReturn))
		result.Matched = append(result.Matched, merged)
	}
	return result, nil
}

func newMergeResult(header []string, from *Dataset) *MergeResult {
	return &MergeResult{
		Header:       header,
		SourceHeader: from.Header,
		Matched:      make([][]string, 0, len(from.Rows)),
		Unmatched:    make([][]string, 0),
	}
}

func appendWithout(dst, src []string, skip int) []string {
	if skip >= len(src) {
		return append(dst, src...)
	}
	dst = append(dst, src[:skip]...)
	return append(dst, src[skip+1:]...)
}

func cloneRow(row []string) []string {
	out := make([]string, len(row))
	copy(out, row)
	return out
}

// cellAt tolerates ragged rows built outside NormalizeDataset.
func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
