package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
)

// WriteTable renders table as a row/column stream: one header row, then one
// row per (path_key, field) bucket with count/sum/mean/stddev/median and
// the TileCount tile columns. This is the iterator spec §1 says a
// spreadsheet-emitting library needs ("spreadsheet ... emission ...
// delegated to tabular ... libraries, which require only a row/column
// iterator") — this package produces the rows, it does not write a
// spreadsheet file format itself.
func WriteTable[L Level](w io.Writer, table *Table[L]) error {
	cw := csv.NewWriter(w)

	header := []string{"path_key", "field", "unit", "count", "sum", "mean", "stddev", "median"}
	for i := 0; i < TileCount; i++ {
		header = append(header, fmt.Sprintf("tile_%d", i))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, pathKey := range table.SortedPathKeys() {
		bucket := table.Buckets[pathKey]
		fields := make([]FieldKey, 0, len(bucket))
		for f := range bucket {
			fields = append(fields, f)
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

		for _, field := range fields {
			v := bucket[field]
			row := []string{
				pathKey,
				string(field),
				v.Unit.String(),
				fmt.Sprintf("%d", v.Count),
				fmt.Sprintf("%g", v.Sum),
				fmt.Sprintf("%g", v.Mean),
				fmt.Sprintf("%g", v.Stddev),
				fmt.Sprintf("%g", v.Median),
			}
			for _, tile := range v.Tiles {
				row = append(row, fmt.Sprintf("%g", tile))
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
