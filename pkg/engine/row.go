package engine

import (
	"github.com/alchemy-labs/reltable/pkg/catalog"
	"github.com/alchemy-labs/reltable/pkg/keycodec"
	"github.com/alchemy-labs/reltable/pkg/rowcodec"
)

// buildRow packs a row's non-PK column values into the stored representation
// for table: a single keycodec stream for a narrow (PK + 1 column) table, or
// a full rowcodec blob otherwise (spec.md §4.3's "narrow" alternative
// encoding).
func buildRow(table *catalog.Table, nonPK []any) ([]byte, error) {
	cols := table.Columns[1:]
	types := make([]keycodec.Type, len(cols))
	for i, c := range cols {
		types[i] = c.Type
	}
	if table.IsNarrow() {
		return keycodec.Encode(types[0], nonPK[0])
	}
	return rowcodec.Create(nonPK, types)
}

// getColumn decodes column colIdx (0 = PK) of a stored row, given the row's
// PK stream and its stored value blob.
func getColumn(table *catalog.Table, pkStream, row []byte, colIdx int) keycodec.Value {
	if colIdx == 0 {
		return keycodec.Decode(pkStream)
	}
	if table.IsNarrow() {
		return keycodec.Decode(row)
	}
	return rowcodec.GetColumn(row, colIdx-1)
}

// columnStream returns the raw encoded stream for column colIdx, for direct
// comparison via keycodec.Compare (used by the ordering-constraint check so
// it never has to re-box a decoded Value back into a comparable form).
func columnStream(table *catalog.Table, pkStream, row []byte, colIdx int) []byte {
	if colIdx == 0 {
		return pkStream
	}
	if table.IsNarrow() {
		return row
	}
	return rowcodec.ColumnStream(row, colIdx-1)
}

// rowByteSize reports the byte size charged to the data B-tree for this row
// value, for C2's dsize/msize accounting (spec.md §4.2).
func rowByteSize(row any) uint64 {
	blob, _ := row.([]byte)
	return uint64(len(blob))
}

// rawFromValue converts a decoded keycodec.Value back into the representation
// keycodec.Encode accepts for its Type, so index maintenance can re-encode a
// value read out of a stored row.
func rawFromValue(v keycodec.Value) any {
	switch v.Type {
	case keycodec.TypeString:
		return v.String
	case keycodec.TypeFloat:
		return float64(v.Float)
	default: // TypeInt, TypeLong
		return v.Int
	}
}

// defaultValue is what a missing column in a partial insert is filled with
// (spec.md §4.5 step 1: "missing columns are left as (-1,-1) ranges and
// filled by the row codec's default").
func defaultValue(t keycodec.Type) any {
	switch t {
	case keycodec.TypeString:
		return []byte(nil)
	case keycodec.TypeFloat:
		return float64(0)
	default:
		return uint32(0)
	}
}
