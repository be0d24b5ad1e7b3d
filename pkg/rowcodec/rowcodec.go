// Package rowcodec packs a row's non-PK columns into a single blob and
// decodes one column at a time by index (C3).
//
// A blob is: [ncols uint16][ncols * uint32 offset][encoded column streams].
// Each column stream is encoded with pkg/keycodec's self-describing tagged
// format, so GetColumn can decode a single column without touching its
// neighbors and Size is just len(blob).
package rowcodec

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/alchemy-labs/reltable/pkg/keycodec"
)

const headerColCountSize = 2
const offsetEntrySize = 4

// ErrDomain is returned by Create when a column's value doesn't fit its
// declared type (e.g. an INT/LONG column given a value >= 2^32).
var ErrDomain = errors.New("rowcodec: column value out of range for its type")

// Create packs values (already ordered to match the table's non-PK column
// order) into a row blob. types[i] is the keycodec family for values[i].
// Create returns (nil, ErrDomain) if a value doesn't fit its column type.
func Create(values []any, types []keycodec.Type) ([]byte, error) {
	if len(values) != len(types) {
		return nil, errors.Errorf("rowcodec: values/types length mismatch (%d vs %d)", len(values), len(types))
	}
	n := len(values)
	streams := make([][]byte, n)
	for i, v := range values {
		s, err := keycodec.Encode(types[i], v)
		if err != nil {
			return nil, errors.Wrapf(ErrDomain, "column %d: %s", i, err)
		}
		streams[i] = s
	}

	headerSize := headerColCountSize + n*offsetEntrySize
	total := headerSize
	for _, s := range streams {
		total += len(s)
	}

	blob := make([]byte, total)
	binary.LittleEndian.PutUint16(blob[0:2], uint16(n))
	pos := headerSize
	for i, s := range streams {
		offPos := headerColCountSize + i*offsetEntrySize
		binary.LittleEndian.PutUint32(blob[offPos:offPos+4], uint32(pos))
		copy(blob[pos:], s)
		pos += len(s)
	}
	return blob, nil
}

// ColumnCount returns the number of columns packed in blob.
func ColumnCount(blob []byte) int {
	return int(binary.LittleEndian.Uint16(blob[0:2]))
}

// GetColumn decodes column idx from blob.
func GetColumn(blob []byte, idx int) keycodec.Value {
	offPos := headerColCountSize + idx*offsetEntrySize
	off := binary.LittleEndian.Uint32(blob[offPos : offPos+4])
	return keycodec.Decode(blob[off:])
}

// Size returns the number of bytes the row blob occupies.
func Size(blob []byte) int { return len(blob) }

// ColumnStream returns the raw encoded key-codec stream backing column idx,
// without decoding it — used by callers (the ordering-constraint check) that
// need to compare two columns with keycodec.Compare rather than read a value.
func ColumnStream(blob []byte, idx int) []byte {
	offPos := headerColCountSize + idx*offsetEntrySize
	off := binary.LittleEndian.Uint32(blob[offPos : offPos+4])
	n := keycodec.SkipToValue(blob[off:])
	return blob[off : off+n]
}
