package formulaengine

import (
	"fmt"
	"strings"
)

// CellAddress identifies a single cell inside one worksheet's storage.
// Worksheets are addressed by their interned ID rather than name; name
// resolution happens one layer up, in the registry.
type CellAddress struct {
	WorksheetID uint32
	Column      uint32 // 0-based
	Row         uint32 // 0-based
}

func (a CellAddress) String() string {
	return fmt.Sprintf("%s%d", ColumnIndexToLetter(a.Column), a.Row+1)
}

// ColumnIndexToLetter converts a 0-based column index to its A1-style
// letters ("A" <-> 0, "Z" <-> 25, "AA" <-> 26).
func ColumnIndexToLetter(index uint32) string {
	var sb strings.Builder
	n := int64(index) + 1
	var letters []byte
	for n > 0 {
		n--
		letters = append(letters, byte('A'+(n%26)))
		n /= 26
	}
	for i := len(letters) - 1; i >= 0; i-- {
		sb.WriteByte(letters[i])
	}
	return sb.String()
}

// ParseA1 parses a bare A1-style key ("A1", "$B$10") into 0-based column
// and row indices, ignoring any "$" absolute markers. It does not accept
// sheet or workbook qualification -- callers resolve those separately.
func ParseA1(key string) (col, row uint32, err error) {
	key = strings.ReplaceAll(key, "$", "")
	i := 0
	for i < len(key) && isAsciiLetter(key[i]) {
		i++
	}
	if i == 0 || i == len(key) {
		return 0, 0, fmt.Errorf("invalid cell key %q", key)
	}
	col, err = ColumnLetterToIndex(key[:i])
	if err != nil {
		return 0, 0, err
	}
	for j := i; j < len(key); j++ {
		if key[j] < '0' || key[j] > '9' {
			return 0, 0, fmt.Errorf("invalid cell key %q", key)
		}
	}
	var rowNum int
	if _, err := fmt.Sscanf(key[i:], "%d", &rowNum); err != nil || rowNum <= 0 {
		return 0, 0, fmt.Errorf("invalid cell key %q", key)
	}
	return col, uint32(rowNum - 1), nil
}

func isAsciiLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// ColumnLetterToIndex converts A1-style column letters to a 0-based index.
func ColumnLetterToIndex(letters string) (uint32, error) {
	if letters == "" {
		return 0, fmt.Errorf("empty column letters")
	}
	var n int64
	for i := 0; i < len(letters); i++ {
		c := letters[i]
		if c < 'A' || c > 'Z' {
			if c >= 'a' && c <= 'z' {
				c = c - 'a' + 'A'
			} else {
				return 0, fmt.Errorf("invalid column letter %q", letters)
			}
		}
		n = n*26 + int64(c-'A') + 1
	}
	return uint32(n - 1), nil
}

// Bound represents one end of an axis in a SpreadsheetRange: either a
// finite index or +infinity. Infinity is always the "largest" value for
// ordering purposes.
type Bound struct {
	Infinite bool
	Value    uint32
}

func FiniteBound(v uint32) Bound { return Bound{Value: v} }
func InfiniteBound() Bound       { return Bound{Infinite: true} }

func (b Bound) Less(other Bound) bool {
	if b.Infinite {
		return false
	}
	if other.Infinite {
		return true
	}
	return b.Value < other.Value
}

// SpreadsheetRange is (start: finite corner, end: per-axis finite-or-+inf).
// It uniformly represents "A:A", "5:5", "A5:INFINITY", "A5:D", "A5:15" and
// ordinary finite ranges like "A1:B2".
type SpreadsheetRange struct {
	WorksheetID uint32
	StartCol    uint32
	StartRow    uint32
	EndCol      Bound
	EndRow      Bound
}

// FiniteSpreadsheetRange is a SpreadsheetRange with both ends finite,
// required by bulk-mutation APIs (autofill, clear).
type FiniteSpreadsheetRange struct {
	WorksheetID uint32
	StartCol    uint32
	StartRow    uint32
	EndCol      uint32
	EndRow      uint32
}

func (r SpreadsheetRange) IsFinite() bool {
	return !r.EndCol.Infinite && !r.EndRow.Infinite
}

// ToFinite clips open ends against the worksheet's currently-occupied
// bounds (maxCol/maxRow, both inclusive, 0-based). Used by functions like
// SUM that must materialize only stored cells over an open-ended range.
func (r SpreadsheetRange) ToFinite(maxCol, maxRow uint32) FiniteSpreadsheetRange {
	endCol := maxCol
	if !r.EndCol.Infinite {
		endCol = r.EndCol.Value
	}
	endRow := maxRow
	if !r.EndRow.Infinite {
		endRow = r.EndRow.Value
	}
	return FiniteSpreadsheetRange{
		WorksheetID: r.WorksheetID,
		StartCol:    r.StartCol,
		StartRow:    r.StartRow,
		EndCol:      endCol,
		EndRow:      endRow,
	}
}

func (r FiniteSpreadsheetRange) Width() uint32  { return r.EndCol - r.StartCol + 1 }
func (r FiniteSpreadsheetRange) Height() uint32 { return r.EndRow - r.StartRow + 1 }
func (r FiniteSpreadsheetRange) CellCount() uint64 {
	return uint64(r.Width()) * uint64(r.Height())
}

func (r FiniteSpreadsheetRange) Contains(col, row uint32) bool {
	return col >= r.StartCol && col <= r.EndCol && row >= r.StartRow && row <= r.EndRow
}
