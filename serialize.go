package formulaengine

import "strings"

// SerializedCellValue is the on-the-wire form used by storage and the CLI
// snapshot format: nil | float64 | bool | string, where a string starting
// with "=" denotes a formula and every other string denotes literal text.
// It intentionally excludes CellValue's error/infinity variants -- those
// only ever arise from evaluation, never from stored input.
type SerializedCellValue struct {
	IsNil   bool
	Number  float64
	Boolean bool
	Text    string
	hasNum  bool
	hasBool bool
	hasText bool
}

func SerializedNil() SerializedCellValue { return SerializedCellValue{IsNil: true} }
func SerializedNumber(n float64) SerializedCellValue {
	return SerializedCellValue{Number: n, hasNum: true}
}
func SerializedBoolean(b bool) SerializedCellValue {
	return SerializedCellValue{Boolean: b, hasBool: true}
}
func SerializedText(s string) SerializedCellValue {
	return SerializedCellValue{Text: s, hasText: true}
}

// IsFormula reports whether this value is formula source text (leading "=").
func (v SerializedCellValue) IsFormula() bool {
	return v.hasText && strings.HasPrefix(v.Text, "=")
}

// IsEmpty reports whether this value should delete the cell rather than
// store anything: nil, or the empty string, per base spec invariant 3.
func (v SerializedCellValue) IsEmpty() bool {
	return v.IsNil || (v.hasText && v.Text == "")
}

// ToLiteral converts a non-formula SerializedCellValue to the CellValue
// literal stored directly in worksheet storage.
func (v SerializedCellValue) ToLiteral() CellValue {
	switch {
	case v.hasNum:
		return NumberValue(v.Number)
	case v.hasBool:
		return BooleanValue(v.Boolean)
	case v.hasText:
		return StringValue(v.Text)
	default:
		return Empty()
	}
}

// FormulaText strips the leading "=" for parsing. Only meaningful when
// IsFormula() is true.
func (v SerializedCellValue) FormulaText() string {
	return strings.TrimPrefix(v.Text, "=")
}
