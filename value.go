package formulaengine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrorCode enumerates the in-cell error taxonomy. These are distinct from
// *AppError, which reports API-level failures (sheet not found, name
// already taken) through Go's normal error return path.
type ErrorCode uint8

const (
	ErrorCodeDivZero ErrorCode = iota
	ErrorCodeNA
	ErrorCodeName
	ErrorCodeNum
	ErrorCodeRef
	ErrorCodeValue
	ErrorCodeCycle
	ErrorCodeGeneric
)

var errorCodeText = map[ErrorCode]string{
	ErrorCodeDivZero: "#DIV/0!",
	ErrorCodeNA:      "#N/A",
	ErrorCodeName:    "#NAME?",
	ErrorCodeNum:     "#NUM!",
	ErrorCodeRef:     "#REF!",
	ErrorCodeValue:   "#VALUE!",
	ErrorCodeCycle:   "#CYCLE!",
	ErrorCodeGeneric: "#ERROR!",
}

func (c ErrorCode) String() string {
	if s, ok := errorCodeText[c]; ok {
		return s
	}
	return "#ERROR!"
}

// ErrorCodeFromToken maps a lexed error literal (e.g. "#DIV/0!") back to
// its ErrorCode, for parsing error literals out of formula text.
func ErrorCodeFromToken(token string) (ErrorCode, bool) {
	for code, text := range errorCodeText {
		if text == token {
			return code, true
		}
	}
	return 0, false
}

// InfinitySign distinguishes +INFINITY from -INFINITY in the value algebra.
type InfinitySign int8

const (
	PositiveInfinity InfinitySign = 1
	NegativeInfinity InfinitySign = -1
)

// CellValueType is the discriminant of the CellValue tagged union.
type CellValueType uint8

const (
	CellValueEmpty CellValueType = iota
	CellValueNumber
	CellValueString
	CellValueBoolean
	CellValueInfinity
	CellValueError
)

// CellValue is the tagged variant produced by evaluation: number, string,
// boolean, infinity (with sign), or error. Arithmetic over CellValue is
// total — it never panics and never returns a Go error.
type CellValue struct {
	Type    CellValueType
	Number  float64
	Text    string
	Boolean bool
	Sign    InfinitySign
	Err     ErrorCode
	Message string
}

func NumberValue(f float64) CellValue   { return CellValue{Type: CellValueNumber, Number: f} }
func StringValue(s string) CellValue    { return CellValue{Type: CellValueString, Text: s} }
func BooleanValue(b bool) CellValue     { return CellValue{Type: CellValueBoolean, Boolean: b} }
func Empty() CellValue                  { return CellValue{Type: CellValueEmpty} }
func InfinityValue(sign InfinitySign) CellValue {
	return CellValue{Type: CellValueInfinity, Sign: sign}
}

func ErrorValue(code ErrorCode, message string) CellValue {
	return CellValue{Type: CellValueError, Err: code, Message: message}
}

func (v CellValue) IsError() bool    { return v.Type == CellValueError }
func (v CellValue) IsNumeric() bool  { return v.Type == CellValueNumber || v.Type == CellValueInfinity }
func (v CellValue) IsInfinity() bool { return v.Type == CellValueInfinity }

func (v CellValue) String() string {
	switch v.Type {
	case CellValueEmpty:
		return ""
	case CellValueNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	case CellValueString:
		return v.Text
	case CellValueBoolean:
		if v.Boolean {
			return "TRUE"
		}
		return "FALSE"
	case CellValueInfinity:
		if v.Sign == NegativeInfinity {
			return "-INFINITY"
		}
		return "INFINITY"
	case CellValueError:
		return v.Err.String()
	}
	return ""
}

func numericOperand(v CellValue) (float64, bool, InfinitySign) {
	switch v.Type {
	case CellValueNumber:
		return v.Number, false, 0
	case CellValueInfinity:
		return 0, true, v.Sign
	}
	return 0, false, 0
}

func valueRuleError(op string, l, r CellValue) CellValue {
	return ErrorValue(ErrorCodeValue, fmt.Sprintf("%s requires numeric operands, got %s and %s", op, typeName(l), typeName(r)))
}

func typeName(v CellValue) string {
	switch v.Type {
	case CellValueNumber:
		return "number"
	case CellValueString:
		return "string"
	case CellValueBoolean:
		return "boolean"
	case CellValueInfinity:
		return "infinity"
	case CellValueError:
		return "error"
	default:
		return "empty"
	}
}

// Add implements closed addition per the arithmetic contract: both
// operands must be number or infinity; NaN passes through unconverted;
// overflow maps to the matching signed infinity; opposite-signed
// infinities produce #NUM!.
func Add(l, r CellValue) CellValue {
	if l.IsError() {
		return l
	}
	if r.IsError() {
		return r
	}
	if !l.IsNumeric() || !r.IsNumeric() {
		return valueRuleError("ADD", l, r)
	}
	ln, lInf, lSign := numericOperand(l)
	rn, rInf, rSign := numericOperand(r)
	if lInf && rInf {
		if lSign != rSign {
			return ErrorValue(ErrorCodeNum, "infinities of opposite sign cannot be added")
		}
		return InfinityValue(lSign)
	}
	if lInf {
		return InfinityValue(lSign)
	}
	if rInf {
		return InfinityValue(rSign)
	}
	sum := ln + rn
	if math.IsInf(sum, 1) {
		return InfinityValue(PositiveInfinity)
	}
	if math.IsInf(sum, -1) {
		return InfinityValue(NegativeInfinity)
	}
	return NumberValue(sum)
}

func Subtract(l, r CellValue) CellValue {
	if r.Type == CellValueInfinity {
		return Add(l, InfinityValue(-r.Sign))
	}
	if !l.IsError() && !r.IsError() && l.IsNumeric() && r.IsNumeric() {
		return Add(l, NumberValue(-mustNumber(r)))
	}
	return Add(l, r)
}

func mustNumber(v CellValue) float64 {
	if v.Type == CellValueNumber {
		return v.Number
	}
	return 0
}

func Multiply(l, r CellValue) CellValue {
	if l.IsError() {
		return l
	}
	if r.IsError() {
		return r
	}
	if !l.IsNumeric() || !r.IsNumeric() {
		return valueRuleError("MULTIPLY", l, r)
	}
	ln, lInf, lSign := numericOperand(l)
	rn, rInf, rSign := numericOperand(r)
	if lInf || rInf {
		sign := signOf(ln, lInf, lSign) * signOf(rn, rInf, rSign)
		if sign == 0 {
			return ErrorValue(ErrorCodeNum, "infinity times zero is indeterminate")
		}
		if sign > 0 {
			return InfinityValue(PositiveInfinity)
		}
		return InfinityValue(NegativeInfinity)
	}
	product := ln * rn
	if math.IsInf(product, 1) {
		return InfinityValue(PositiveInfinity)
	}
	if math.IsInf(product, -1) {
		return InfinityValue(NegativeInfinity)
	}
	return NumberValue(product)
}

func signOf(n float64, isInf bool, sign InfinitySign) int {
	if isInf {
		return int(sign)
	}
	if n > 0 {
		return 1
	}
	if n < 0 {
		return -1
	}
	return 0
}

// Divide implements the DIVIDE contract: 0/0 and ±inf/±inf -> #NUM!; x/0
// (x nonzero) -> signed infinity; inf/0 -> #NUM!; overflow -> signed
// infinity.
func Divide(l, r CellValue) CellValue {
	if l.IsError() {
		return l
	}
	if r.IsError() {
		return r
	}
	if !l.IsNumeric() || !r.IsNumeric() {
		return valueRuleError("DIVIDE", l, r)
	}
	ln, lInf, lSign := numericOperand(l)
	rn, rInf, rSign := numericOperand(r)
	if lInf && rInf {
		return ErrorValue(ErrorCodeNum, "infinity divided by infinity is indeterminate")
	}
	if rInf {
		return NumberValue(0)
	}
	if lInf {
		if rn == 0 {
			return ErrorValue(ErrorCodeNum, "infinity divided by zero is indeterminate")
		}
		sign := lSign
		if rn < 0 {
			sign = -sign
		}
		return InfinityValue(sign)
	}
	if rn == 0 {
		if ln == 0 {
			return ErrorValue(ErrorCodeNum, "0/0 is indeterminate")
		}
		sign := PositiveInfinity
		if ln < 0 {
			sign = NegativeInfinity
		}
		return InfinityValue(sign)
	}
	quotient := ln / rn
	if math.IsInf(quotient, 1) {
		return InfinityValue(PositiveInfinity)
	}
	if math.IsInf(quotient, -1) {
		return InfinityValue(NegativeInfinity)
	}
	return NumberValue(quotient)
}

func Power(l, r CellValue) CellValue {
	if l.IsError() {
		return l
	}
	if r.IsError() {
		return r
	}
	if !l.IsNumeric() || !r.IsNumeric() {
		return valueRuleError("POWER", l, r)
	}
	if l.IsInfinity() || r.IsInfinity() {
		return ErrorValue(ErrorCodeNum, "power over infinity is not supported")
	}
	result := math.Pow(l.Number, r.Number)
	if math.IsInf(result, 1) {
		return InfinityValue(PositiveInfinity)
	}
	if math.IsInf(result, -1) {
		return InfinityValue(NegativeInfinity)
	}
	return NumberValue(result)
}

func Concat(l, r CellValue) CellValue {
	if l.IsError() {
		return l
	}
	if r.IsError() {
		return r
	}
	return StringValue(l.String() + r.String())
}

// Compare implements the total order used by comparisons and by sort
// dependent functions such as MATCH: errors compare equal; empty coerces
// to 0; mixed numeric/string attempts numeric coercion then falls back to
// lexicographic; booleans compare as 0/1. Returns -1, 0, or 1.
func Compare(l, r CellValue) int {
	if l.IsError() && r.IsError() {
		return 0
	}
	ln, lok := coerceNumeric(l)
	rn, rok := coerceNumeric(r)
	if lok && rok {
		switch {
		case ln < rn:
			return -1
		case ln > rn:
			return 1
		default:
			return 0
		}
	}
	ls, rs := l.String(), r.String()
	return strings.Compare(ls, rs)
}

func coerceNumeric(v CellValue) (float64, bool) {
	switch v.Type {
	case CellValueNumber:
		return v.Number, true
	case CellValueEmpty:
		return 0, true
	case CellValueBoolean:
		if v.Boolean {
			return 1, true
		}
		return 0, true
	case CellValueInfinity:
		if v.Sign == NegativeInfinity {
			return math.Inf(-1), true
		}
		return math.Inf(1), true
	case CellValueString:
		if f, err := strconv.ParseFloat(v.Text, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// WildcardMatch implements the '?'/'*' pattern contract: '?' matches one
// char, '*' matches any run; the match is anchored and case-insensitive.
func WildcardMatch(pattern, text string) bool {
	return wildcardMatch([]rune(strings.ToUpper(pattern)), []rune(strings.ToUpper(text)))
}

func wildcardMatch(pattern, text []rune) bool {
	if len(pattern) == 0 {
		return len(text) == 0
	}
	switch pattern[0] {
	case '*':
		if wildcardMatch(pattern[1:], text) {
			return true
		}
		for len(text) > 0 {
			text = text[1:]
			if wildcardMatch(pattern[1:], text) {
				return true
			}
		}
		return len(pattern[1:]) == 0
	case '?':
		if len(text) == 0 {
			return false
		}
		return wildcardMatch(pattern[1:], text[1:])
	default:
		if len(text) == 0 || text[0] != pattern[0] {
			return false
		}
		return wildcardMatch(pattern[1:], text[1:])
	}
}
