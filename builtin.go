package formulaengine

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// Clock provides time for NOW/TODAY, substitutable in tests.
type Clock interface {
	Now() time.Time
}

type WallClock struct{}

func (w *WallClock) Now() time.Time { return time.Now() }

// RandomGenerator provides randomness for RAND, substitutable in tests.
type RandomGenerator interface {
	Float64() float64
}

type DefaultRandomGenerator struct{}

func (d *DefaultRandomGenerator) Float64() float64 { return rand.Float64() }

// FunctionArg is one evaluated argument to a built-in function: either a
// single value or a materialized rectangular array (the result of a range
// reference, a named range, or a nested array literal).
type FunctionArg struct {
	IsArray bool
	Scalar  CellValue
	Array   [][]CellValue // row-major, all rows equal length
}

func scalarArg(v CellValue) FunctionArg { return FunctionArg{Scalar: v} }

// Values flattens the argument into a single slice, row-major.
func (a FunctionArg) Values() []CellValue {
	if !a.IsArray {
		return []CellValue{a.Scalar}
	}
	out := make([]CellValue, 0, len(a.Array)*len(a.Array[0]))
	for _, row := range a.Array {
		out = append(out, row...)
	}
	return out
}

// FunctionResult is what a built-in produces before the evaluator wraps it
// into an EvaluationResult. IsArray indicates a spill candidate.
type FunctionResult struct {
	IsArray bool
	Scalar  CellValue
	Array   [][]CellValue
}

func scalarResult(v CellValue) FunctionResult { return FunctionResult{Scalar: v} }

func errorResult(code ErrorCode, message string) FunctionResult {
	return FunctionResult{Scalar: ErrorValue(code, message)}
}

// BuiltInFunctions holds the registry of spreadsheet functions along with
// the injectable environment (clock, randomness) that volatile functions
// read from.
type BuiltInFunctions struct {
	clock Clock
	rng   RandomGenerator
}

func NewDefaultBuiltInFunctions() *BuiltInFunctions {
	return &BuiltInFunctions{clock: &WallClock{}, rng: &DefaultRandomGenerator{}}
}

// firstError returns the first error-typed value found among args (scalar
// or inside an array), if any. Most functions propagate on sight.
func firstError(args []FunctionArg) (CellValue, bool) {
	for _, arg := range args {
		for _, v := range arg.Values() {
			if v.IsError() {
				return v, true
			}
		}
	}
	return CellValue{}, false
}

// Call dispatches a built-in function by name.
func (bf *BuiltInFunctions) Call(name string, args []FunctionArg) FunctionResult {
	switch strings.ToUpper(name) {
	case "SUM":
		return bf.SUM(args)
	case "AVERAGE":
		return bf.AVERAGE(args)
	case "COUNT":
		return bf.COUNT(args)
	case "COUNTA":
		return bf.COUNTA(args)
	case "MAX":
		return bf.MAX(args)
	case "MIN":
		return bf.MIN(args)
	case "IF":
		return bf.IF(args)
	case "AND":
		return bf.AND(args)
	case "OR":
		return bf.OR(args)
	case "NOT":
		return bf.NOT(args)
	case "CONCATENATE":
		return bf.CONCATENATE(args)
	case "LEN":
		return bf.LEN(args)
	case "UPPER":
		return bf.UPPER(args)
	case "LOWER":
		return bf.LOWER(args)
	case "TRIM":
		return bf.TRIM(args)
	case "LEFT":
		return bf.LEFT(args)
	case "ABS":
		return bf.ABS(args)
	case "ROUND":
		return bf.ROUND(args)
	case "SQRT":
		return bf.SQRT(args)
	case "POWER":
		return bf.POWER(args)
	case "MOD":
		return bf.MOD(args)
	case "PI":
		return bf.PI(args)
	case "NOW":
		return bf.NOW(args)
	case "TODAY":
		return bf.TODAY(args)
	case "RAND":
		return bf.RAND(args)
	case "MATCH":
		return bf.MATCH(args)
	case "INDEX":
		return bf.INDEX(args)
	case "SEQUENCE":
		return bf.SEQUENCE(args)
	case "FILTER":
		return bf.FILTER(args)
	default:
		return errorResult(ErrorCodeName, fmt.Sprintf("unknown function: %s", name))
	}
}

// isVolatileFunction reports whether the function recalculates on every
// evaluation regardless of dependency dirtiness.
func isVolatileFunction(name string) bool {
	switch strings.ToUpper(name) {
	case "NOW", "TODAY", "RAND":
		return true
	default:
		return false
	}
}

func numericValues(args []FunctionArg) []float64 {
	var nums []float64
	for _, arg := range args {
		for _, v := range arg.Values() {
			if v.Type == CellValueNumber && !math.IsNaN(v.Number) {
				nums = append(nums, v.Number)
			}
		}
	}
	return nums
}

func (bf *BuiltInFunctions) SUM(args []FunctionArg) FunctionResult {
	if v, isErr := firstError(args); isErr {
		return scalarResult(v)
	}
	sum := 0.0
	for _, n := range numericValues(args) {
		sum += n
	}
	return scalarResult(NumberValue(sum))
}

func (bf *BuiltInFunctions) AVERAGE(args []FunctionArg) FunctionResult {
	if v, isErr := firstError(args); isErr {
		return scalarResult(v)
	}
	nums := numericValues(args)
	if len(nums) == 0 {
		return errorResult(ErrorCodeDivZero, "AVERAGE has no numeric values")
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return scalarResult(NumberValue(sum / float64(len(nums))))
}

func (bf *BuiltInFunctions) COUNT(args []FunctionArg) FunctionResult {
	count := 0
	for _, arg := range args {
		for _, v := range arg.Values() {
			if v.Type == CellValueNumber {
				count++
			}
		}
	}
	return scalarResult(NumberValue(float64(count)))
}

func (bf *BuiltInFunctions) COUNTA(args []FunctionArg) FunctionResult {
	count := 0
	for _, arg := range args {
		for _, v := range arg.Values() {
			if v.Type != CellValueEmpty {
				count++
			}
		}
	}
	return scalarResult(NumberValue(float64(count)))
}

func (bf *BuiltInFunctions) MAX(args []FunctionArg) FunctionResult {
	if v, isErr := firstError(args); isErr {
		return scalarResult(v)
	}
	nums := numericValues(args)
	if len(nums) == 0 {
		return scalarResult(NumberValue(0))
	}
	max := nums[0]
	for _, n := range nums[1:] {
		if n > max {
			max = n
		}
	}
	return scalarResult(NumberValue(max))
}

func (bf *BuiltInFunctions) MIN(args []FunctionArg) FunctionResult {
	if v, isErr := firstError(args); isErr {
		return scalarResult(v)
	}
	nums := numericValues(args)
	if len(nums) == 0 {
		return scalarResult(NumberValue(0))
	}
	min := nums[0]
	for _, n := range nums[1:] {
		if n < min {
			min = n
		}
	}
	return scalarResult(NumberValue(min))
}

func isTruthy(v CellValue) bool {
	switch v.Type {
	case CellValueBoolean:
		return v.Boolean
	case CellValueNumber:
		return v.Number != 0
	case CellValueString:
		return v.Text != ""
	default:
		return false
	}
}

func (bf *BuiltInFunctions) IF(args []FunctionArg) FunctionResult {
	if len(args) < 2 || len(args) > 3 {
		return errorResult(ErrorCodeNA, "IF requires 2 or 3 arguments")
	}
	cond := args[0].Scalar
	if cond.IsError() {
		return scalarResult(cond)
	}
	if isTruthy(cond) {
		return scalarResult(args[1].Scalar)
	}
	if len(args) == 3 {
		return scalarResult(args[2].Scalar)
	}
	return scalarResult(BooleanValue(false))
}

func (bf *BuiltInFunctions) AND(args []FunctionArg) FunctionResult {
	for _, arg := range args {
		if arg.Scalar.IsError() {
			return scalarResult(arg.Scalar)
		}
		if !isTruthy(arg.Scalar) {
			return scalarResult(BooleanValue(false))
		}
	}
	return scalarResult(BooleanValue(true))
}

func (bf *BuiltInFunctions) OR(args []FunctionArg) FunctionResult {
	for _, arg := range args {
		if arg.Scalar.IsError() {
			return scalarResult(arg.Scalar)
		}
		if isTruthy(arg.Scalar) {
			return scalarResult(BooleanValue(true))
		}
	}
	return scalarResult(BooleanValue(false))
}

func (bf *BuiltInFunctions) NOT(args []FunctionArg) FunctionResult {
	if len(args) != 1 {
		return errorResult(ErrorCodeNA, "NOT requires exactly 1 argument")
	}
	if args[0].Scalar.IsError() {
		return scalarResult(args[0].Scalar)
	}
	return scalarResult(BooleanValue(!isTruthy(args[0].Scalar)))
}

func cellText(v CellValue) string {
	switch v.Type {
	case CellValueString:
		return v.Text
	case CellValueNumber:
		return NumberValue(v.Number).String()
	case CellValueBoolean:
		if v.Boolean {
			return "TRUE"
		}
		return "FALSE"
	case CellValueEmpty:
		return ""
	default:
		return v.String()
	}
}

func (bf *BuiltInFunctions) CONCATENATE(args []FunctionArg) FunctionResult {
	var sb strings.Builder
	for _, arg := range args {
		if arg.Scalar.IsError() {
			return scalarResult(arg.Scalar)
		}
		sb.WriteString(cellText(arg.Scalar))
	}
	return scalarResult(StringValue(sb.String()))
}

func (bf *BuiltInFunctions) LEN(args []FunctionArg) FunctionResult {
	if len(args) != 1 {
		return errorResult(ErrorCodeNA, "LEN requires exactly 1 argument")
	}
	if args[0].Scalar.IsError() {
		return scalarResult(args[0].Scalar)
	}
	return scalarResult(NumberValue(float64(len(cellText(args[0].Scalar)))))
}

func (bf *BuiltInFunctions) UPPER(args []FunctionArg) FunctionResult {
	if len(args) != 1 {
		return errorResult(ErrorCodeNA, "UPPER requires exactly 1 argument")
	}
	return scalarResult(StringValue(strings.ToUpper(cellText(args[0].Scalar))))
}

func (bf *BuiltInFunctions) LOWER(args []FunctionArg) FunctionResult {
	if len(args) != 1 {
		return errorResult(ErrorCodeNA, "LOWER requires exactly 1 argument")
	}
	return scalarResult(StringValue(strings.ToLower(cellText(args[0].Scalar))))
}

func (bf *BuiltInFunctions) TRIM(args []FunctionArg) FunctionResult {
	if len(args) != 1 {
		return errorResult(ErrorCodeNA, "TRIM requires exactly 1 argument")
	}
	return scalarResult(StringValue(strings.TrimSpace(cellText(args[0].Scalar))))
}

// LEFT returns the leftmost n characters of text (default 1).
func (bf *BuiltInFunctions) LEFT(args []FunctionArg) FunctionResult {
	if len(args) < 1 || len(args) > 2 {
		return errorResult(ErrorCodeNA, "LEFT requires 1 or 2 arguments")
	}
	if args[0].Scalar.IsError() {
		return scalarResult(args[0].Scalar)
	}
	text := cellText(args[0].Scalar)
	runes := []rune(text)
	n := 1
	if len(args) == 2 {
		if args[1].Scalar.Type != CellValueNumber {
			return errorResult(ErrorCodeValue, "LEFT requires a numeric count")
		}
		n = int(args[1].Scalar.Number)
	}
	if n < 0 {
		return errorResult(ErrorCodeValue, "LEFT requires a non-negative count")
	}
	if n > len(runes) {
		n = len(runes)
	}
	return scalarResult(StringValue(string(runes[:n])))
}

func (bf *BuiltInFunctions) ABS(args []FunctionArg) FunctionResult {
	if len(args) != 1 || args[0].Scalar.Type != CellValueNumber {
		return errorResult(ErrorCodeValue, "ABS requires a numeric argument")
	}
	return scalarResult(NumberValue(math.Abs(args[0].Scalar.Number)))
}

func (bf *BuiltInFunctions) ROUND(args []FunctionArg) FunctionResult {
	if len(args) < 1 || len(args) > 2 || args[0].Scalar.Type != CellValueNumber {
		return errorResult(ErrorCodeValue, "ROUND requires a numeric first argument")
	}
	places := 0.0
	if len(args) == 2 {
		if args[1].Scalar.Type != CellValueNumber {
			return errorResult(ErrorCodeValue, "ROUND requires a numeric second argument")
		}
		places = args[1].Scalar.Number
	}
	multiplier := math.Pow(10, places)
	return scalarResult(NumberValue(math.Round(args[0].Scalar.Number*multiplier) / multiplier))
}

func (bf *BuiltInFunctions) SQRT(args []FunctionArg) FunctionResult {
	if len(args) != 1 || args[0].Scalar.Type != CellValueNumber {
		return errorResult(ErrorCodeValue, "SQRT requires a numeric argument")
	}
	if args[0].Scalar.Number < 0 {
		return errorResult(ErrorCodeNum, "SQRT requires a non-negative argument")
	}
	return scalarResult(NumberValue(math.Sqrt(args[0].Scalar.Number)))
}

func (bf *BuiltInFunctions) POWER(args []FunctionArg) FunctionResult {
	if len(args) != 2 || args[0].Scalar.Type != CellValueNumber || args[1].Scalar.Type != CellValueNumber {
		return errorResult(ErrorCodeValue, "POWER requires two numeric arguments")
	}
	return scalarResult(NumberValue(math.Pow(args[0].Scalar.Number, args[1].Scalar.Number)))
}

func (bf *BuiltInFunctions) MOD(args []FunctionArg) FunctionResult {
	if len(args) != 2 || args[0].Scalar.Type != CellValueNumber || args[1].Scalar.Type != CellValueNumber {
		return errorResult(ErrorCodeValue, "MOD requires two numeric arguments")
	}
	if args[1].Scalar.Number == 0 {
		return errorResult(ErrorCodeDivZero, "division by zero")
	}
	return scalarResult(NumberValue(math.Mod(args[0].Scalar.Number, args[1].Scalar.Number)))
}

func (bf *BuiltInFunctions) PI(args []FunctionArg) FunctionResult {
	return scalarResult(NumberValue(math.Pi))
}

const (
	excelEpochMillis = -2209075200000 // Dec 30 1899 00:00 UTC
	millisPerDay     = 86400000
)

func (bf *BuiltInFunctions) NOW(args []FunctionArg) FunctionResult {
	now := bf.clock.Now()
	diff := float64(now.UnixMilli() - excelEpochMillis)
	return scalarResult(NumberValue(diff / millisPerDay))
}

func (bf *BuiltInFunctions) TODAY(args []FunctionArg) FunctionResult {
	now := bf.clock.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	diff := float64(midnight.UnixMilli() - excelEpochMillis)
	return scalarResult(NumberValue(math.Floor(diff / millisPerDay)))
}

func (bf *BuiltInFunctions) RAND(args []FunctionArg) FunctionResult {
	return scalarResult(NumberValue(bf.rng.Float64()))
}

// MATCH locates lookupValue in lookupArray under matchType semantics:
//
//	 0: exact match, first occurrence, any order
//	 1 (default): last value <= lookupValue, array assumed ascending
//	-1: first value >= lookupValue, array assumed descending
//
// For +-1, an unsorted array yields an unspecified but deterministic
// result (Excel's own contract); this implementation walks the array
// once: for 1 the last qualifying index wins (so among equal values the
// latest one), for -1 the first qualifying index wins.
func (bf *BuiltInFunctions) MATCH(args []FunctionArg) FunctionResult {
	if len(args) < 2 || len(args) > 3 {
		return errorResult(ErrorCodeNA, "MATCH requires 2 or 3 arguments")
	}
	lookup := args[0].Scalar
	if lookup.IsError() {
		return scalarResult(lookup)
	}
	values := args[1].Values()
	matchType := 1.0
	if len(args) == 3 {
		if args[2].Scalar.Type != CellValueNumber {
			return errorResult(ErrorCodeValue, "MATCH requires a numeric match type")
		}
		matchType = args[2].Scalar.Number
	}

	switch {
	case matchType == 0:
		for i, v := range values {
			if Compare(v, lookup) == 0 {
				return scalarResult(NumberValue(float64(i + 1)))
			}
		}
		return errorResult(ErrorCodeNA, "MATCH found no exact match")
	case matchType > 0:
		bestIdx := -1
		for i, v := range values {
			if Compare(v, lookup) <= 0 {
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			return errorResult(ErrorCodeNA, "MATCH found no candidate <= lookup value")
		}
		return scalarResult(NumberValue(float64(bestIdx + 1)))
	default:
		bestIdx := -1
		for i, v := range values {
			if Compare(v, lookup) >= 0 {
				bestIdx = i
				break
			}
		}
		if bestIdx == -1 {
			return errorResult(ErrorCodeNA, "MATCH found no candidate >= lookup value")
		}
		return scalarResult(NumberValue(float64(bestIdx + 1)))
	}
}

// INDEX returns the element at (row, col) (1-based) of an array argument.
// Omitting col selects column 1, so a single-row array only answers row 1.
func (bf *BuiltInFunctions) INDEX(args []FunctionArg) FunctionResult {
	if len(args) < 2 || len(args) > 3 {
		return errorResult(ErrorCodeNA, "INDEX requires 2 or 3 arguments")
	}
	array := args[0]
	if !array.IsArray {
		array = FunctionArg{IsArray: true, Array: [][]CellValue{{array.Scalar}}}
	}
	if args[1].Scalar.Type != CellValueNumber {
		return errorResult(ErrorCodeValue, "INDEX requires a numeric row argument")
	}
	row := int(args[1].Scalar.Number)
	col := 1
	if len(args) == 3 {
		if args[2].Scalar.Type != CellValueNumber {
			return errorResult(ErrorCodeValue, "INDEX requires a numeric column argument")
		}
		col = int(args[2].Scalar.Number)
	}
	if row < 1 || row > len(array.Array) {
		return errorResult(ErrorCodeRef, "INDEX row out of range")
	}
	targetRow := array.Array[row-1]
	if col < 1 || col > len(targetRow) {
		return errorResult(ErrorCodeRef, "INDEX column out of range")
	}
	return scalarResult(targetRow[col-1])
}

// SEQUENCE generates a rows x columns array starting at start and
// incrementing by step (defaults 1, 1). It always spills.
func (bf *BuiltInFunctions) SEQUENCE(args []FunctionArg) FunctionResult {
	if len(args) < 1 || len(args) > 4 {
		return errorResult(ErrorCodeNA, "SEQUENCE requires 1 to 4 arguments")
	}
	asInt := func(arg FunctionArg, def float64) (float64, bool) {
		if arg.Scalar.Type != CellValueNumber {
			return 0, false
		}
		return arg.Scalar.Number, true
	}
	rows, ok := asInt(args[0], 1)
	if !ok || rows < 1 {
		return errorResult(ErrorCodeValue, "SEQUENCE requires a positive row count")
	}
	cols := 1.0
	if len(args) >= 2 {
		if cols, ok = asInt(args[1], 1); !ok || cols < 1 {
			return errorResult(ErrorCodeValue, "SEQUENCE requires a positive column count")
		}
	}
	start := 1.0
	if len(args) >= 3 {
		if start, ok = asInt(args[2], 1); !ok {
			return errorResult(ErrorCodeValue, "SEQUENCE requires a numeric start")
		}
	}
	step := 1.0
	if len(args) == 4 {
		if step, ok = asInt(args[3], 1); !ok {
			return errorResult(ErrorCodeValue, "SEQUENCE requires a numeric step")
		}
	}

	out := make([][]CellValue, int(rows))
	value := start
	for r := range out {
		row := make([]CellValue, int(cols))
		for c := range row {
			row[c] = NumberValue(value)
			value += step
		}
		out[r] = row
	}
	return FunctionResult{IsArray: true, Array: out}
}

// FILTER keeps the rows of array for which the parallel include array is
// truthy. Always spills; an all-false include with no ifEmpty yields #N/A.
func (bf *BuiltInFunctions) FILTER(args []FunctionArg) FunctionResult {
	if len(args) < 2 || len(args) > 3 {
		return errorResult(ErrorCodeNA, "FILTER requires 2 or 3 arguments")
	}
	array := args[0]
	if !array.IsArray {
		array = FunctionArg{IsArray: true, Array: [][]CellValue{{array.Scalar}}}
	}
	include := args[1]
	includeRows := include.Array
	if !include.IsArray {
		includeRows = [][]CellValue{{include.Scalar}}
	}
	if len(includeRows) != len(array.Array) {
		return errorResult(ErrorCodeValue, "FILTER include array must have the same row count as the source array")
	}

	var out [][]CellValue
	for i, row := range array.Array {
		keep := false
		for _, v := range includeRows[i] {
			if isTruthy(v) {
				keep = true
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}

	if len(out) == 0 {
		if len(args) == 3 {
			return scalarResult(args[2].Scalar)
		}
		return errorResult(ErrorCodeNA, "FILTER found no matching rows")
	}

	return FunctionResult{IsArray: true, Array: out}
}
