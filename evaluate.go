package formulaengine

import "strings"

// EvaluationResultKind is the discriminant of EvaluationResult, the sum type
// every node evaluates to: a single value, a materialized rectangle of
// values anchored at some origin cell, or an error.
type EvaluationResultKind int

const (
	ResultValue EvaluationResultKind = iota
	ResultSpilled
	ResultError
)

// SpillSource is a materialized rectangular result: a range reference, an
// array literal, or the output of an array-returning function such as
// SEQUENCE or FILTER. Values is row-major and matches Area's dimensions
// exactly; OriginResult is the value at the top-left corner, used whenever
// only a scalar is needed (e.g. a spilled argument feeding a scalar
// function).
type SpillSource struct {
	Area         FiniteSpreadsheetRange
	Origin       CellAddress
	OriginResult CellValue
	Values       [][]CellValue
}

// EvaluateAt returns the value owned by this spill at target, or ok=false if
// target falls outside the spill area.
func (s *SpillSource) EvaluateAt(target CellAddress) (CellValue, bool) {
	if target.WorksheetID != s.Area.WorksheetID || !s.Area.Contains(target.Column, target.Row) {
		return CellValue{}, false
	}
	return s.Values[target.Row-s.Area.StartRow][target.Column-s.Area.StartCol], true
}

// EvaluateAllCells flattens the spill row-major, the idiomatic input to
// reducers like SUM and MATCH.
func (s *SpillSource) EvaluateAllCells() []CellValue {
	out := make([]CellValue, 0, len(s.Values)*len(s.Values[0]))
	for _, row := range s.Values {
		out = append(out, row...)
	}
	return out
}

// EvaluationResult is what evaluateNode returns for every AST node: exactly
// one of a value, a spill, or an error.
type EvaluationResult struct {
	Kind  EvaluationResultKind
	Value CellValue // populated for ResultValue and ResultError
	Spill *SpillSource
}

func valueEval(v CellValue) EvaluationResult {
	if v.IsError() {
		return EvaluationResult{Kind: ResultError, Value: v}
	}
	return EvaluationResult{Kind: ResultValue, Value: v}
}

func errEval(code ErrorCode, message string) EvaluationResult {
	return EvaluationResult{Kind: ResultError, Value: ErrorValue(code, message)}
}

func spillEval(origin CellAddress, area FiniteSpreadsheetRange, values [][]CellValue) EvaluationResult {
	return EvaluationResult{
		Kind:  ResultSpilled,
		Spill: &SpillSource{Area: area, Origin: origin, OriginResult: values[0][0], Values: values},
	}
}

// ScalarValue collapses a result to a single CellValue: the value itself for
// ResultValue/ResultError, or the origin value for a spill.
func (r EvaluationResult) ScalarValue() CellValue {
	if r.Kind == ResultSpilled {
		return r.Spill.OriginResult
	}
	return r.Value
}

// EvaluationContext carries the state threaded through one evaluateNode
// call tree: the registry backing all lookups, the function table, the
// sheet unqualified references resolve against, the cell that anchors any
// spill produced along the way, and the cycle-detection stack. A context is
// mutated and restored around formula reentry rather than cloned, since the
// cycle stack must be shared across the whole call tree.
type EvaluationContext struct {
	registry  *Registry
	functions *BuiltInFunctions
	sheetID   uint32
	origin    CellAddress
	stack     []CellAddress
	stackSet  map[CellAddress]struct{}
}

// NewEvaluationContext starts a fresh evaluation rooted at origin, which is
// both the current sheet and the cell any top-level spill anchors to.
func NewEvaluationContext(registry *Registry, functions *BuiltInFunctions, origin CellAddress) *EvaluationContext {
	return &EvaluationContext{
		registry:  registry,
		functions: functions,
		sheetID:   origin.WorksheetID,
		origin:    origin,
		stackSet:  make(map[CellAddress]struct{}),
	}
}

// enter pushes addr onto the cycle-detection stack. ok is false if addr is
// already being evaluated further up the stack, the #CYCLE! condition.
func (ctx *EvaluationContext) enter(addr CellAddress) (leave func(), ok bool) {
	if _, inFlight := ctx.stackSet[addr]; inFlight {
		return nil, false
	}
	ctx.stackSet[addr] = struct{}{}
	ctx.stack = append(ctx.stack, addr)
	return func() {
		ctx.stack = ctx.stack[:len(ctx.stack)-1]
		delete(ctx.stackSet, addr)
	}, true
}

// resolveWorksheetID resolves a (sheet, workbook)-qualified reference to a
// worksheet ID, against the context's current sheet for an unqualified
// reference; per §3.5 invariant 4, an unresolvable sheet or workbook means
// the caller should surface #REF!.
func (ctx *EvaluationContext) resolveWorksheetID(sheet, workbook *string) (uint32, bool) {
	return resolveQualifiedSheet(ctx.registry, ctx.sheetID, sheet, workbook)
}

// EvaluateCell evaluates the content at addr (literal, formula, or a spill
// landing on an otherwise-empty cell) from scratch, with its own cycle
// stack. It is the entry point engines use for both ad hoc reads
// (getCellValue) and recalculation.
func EvaluateCell(registry *Registry, functions *BuiltInFunctions, addr CellAddress) EvaluationResult {
	ctx := NewEvaluationContext(registry, functions, addr)
	return ctx.evaluateCellAt(addr)
}

func (ctx *EvaluationContext) evaluateCellAt(addr CellAddress) EvaluationResult {
	ws, exists := ctx.registry.Worksheets.GetWorksheet(addr.WorksheetID)
	if !exists {
		return errEval(ErrorCodeRef, "worksheet not found")
	}
	content, has := ws.GetCell(addr.Row, addr.Column)
	if !has {
		return ctx.resolveSpillInto(ws, addr)
	}
	if content.HasFormula {
		return ctx.evaluateFormulaCell(addr, content.FormulaID)
	}
	return valueEval(content.Literal)
}

// evaluateFormulaCell reenters the formula stored at addr, guarded by the
// cycle stack, with the sheet and spill anchor temporarily switched to addr
// for the duration of the call.
func (ctx *EvaluationContext) evaluateFormulaCell(addr CellAddress, formulaID uint32) EvaluationResult {
	leave, ok := ctx.enter(addr)
	if !ok {
		return errEval(ErrorCodeCycle, "circular reference detected")
	}
	defer leave()

	ast, exists := ctx.registry.Formulas.GetAST(formulaID)
	if !exists {
		return errEval(ErrorCodeGeneric, "formula not found for cell")
	}

	prevSheet, prevOrigin := ctx.sheetID, ctx.origin
	ctx.sheetID, ctx.origin = addr.WorksheetID, addr
	result := EvaluateNode(ast, ctx)
	ctx.sheetID, ctx.origin = prevSheet, prevOrigin
	return result
}

// resolveSpillInto checks whether an otherwise-empty cell is covered by
// another cell's spill: every formula origin on the sheet is a candidate,
// each evaluated in turn (skipping any already mid-evaluation, which can't
// be the owner since a formula never spills into itself: see spill
// uniqueness).
func (ctx *EvaluationContext) resolveSpillInto(ws *Worksheet, addr CellAddress) EvaluationResult {
	for origin := range ws.FormulaOrigins() {
		if origin == addr {
			continue
		}
		if _, inFlight := ctx.stackSet[origin]; inFlight {
			continue
		}
		content, has := ws.GetCell(origin.Row, origin.Column)
		if !has || !content.HasFormula {
			continue
		}
		result := ctx.evaluateFormulaCell(origin, content.FormulaID)
		if result.Kind == ResultSpilled {
			if v, ok := result.Spill.EvaluateAt(addr); ok {
				return valueEval(v)
			}
		}
	}
	return valueEval(Empty())
}

// evaluateRangeValues materializes rng over the worksheet's occupied bounds
// (the "materialized-cells-only" policy for open-ended ranges) and returns
// a spill, even for a single-cell range: a range reference is a spilled
// source by definition, per §4.7. A range whose end precedes its start
// (e.g. B2:A1) evaluates to a single empty value instead.
func (ctx *EvaluationContext) evaluateRangeValues(rng SpreadsheetRange) EvaluationResult {
	ws, exists := ctx.registry.Worksheets.GetWorksheet(rng.WorksheetID)
	if !exists {
		return errEval(ErrorCodeRef, "worksheet not found")
	}

	maxCol, maxRow := rng.StartCol, rng.StartRow
	if used, ok := ws.UsedRange(); ok {
		if used.EndCol > maxCol {
			maxCol = used.EndCol
		}
		if used.EndRow > maxRow {
			maxRow = used.EndRow
		}
	}
	area := rng.ToFinite(maxCol, maxRow)
	if area.StartCol > area.EndCol || area.StartRow > area.EndRow {
		return valueEval(Empty())
	}

	values := make([][]CellValue, area.Height())
	for r := uint32(0); r < area.Height(); r++ {
		row := make([]CellValue, area.Width())
		for c := uint32(0); c < area.Width(); c++ {
			addr := CellAddress{WorksheetID: area.WorksheetID, Row: area.StartRow + r, Column: area.StartCol + c}
			row[c] = ctx.evaluateCellAt(addr).ScalarValue()
		}
		values[r] = row
	}
	origin := CellAddress{WorksheetID: area.WorksheetID, Row: area.StartRow, Column: area.StartCol}
	return spillEval(origin, area, values)
}

// resolveSheetSpan orders the sheets between startName and endName
// inclusive for a 3D range. When workbook is given, the order follows that
// workbook's sheet insertion order; otherwise sheets are walked by interned
// ID, which tracks creation order closely enough for this purpose.
func (ctx *EvaluationContext) resolveSheetSpan(startName, endName string, workbook *string) ([]uint32, bool) {
	startID, sOK := ctx.registry.Worksheets.GetWorksheetID(startName)
	endID, eOK := ctx.registry.Worksheets.GetWorksheetID(endName)
	if !sOK || !eOK {
		return nil, false
	}

	if workbook != nil {
		wb, ok := ctx.registry.Workbooks.GetWorkbookByName(*workbook)
		if !ok {
			return nil, false
		}
		startIdx, endIdx := -1, -1
		for i, id := range wb.SheetOrder {
			if id == startID {
				startIdx = i
			}
			if id == endID {
				endIdx = i
			}
		}
		if startIdx == -1 || endIdx == -1 {
			return nil, false
		}
		if startIdx > endIdx {
			startIdx, endIdx = endIdx, startIdx
		}
		return append([]uint32{}, wb.SheetOrder[startIdx:endIdx+1]...), true
	}

	if startID > endID {
		startID, endID = endID, startID
	}
	var ids []uint32
	for id := startID; id <= endID; id++ {
		if _, exists := ctx.registry.Worksheets.GetWorksheet(id); exists {
			ids = append(ids, id)
		}
	}
	return ids, len(ids) > 0
}

// reanchor repositions area's dimensions at origin, used whenever a binary
// op, unary op, or elementwise function broadcasts across a spilled
// operand: the result keeps the operand's shape but anchors at the current
// formula cell, not at the operand's own origin.
func reanchor(area FiniteSpreadsheetRange, origin CellAddress) FiniteSpreadsheetRange {
	return FiniteSpreadsheetRange{
		WorksheetID: origin.WorksheetID,
		StartCol:    origin.Column,
		StartRow:    origin.Row,
		EndCol:      origin.Column + area.Width() - 1,
		EndRow:      origin.Row + area.Height() - 1,
	}
}

// valueAtOffset reads the (r, c) element of a spilled result, or its scalar
// value (repeated at every offset) if it isn't spilled.
func valueAtOffset(res EvaluationResult, r, c uint32) CellValue {
	if res.Kind != ResultSpilled {
		return res.ScalarValue()
	}
	if int(r) < len(res.Spill.Values) && int(c) < len(res.Spill.Values[r]) {
		return res.Spill.Values[r][c]
	}
	return res.Spill.OriginResult
}

// EvaluateNode dispatches a single AST node to its EvaluationResult. Callers
// needing a plain value should collapse with ScalarValue; callers iterating
// a range (SUM, MATCH, ...) use the Spill field directly.
func EvaluateNode(node Node, ctx *EvaluationContext) EvaluationResult {
	switch n := node.(type) {
	case *EmptyNode:
		return valueEval(Empty())
	case *ValueNode:
		return valueEval(n.Value)
	case *InfinityNode:
		return valueEval(InfinityValue(n.Sign))
	case *ErrorNode:
		return errEval(n.Code, n.Message)
	case *UnaryOpNode:
		return evaluateUnary(n, ctx)
	case *BinaryOpNode:
		return evaluateBinary(n, ctx)
	case *ReferenceNode:
		return evaluateReference(n, ctx)
	case *RangeNode:
		return evaluateRangeNode(n, ctx)
	case *ThreeDRangeNode:
		return evaluateThreeDRange(n, ctx)
	case *ArrayNode:
		return evaluateArrayLiteral(n, ctx)
	case *NamedExpressionNode:
		return evaluateNamedExpression(n, ctx)
	case *StructuredReferenceNode:
		return evaluateStructuredReference(n, ctx)
	case *FunctionNode:
		return evaluateFunction(n, ctx)
	default:
		return errEval(ErrorCodeGeneric, "unsupported node in evaluator")
	}
}

func evaluateReference(n *ReferenceNode, ctx *EvaluationContext) EvaluationResult {
	wsID, ok := ctx.resolveWorksheetID(n.Sheet, n.Workbook)
	if !ok {
		return errEval(ErrorCodeRef, "unknown sheet reference")
	}
	return ctx.evaluateCellAt(CellAddress{WorksheetID: wsID, Column: n.Column, Row: n.Row})
}

func evaluateRangeNode(n *RangeNode, ctx *EvaluationContext) EvaluationResult {
	wsID, ok := ctx.resolveWorksheetID(n.Sheet, n.Workbook)
	if !ok {
		return errEval(ErrorCodeRef, "unknown sheet reference")
	}
	rng := SpreadsheetRange{WorksheetID: wsID, StartCol: n.StartCol, StartRow: n.StartRow, EndCol: n.EndCol, EndRow: n.EndRow}
	return ctx.evaluateRangeValues(rng)
}

func evaluateThreeDRange(n *ThreeDRangeNode, ctx *EvaluationContext) EvaluationResult {
	sheetIDs, ok := ctx.resolveSheetSpan(n.StartSheet, n.EndSheet, n.Workbook)
	if !ok {
		return errEval(ErrorCodeRef, "unknown 3D range sheet span")
	}

	var stacked [][]CellValue
	var firstArea FiniteSpreadsheetRange
	for i, sheetID := range sheetIDs {
		var rng SpreadsheetRange
		switch inner := n.Inner.(type) {
		case *ReferenceNode:
			rng = SpreadsheetRange{WorksheetID: sheetID, StartCol: inner.Column, StartRow: inner.Row, EndCol: FiniteBound(inner.Column), EndRow: FiniteBound(inner.Row)}
		case *RangeNode:
			rng = SpreadsheetRange{WorksheetID: sheetID, StartCol: inner.StartCol, StartRow: inner.StartRow, EndCol: inner.EndCol, EndRow: inner.EndRow}
		default:
			return errEval(ErrorCodeRef, "invalid 3D range body")
		}
		result := ctx.evaluateRangeValues(rng)
		if result.Kind == ResultError {
			return result
		}
		if result.Kind == ResultSpilled {
			stacked = append(stacked, result.Spill.Values...)
			if i == 0 {
				firstArea = result.Spill.Area
			}
		} else {
			stacked = append(stacked, []CellValue{result.Value})
		}
	}
	if len(stacked) == 0 {
		return valueEval(Empty())
	}
	origin := CellAddress{WorksheetID: ctx.sheetID, Row: ctx.origin.Row, Column: ctx.origin.Column}
	width := uint32(len(stacked[0]))
	if firstArea.Width() > 0 {
		width = firstArea.Width()
	}
	area := FiniteSpreadsheetRange{
		WorksheetID: ctx.origin.WorksheetID,
		StartCol:    ctx.origin.Column, StartRow: ctx.origin.Row,
		EndCol: ctx.origin.Column + width - 1, EndRow: ctx.origin.Row + uint32(len(stacked)) - 1,
	}
	_ = origin
	return spillEval(ctx.origin, area, stacked)
}

// evaluateArrayLiteral materializes `{...}` directly, anchored at the
// current formula cell.
func evaluateArrayLiteral(n *ArrayNode, ctx *EvaluationContext) EvaluationResult {
	if len(n.Rows) == 0 {
		return valueEval(Empty())
	}
	values := make([][]CellValue, len(n.Rows))
	for r, row := range n.Rows {
		vals := make([]CellValue, len(row))
		for c, cellNode := range row {
			vals[c] = EvaluateNode(cellNode, ctx).ScalarValue()
		}
		values[r] = vals
	}
	height := uint32(len(values))
	width := uint32(len(values[0]))
	area := FiniteSpreadsheetRange{
		WorksheetID: ctx.origin.WorksheetID,
		StartCol:    ctx.origin.Column, StartRow: ctx.origin.Row,
		EndCol: ctx.origin.Column + width - 1, EndRow: ctx.origin.Row + height - 1,
	}
	return spillEval(ctx.origin, area, values)
}

func evaluateNamedExpression(n *NamedExpressionNode, ctx *EvaluationContext) EvaluationResult {
	id, ok := ctx.registry.NamedRanges.GetNamedRangeID(n.Name)
	if !ok {
		return errEval(ErrorCodeName, "unknown name: "+n.Name)
	}
	target, defined := ctx.registry.NamedRanges.GetRange(id)
	if !defined {
		return errEval(ErrorCodeName, "undefined name: "+n.Name)
	}
	return ctx.evaluateRangeValues(target)
}

// evaluateStructuredReference resolves Table1[Col]-style references to the
// finite range they name, then defers to range evaluation.
func evaluateStructuredReference(n *StructuredReferenceNode, ctx *EvaluationContext) EvaluationResult {
	sr, message, ok := resolveStructuredReferenceRange(ctx.registry, n, ctx.origin.Row)
	if !ok {
		return errEval(ErrorCodeRef, message)
	}
	return ctx.evaluateRangeValues(sr)
}

// resolveStructuredReferenceRange resolves a Table1[Col]-style reference to
// the SpreadsheetRange it names, without evaluating any cell. currentRow is
// the row used for an @-prefixed (current row) reference. The returned
// message, when ok is false, describes why resolution failed; dependency
// extraction and evaluation both consume this so the logic lives in one
// place.
func resolveStructuredReferenceRange(registry *Registry, n *StructuredReferenceNode, currentRow uint32) (SpreadsheetRange, string, bool) {
	if n.Table == nil {
		return SpreadsheetRange{}, "structured reference missing table name", false
	}
	table, ok := registry.Tables.GetTableByName(*n.Table)
	if !ok {
		return SpreadsheetRange{}, "unknown table: " + *n.Table, false
	}

	var rng FiniteSpreadsheetRange
	switch {
	case n.IsCurrentRow:
		if n.StartColumn == nil {
			return SpreadsheetRange{}, "structured reference missing column", false
		}
		colIdx, found := table.ColumnIndex(*n.StartColumn)
		if !found {
			return SpreadsheetRange{}, "unknown table column: " + *n.StartColumn, false
		}
		colRange := table.ColumnRange(colIdx)
		rng = FiniteSpreadsheetRange{WorksheetID: colRange.WorksheetID, StartCol: colRange.StartCol, EndCol: colRange.EndCol, StartRow: currentRow, EndRow: currentRow}
	case n.Selector == SelectorHeaders:
		rng = table.HeaderRange()
	case n.Selector == SelectorAll:
		rng = table.Range
	default:
		rng = table.DataRange()
	}

	if n.StartColumn != nil && !n.IsCurrentRow {
		startIdx, found := table.ColumnIndex(*n.StartColumn)
		if !found {
			return SpreadsheetRange{}, "unknown table column: " + *n.StartColumn, false
		}
		endIdx := startIdx
		if n.EndColumn != nil {
			endIdx, found = table.ColumnIndex(*n.EndColumn)
			if !found {
				return SpreadsheetRange{}, "unknown table column: " + *n.EndColumn, false
			}
		}
		if endIdx < startIdx {
			startIdx, endIdx = endIdx, startIdx
		}
		rng.StartCol = table.Range.StartCol + uint32(startIdx)
		rng.EndCol = table.Range.StartCol + uint32(endIdx)
	}

	return SpreadsheetRange{WorksheetID: rng.WorksheetID, StartCol: rng.StartCol, StartRow: rng.StartRow, EndCol: FiniteBound(rng.EndCol), EndRow: FiniteBound(rng.EndRow)}, "", true
}

func applyUnary(op UnaryOperator, v CellValue) CellValue {
	if v.IsError() {
		return v
	}
	switch op {
	case OpUnaryMinus:
		return Subtract(NumberValue(0), v)
	case OpUnaryPlus:
		return Add(NumberValue(0), v)
	case OpUnaryPercent:
		if v.Type != CellValueNumber {
			return ErrorValue(ErrorCodeValue, "percent operator requires a numeric operand")
		}
		return NumberValue(v.Number / 100)
	}
	return v
}

func evaluateUnary(n *UnaryOpNode, ctx *EvaluationContext) EvaluationResult {
	operand := EvaluateNode(n.Operand, ctx)
	if operand.Kind != ResultSpilled {
		return valueEval(applyUnary(n.Op, operand.ScalarValue()))
	}

	src := operand.Spill
	values := make([][]CellValue, len(src.Values))
	for r, row := range src.Values {
		out := make([]CellValue, len(row))
		for c, v := range row {
			out[c] = applyUnary(n.Op, v)
		}
		values[r] = out
	}
	return spillEval(ctx.origin, reanchor(src.Area, ctx.origin), values)
}

func applyBinaryOp(op BinaryOperator, l, r CellValue) CellValue {
	switch op {
	case OpAdd:
		return Add(l, r)
	case OpSubtract:
		return Subtract(l, r)
	case OpMultiply:
		return Multiply(l, r)
	case OpDivide:
		return Divide(l, r)
	case OpPower:
		return Power(l, r)
	case OpConcat:
		return Concat(l, r)
	case OpEqual:
		return compareResult(l, r, func(c int) bool { return c == 0 })
	case OpNotEqual:
		return compareResult(l, r, func(c int) bool { return c != 0 })
	case OpLess:
		return compareResult(l, r, func(c int) bool { return c < 0 })
	case OpLessEqual:
		return compareResult(l, r, func(c int) bool { return c <= 0 })
	case OpGreater:
		return compareResult(l, r, func(c int) bool { return c > 0 })
	case OpGreaterEqual:
		return compareResult(l, r, func(c int) bool { return c >= 0 })
	default:
		return ErrorValue(ErrorCodeGeneric, "unknown operator")
	}
}

func compareResult(l, r CellValue, pred func(int) bool) CellValue {
	if l.IsError() {
		return l
	}
	if r.IsError() {
		return r
	}
	return BooleanValue(pred(Compare(l, r)))
}

// broadcastArea picks the larger operand's area by cell count; ties go to
// the left operand, which was evaluated (and so logically inserted) first.
func broadcastArea(left, right EvaluationResult) FiniteSpreadsheetRange {
	switch {
	case left.Kind == ResultSpilled && right.Kind == ResultSpilled:
		if right.Spill.Area.CellCount() > left.Spill.Area.CellCount() {
			return right.Spill.Area
		}
		return left.Spill.Area
	case left.Kind == ResultSpilled:
		return left.Spill.Area
	default:
		return right.Spill.Area
	}
}

func evaluateBinary(n *BinaryOpNode, ctx *EvaluationContext) EvaluationResult {
	left := EvaluateNode(n.Left, ctx)
	right := EvaluateNode(n.Right, ctx)

	if left.Kind != ResultSpilled && right.Kind != ResultSpilled {
		return valueEval(applyBinaryOp(n.Op, left.ScalarValue(), right.ScalarValue()))
	}

	area := broadcastArea(left, right)
	values := make([][]CellValue, area.Height())
	for r := uint32(0); r < area.Height(); r++ {
		row := make([]CellValue, area.Width())
		for c := uint32(0); c < area.Width(); c++ {
			row[c] = applyBinaryOp(n.Op, valueAtOffset(left, r, c), valueAtOffset(right, r, c))
		}
		values[r] = row
	}
	return spillEval(ctx.origin, reanchor(area, ctx.origin), values)
}

// arrayConsumingFunctions take the whole materialized array as one argument
// (so a spilled operand becomes FunctionArg.Array), as opposed to the
// elementwise functions that broadcast per-offset.
var arrayConsumingFunctions = map[string]bool{
	"SUM": true, "AVERAGE": true, "COUNT": true, "COUNTA": true,
	"MAX": true, "MIN": true, "MATCH": true, "INDEX": true, "FILTER": true,
}

func toFunctionArg(r EvaluationResult) FunctionArg {
	if r.Kind == ResultSpilled {
		return FunctionArg{IsArray: true, Array: r.Spill.Values}
	}
	return FunctionArg{Scalar: r.Value}
}

func functionResultToEval(result FunctionResult, origin CellAddress) EvaluationResult {
	if !result.IsArray {
		return valueEval(result.Scalar)
	}
	if len(result.Array) == 0 || len(result.Array[0]) == 0 {
		return valueEval(Empty())
	}
	height := uint32(len(result.Array))
	width := uint32(len(result.Array[0]))
	area := FiniteSpreadsheetRange{
		WorksheetID: origin.WorksheetID,
		StartCol:    origin.Column, StartRow: origin.Row,
		EndCol: origin.Column + width - 1, EndRow: origin.Row + height - 1,
	}
	return spillEval(origin, area, result.Array)
}

func largestSpillArea(results []EvaluationResult) (FiniteSpreadsheetRange, bool) {
	var best FiniteSpreadsheetRange
	found := false
	for _, r := range results {
		if r.Kind != ResultSpilled {
			continue
		}
		if !found || r.Spill.Area.CellCount() > best.CellCount() {
			best, found = r.Spill.Area, true
		}
	}
	return best, found
}

// evaluateElementwiseFunction handles every built-in not in
// arrayConsumingFunctions and not SEQUENCE: with no spilled arguments it
// calls through once; with one or more spilled arguments it broadcasts,
// invoking the function once per offset of the largest input area and
// assembling a new spill anchored at the current cell.
func (ctx *EvaluationContext) evaluateElementwiseFunction(name string, results []EvaluationResult) EvaluationResult {
	area, anySpilled := largestSpillArea(results)
	if !anySpilled {
		args := make([]FunctionArg, len(results))
		for i, r := range results {
			args[i] = FunctionArg{Scalar: r.ScalarValue()}
		}
		return functionResultToEval(ctx.functions.Call(name, args), ctx.origin)
	}

	values := make([][]CellValue, area.Height())
	for r := uint32(0); r < area.Height(); r++ {
		row := make([]CellValue, area.Width())
		for c := uint32(0); c < area.Width(); c++ {
			args := make([]FunctionArg, len(results))
			for i, res := range results {
				args[i] = FunctionArg{Scalar: valueAtOffset(res, r, c)}
			}
			fr := ctx.functions.Call(name, args)
			if fr.IsArray {
				if len(fr.Array) > 0 && len(fr.Array[0]) > 0 {
					row[c] = fr.Array[0][0]
				} else {
					row[c] = Empty()
				}
			} else {
				row[c] = fr.Scalar
			}
		}
		values[r] = row
	}
	return spillEval(ctx.origin, reanchor(area, ctx.origin), values)
}

func evaluateFunction(n *FunctionNode, ctx *EvaluationContext) EvaluationResult {
	name := strings.ToUpper(n.Name)
	results := make([]EvaluationResult, len(n.Args))
	for i, argNode := range n.Args {
		results[i] = EvaluateNode(argNode, ctx)
	}

	switch {
	case arrayConsumingFunctions[name]:
		args := make([]FunctionArg, len(results))
		for i, r := range results {
			args[i] = toFunctionArg(r)
		}
		return functionResultToEval(ctx.functions.Call(name, args), ctx.origin)
	case name == "SEQUENCE":
		// spilled arguments contribute only their origin value to parameter
		// extraction; SEQUENCE itself decides the resulting spill shape.
		args := make([]FunctionArg, len(results))
		for i, r := range results {
			args[i] = FunctionArg{Scalar: r.ScalarValue()}
		}
		return functionResultToEval(ctx.functions.Call(name, args), ctx.origin)
	default:
		return ctx.evaluateElementwiseFunction(name, results)
	}
}
