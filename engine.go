package formulaengine

import (
	"github.com/rs/zerolog"
)

// Engine is the public facade (component L): it wires the registry (I),
// evaluator (J), and function registry (K) together and exposes the
// mutation and query operations an embedder calls. It is the only thing
// that constructs and mutates a *Registry.
type Engine struct {
	registry  *Registry
	functions *BuiltInFunctions
	events    *EventPublisher
	logger    zerolog.Logger
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

// WithLogger overrides the engine's structured logger, which defaults to
// a disabled logger (zerolog.Nop()) so embedding the engine is silent by
// default.
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithFunctions overrides the built-in function table, e.g. to inject a
// fixed Clock/RandomGenerator for deterministic tests of NOW/TODAY/RAND.
func WithFunctions(functions *BuiltInFunctions) EngineOption {
	return func(e *Engine) { e.functions = functions }
}

// NewEngine constructs an empty engine: no workbooks, sheets, or formulas.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		registry:  NewRegistry(),
		functions: NewDefaultBuiltInFunctions(),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.events = NewEventPublisher(e.logger)
	return e
}

// Subscribe registers listener for events of kind; the returned func
// detaches it.
func (e *Engine) Subscribe(kind EventKind, listener Listener) Unsubscribe {
	return e.events.Subscribe(kind, listener)
}

// --- Workbooks ---------------------------------------------------------

func (e *Engine) AddWorkbook(name string) error {
	if e.registry.Workbooks.Contains(name) {
		return NewAppError(AppErrorWorkbookExists, "workbook %q already exists", name)
	}
	e.registry.Workbooks.DefineWorkbook(name)
	e.logger.Info().Str("workbook", name).Msg("workbook added")
	return nil
}

func (e *Engine) RemoveWorkbook(name string) error {
	if _, ok := e.registry.Workbooks.GetWorkbookByName(name); !ok {
		return NewAppError(AppErrorWorkbookNotFound, "workbook %q not found", name)
	}
	e.registry.Workbooks.UndefineWorkbook(name)
	e.logger.Info().Str("workbook", name).Msg("workbook removed")
	return nil
}

// RenameWorkbook renames a workbook and rewrites every formula in the
// registry that qualifies a reference with the old workbook name, per
// base spec §4.8.
func (e *Engine) RenameWorkbook(oldName, newName string) error {
	if !e.registry.Workbooks.Contains(oldName) {
		return NewAppError(AppErrorWorkbookNotFound, "workbook %q not found", oldName)
	}
	if e.registry.Workbooks.Contains(newName) {
		return NewAppError(AppErrorWorkbookExists, "workbook %q already exists", newName)
	}
	e.registry.Workbooks.Rename(oldName, newName)
	e.rewriteAllFormulas(func(text string) string {
		return RenameWorkbookInFormula(text, oldName, newName)
	})
	e.logger.Info().Str("old", oldName).Str("new", newName).Msg("workbook renamed")
	return nil
}

// --- Sheets --------------------------------------------------------------

// AddSheet creates a sheet named name, optionally registering it as a
// member of workbookName (pass "" for a sheet outside any workbook).
func (e *Engine) AddSheet(workbookName, name string) error {
	if e.registry.Worksheets.Contains(name) {
		return NewAppError(AppErrorSheetExists, "sheet %q already exists", name)
	}
	_, id := e.registry.NewWorksheetIn(name)
	if workbookName != "" {
		wb, ok := e.registry.Workbooks.GetWorkbookByName(workbookName)
		if !ok {
			return NewAppError(AppErrorWorkbookNotFound, "workbook %q not found", workbookName)
		}
		wb.AddSheet(id)
	}
	e.events.PublishSheetAdded(workbookName, name)
	e.logger.Info().Str("workbook", workbookName).Str("sheet", name).Msg("sheet added")
	return nil
}

func (e *Engine) RemoveSheet(name string) error {
	ws, ok := e.registry.Worksheets.GetWorksheetByName(name)
	if !ok {
		return NewAppError(AppErrorSheetNotFound, "sheet %q not found", name)
	}
	workbookName := e.owningWorkbookName(ws.worksheetID)
	for _, wb := range e.registry.Workbooks.AllWorkbooks() {
		wb.RemoveSheet(ws.worksheetID)
	}
	e.registry.Worksheets.UndefineWorksheet(name)
	e.events.PublishSheetRemoved(workbookName, name)
	e.logger.Info().Str("sheet", name).Msg("sheet removed")
	return nil
}

// RenameSheet renames a sheet and rewrites every formula in the registry
// that references the old sheet name, per base spec §4.8.
func (e *Engine) RenameSheet(oldName, newName string) error {
	ws, ok := e.registry.Worksheets.GetWorksheetByName(oldName)
	if !ok {
		return NewAppError(AppErrorSheetNotFound, "sheet %q not found", oldName)
	}
	if e.registry.Worksheets.Contains(newName) {
		return NewAppError(AppErrorSheetExists, "sheet %q already exists", newName)
	}
	e.registry.Worksheets.Rename(oldName, newName)
	e.rewriteAllFormulas(func(text string) string {
		return RenameSheetInFormula(text, oldName, newName)
	})
	e.events.PublishSheetRenamed(e.owningWorkbookName(ws.worksheetID), oldName, newName)
	e.logger.Info().Str("old", oldName).Str("new", newName).Msg("sheet renamed")
	return nil
}

func (e *Engine) owningWorkbookName(worksheetID uint32) string {
	for _, wb := range e.registry.Workbooks.AllWorkbooks() {
		if _, ok := wb.SheetIDs[worksheetID]; ok {
			return wb.Name
		}
	}
	return ""
}

// rewriteAllFormulas reformats every formula currently stored anywhere in
// the registry through rewrite, re-parses the result, and replaces the
// cell's stored formula and dependency edges if the text actually
// changed. Used by sheet/workbook rename.
func (e *Engine) rewriteAllFormulas(rewrite func(string) string) {
	for _, ws := range e.registry.Worksheets.AllDefined() {
		origins := ws.FormulaOrigins()
		addrs := make([]CellAddress, 0, len(origins))
		for addr := range origins {
			addrs = append(addrs, addr)
		}
		for _, addr := range addrs {
			content, ok := ws.GetCell(addr.Row, addr.Column)
			if !ok || !content.HasFormula {
				continue
			}
			ast, ok := e.registry.Formulas.GetAST(content.FormulaID)
			if !ok {
				continue
			}
			oldText := Format(ast)
			newText := rewrite(oldText)
			if newText == oldText {
				continue
			}
			newAST, err := Parse(newText)
			if err != nil {
				continue
			}
			e.registry.Graph.ClearDependencies(addr)
			e.registry.Graph.ClearFormula(addr)
			e.storeFormula(ws, addr, newAST)
			e.recalculate(addr)
		}
	}
}

// --- Cells ---------------------------------------------------------------

// SetCellContent parses and stores value at the given sheet-qualified A1
// key, then recalculates every cell that depends on it, firing
// cell-changed events for anything whose value actually changed.
func (e *Engine) SetCellContent(sheetName, key string, value SerializedCellValue) error {
	ws, ok := e.registry.Worksheets.GetWorksheetByName(sheetName)
	if !ok {
		return NewAppError(AppErrorSheetNotFound, "sheet %q not found", sheetName)
	}
	col, row, err := ParseA1(key)
	if err != nil {
		return NewAppError(AppErrorInvalidAddress, "%v", err)
	}
	addr := CellAddress{WorksheetID: ws.worksheetID, Column: col, Row: row}
	e.setCellContent(ws, addr, value)
	changed := e.recalculate(addr)
	e.logger.Debug().Str("sheet", sheetName).Str("cell", key).Int("dependents_recalculated", len(changed)).Msg("cell set")
	return nil
}

// SetSheetContent atomically replaces a sheet's entire sparse map:
// observers see exactly one coherent post-state, per base spec §5.
func (e *Engine) SetSheetContent(sheetName string, cells map[string]SerializedCellValue) error {
	ws, ok := e.registry.Worksheets.GetWorksheetByName(sheetName)
	if !ok {
		return NewAppError(AppErrorSheetNotFound, "sheet %q not found", sheetName)
	}
	if used, ok := ws.UsedRange(); ok {
		ws.ForEachInRange(used, func(row, col uint32, _ CellContent) {
			addr := CellAddress{WorksheetID: ws.worksheetID, Column: col, Row: row}
			e.registry.Graph.ClearDependencies(addr)
			e.registry.Graph.ClearFormula(addr)
			ws.Clear(row, col)
		})
	}

	var touched []CellAddress
	for key, value := range cells {
		col, row, err := ParseA1(key)
		if err != nil {
			continue
		}
		addr := CellAddress{WorksheetID: ws.worksheetID, Column: col, Row: row}
		e.setCellContent(ws, addr, value)
		touched = append(touched, addr)
	}

	var allChanged []CellAddress
	for _, addr := range touched {
		allChanged = append(allChanged, e.recalculate(addr)...)
	}
	if len(allChanged) > 0 {
		e.events.PublishCellsChanged(allChanged)
	}
	e.logger.Info().Str("sheet", sheetName).Int("cells", len(cells)).Msg("sheet content replaced")
	return nil
}

// ClearSpreadsheetRange deletes every cell within r.
func (e *Engine) ClearSpreadsheetRange(sheetName string, r FiniteSpreadsheetRange) error {
	ws, ok := e.registry.Worksheets.GetWorksheetByName(sheetName)
	if !ok {
		return NewAppError(AppErrorSheetNotFound, "sheet %q not found", sheetName)
	}
	var changed []CellAddress
	ws.ForEachInRange(r, func(row, col uint32, _ CellContent) {
		addr := CellAddress{WorksheetID: ws.worksheetID, Column: col, Row: row}
		e.registry.Graph.ClearDependencies(addr)
		e.registry.Graph.ClearFormula(addr)
		ws.Clear(row, col)
		changed = append(changed, e.recalculate(addr)...)
	})
	if len(changed) > 0 {
		e.events.PublishCellsChanged(changed)
	}
	return nil
}

// GetCellValue evaluates and returns the value at a sheet-qualified A1
// key. Evaluation APIs never return a Go error -- an invalid address is a
// facade-level *AppError, but the cell's result is always a CellValue.
func (e *Engine) GetCellValue(sheetName, key string) (CellValue, error) {
	ws, ok := e.registry.Worksheets.GetWorksheetByName(sheetName)
	if !ok {
		return CellValue{}, NewAppError(AppErrorSheetNotFound, "sheet %q not found", sheetName)
	}
	col, row, err := ParseA1(key)
	if err != nil {
		return CellValue{}, NewAppError(AppErrorInvalidAddress, "%v", err)
	}
	addr := CellAddress{WorksheetID: ws.worksheetID, Column: col, Row: row}
	result := EvaluateCell(e.registry, e.functions, addr)
	return result.ScalarValue(), nil
}

func (e *Engine) setCellContent(ws *Worksheet, addr CellAddress, value SerializedCellValue) {
	e.registry.Graph.ClearDependencies(addr)
	e.registry.Graph.ClearFormula(addr)

	switch {
	case value.IsEmpty():
		ws.Clear(addr.Row, addr.Column)
	case value.IsFormula():
		ast, err := Parse(value.FormulaText())
		if err != nil {
			// Malformed shape: the cell evaluates to #ERROR! rather than
			// refusing the mutation, per base spec §7.
			ws.SetLiteral(addr.Row, addr.Column, ErrorValue(ErrorCodeGeneric, "invalid formula"))
			return
		}
		e.storeFormula(ws, addr, ast)
	default:
		ws.SetLiteral(addr.Row, addr.Column, value.ToLiteral())
	}
}

func (e *Engine) storeFormula(ws *Worksheet, addr CellAddress, ast Node) {
	formulaID := e.registry.Formulas.InternFormula(ast, addr)
	ws.SetFormula(addr.Row, addr.Column, formulaID)
	e.registry.Graph.SetFormula(addr, Format(ast))
	if formulaIsVolatile(ast) {
		e.registry.Graph.MarkVolatile(addr)
	} else {
		e.registry.Graph.UnmarkVolatile(addr)
	}

	deps := extractDependencies(ast, e.registry, addr.WorksheetID, addr.Row)
	for _, cell := range deps.Cells {
		e.registry.Graph.AddCellDependency(addr, cell)
	}
	for _, rng := range deps.Ranges {
		e.registry.Graph.AddRangeDependency(addr, rng)
	}
}

// recalculate re-evaluates origin plus every cell transitively affected
// by it (dependents and range observers), in topological order, and
// reports which ones actually changed value. It fires a cell-changed
// event per changed cell.
func (e *Engine) recalculate(origin CellAddress) []CellAddress {
	g := e.registry.Graph
	dirty := map[CellAddress]struct{}{origin: {}}
	for _, d := range g.GetAffectedCells(origin) {
		dirty[d] = struct{}{}
	}
	for _, v := range g.GetVolatileCells() {
		dirty[v] = struct{}{}
	}

	var changed []CellAddress
	evaluated := map[CellAddress]struct{}{}
	evalOne := func(addr CellAddress) {
		if _, done := evaluated[addr]; done {
			return
		}
		evaluated[addr] = struct{}{}
		result := EvaluateCell(e.registry, e.functions, addr)
		newVal := result.ScalarValue()
		old, hadOld := g.GetValue(addr)
		g.SetValue(addr, newVal)
		g.ClearDirty(addr)
		if !hadOld || !sameCellValue(old, newVal) {
			changed = append(changed, addr)
			e.events.PublishCellChanged(addr, newVal)
		}
	}

	// origin may be a plain literal with no dependency-graph node of its
	// own (nothing references it yet); evaluate it directly so its own
	// change is still reported before following its dependents in order.
	evalOne(origin)

	order, _ := g.GetCalculationOrder()
	for _, addr := range order {
		if _, isDirty := dirty[addr]; !isDirty {
			continue
		}
		evalOne(addr)
	}
	return changed
}

func sameCellValue(a, b CellValue) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case CellValueNumber:
		return a.Number == b.Number || (isNaN(a.Number) && isNaN(b.Number))
	case CellValueString:
		return a.Text == b.Text
	case CellValueBoolean:
		return a.Boolean == b.Boolean
	case CellValueInfinity:
		return a.Sign == b.Sign
	case CellValueError:
		return a.Err == b.Err && a.Message == b.Message
	default:
		return true
	}
}

func isNaN(f float64) bool { return f != f }

// --- Named ranges ----------------------------------------------------

func (e *Engine) AddNamedRange(name string, target SpreadsheetRange) error {
	if id, ok := e.registry.NamedRanges.GetNamedRangeID(name); ok && e.registry.NamedRanges.IsRangeDefined(id) {
		return NewAppError(AppErrorNamedRangeExists, "named range %q already exists", name)
	}
	e.registry.NamedRanges.DefineNamedRange(name, target)
	return nil
}

func (e *Engine) RemoveNamedRange(name string) error {
	if id, ok := e.registry.NamedRanges.GetNamedRangeID(name); !ok || !e.registry.NamedRanges.IsRangeDefined(id) {
		return NewAppError(AppErrorNamedRangeNotFound, "named range %q not found", name)
	}
	e.registry.NamedRanges.UndefineNamedRange(name)
	return nil
}

func (e *Engine) RenameNamedRange(oldName, newName string) error {
	if !e.registry.NamedRanges.Contains(oldName) {
		return NewAppError(AppErrorNamedRangeNotFound, "named range %q not found", oldName)
	}
	if e.registry.NamedRanges.Contains(newName) {
		return NewAppError(AppErrorNamedRangeExists, "named range %q already exists", newName)
	}
	id, _ := e.registry.NamedRanges.GetNamedRangeID(oldName)
	target, _ := e.registry.NamedRanges.GetRange(id)
	e.registry.NamedRanges.UndefineNamedRange(oldName)
	e.registry.NamedRanges.DefineNamedRange(newName, target)
	e.rewriteAllFormulas(func(text string) string {
		return RenameNamedRangeInFormula(text, oldName, newName)
	})
	return nil
}

// --- Tables ----------------------------------------------------------

// AddTable registers table over the given finite range. The header row is
// r.StartRow; columns is the header text, left to right.
func (e *Engine) AddTable(name, sheetName string, r FiniteSpreadsheetRange, columns []string) error {
	if e.registry.Tables.Contains(name) {
		return NewAppError(AppErrorTableExists, "table %q already exists", name)
	}
	ws, ok := e.registry.Worksheets.GetWorksheetByName(sheetName)
	if !ok {
		return NewAppError(AppErrorSheetNotFound, "sheet %q not found", sheetName)
	}
	r.WorksheetID = ws.worksheetID
	e.registry.Tables.DefineTable(name, &Table{Name: name, WorksheetID: ws.worksheetID, Range: r, Columns: columns})
	return nil
}

func (e *Engine) RemoveTable(name string) error {
	if !e.registry.Tables.Contains(name) {
		return NewAppError(AppErrorTableNotFound, "table %q not found", name)
	}
	e.registry.Tables.UndefineTable(name)
	return nil
}

func (e *Engine) RenameTable(oldName, newName string) error {
	if !e.registry.Tables.Contains(oldName) {
		return NewAppError(AppErrorTableNotFound, "table %q not found", oldName)
	}
	if e.registry.Tables.Contains(newName) {
		return NewAppError(AppErrorTableExists, "table %q already exists", newName)
	}
	e.registry.Tables.Rename(oldName, newName)
	e.rewriteAllFormulas(func(text string) string {
		return RenameTableInFormula(text, oldName, newName)
	})
	return nil
}

// --- Autofill ----------------------------------------------------------

// Autofill shifts the formula stored at source by (deltaCol, deltaRow) and
// stores the result at target, the relative-reference rewrite used for
// fill-handle drag operations.
func (e *Engine) Autofill(sheetName, sourceKey, targetKey string, deltaCol, deltaRow int64) error {
	ws, ok := e.registry.Worksheets.GetWorksheetByName(sheetName)
	if !ok {
		return NewAppError(AppErrorSheetNotFound, "sheet %q not found", sheetName)
	}
	srcCol, srcRow, err := ParseA1(sourceKey)
	if err != nil {
		return NewAppError(AppErrorInvalidAddress, "%v", err)
	}
	dstCol, dstRow, err := ParseA1(targetKey)
	if err != nil {
		return NewAppError(AppErrorInvalidAddress, "%v", err)
	}

	content, has := ws.GetCell(srcRow, srcCol)
	target := CellAddress{WorksheetID: ws.worksheetID, Column: dstCol, Row: dstRow}
	if !has {
		e.setCellContent(ws, target, SerializedNil())
		e.recalculate(target)
		return nil
	}
	if !content.HasFormula {
		e.setCellContent(ws, target, serializeLiteral(content.Literal))
		e.recalculate(target)
		return nil
	}

	ast, _ := e.registry.Formulas.GetAST(content.FormulaID)
	shifted := ShiftReferences(Format(ast), deltaCol, deltaRow)
	e.setCellContent(ws, target, SerializedCellValue{Text: "=" + shifted, hasText: true})
	e.recalculate(target)
	return nil
}

func serializeLiteral(v CellValue) SerializedCellValue {
	switch v.Type {
	case CellValueNumber:
		return SerializedNumber(v.Number)
	case CellValueBoolean:
		return SerializedBoolean(v.Boolean)
	case CellValueString:
		return SerializedText(v.Text)
	default:
		return SerializedNil()
	}
}
