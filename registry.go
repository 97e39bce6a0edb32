package formulaengine

// Registry aggregates every interning table and the dependency graph that
// together back a workbook: worksheets, workbooks, tables, named ranges,
// strings, formulas, and the dependency graph tying cells to the formulas
// and ranges that observe them. Engine is the only thing that constructs
// and mutates a Registry; callers see it through Engine's API.
type Registry struct {
	Worksheets  *WorksheetTable
	Workbooks   *WorkbookTable
	Tables      *TableTable
	NamedRanges *NamedRangeTable
	Texts       *CellTextTable
	Formulas    *FormulaTable
	Graph       *DependencyGraph
}

func NewRegistry() *Registry {
	return &Registry{
		Worksheets:  NewWorksheetTable(),
		Workbooks:   NewWorkbookTable(),
		Tables:      NewTableTable(),
		NamedRanges: NewNamedRangeTable(),
		Texts:       NewCellTextTable(),
		Formulas:    NewFormulaTable(),
		Graph:       NewDependencyGraph(),
	}
}

// NewWorksheetIn creates and registers a worksheet under name, wiring it to
// the registry's shared string and formula tables.
func (r *Registry) NewWorksheetIn(name string) (*Worksheet, uint32) {
	id := r.Worksheets.InternWorksheet(name)
	ws := NewWorksheet(r.Texts, r.Formulas, id)
	r.Worksheets.DefineWorksheet(name, ws)
	return ws, id
}
