package formulaengine

// Table is a named, structured range inside a worksheet: a header row plus
// a contiguous data body, addressed in formulas through
// StructuredReferenceNode (Table1[Column], Table1[#Data], Table1[@Column]).
// TableIDs are stable for the table's lifetime so a rename never disturbs
// formulas that reference the table by ID internally.
type Table struct {
	tableID     uint32
	Name        string
	WorksheetID uint32
	Range       FiniteSpreadsheetRange // includes the header row
	Columns     []string               // header names, in left-to-right order
}

// ColumnIndex returns the 0-based position of a named column within the
// table, or ok=false if the column doesn't exist.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, col := range t.Columns {
		if col == name {
			return i, true
		}
	}
	return -1, false
}

// DataRange returns the table's body (excludes the header row).
func (t *Table) DataRange() FiniteSpreadsheetRange {
	r := t.Range
	if r.StartRow < r.EndRow {
		r.StartRow++
	}
	return r
}

// HeaderRange returns the table's single header row.
func (t *Table) HeaderRange() FiniteSpreadsheetRange {
	r := t.Range
	r.EndRow = r.StartRow
	return r
}

// ColumnRange returns the full column (header + data) for a single column
// by index within the table.
func (t *Table) ColumnRange(index int) FiniteSpreadsheetRange {
	col := t.Range.StartCol + uint32(index)
	return FiniteSpreadsheetRange{
		WorksheetID: t.WorksheetID,
		StartCol:    col, EndCol: col,
		StartRow: t.Range.StartRow, EndRow: t.Range.EndRow,
	}
}

// TableTable registers tables by name with the same defined/undefined/
// refcount idiom used across the registry, so a structured reference to a
// not-yet-created table resolves lazily once the table is added.
type TableTable struct {
	nameToID map[string]uint32
	idToName map[uint32]string

	definedTables map[uint32]*Table
	undefinedIDs  map[uint32]struct{}

	refCounts map[uint32]int
	nextID    uint32
}

func NewTableTable() *TableTable {
	return &TableTable{
		nameToID:      make(map[string]uint32),
		idToName:      make(map[uint32]string),
		definedTables: make(map[uint32]*Table),
		undefinedIDs:  make(map[uint32]struct{}),
		refCounts:     make(map[uint32]int),
		nextID:        1,
	}
}

func (tt *TableTable) InternTable(name string) uint32 {
	if id, exists := tt.nameToID[name]; exists {
		tt.refCounts[id]++
		return id
	}
	id := tt.nextID
	tt.nameToID[name] = id
	tt.idToName[id] = name
	tt.undefinedIDs[id] = struct{}{}
	tt.refCounts[id] = 1
	tt.nextID++
	return id
}

func (tt *TableTable) DefineTable(name string, table *Table) uint32 {
	if id, exists := tt.nameToID[name]; exists {
		table.tableID = id
		tt.definedTables[id] = table
		delete(tt.undefinedIDs, id)
		tt.refCounts[id]++
		return id
	}
	id := tt.nextID
	table.tableID = id
	tt.nameToID[name] = id
	tt.idToName[id] = name
	tt.definedTables[id] = table
	tt.refCounts[id] = 1
	tt.nextID++
	return id
}

func (tt *TableTable) UndefineTable(name string) bool {
	id, exists := tt.nameToID[name]
	if !exists {
		return false
	}
	delete(tt.definedTables, id)
	if tt.refCounts[id] > 0 {
		tt.undefinedIDs[id] = struct{}{}
		return false
	}
	tt.removeTable(id)
	return true
}

func (tt *TableTable) removeTable(id uint32) {
	name := tt.idToName[id]
	delete(tt.nameToID, name)
	delete(tt.idToName, id)
	delete(tt.definedTables, id)
	delete(tt.undefinedIDs, id)
	delete(tt.refCounts, id)
}

func (tt *TableTable) AddReference(id uint32) bool {
	if _, exists := tt.idToName[id]; !exists {
		return false
	}
	tt.refCounts[id]++
	return true
}

func (tt *TableTable) RemoveReference(id uint32) bool {
	if _, exists := tt.idToName[id]; !exists {
		return false
	}
	tt.refCounts[id]--
	if tt.refCounts[id] <= 0 {
		if _, isUndefined := tt.undefinedIDs[id]; isUndefined {
			tt.removeTable(id)
			return true
		}
	}
	return false
}

func (tt *TableTable) GetTable(id uint32) (*Table, bool) {
	table, exists := tt.definedTables[id]
	return table, exists
}

func (tt *TableTable) GetTableByName(name string) (*Table, bool) {
	id, exists := tt.nameToID[name]
	if !exists {
		return nil, false
	}
	return tt.GetTable(id)
}

func (tt *TableTable) Contains(name string) bool {
	_, exists := tt.nameToID[name]
	return exists
}

func (tt *TableTable) Rename(oldName, newName string) bool {
	id, exists := tt.nameToID[oldName]
	if !exists {
		return false
	}
	delete(tt.nameToID, oldName)
	tt.nameToID[newName] = id
	tt.idToName[id] = newName
	if table, ok := tt.definedTables[id]; ok {
		table.Name = newName
	}
	return true
}

func (tt *TableTable) Count() int { return len(tt.nameToID) }
