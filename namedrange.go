package formulaengine

// NamedRangeTable manages named ranges with ID tracking for efficient
// renaming, following the same defined/undefined/refcount idiom as
// FormulaTable and WorksheetTable: a name can be referenced before it is
// defined (a formula can cite a named range that doesn't exist yet), and
// stays around as long as something still references it.
type NamedRangeTable struct {
	nameToID map[string]uint32
	idToName map[uint32]string

	definedRanges map[uint32]SpreadsheetRange
	undefinedIDs  map[uint32]struct{}

	refCounts map[uint32]int
	nextID    uint32
}

func NewNamedRangeTable() *NamedRangeTable {
	return &NamedRangeTable{
		nameToID:      make(map[string]uint32),
		idToName:      make(map[uint32]string),
		definedRanges: make(map[uint32]SpreadsheetRange),
		undefinedIDs:  make(map[uint32]struct{}),
		refCounts:     make(map[uint32]int),
		nextID:        1,
	}
}

// InternNamedRange adds a reference to a named range (defined or not) and
// returns its ID.
func (nrt *NamedRangeTable) InternNamedRange(name string) uint32 {
	if id, exists := nrt.nameToID[name]; exists {
		nrt.refCounts[id]++
		return id
	}

	id := nrt.nextID
	nrt.nameToID[name] = id
	nrt.idToName[id] = name
	nrt.undefinedIDs[id] = struct{}{}
	nrt.refCounts[id] = 1
	nrt.nextID++

	return id
}

// DefineNamedRange defines or redefines a named range with a target range.
// Returns the ID of the named range.
func (nrt *NamedRangeTable) DefineNamedRange(name string, target SpreadsheetRange) uint32 {
	if id, exists := nrt.nameToID[name]; exists {
		nrt.definedRanges[id] = target
		delete(nrt.undefinedIDs, id)
		nrt.refCounts[id]++
		return id
	}

	id := nrt.nextID
	nrt.nameToID[name] = id
	nrt.idToName[id] = name
	nrt.definedRanges[id] = target
	nrt.refCounts[id] = 1
	nrt.nextID++

	return id
}

// UndefineNamedRange removes the definition of a named range. If the range
// still has references, it transitions to undefined. If it has no
// references, it is removed completely. Returns true if removed completely.
func (nrt *NamedRangeTable) UndefineNamedRange(name string) bool {
	id, exists := nrt.nameToID[name]
	if !exists {
		return false
	}

	delete(nrt.definedRanges, id)

	if nrt.refCounts[id] > 0 {
		nrt.undefinedIDs[id] = struct{}{}
		return false
	}

	nrt.removeRange(id)
	return true
}

func (nrt *NamedRangeTable) removeRange(id uint32) {
	name := nrt.idToName[id]
	delete(nrt.nameToID, name)
	delete(nrt.idToName, id)
	delete(nrt.definedRanges, id)
	delete(nrt.undefinedIDs, id)
	delete(nrt.refCounts, id)
}

func (nrt *NamedRangeTable) AddReference(id uint32) bool {
	if _, exists := nrt.idToName[id]; !exists {
		return false
	}
	nrt.refCounts[id]++
	return true
}

func (nrt *NamedRangeTable) RemoveReference(id uint32) bool {
	if _, exists := nrt.idToName[id]; !exists {
		return false
	}

	nrt.refCounts[id]--
	if nrt.refCounts[id] <= 0 {
		if _, isUndefined := nrt.undefinedIDs[id]; isUndefined {
			nrt.removeRange(id)
			return true
		}
	}

	return false
}

func (nrt *NamedRangeTable) GetRange(id uint32) (SpreadsheetRange, bool) {
	target, exists := nrt.definedRanges[id]
	return target, exists
}

func (nrt *NamedRangeTable) IsRangeDefined(id uint32) bool {
	_, exists := nrt.definedRanges[id]
	return exists
}

func (nrt *NamedRangeTable) GetNamedRangeID(name string) (uint32, bool) {
	id, exists := nrt.nameToID[name]
	return id, exists
}

func (nrt *NamedRangeTable) GetNamedRangeName(id uint32) (string, bool) {
	name, exists := nrt.idToName[id]
	return name, exists
}

func (nrt *NamedRangeTable) Contains(name string) bool {
	_, exists := nrt.nameToID[name]
	return exists
}

func (nrt *NamedRangeTable) GetReferenceCount(id uint32) int {
	return nrt.refCounts[id]
}

func (nrt *NamedRangeTable) GetAllDefinedRanges() map[string]SpreadsheetRange {
	result := make(map[string]SpreadsheetRange)
	for id, target := range nrt.definedRanges {
		if name, exists := nrt.idToName[id]; exists {
			result[name] = target
		}
	}
	return result
}

func (nrt *NamedRangeTable) GetAllUndefinedRanges() []string {
	result := make([]string, 0, len(nrt.undefinedIDs))
	for id := range nrt.undefinedIDs {
		if name, exists := nrt.idToName[id]; exists {
			result = append(result, name)
		}
	}
	return result
}

func (nrt *NamedRangeTable) Count() int          { return len(nrt.nameToID) }
func (nrt *NamedRangeTable) CountDefined() int   { return len(nrt.definedRanges) }
func (nrt *NamedRangeTable) CountUndefined() int { return len(nrt.undefinedIDs) }

func (nrt *NamedRangeTable) TotalReferences() int {
	total := 0
	for _, count := range nrt.refCounts {
		total += count
	}
	return total
}

func (nrt *NamedRangeTable) Clear() {
	nrt.nameToID = make(map[string]uint32)
	nrt.idToName = make(map[uint32]string)
	nrt.definedRanges = make(map[uint32]SpreadsheetRange)
	nrt.undefinedIDs = make(map[uint32]struct{})
	nrt.refCounts = make(map[uint32]int)
	nrt.nextID = 1
}
