package formulaengine

// infiniteBoundSentinel stands in for a +infinity range endpoint when a
// dependency needs to become a FiniteSpreadsheetRange for the dependency
// graph's map key: the graph only ever compares these keys for equality
// and membership, it never iterates the cells inside one, so collapsing
// +infinity to the largest representable index is exact for that purpose.
const infiniteBoundSentinel = ^uint32(0)

func toDependencyRange(r SpreadsheetRange) FiniteSpreadsheetRange {
	return r.ToFinite(infiniteBoundSentinel, infiniteBoundSentinel)
}

// resolveQualifiedSheet resolves a (sheet, workbook)-qualified reference to
// a worksheet ID, shared by dependency extraction and evaluation so both
// agree on when a reference is resolvable. defaultSheetID is used for an
// unqualified reference. A workbook-qualified reference additionally
// requires that workbook to exist and actually contain the named sheet.
func resolveQualifiedSheet(registry *Registry, defaultSheetID uint32, sheet, workbook *string) (uint32, bool) {
	if sheet == nil {
		return defaultSheetID, true
	}
	sheetID, ok := registry.Worksheets.GetWorksheetID(*sheet)
	if !ok {
		return 0, false
	}
	if workbook == nil {
		return sheetID, true
	}
	wb, ok := registry.Workbooks.GetWorkbookByName(*workbook)
	if !ok {
		return 0, false
	}
	if _, member := wb.SheetIDs[sheetID]; !member {
		return 0, false
	}
	return sheetID, true
}

// cellDependencies is what extractDependencies collects from one formula's
// AST: every concrete cell it reads directly, plus every range (including
// ranges reached through a table or a named range) it reads as a unit.
type cellDependencies struct {
	Cells  []CellAddress
	Ranges []FiniteSpreadsheetRange
}

// extractDependencies walks ast and resolves every reference it contains
// against registry, rooted at sheetID for unqualified references. Sheet
// names that fail to resolve are silently skipped here -- the evaluator
// surfaces the #REF! for those at evaluation time; dependency tracking
// only needs to know about the references it can actually name a cell or
// range for.
func extractDependencies(ast Node, registry *Registry, sheetID, originRow uint32) cellDependencies {
	var deps cellDependencies
	resolveSheet := func(sheet, workbook *string) (uint32, bool) {
		return resolveQualifiedSheet(registry, sheetID, sheet, workbook)
	}

	Traverse(ast, func(n Node) {
		switch node := n.(type) {
		case *ReferenceNode:
			if id, ok := resolveSheet(node.Sheet, node.Workbook); ok {
				deps.Cells = append(deps.Cells, CellAddress{WorksheetID: id, Column: node.Column, Row: node.Row})
			}
		case *RangeNode:
			if id, ok := resolveSheet(node.Sheet, node.Workbook); ok {
				rng := SpreadsheetRange{WorksheetID: id, StartCol: node.StartCol, StartRow: node.StartRow, EndCol: node.EndCol, EndRow: node.EndRow}
				deps.Ranges = append(deps.Ranges, toDependencyRange(rng))
			}
		case *ThreeDRangeNode:
			ids, ok := threeDRangeSheetIDs(registry, node)
			if !ok {
				return
			}
			for _, id := range ids {
				switch inner := node.Inner.(type) {
				case *ReferenceNode:
					deps.Cells = append(deps.Cells, CellAddress{WorksheetID: id, Column: inner.Column, Row: inner.Row})
				case *RangeNode:
					rng := SpreadsheetRange{WorksheetID: id, StartCol: inner.StartCol, StartRow: inner.StartRow, EndCol: inner.EndCol, EndRow: inner.EndRow}
					deps.Ranges = append(deps.Ranges, toDependencyRange(rng))
				}
			}
		case *NamedExpressionNode:
			if id, ok := registry.NamedRanges.GetNamedRangeID(node.Name); ok {
				if target, defined := registry.NamedRanges.GetRange(id); defined {
					deps.Ranges = append(deps.Ranges, toDependencyRange(target))
				}
			}
		case *StructuredReferenceNode:
			if rng, _, ok := resolveStructuredReferenceRange(registry, node, originRow); ok {
				deps.Ranges = append(deps.Ranges, toDependencyRange(rng))
			}
		}
	})
	return deps
}

// formulaIsVolatile reports whether ast calls any volatile function
// (NOW, TODAY, RAND) anywhere in its tree, directly or nested inside
// another call's arguments.
func formulaIsVolatile(ast Node) bool {
	volatile := false
	Traverse(ast, func(n Node) {
		if fn, ok := n.(*FunctionNode); ok && isVolatileFunction(fn.Name) {
			volatile = true
		}
	})
	return volatile
}

func threeDRangeSheetIDs(registry *Registry, node *ThreeDRangeNode) ([]uint32, bool) {
	startID, sOK := registry.Worksheets.GetWorksheetID(node.StartSheet)
	endID, eOK := registry.Worksheets.GetWorksheetID(node.EndSheet)
	if !sOK || !eOK {
		return nil, false
	}
	if startID > endID {
		startID, endID = endID, startID
	}
	var ids []uint32
	for id := startID; id <= endID; id++ {
		if _, exists := registry.Worksheets.GetWorksheet(id); exists {
			ids = append(ids, id)
		}
	}
	return ids, len(ids) > 0
}
