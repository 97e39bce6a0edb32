package formulaengine

// ShiftReferences implements the relative-shift (autofill) rewriter: for
// every Reference, non-absolute components move by (deltaCol, deltaRow).
// For every Range, start and end shift independently per their own
// absolute flags; +inf ends and absolute components are untouched. On any
// parse error the original text is returned unmodified.
func ShiftReferences(formula string, deltaCol, deltaRow int64) string {
	tree, err := Parse(formula)
	if err != nil {
		return formula
	}
	shifted := Transform(tree, func(n Node) Node {
		switch node := n.(type) {
		case *ReferenceNode:
			col, row := node.Column, node.Row
			if !node.IsAbsolute.Col {
				col = shiftIndex(col, deltaCol)
			}
			if !node.IsAbsolute.Row {
				row = shiftIndex(row, deltaRow)
			}
			return &ReferenceNode{
				Column: col, Row: row, IsAbsolute: node.IsAbsolute,
				Sheet: node.Sheet, Workbook: node.Workbook, Position: node.Position,
			}
		case *RangeNode:
			startCol, startRow := node.StartCol, node.StartRow
			if !node.StartAbsolute.Col {
				startCol = shiftIndex(startCol, deltaCol)
			}
			if !node.StartAbsolute.Row {
				startRow = shiftIndex(startRow, deltaRow)
			}
			endCol, endRow := node.EndCol, node.EndRow
			if !endCol.Infinite && !node.EndAbsolute.Col {
				endCol = FiniteBound(shiftIndex(endCol.Value, deltaCol))
			}
			if !endRow.Infinite && !node.EndAbsolute.Row {
				endRow = FiniteBound(shiftIndex(endRow.Value, deltaRow))
			}
			return &RangeNode{
				StartCol: startCol, StartRow: startRow, EndCol: endCol, EndRow: endRow,
				StartAbsolute: node.StartAbsolute, EndAbsolute: node.EndAbsolute,
				Sheet: node.Sheet, Workbook: node.Workbook, Position: node.Position,
			}
		default:
			return n
		}
	})
	return Format(shifted)
}

func shiftIndex(value uint32, delta int64) uint32 {
	shifted := int64(value) + delta
	if shifted < 0 {
		return 0
	}
	return uint32(shifted)
}

// RenameSheetInFormula rewrites every reference/range/3D-range/named
// expression/structured reference whose Sheet equals oldName to newName.
// 3D ranges rename StartSheet and EndSheet independently. On any parse
// error the original text is returned unmodified, preserving user intent
// over silent corruption.
func RenameSheetInFormula(formula, oldName, newName string) string {
	tree, err := Parse(formula)
	if err != nil {
		return formula
	}
	renamed := Transform(tree, func(n Node) Node {
		switch node := n.(type) {
		case *ReferenceNode:
			if node.Sheet != nil && *node.Sheet == oldName {
				sheet := newName
				node.Sheet = &sheet
			}
			return node
		case *RangeNode:
			if node.Sheet != nil && *node.Sheet == oldName {
				sheet := newName
				node.Sheet = &sheet
			}
			return node
		case *NamedExpressionNode:
			if node.Sheet != nil && *node.Sheet == oldName {
				sheet := newName
				node.Sheet = &sheet
			}
			return node
		case *StructuredReferenceNode:
			if node.Sheet != nil && *node.Sheet == oldName {
				sheet := newName
				node.Sheet = &sheet
			}
			return node
		case *ThreeDRangeNode:
			if node.StartSheet == oldName {
				node.StartSheet = newName
			}
			if node.EndSheet == oldName {
				node.EndSheet = newName
			}
			return node
		default:
			return n
		}
	})
	return Format(renamed)
}

// RenameWorkbookInFormula is symmetric to RenameSheetInFormula over the
// Workbook component.
func RenameWorkbookInFormula(formula, oldName, newName string) string {
	tree, err := Parse(formula)
	if err != nil {
		return formula
	}
	renamed := Transform(tree, func(n Node) Node {
		switch node := n.(type) {
		case *ReferenceNode:
			if node.Workbook != nil && *node.Workbook == oldName {
				wb := newName
				node.Workbook = &wb
			}
			return node
		case *RangeNode:
			if node.Workbook != nil && *node.Workbook == oldName {
				wb := newName
				node.Workbook = &wb
			}
			return node
		case *NamedExpressionNode:
			if node.Workbook != nil && *node.Workbook == oldName {
				wb := newName
				node.Workbook = &wb
			}
			return node
		case *StructuredReferenceNode:
			if node.Workbook != nil && *node.Workbook == oldName {
				wb := newName
				node.Workbook = &wb
			}
			return node
		case *ThreeDRangeNode:
			if node.Workbook != nil && *node.Workbook == oldName {
				wb := newName
				node.Workbook = &wb
			}
			return node
		default:
			return n
		}
	})
	return Format(renamed)
}

// RenameNamedRangeInFormula rewrites every NamedExpression whose Name
// equals oldName to newName.
func RenameNamedRangeInFormula(formula, oldName, newName string) string {
	tree, err := Parse(formula)
	if err != nil {
		return formula
	}
	renamed := Transform(tree, func(n Node) Node {
		if node, ok := n.(*NamedExpressionNode); ok && node.Name == oldName {
			node.Name = newName
			return node
		}
		return n
	})
	return Format(renamed)
}

// RenameTableInFormula rewrites structured references whose Table equals
// oldName to newName.
func RenameTableInFormula(formula, oldName, newName string) string {
	tree, err := Parse(formula)
	if err != nil {
		return formula
	}
	renamed := Transform(tree, func(n Node) Node {
		if node, ok := n.(*StructuredReferenceNode); ok {
			if node.Table != nil && *node.Table == oldName {
				table := newName
				node.Table = &table
			}
			return node
		}
		return n
	})
	return Format(renamed)
}
