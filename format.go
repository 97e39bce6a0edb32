package formulaengine

import (
	"strconv"
	"strings"
)

// Format renders tree back to canonical formula text (without a leading
// '='). It is a total function: every well-formed tree has exactly one
// canonical rendering, and format(parse(format(parse(s)))) == format(parse(s)).
func Format(tree Node) string {
	var sb strings.Builder
	writeNode(&sb, tree, 0)
	return sb.String()
}

// precedence returns the binding power used to decide when a child binary
// expression needs parentheses. Higher binds tighter.
func precedence(op BinaryOperator) int {
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpGreater, OpLessEqual, OpGreaterEqual:
		return 1
	case OpConcat:
		return 2
	case OpAdd, OpSubtract:
		return 3
	case OpMultiply, OpDivide:
		return 4
	case OpPower:
		return 5
	}
	return 0
}

func binaryOpText(op BinaryOperator) string {
	switch op {
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	case OpPower:
		return "^"
	case OpConcat:
		return "&"
	case OpEqual:
		return "="
	case OpNotEqual:
		return "<>"
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	}
	return "?"
}

func writeNode(sb *strings.Builder, n Node, parentPrecedence int) {
	switch node := n.(type) {
	case *EmptyNode:
		// nothing
	case *ValueNode:
		writeCellValue(sb, node.Value)
	case *InfinityNode:
		if node.Sign == NegativeInfinity {
			sb.WriteString("-")
		}
		sb.WriteString("INFINITY")
	case *ErrorNode:
		sb.WriteString(node.Code.String())
	case *ReferenceNode:
		writeSheetPrefix(sb, node.Sheet, node.Workbook)
		writeAddress(sb, node.Column, node.Row, node.IsAbsolute)
	case *RangeNode:
		writeSheetPrefix(sb, node.Sheet, node.Workbook)
		writeRangeBody(sb, node)
	case *ThreeDRangeNode:
		writeSheetPrefix(sb, nil, node.Workbook)
		writeSheetName(sb, node.StartSheet)
		sb.WriteString(":")
		writeSheetName(sb, node.EndSheet)
		sb.WriteString("!")
		writeNode(sb, node.Inner, 0)
	case *NamedExpressionNode:
		writeSheetPrefix(sb, node.Sheet, node.Workbook)
		sb.WriteString(node.Name)
	case *FunctionNode:
		sb.WriteString(node.Name)
		sb.WriteString("(")
		for i, arg := range node.Args {
			if i > 0 {
				sb.WriteString(",")
			}
			writeNode(sb, arg, 0)
		}
		sb.WriteString(")")
	case *UnaryOpNode:
		switch node.Op {
		case OpUnaryPlus:
			sb.WriteString("+")
			writeNode(sb, node.Operand, 100)
		case OpUnaryMinus:
			sb.WriteString("-")
			writeNode(sb, node.Operand, 100)
		case OpUnaryPercent:
			writeNode(sb, node.Operand, 100)
			sb.WriteString("%")
		}
	case *BinaryOpNode:
		prec := precedence(node.Op)
		needsParens := prec < parentPrecedence
		if needsParens {
			sb.WriteString("(")
		}
		// right-associative power never parenthesizes its own right child
		// at equal precedence but must parenthesize an equal-precedence left
		// child; every other operator is left-associative and does the
		// reverse.
		leftMin, rightMin := prec, prec+1
		if node.Op == OpPower {
			leftMin, rightMin = prec+1, prec
		}
		writeNode(sb, node.Left, leftMin)
		sb.WriteString(binaryOpText(node.Op))
		writeNode(sb, node.Right, rightMin)
		if needsParens {
			sb.WriteString(")")
		}
	case *ArrayNode:
		sb.WriteString("{")
		for i, row := range node.Rows {
			if i > 0 {
				sb.WriteString(";")
			}
			for j, cell := range row {
				if j > 0 {
					sb.WriteString(",")
				}
				writeNode(sb, cell, 0)
			}
		}
		sb.WriteString("}")
	case *StructuredReferenceNode:
		writeStructuredReference(sb, node)
	}
}

func writeCellValue(sb *strings.Builder, v CellValue) {
	switch v.Type {
	case CellValueNumber:
		sb.WriteString(strconv.FormatFloat(v.Number, 'g', -1, 64))
	case CellValueString:
		sb.WriteString("\"")
		sb.WriteString(strings.ReplaceAll(v.Text, "\"", "\"\""))
		sb.WriteString("\"")
	case CellValueBoolean:
		if v.Boolean {
			sb.WriteString("TRUE")
		} else {
			sb.WriteString("FALSE")
		}
	case CellValueInfinity:
		if v.Sign == NegativeInfinity {
			sb.WriteString("-")
		}
		sb.WriteString("INFINITY")
	case CellValueError:
		sb.WriteString(v.Err.String())
	}
}

func writeSheetName(sb *strings.Builder, name string) {
	if needsSheetQuoting(name) {
		sb.WriteString("'")
		sb.WriteString(strings.ReplaceAll(name, "'", "''"))
		sb.WriteString("'")
		return
	}
	sb.WriteString(name)
}

func needsSheetQuoting(name string) bool {
	return strings.ContainsAny(name, " \t'!")
}

func writeSheetPrefix(sb *strings.Builder, sheet, workbook *string) {
	if workbook != nil {
		sb.WriteString("[")
		sb.WriteString(*workbook)
		sb.WriteString("]")
	}
	if sheet != nil {
		writeSheetName(sb, *sheet)
		sb.WriteString("!")
	}
}

func writeAddress(sb *strings.Builder, col, row uint32, abs AbsoluteFlag) {
	if abs.Col {
		sb.WriteString("$")
	}
	sb.WriteString(ColumnIndexToLetter(col))
	if abs.Row {
		sb.WriteString("$")
	}
	sb.WriteString(strconv.FormatUint(uint64(row+1), 10))
}

// writeRangeBody renders the finite-start-cell plus end-variant forms
// required by the canonical format: "A5:INFINITY" (both open), "A5:D"
// (open-bottom), "A5:15" (open-right), "A1:A" (column range canonical
// form), "A5:5" (row range canonical form).
func writeRangeBody(sb *strings.Builder, node *RangeNode) {
	writeAddress(sb, node.StartCol, node.StartRow, node.StartAbsolute)
	sb.WriteString(":")
	switch {
	case node.EndCol.Infinite && node.EndRow.Infinite:
		sb.WriteString("INFINITY")
	case !node.EndCol.Infinite && node.EndRow.Infinite:
		if node.EndAbsolute.Col {
			sb.WriteString("$")
		}
		sb.WriteString(ColumnIndexToLetter(node.EndCol.Value))
	case node.EndCol.Infinite && !node.EndRow.Infinite:
		if node.EndAbsolute.Row {
			sb.WriteString("$")
		}
		sb.WriteString(strconv.FormatUint(uint64(node.EndRow.Value+1), 10))
	default:
		writeAddress(sb, node.EndCol.Value, node.EndRow.Value, node.EndAbsolute)
	}
}

func structuredNameNeedsDoubleBrackets(name string) bool {
	return strings.ContainsAny(name, " [](),#@:=")
}

func writeStructuredColumn(sb *strings.Builder, name string) {
	if structuredNameNeedsDoubleBrackets(name) {
		sb.WriteString("[")
		sb.WriteString(name)
		sb.WriteString("]")
		return
	}
	sb.WriteString(name)
}

func writeStructuredReference(sb *strings.Builder, node *StructuredReferenceNode) {
	if node.Table != nil {
		sb.WriteString(*node.Table)
	}
	sb.WriteString("[")
	switch {
	case node.IsCurrentRow:
		sb.WriteString("@")
		if node.StartColumn != nil {
			writeStructuredColumn(sb, *node.StartColumn)
		}
	case node.Selector != SelectorNone && node.StartColumn != nil:
		sb.WriteString("[#")
		sb.WriteString(selectorText(node.Selector))
		sb.WriteString("],[")
		sb.WriteString(*node.StartColumn)
		sb.WriteString("]")
		if node.EndColumn != nil {
			sb.WriteString(":[")
			sb.WriteString(*node.EndColumn)
			sb.WriteString("]")
		}
	case node.Selector != SelectorNone:
		sb.WriteString("#")
		sb.WriteString(selectorText(node.Selector))
	case node.EndColumn != nil:
		sb.WriteString("[")
		sb.WriteString(*node.StartColumn)
		sb.WriteString("]:[")
		sb.WriteString(*node.EndColumn)
		sb.WriteString("]")
	case node.StartColumn != nil:
		writeStructuredColumn(sb, *node.StartColumn)
	}
	sb.WriteString("]")
}

func selectorText(s StructuredSelector) string {
	switch s {
	case SelectorAll:
		return "All"
	case SelectorData:
		return "Data"
	case SelectorHeaders:
		return "Headers"
	default:
		return ""
	}
}
