package formulaengine

// Traverse performs a depth-first pre-order visit of tree, calling visit
// exactly once per node. Children are recursed in a fixed order: binary
// left-then-right, function args left-to-right, array row-major, 3D-range
// inner; leaves terminate.
func Traverse(tree Node, visit func(Node)) {
	if tree == nil {
		return
	}
	visit(tree)
	switch n := tree.(type) {
	case *BinaryOpNode:
		Traverse(n.Left, visit)
		Traverse(n.Right, visit)
	case *UnaryOpNode:
		Traverse(n.Operand, visit)
	case *FunctionNode:
		for _, arg := range n.Args {
			Traverse(arg, visit)
		}
	case *ArrayNode:
		for _, row := range n.Rows {
			for _, cell := range row {
				Traverse(cell, visit)
			}
		}
	case *ThreeDRangeNode:
		Traverse(n.Inner, visit)
	}
}

// Transform returns a new tree: children are mapped first (bottom-up),
// then f is applied to the reconstructed node. This is the shared
// machinery behind every reference rewriter (relative shift, sheet
// rename, workbook rename) -- each rewriter supplies its own f and never
// re-implements traversal.
func Transform(tree Node, f func(Node) Node) Node {
	if tree == nil {
		return nil
	}
	var rebuilt Node
	switch n := tree.(type) {
	case *BinaryOpNode:
		rebuilt = &BinaryOpNode{
			Op:       n.Op,
			Left:     Transform(n.Left, f),
			Right:    Transform(n.Right, f),
			Position: n.Position,
		}
	case *UnaryOpNode:
		rebuilt = &UnaryOpNode{
			Op:       n.Op,
			Operand:  Transform(n.Operand, f),
			Position: n.Position,
		}
	case *FunctionNode:
		args := make([]Node, len(n.Args))
		for i, arg := range n.Args {
			args[i] = Transform(arg, f)
		}
		rebuilt = &FunctionNode{Name: n.Name, Args: args, Position: n.Position}
	case *ArrayNode:
		rows := make([][]Node, len(n.Rows))
		for i, row := range n.Rows {
			newRow := make([]Node, len(row))
			for j, cell := range row {
				newRow[j] = Transform(cell, f)
			}
			rows[i] = newRow
		}
		rebuilt = &ArrayNode{Rows: rows, Position: n.Position}
	case *ThreeDRangeNode:
		rebuilt = &ThreeDRangeNode{
			StartSheet: n.StartSheet,
			EndSheet:   n.EndSheet,
			Workbook:   n.Workbook,
			Inner:      Transform(n.Inner, f),
			Position:   n.Position,
		}
	default:
		rebuilt = tree
	}
	return f(rebuilt)
}
