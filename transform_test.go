package formulaengine

import "testing"

func TestTraverseVisitsEveryNode(t *testing.T) {
	tree, err := Parse("SUM(A1, B1+2)")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	var kinds []NodeKind
	Traverse(tree, func(n Node) {
		kinds = append(kinds, n.Kind())
	})

	if len(kinds) == 0 {
		t.Fatal("Traverse visited no nodes")
	}
	if kinds[0] != tree.Kind() {
		t.Errorf("first visited node kind = %v, want root kind %v", kinds[0], tree.Kind())
	}
}

func TestTraverseOrderIsPreOrderLeftToRight(t *testing.T) {
	tree, err := Parse("A1+B1")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	bin, ok := tree.(*BinaryOpNode)
	if !ok {
		t.Fatalf("expected *BinaryOpNode, got %T", tree)
	}

	var visited []Node
	Traverse(tree, func(n Node) { visited = append(visited, n) })

	if len(visited) != 3 {
		t.Fatalf("expected 3 nodes (binary, left, right), got %d", len(visited))
	}
	if visited[0] != Node(bin) {
		t.Errorf("visited[0] should be the root binary node")
	}
	if visited[1] != Node(bin.Left) {
		t.Errorf("visited[1] should be the left operand")
	}
	if visited[2] != Node(bin.Right) {
		t.Errorf("visited[2] should be the right operand")
	}
}

func TestTransformRebuildsUnchangedTreeAsEquivalent(t *testing.T) {
	tree, err := Parse("SUM(A1:A10) * 2")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	rebuilt := Transform(tree, func(n Node) Node { return n })
	if Format(rebuilt) != Format(tree) {
		t.Errorf("identity Transform changed formula: got %q, want %q", Format(rebuilt), Format(tree))
	}
}

func TestTransformRewritesMatchedNodes(t *testing.T) {
	tree, err := Parse("A1+B1")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	rewritten := Transform(tree, func(n Node) Node {
		ref, ok := n.(*ReferenceNode)
		if !ok || ref.Column != 0 {
			return n
		}
		return &ReferenceNode{Column: ref.Column + 10, Row: ref.Row, IsAbsolute: ref.IsAbsolute, Position: ref.Position}
	})
	if got, want := Format(rewritten), "K1+B1"; got != want {
		t.Errorf("Format(rewritten) = %q, want %q", got, want)
	}
}
