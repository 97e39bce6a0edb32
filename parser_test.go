package formulaengine

import "testing"

func TestParseValidFormulas(t *testing.T) {
	validFormulas := []string{
		"1+2",
		"A1",
		"SUM(A1:A10)",
		"Sheet2!A1",
		"Sheet2!A1:B2",
		"SUM(Sheet2!A1:A10)",
		"Sheet2!A1 + Sheet3!B1",
		"SUM(B2:A1)",
		"SUM(A1:A1)",
		"SUM(A1:Z1000)",
		`"Hello 世界"`,
		`"Test 😀 emoji"`,
		`CONCATENATE("Hello ", "世界")`,
		"IF(A1>0, TRUE, FALSE)",
		"$A$1",
		"A1:INFINITY",
		"=",
		`"hello`,
	}

	for _, formula := range validFormulas {
		t.Run(formula, func(t *testing.T) {
			if _, err := Parse(formula); err != nil {
				t.Errorf("Parse(%q) failed: %v", formula, err)
			}
		})
	}
}

func TestParseInvalidFormulas(t *testing.T) {
	invalidFormulas := []string{
		"SUM(",
		"A1:",
		"1 + ",
		"SUM(A1,)",
	}

	for _, formula := range invalidFormulas {
		t.Run(formula, func(t *testing.T) {
			if _, err := Parse(formula); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", formula)
			}
		})
	}
}

func TestParseStripsLeadingEquals(t *testing.T) {
	withEquals, err := Parse("=A1+1")
	if err != nil {
		t.Fatalf("Parse with leading '=' failed: %v", err)
	}
	withoutEquals, err := Parse("A1+1")
	if err != nil {
		t.Fatalf("Parse without leading '=' failed: %v", err)
	}
	if Format(withEquals) != Format(withoutEquals) {
		t.Errorf("leading '=' changed the parsed tree: %q vs %q", Format(withEquals), Format(withoutEquals))
	}
}

func TestParseEmptyFormula(t *testing.T) {
	tree, err := Parse("")
	if err != nil {
		t.Fatalf("Parse(\"\") failed: %v", err)
	}
	if _, ok := tree.(*EmptyNode); !ok {
		t.Errorf("Parse(\"\") = %T, want *EmptyNode", tree)
	}
}
