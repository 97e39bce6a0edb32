package formulaengine

import "testing"

func TestFormatRoundTrip(t *testing.T) {
	formulas := []string{
		"1+2",
		"A1",
		"$A$1",
		"A1:B10",
		"A1:INFINITY",
		"SUM(A1:A10)",
		"Sheet2!A1+Sheet3!B1",
		"'My Sheet'!A1",
		"IF(A1>0,TRUE,FALSE)",
		"1+2*3",
		"(1+2)*3",
		"2^3^2",
		"(2^3)^2",
		"10-3-2",
		"10-(3-2)",
		`"quoted ""text"""`,
		"{1,2;3,4}",
		"-A1",
		"A1%",
		"A1&B1",
	}

	for _, formula := range formulas {
		t.Run(formula, func(t *testing.T) {
			tree, err := Parse(formula)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", formula, err)
			}
			rendered := Format(tree)

			reparsed, err := Parse(rendered)
			if err != nil {
				t.Fatalf("Parse(Format(%q)) = %q, failed to reparse: %v", formula, rendered, err)
			}
			if again := Format(reparsed); again != rendered {
				t.Errorf("Format is not a fixed point: Format(%q) = %q, Format(Parse(%q)) = %q", formula, rendered, rendered, again)
			}
		})
	}
}

func TestFormatPreservesOperatorPrecedence(t *testing.T) {
	tree, err := Parse("1+2*3")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got, want := Format(tree), "1+2*3"; got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}

	tree, err = Parse("(1+2)*3")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got, want := Format(tree), "(1+2)*3"; got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}

func TestFormatPowerIsRightAssociative(t *testing.T) {
	tree, err := Parse("2^3^2")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got, want := Format(tree), "2^3^2"; got != want {
		t.Errorf("Format = %q, want %q (right-associative power should not add parens)", got, want)
	}

	tree, err = Parse("(2^3)^2")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got, want := Format(tree), "(2^3)^2"; got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}

func TestFormatAbsoluteReferences(t *testing.T) {
	tree, err := Parse("$A$1")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got, want := Format(tree), "$A$1"; got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}

func TestFormatQuotesSheetNamesWithSpaces(t *testing.T) {
	tree, err := Parse("'My Sheet'!A1")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got, want := Format(tree), "'My Sheet'!A1"; got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}

func TestFormatOpenEndedRange(t *testing.T) {
	tree, err := Parse("A1:INFINITY")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got, want := Format(tree), "A1:INFINITY"; got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}
