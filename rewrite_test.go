package formulaengine

import "testing"

func TestShiftReferencesMovesRelativeComponents(t *testing.T) {
	got := ShiftReferences("A1+B2", 1, 1)
	if want := "B2+C3"; got != want {
		t.Errorf("ShiftReferences = %q, want %q", got, want)
	}
}

func TestShiftReferencesLeavesAbsoluteComponentsUntouched(t *testing.T) {
	got := ShiftReferences("$A$1+A1", 2, 3)
	if want := "$A$1+C4"; got != want {
		t.Errorf("ShiftReferences = %q, want %q", got, want)
	}
}

func TestShiftReferencesClampsNegativeIndexesToZero(t *testing.T) {
	got := ShiftReferences("A1", -5, -5)
	if want := "A1"; got != want {
		t.Errorf("ShiftReferences = %q, want %q (shift below column/row 0 clamps)", got, want)
	}
}

func TestShiftReferencesShiftsRangeEndpointsIndependently(t *testing.T) {
	got := ShiftReferences("A1:$B$2", 1, 1)
	if want := "B2:$B$2"; got != want {
		t.Errorf("ShiftReferences = %q, want %q", got, want)
	}
}

func TestShiftReferencesLeavesInfiniteRangeEndOpen(t *testing.T) {
	got := ShiftReferences("A1:INFINITY", 1, 1)
	if want := "B2:INFINITY"; got != want {
		t.Errorf("ShiftReferences = %q, want %q", got, want)
	}
}

func TestShiftReferencesReturnsOriginalTextOnParseError(t *testing.T) {
	bad := "SUM("
	if got := ShiftReferences(bad, 1, 1); got != bad {
		t.Errorf("ShiftReferences(%q) = %q, want unmodified original", bad, got)
	}
}

func TestRenameSheetInFormulaRewritesMatchingReferences(t *testing.T) {
	got := RenameSheetInFormula("Sheet1!A1+Sheet2!B1", "Sheet1", "Budget")
	if want := "Budget!A1+Sheet2!B1"; got != want {
		t.Errorf("RenameSheetInFormula = %q, want %q", got, want)
	}
}

func TestRenameSheetInFormulaLeavesNonMatchingSheetsAlone(t *testing.T) {
	got := RenameSheetInFormula("Sheet2!A1", "Sheet1", "Budget")
	if want := "Sheet2!A1"; got != want {
		t.Errorf("RenameSheetInFormula = %q, want %q", got, want)
	}
}

func TestRenameSheetInFormulaRewritesRanges(t *testing.T) {
	got := RenameSheetInFormula("SUM(Sheet1!A1:A10)", "Sheet1", "Budget")
	if want := "SUM(Budget!A1:A10)"; got != want {
		t.Errorf("RenameSheetInFormula = %q, want %q", got, want)
	}
}

func TestRenameSheetInFormulaRewritesThreeDRangeEndpointsIndependently(t *testing.T) {
	got := RenameSheetInFormula("Sheet1:Sheet3!A1", "Sheet1", "Budget")
	if want := "Budget:Sheet3!A1"; got != want {
		t.Errorf("RenameSheetInFormula = %q, want %q", got, want)
	}
}

func TestRenameSheetInFormulaReturnsOriginalTextOnParseError(t *testing.T) {
	bad := "A1:"
	if got := RenameSheetInFormula(bad, "Sheet1", "Budget"); got != bad {
		t.Errorf("RenameSheetInFormula(%q) = %q, want unmodified original", bad, got)
	}
}

func TestRenameWorkbookInFormulaRewritesMatchingReferences(t *testing.T) {
	got := RenameWorkbookInFormula("[Old]Sheet1!A1", "Old", "New")
	if want := "[New]Sheet1!A1"; got != want {
		t.Errorf("RenameWorkbookInFormula = %q, want %q", got, want)
	}
}

func TestRenameNamedRangeInFormulaRewritesMatchingNames(t *testing.T) {
	got := RenameNamedRangeInFormula("TaxRate*2", "TaxRate", "VATRate")
	if want := "VATRate*2"; got != want {
		t.Errorf("RenameNamedRangeInFormula = %q, want %q", got, want)
	}
}

func TestRenameNamedRangeInFormulaLeavesNonMatchingNamesAlone(t *testing.T) {
	got := RenameNamedRangeInFormula("Discount*2", "TaxRate", "VATRate")
	if want := "Discount*2"; got != want {
		t.Errorf("RenameNamedRangeInFormula = %q, want %q", got, want)
	}
}

func TestRenameTableInFormulaRewritesMatchingTable(t *testing.T) {
	got := RenameTableInFormula("Orders[Total]", "Orders", "Sales")
	if want := "Sales[Total]"; got != want {
		t.Errorf("RenameTableInFormula = %q, want %q", got, want)
	}
}
