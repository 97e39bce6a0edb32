package formulaengine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock lets tests control NOW/TODAY without depending on wall time.
type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

// engineTestCase is a small fluent builder over *Engine, matching the
// teacher's table-driven spreadsheet test style but against the new facade.
type engineTestCase struct {
	t      *testing.T
	engine *Engine
}

func newEngineTestCase(t *testing.T) *engineTestCase {
	tc := &engineTestCase{t: t, engine: NewEngine()}
	require.NoError(t, tc.engine.AddSheet("", "Sheet1"))
	return tc
}

func (tc *engineTestCase) setNumber(key string, n float64) *engineTestCase {
	require.NoError(tc.t, tc.engine.SetCellContent("Sheet1", key, SerializedNumber(n)))
	return tc
}

func (tc *engineTestCase) setFormula(key, formula string) *engineTestCase {
	require.NoError(tc.t, tc.engine.SetCellContent("Sheet1", key, SerializedText("="+formula)))
	return tc
}

func (tc *engineTestCase) assertNumber(key string, want float64) {
	tc.t.Helper()
	got, err := tc.engine.GetCellValue("Sheet1", key)
	require.NoError(tc.t, err)
	require.Equal(tc.t, CellValueNumber, got.Type, "cell %s = %+v", key, got)
	assert.Equal(tc.t, want, got.Number, "cell %s", key)
}

func (tc *engineTestCase) assertError(key string, code ErrorCode) {
	tc.t.Helper()
	got, err := tc.engine.GetCellValue("Sheet1", key)
	require.NoError(tc.t, err)
	require.Equal(tc.t, CellValueError, got.Type, "cell %s = %+v", key, got)
	assert.Equal(tc.t, code, got.Err, "cell %s", key)
}

func TestEngineSetAndGetLiteral(t *testing.T) {
	tc := newEngineTestCase(t)
	tc.setNumber("A1", 42)
	tc.assertNumber("A1", 42)
}

func TestEngineFormulaRecalculatesOnDependencyChange(t *testing.T) {
	tc := newEngineTestCase(t)
	tc.setNumber("A1", 1)
	tc.setFormula("B1", "A1+1")
	tc.assertNumber("B1", 2)

	tc.setNumber("A1", 10)
	tc.assertNumber("B1", 11)
}

func TestEngineDependencyChainPropagates(t *testing.T) {
	tc := newEngineTestCase(t)
	tc.setNumber("A1", 1)
	for i := 2; i <= 10; i++ {
		tc.setFormula(fmt.Sprintf("A%d", i), fmt.Sprintf("A%d+1", i-1))
	}
	tc.assertNumber("A10", 10)

	tc.setNumber("A1", 100)
	tc.assertNumber("A10", 109)
}

func TestEngineSumOverRange(t *testing.T) {
	tc := newEngineTestCase(t)
	tc.setNumber("A1", 1)
	tc.setNumber("A2", 2)
	tc.setNumber("A3", 3)
	tc.setFormula("B1", "SUM(A1:A3)")
	tc.assertNumber("B1", 6)

	tc.setNumber("A2", 20)
	tc.assertNumber("B1", 24)
}

func TestEngineCircularReferenceReportsCycleError(t *testing.T) {
	tc := newEngineTestCase(t)
	tc.setFormula("A1", "B1+1")
	tc.setFormula("B1", "A1+1")
	tc.assertError("A1", ErrorCodeCycle)
	tc.assertError("B1", ErrorCodeCycle)
}

func TestEngineDivisionByZeroProducesInfinity(t *testing.T) {
	tc := newEngineTestCase(t)
	tc.setNumber("A1", 1)
	tc.setNumber("A2", 0)
	tc.setFormula("B1", "A1/A2")

	got, err := tc.engine.GetCellValue("Sheet1", "B1")
	require.NoError(t, err)
	require.Equal(t, CellValueInfinity, got.Type)
	assert.Equal(t, PositiveInfinity, got.Sign)
}

func TestEngineSetCellContentRejectsUnknownSheet(t *testing.T) {
	engine := NewEngine()
	err := engine.SetCellContent("Nope", "A1", SerializedNumber(1))
	require.Error(t, err)
	appErr, ok := err.(*AppError)
	require.True(t, ok)
	assert.Equal(t, AppErrorSheetNotFound, appErr.Code)
}

func TestEngineAddSheetRejectsDuplicateName(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.AddSheet("", "Sheet1"))
	err := engine.AddSheet("", "Sheet1")
	require.Error(t, err)
	appErr, ok := err.(*AppError)
	require.True(t, ok)
	assert.Equal(t, AppErrorSheetExists, appErr.Code)
}

func TestEngineRenameSheetRewritesDependentFormulas(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.AddSheet("", "Sheet1"))
	require.NoError(t, engine.AddSheet("", "Sheet2"))
	require.NoError(t, engine.SetCellContent("Sheet1", "A1", SerializedNumber(5)))
	require.NoError(t, engine.SetCellContent("Sheet2", "A1", SerializedText("=Sheet1!A1+1")))

	require.NoError(t, engine.RenameSheet("Sheet1", "Budget"))

	got, err := engine.GetCellValue("Sheet2", "A1")
	require.NoError(t, err)
	require.Equal(t, CellValueNumber, got.Type)
	assert.Equal(t, float64(6), got.Number)

	require.NoError(t, engine.SetCellContent("Budget", "A1", SerializedNumber(50)))
	got, err = engine.GetCellValue("Sheet2", "A1")
	require.NoError(t, err)
	assert.Equal(t, float64(51), got.Number)
}

func TestEngineSetSheetContentReplacesAtomically(t *testing.T) {
	tc := newEngineTestCase(t)
	tc.setNumber("A1", 1)
	tc.setNumber("A2", 2)

	err := tc.engine.SetSheetContent("Sheet1", map[string]SerializedCellValue{
		"B1": SerializedNumber(9),
	})
	require.NoError(t, err)

	gotA1, err := tc.engine.GetCellValue("Sheet1", "A1")
	require.NoError(t, err)
	assert.Equal(t, CellValueEmpty, gotA1.Type, "old content should be cleared")

	tc.assertNumber("B1", 9)
}

func TestEngineAutofillShiftsRelativeReferences(t *testing.T) {
	tc := newEngineTestCase(t)
	tc.setNumber("A1", 1)
	tc.setNumber("A2", 2)
	tc.setFormula("B1", "A1*10")

	require.NoError(t, tc.engine.Autofill("Sheet1", "B1", "B2", 0, 1))
	tc.assertNumber("B2", 20)
}

func TestEngineAutofillOfEmptySourceClearsTarget(t *testing.T) {
	tc := newEngineTestCase(t)
	tc.setNumber("B2", 99)

	require.NoError(t, tc.engine.Autofill("Sheet1", "A1", "B2", 0, 0))

	got, err := tc.engine.GetCellValue("Sheet1", "B2")
	require.NoError(t, err)
	assert.Equal(t, CellValueEmpty, got.Type)
}

func TestEngineNamedRangeLifecycle(t *testing.T) {
	tc := newEngineTestCase(t)
	tc.setNumber("A1", 7)

	target := SpreadsheetRange{StartCol: 0, StartRow: 0, EndCol: FiniteBound(0), EndRow: FiniteBound(0)}
	require.NoError(t, tc.engine.AddNamedRange("TaxBase", target))

	err := tc.engine.AddNamedRange("TaxBase", target)
	require.Error(t, err)
	appErr, ok := err.(*AppError)
	require.True(t, ok)
	assert.Equal(t, AppErrorNamedRangeExists, appErr.Code)

	require.NoError(t, tc.engine.RemoveNamedRange("TaxBase"))
	require.Error(t, tc.engine.RemoveNamedRange("TaxBase"))
}

func TestEngineWorkbookLifecycle(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.AddWorkbook("Budget"))

	err := engine.AddWorkbook("Budget")
	require.Error(t, err)
	appErr, ok := err.(*AppError)
	require.True(t, ok)
	assert.Equal(t, AppErrorWorkbookExists, appErr.Code)

	require.NoError(t, engine.AddSheet("Budget", "Source"))
	require.NoError(t, engine.AddSheet("Budget", "Consumer"))
	require.NoError(t, engine.SetCellContent("Source", "A1", SerializedNumber(7)))
	require.NoError(t, engine.SetCellContent("Consumer", "A1", SerializedText("=[Budget]Source!A1+1")))

	got, err := engine.GetCellValue("Consumer", "A1")
	require.NoError(t, err)
	require.Equal(t, CellValueNumber, got.Type, "cross-workbook reference to a sheet that belongs to the named workbook should resolve: %+v", got)
	assert.Equal(t, float64(8), got.Number)

	require.NoError(t, engine.RenameWorkbook("Budget", "Finance"))
	got, err = engine.GetCellValue("Consumer", "A1")
	require.NoError(t, err)
	require.Equal(t, CellValueNumber, got.Type, "rename should rewrite the workbook qualifier so the reference keeps resolving: %+v", got)
	assert.Equal(t, float64(8), got.Number)

	require.NoError(t, engine.RemoveWorkbook("Finance"))
	require.Error(t, engine.RemoveWorkbook("Finance"))
}

func TestEngineCrossWorkbookReferenceToUnknownWorkbookIsRef(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.AddSheet("", "Sheet1"))
	require.NoError(t, engine.SetCellContent("Sheet1", "A1", SerializedNumber(1)))
	require.NoError(t, engine.SetCellContent("Sheet1", "B1", SerializedText("=[NoSuchBook]Sheet1!A1")))

	got, err := engine.GetCellValue("Sheet1", "B1")
	require.NoError(t, err)
	require.Equal(t, CellValueError, got.Type)
	assert.Equal(t, ErrorCodeRef, got.Err)
}

func TestEngineTableLifecycle(t *testing.T) {
	tc := newEngineTestCase(t)
	r := FiniteSpreadsheetRange{StartCol: 0, StartRow: 0, EndCol: 1, EndRow: 3}
	require.NoError(t, tc.engine.AddTable("Orders", "Sheet1", r, []string{"Item", "Qty"}))

	err := tc.engine.AddTable("Orders", "Sheet1", r, []string{"Item", "Qty"})
	require.Error(t, err)

	require.NoError(t, tc.engine.RenameTable("Orders", "Sales"))
	require.Error(t, tc.engine.RemoveTable("Orders"))
	require.NoError(t, tc.engine.RemoveTable("Sales"))
}

func TestEngineVolatileFunctionRecalculatesOnUnrelatedMutation(t *testing.T) {
	clock := &fixedClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	engine := NewEngine(WithFunctions(&BuiltInFunctions{clock: clock, rng: &DefaultRandomGenerator{}}))
	require.NoError(t, engine.AddSheet("", "Sheet1"))
	require.NoError(t, engine.SetCellContent("Sheet1", "A1", SerializedText("=TODAY()")))

	first, err := engine.GetCellValue("Sheet1", "A1")
	require.NoError(t, err)

	clock.t = clock.t.AddDate(0, 0, 1)
	// An unrelated mutation elsewhere on the sheet should still cause the
	// volatile cell to recompute, since volatile cells are never "clean".
	require.NoError(t, engine.SetCellContent("Sheet1", "B1", SerializedNumber(1)))

	second, err := engine.GetCellValue("Sheet1", "A1")
	require.NoError(t, err)
	assert.NotEqual(t, first.Number, second.Number)

	require.NoError(t, engine.SetCellContent("Sheet1", "A1", SerializedNumber(5)))
	require.NoError(t, engine.SetCellContent("Sheet1", "B1", SerializedNumber(2)))
	after, err := engine.GetCellValue("Sheet1", "A1")
	require.NoError(t, err)
	assert.Equal(t, float64(5), after.Number, "overwriting the volatile formula with a literal should unmark it")
}

func TestEngineSubscribeReceivesCellChangedEvents(t *testing.T) {
	tc := newEngineTestCase(t)

	var events []Event
	unsubscribe := tc.engine.Subscribe(EventCellChanged, func(e Event) {
		events = append(events, e)
	})
	defer unsubscribe()

	tc.setNumber("A1", 1)
	require.NotEmpty(t, events)
	assert.Equal(t, CellValueNumber, events[len(events)-1].Value.Type)
}
