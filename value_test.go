package formulaengine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddClosedArithmetic(t *testing.T) {
	cases := []struct {
		name string
		l, r CellValue
		want CellValue
	}{
		{"number+number", NumberValue(1), NumberValue(2), NumberValue(3)},
		{"NaN passes through", NumberValue(math.NaN()), NumberValue(1), CellValue{Type: CellValueNumber, Number: math.NaN()}},
		{"same-sign infinities add", InfinityValue(PositiveInfinity), InfinityValue(PositiveInfinity), InfinityValue(PositiveInfinity)},
		{"infinity plus number keeps sign", InfinityValue(NegativeInfinity), NumberValue(5), InfinityValue(NegativeInfinity)},
		{"boolean operand is an error", BooleanValue(true), NumberValue(1), ErrorValue(ErrorCodeValue, "")},
		{"string operand is an error", StringValue("x"), NumberValue(1), ErrorValue(ErrorCodeValue, "")},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Add(c.l, c.r)
			assert.Equal(t, c.want.Type, got.Type)
			if c.want.Type == CellValueNumber && math.IsNaN(c.want.Number) {
				assert.True(t, math.IsNaN(got.Number))
				return
			}
			if c.want.Type == CellValueError {
				assert.Equal(t, c.want.Err, got.Err)
				return
			}
			assert.Equal(t, c.want, got)
		})
	}
}

func TestAddOppositeSignInfinitiesIsNum(t *testing.T) {
	got := Add(InfinityValue(PositiveInfinity), InfinityValue(NegativeInfinity))
	assert.Equal(t, CellValueError, got.Type)
	assert.Equal(t, ErrorCodeNum, got.Err)
}

func TestAddNeverErrorsOnNumericDomain(t *testing.T) {
	inputs := []CellValue{
		NumberValue(0), NumberValue(-1), NumberValue(math.MaxFloat64),
		InfinityValue(PositiveInfinity), InfinityValue(NegativeInfinity),
	}
	for _, l := range inputs {
		for _, r := range inputs {
			assert.NotPanics(t, func() { Add(l, r) })
		}
	}
}

func TestDivideContract(t *testing.T) {
	cases := []struct {
		name     string
		l, r     CellValue
		wantType CellValueType
		wantErr  ErrorCode
		wantSign InfinitySign
	}{
		{"zero over zero", NumberValue(0), NumberValue(0), CellValueError, ErrorCodeNum, 0},
		{"nonzero over zero is signed infinity", NumberValue(4), NumberValue(0), CellValueInfinity, 0, PositiveInfinity},
		{"negative over zero is negative infinity", NumberValue(-4), NumberValue(0), CellValueInfinity, 0, NegativeInfinity},
		{"infinity over infinity is indeterminate", InfinityValue(PositiveInfinity), InfinityValue(PositiveInfinity), CellValueError, ErrorCodeNum, 0},
		{"infinity over zero is indeterminate", InfinityValue(PositiveInfinity), NumberValue(0), CellValueError, ErrorCodeNum, 0},
		{"number over infinity is zero", NumberValue(10), InfinityValue(PositiveInfinity), CellValueNumber, 0, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Divide(c.l, c.r)
			a := assert.New(t)
			a.Equal(c.wantType, got.Type)
			if c.wantType == CellValueError {
				a.Equal(c.wantErr, got.Err)
			}
			if c.wantType == CellValueInfinity {
				a.Equal(c.wantSign, got.Sign)
			}
		})
	}
}

func TestCompareIsAntisymmetric(t *testing.T) {
	values := []CellValue{
		NumberValue(1), NumberValue(2), NumberValue(-5),
		StringValue("a"), StringValue("b"), BooleanValue(true), BooleanValue(false),
		Empty(), ErrorValue(ErrorCodeValue, "x"),
	}
	for _, a := range values {
		for _, b := range values {
			ab, ba := Compare(a, b), Compare(b, a)
			if ab == 0 {
				assert.Zero(t, ba)
			} else {
				assert.Equal(t, -1, sign(ab)*sign(ba), "Compare(a,b) and Compare(b,a) should have opposite sign for %+v, %+v", a, b)
			}
		}
	}
}

func sign(n int) int {
	if n < 0 {
		return -1
	}
	if n > 0 {
		return 1
	}
	return 0
}

func TestCompareTransitiveWithinSameType(t *testing.T) {
	assert.True(t, Compare(NumberValue(1), NumberValue(2)) < 0)
	assert.True(t, Compare(NumberValue(2), NumberValue(3)) < 0)
	assert.True(t, Compare(NumberValue(1), NumberValue(3)) < 0)
}

func TestWildcardMatch(t *testing.T) {
	cases := []struct {
		pattern, text string
		want          bool
	}{
		{"a*", "apple", true},
		{"a*", "banana", false},
		{"a?ple", "apple", true},
		{"a?ple", "ale", false},
		{"*", "", true},
		{"APPLE", "apple", true},
		{"a*e", "apple", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, WildcardMatch(c.pattern, c.text), "pattern=%q text=%q", c.pattern, c.text)
	}
}
