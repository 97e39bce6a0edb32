package formulaengine

import (
	"fmt"
	"testing"
)

func BenchmarkLargeCellPopulation(b *testing.B) {
	for i := 0; i < b.N; i++ {
		engine := NewEngine()
		engine.AddSheet("", "Sheet1")

		for row := 1; row <= 100; row++ {
			for col := 1; col <= 26; col++ {
				addr := fmt.Sprintf("%c%d", 'A'+col-1, row)
				engine.SetCellContent("Sheet1", addr, SerializedNumber(float64(row*col)))
			}
		}
	}
}

func BenchmarkFormulaDependencyChain(b *testing.B) {
	engine := NewEngine()
	engine.AddSheet("", "Sheet1")
	engine.SetCellContent("Sheet1", "A1", SerializedNumber(1))

	for i := 2; i <= 100; i++ {
		addr := fmt.Sprintf("A%d", i)
		formula := fmt.Sprintf("=A%d+1", i-1)
		engine.SetCellContent("Sheet1", addr, SerializedText(formula))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.SetCellContent("Sheet1", "A1", SerializedNumber(float64(i)))
	}
}

func BenchmarkWideDependencyFanOut(b *testing.B) {
	engine := NewEngine()
	engine.AddSheet("", "Sheet1")
	engine.SetCellContent("Sheet1", "A1", SerializedNumber(1))

	for row := 2; row <= 200; row++ {
		addr := fmt.Sprintf("B%d", row)
		engine.SetCellContent("Sheet1", addr, SerializedText("=A1*2"))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.SetCellContent("Sheet1", "A1", SerializedNumber(float64(i)))
	}
}

func BenchmarkSumOverLargeRange(b *testing.B) {
	engine := NewEngine()
	engine.AddSheet("", "Sheet1")
	for row := 1; row <= 1000; row++ {
		engine.SetCellContent("Sheet1", fmt.Sprintf("A%d", row), SerializedNumber(float64(row)))
	}
	engine.SetCellContent("Sheet1", "B1", SerializedText("=SUM(A1:A1000)"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.GetCellValue("Sheet1", "B1")
	}
}
