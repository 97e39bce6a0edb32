package formulaengine

import (
	"encoding/json"
	"fmt"
)

// SheetSnapshot is one sheet's worth of cell content in the on-the-wire
// snapshot format: {"sheet":"Sheet1","cells":{"A1":10,"B1":"=A1+1"}}. A
// workbook snapshot is a JSON array of these, one per populated sheet.
type SheetSnapshot struct {
	Sheet string                     `json:"sheet"`
	Cells map[string]json.RawMessage `json:"cells"`
}

// DecodeSnapshot parses a workbook snapshot document.
func DecodeSnapshot(data []byte) ([]SheetSnapshot, error) {
	var sheets []SheetSnapshot
	if err := json.Unmarshal(data, &sheets); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return sheets, nil
}

// DecodeSerializedValue converts one cell's raw JSON value into a
// SerializedCellValue: null -> empty, a number -> number, a bool ->
// boolean, a string -> text or formula (leading "=").
func DecodeSerializedValue(raw json.RawMessage) (SerializedCellValue, error) {
	if raw == nil || string(raw) == "null" {
		return SerializedNil(), nil
	}
	var asNumber float64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return SerializedNumber(asNumber), nil
	}
	var asBool bool
	if err := json.Unmarshal(raw, &asBool); err == nil {
		return SerializedBoolean(asBool), nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return SerializedText(asString), nil
	}
	return SerializedCellValue{}, fmt.Errorf("unsupported cell value %s", string(raw))
}

// ApplySnapshot loads every sheet in sheets into the engine, creating
// sheets that don't yet exist, and replaces each sheet's content via
// SetSheetContent.
func (e *Engine) ApplySnapshot(sheets []SheetSnapshot) error {
	for _, sheet := range sheets {
		if !e.registry.Worksheets.Contains(sheet.Sheet) {
			if err := e.AddSheet("", sheet.Sheet); err != nil {
				return err
			}
		}
		cells := make(map[string]SerializedCellValue, len(sheet.Cells))
		for key, raw := range sheet.Cells {
			value, err := DecodeSerializedValue(raw)
			if err != nil {
				return fmt.Errorf("sheet %q cell %q: %w", sheet.Sheet, key, err)
			}
			cells[key] = value
		}
		if err := e.SetSheetContent(sheet.Sheet, cells); err != nil {
			return err
		}
	}
	return nil
}

// EncodeCellValue renders a CellValue into the JSON form used by the CLI's
// `eval` output: numbers and booleans as their native JSON types, errors
// and infinities as their textual form, strings as-is.
func EncodeCellValue(v CellValue) any {
	switch v.Type {
	case CellValueNumber:
		return v.Number
	case CellValueBoolean:
		return v.Boolean
	case CellValueString:
		return v.Text
	case CellValueEmpty:
		return nil
	default:
		return v.String()
	}
}
