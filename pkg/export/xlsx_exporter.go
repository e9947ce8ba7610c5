package export

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

// XLSXExporter renders datasets into a single sheet workbook.
// Cells that parse as numbers are written as numbers.
type XLSXExporter struct{}

func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *XLSXExporter) Extension() string { return "xlsx" }

func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx header style: %w", err)
	}

	for col, header := range data.Headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("xlsx header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("write xlsx header: %w", err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, bold); err != nil {
			return nil, fmt.Errorf("style xlsx header: %w", err)
		}
	}

	for i, row := range data.Rows {
		for col, value := range data.record(row) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("xlsx row cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, typed(value)); err != nil {
				return nil, fmt.Errorf("write xlsx row: %w", err)
			}
		}
	}

	if data.Title != "" {
		if err := f.SetDocProps(&excelize.DocProperties{Title: data.Title}); err != nil {
			return nil, fmt.Errorf("xlsx properties: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func typed(value string) interface{} {
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		return n
	}
	return value
}
