package utils

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

type Sheet struct {
	Name     string
	Headings []string
	Rows     [][]interface{}
}

// WriteWorkbook renders one worksheet per sheet, headings in row 1.
func WriteWorkbook(sheets []Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, errors.New("workbook needs at least one sheet")
	}
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			// every new file starts with Sheet1
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return nil, err
		}

		headings := make([]interface{}, len(s.Headings))
		for j, h := range s.Headings {
			headings[j] = h
		}
		if err := f.SetSheetRow(s.Name, "A1", &headings); err != nil {
			return nil, fmt.Errorf("sheet %s headings: %w", s.Name, err)
		}
		for j, row := range s.Rows {
			cell, err := excelize.CoordinatesToCellName(1, j+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(s.Name, cell, &row); err != nil {
				return nil, fmt.Errorf("sheet %s row %d: %w", s.Name, j+1, err)
			}
		}
	}
	f.SetActiveSheet(0)

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
