package xlsx

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// ReadSummary parses the Summary sheet of a workbook produced by Export.
func ReadSummary(r io.Reader) ([]SummaryRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SummarySheet)
	if err != nil {
		return nil, fmt.Errorf("read %s sheet: %w", SummarySheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s sheet has no header", SummarySheet)
	}

	out := make([]SummaryRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		cell := func(n int) string {
			if n < len(row) {
				return row[n]
			}
			return ""
		}
		age, err := strconv.Atoi(cell(4))
		if err != nil && cell(4) != "" {
			return nil, fmt.Errorf("row %d: invalid age %q", i+2, cell(4))
		}
		out = append(out, SummaryRow{
			Client:     cell(0),
			Occupation: cell(1),
			Phone:      cell(2),
			Email:      cell(3),
			Age:        age,
			Sex:        cell(5),
		})
	}
	return out, nil
}

// SheetList returns the sheet names of a workbook in order.
func SheetList(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}
