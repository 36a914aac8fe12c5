package google

import (
	"fmt"
	"strconv"
	"strings"

	"consultoria/internal/export/xlsx"
	"consultoria/internal/sheets"
)

// summaryValues converts rows into the values matrix written to the sheet,
// header first.
func summaryValues(rows []xlsx.SummaryRow) [][]any {
	values := make([][]any, 0, len(rows)+1)
	header := make([]any, len(sheets.Header))
	for i, h := range sheets.Header {
		header[i] = h
	}
	values = append(values, header)
	for _, r := range rows {
		values = append(values, []any{r.Client, r.Occupation, r.Phone, r.Email, r.Age, r.Sex})
	}
	return values
}

// parseSummary converts a values matrix (as returned by the Sheets API) back
// into rows. The header row is located by its first cell.
func parseSummary(values [][]any) ([]xlsx.SummaryRow, error) {
	if len(values) == 0 {
		return nil, nil
	}
	header := toStrings(values[0])
	if len(header) == 0 || !strings.EqualFold(header[0], sheets.Header[0]) {
		return nil, fmt.Errorf("unexpected summary header: got %v", header)
	}

	var rows []xlsx.SummaryRow
	for i := 1; i < len(values); i++ {
		cells := toStrings(values[i])
		client := safeGet(cells, 0)
		if client == "" {
			continue
		}
		age := 0
		if s := safeGet(cells, 4); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid age %q", i+1, s)
			}
			age = n
		}
		rows = append(rows, xlsx.SummaryRow{
			Client:     client,
			Occupation: safeGet(cells, 1),
			Phone:      safeGet(cells, 2),
			Email:      safeGet(cells, 3),
			Age:        age,
			Sex:        safeGet(cells, 5),
		})
	}
	return rows, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < len(arr) {
		return arr[idx]
	}
	return ""
}
