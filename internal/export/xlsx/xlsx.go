// Package xlsx builds the client workbook: a Summary sheet with the latest
// profile of every client plus one history sheet per client.
package xlsx

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"consultoria/internal/records"
)

// ContentType of the produced workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	SummarySheet     = "Summary"
	FallbackSheet    = "Client"
	maxSheetNameLen  = 30
	summaryColWidth  = 20
	historyTitle     = "Financial History"
	profileHeaderRow = 2
	historyTitleRow  = 10
	historyHeaderRow = 11
	firstCol         = 2 // column B
)

var ErrSheetNameConflict = errors.New("sheet name conflict")

// Conflict decides what happens when two clients map to the same sheet name.
type Conflict string

const (
	ConflictFail   Conflict = "fail"
	ConflictSuffix Conflict = "suffix"
)

func ParseConflict(s string) (Conflict, error) {
	switch Conflict(strings.ToLower(strings.TrimSpace(s))) {
	case "", ConflictFail:
		return ConflictFail, nil
	case ConflictSuffix:
		return ConflictSuffix, nil
	}
	return "", fmt.Errorf("unknown sheet conflict policy %q", s)
}

var summaryHeaders = []string{"Client", "Occupation", "Phone", "Email", "Age", "Sex"}

// SummaryRow is one line of the Summary sheet.
type SummaryRow struct {
	Client     string
	Occupation string
	Phone      string
	Email      string
	Age        int
	Sex        string
}

func (r SummaryRow) values() []any {
	return []any{r.Client, r.Occupation, r.Phone, r.Email, r.Age, r.Sex}
}

// Strings returns the row as it appears in the sheet.
func (r SummaryRow) Strings() []string {
	return []string{r.Client, r.Occupation, r.Phone, r.Email, fmt.Sprint(r.Age), r.Sex}
}

// SummaryRows returns the latest snapshot of every client, ordered by that
// snapshot's id.
func SummaryRows(snaps []records.Snapshot) []SummaryRow {
	groups := records.GroupByClient(snaps)
	latest := make([]records.Snapshot, 0, len(groups))
	for _, g := range groups {
		latest = append(latest, g.Latest())
	}
	slices.SortFunc(latest, func(a, b records.Snapshot) int { return cmp.Compare(a.ID, b.ID) })

	rows := make([]SummaryRow, 0, len(latest))
	for _, s := range latest {
		rows = append(rows, SummaryRow{
			Client:     s.Client,
			Occupation: s.Occupation,
			Phone:      s.Phone,
			Email:      s.Email,
			Age:        s.Age,
			Sex:        string(s.Sex),
		})
	}
	return rows
}

// SheetName derives a worksheet name from a client name: truncated to 30
// characters, without the characters spreadsheets reject, never empty.
func SheetName(client string) string {
	name := truncate(client, maxSheetNameLen)
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', '?', '*', '\\', '[', ']':
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(strings.Trim(name, "'"))
	if name == "" {
		return FallbackSheet
	}
	return name
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// SheetNames assigns a sheet to every client group. Sheet names compare
// case-insensitively, as spreadsheet applications do.
func SheetNames(groups []records.ClientGroup, policy Conflict) ([]string, error) {
	taken := map[string]string{strings.ToLower(SummarySheet): ""}
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		base := SheetName(g.Client)
		name := base
		if owner, clash := taken[strings.ToLower(name)]; clash {
			if policy != ConflictSuffix {
				if owner == "" {
					return nil, fmt.Errorf("%w: client %q maps to the reserved sheet %q", ErrSheetNameConflict, g.Client, name)
				}
				return nil, fmt.Errorf("%w: clients %q and %q both map to sheet %q", ErrSheetNameConflict, owner, g.Client, name)
			}
			for n := 2; ; n++ {
				suffix := fmt.Sprintf(" (%d)", n)
				name = truncate(base, maxSheetNameLen-utf8.RuneCountInString(suffix)) + suffix
				if _, clash := taken[strings.ToLower(name)]; !clash {
					break
				}
			}
		}
		taken[strings.ToLower(name)] = g.Client
		names = append(names, name)
	}
	return names, nil
}

type Options struct {
	Conflict Conflict
}

// Exporter writes workbooks with excelize.
type Exporter struct {
	conflict Conflict
}

func New(opts Options) *Exporter {
	if opts.Conflict == "" {
		opts.Conflict = ConflictFail
	}
	return &Exporter{conflict: opts.Conflict}
}

// Export builds the workbook for all snapshots.
func (e *Exporter) Export(ctx context.Context, snaps []records.Snapshot) ([]byte, error) {
	groups := records.GroupByClient(snaps)
	names, err := SheetNames(groups, e.conflict)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SummarySheet); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeSummary(f, SummaryRows(snaps), bold); err != nil {
		return nil, err
	}
	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := writeClient(f, names[i], g, bold); err != nil {
			return nil, fmt.Errorf("client sheet %q: %w", names[i], err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, rows []SummaryRow, headerStyle int) error {
	if err := writeRow(f, SummarySheet, 1, 1, toAny(summaryHeaders)); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "F1", headerStyle); err != nil {
		return fmt.Errorf("style summary header: %w", err)
	}
	for i, r := range rows {
		if err := writeRow(f, SummarySheet, i+2, 1, r.values()); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(SummarySheet, "A", "F", summaryColWidth); err != nil {
		return fmt.Errorf("set summary width: %w", err)
	}
	return nil
}

func writeClient(f *excelize.File, sheet string, g records.ClientGroup, headerStyle int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	latest := g.Latest()
	profile := [][]any{
		{"Field", "Value"},
		{"Name", latest.Client},
		{"Occupation", latest.Occupation},
		{"Phone", latest.Phone},
		{"Email", latest.Email},
		{"Age", latest.Age},
		{"Sex", string(latest.Sex)},
	}
	for i, row := range profile {
		if err := writeRow(f, sheet, profileHeaderRow+i, firstCol, row); err != nil {
			return err
		}
	}

	title, _ := excelize.CoordinatesToCellName(firstCol, historyTitleRow)
	if err := f.SetCellValue(sheet, title, historyTitle); err != nil {
		return err
	}

	headers := []any{"Period", "Month", "Year", "Income", "Expense", "Balance"}
	withSavings := g.HasProjectedSavings()
	if withSavings {
		headers = append(headers, "Projected Savings")
	}
	if err := writeRow(f, sheet, historyHeaderRow, firstCol, headers); err != nil {
		return err
	}
	for _, r := range []int{profileHeaderRow, historyTitleRow, historyHeaderRow} {
		from, _ := excelize.CoordinatesToCellName(firstCol, r)
		to, _ := excelize.CoordinatesToCellName(firstCol+len(headers)-1, r)
		if err := f.SetCellStyle(sheet, from, to, headerStyle); err != nil {
			return err
		}
	}

	for i, s := range g.Snapshots {
		row := []any{s.PeriodLabel, s.Month, s.Year, s.TotalIncome.InexactFloat64(), s.TotalExpense.InexactFloat64(), s.Balance.InexactFloat64()}
		if withSavings {
			row = append(row, s.Savings().InexactFloat64())
		}
		if err := writeRow(f, sheet, historyHeaderRow+1+i, firstCol, row); err != nil {
			return err
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(firstCol + len(headers) - 1)
	return f.SetColWidth(sheet, "B", lastCol, 16)
}

func writeRow(f *excelize.File, sheet string, row, col int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+i, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
