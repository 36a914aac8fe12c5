// Package pdf produces the analysis and projection reports. A report is first
// planned as a Layout, then drawn with fpdf.
package pdf

import (
	"fmt"
	"strings"

	"consultoria/internal/chart"
	"consultoria/internal/core"
	"consultoria/internal/records"
)

// ContentType of the produced documents.
const ContentType = "application/pdf"

const (
	AnalysisTitle   = "FINANCIAL ANALYSIS REPORT"
	ProjectionTitle = "SAVINGS PROJECTION REPORT"
	noClient        = "NOT REGISTERED"
	noOccupation    = "N/A"
)

// RGB is a colour in 0-255 components.
type RGB struct{ R, G, B int }

// Hex renders the colour as "rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("%02x%02x%02x", c.R, c.G, c.B)
}

var (
	Blue       = RGB{0, 122, 255}
	LightBlue  = RGB{90, 200, 250}
	DeepBlue   = RGB{0, 64, 221}
	Mist       = RGB{242, 242, 247}
	IceBlue    = RGB{230, 242, 255}
	IceCyan    = RGB{230, 250, 255}
	Graphite   = RGB{60, 60, 67}
	FooterGray = RGB{128, 128, 128}
)

// Header identifies whose report this is. Only public profile fields are
// carried.
type Header struct {
	Client     string
	Occupation string
	Date       core.Date
}

func (h Header) ClientLine() string {
	name := strings.TrimSpace(h.Client)
	if name == "" {
		name = noClient
	}
	return "CLIENT: " + strings.ToUpper(name)
}

func (h Header) DateLine() string {
	return "DATE: " + h.Date.Display()
}

func (h Header) OccupationLine() string {
	occ := strings.TrimSpace(h.Occupation)
	if occ == "" {
		occ = noOccupation
	}
	return "OCCUPATION: " + strings.ToUpper(occ)
}

// Analysis is the input of an analysis report. Transactions is nil for a
// frozen snapshot, which only carries totals.
type Analysis struct {
	Header       Header
	Totals       core.Totals
	Transactions []core.Transaction
}

// LiveAnalysis reports on the current session ledger.
func LiveAnalysis(p core.Profile, date core.Date, txs []core.Transaction) Analysis {
	return Analysis{
		Header:       Header{Client: p.Name, Occupation: p.Occupation, Date: date},
		Totals:       core.Summarize(txs),
		Transactions: txs,
	}
}

// SnapshotAnalysis reports on a closed period from its frozen values.
func SnapshotAnalysis(s records.Snapshot) Analysis {
	return Analysis{
		Header: Header{Client: s.Client, Occupation: s.Occupation, Date: s.Date},
		Totals: s.Totals(),
	}
}

type Tile struct {
	Label      string
	Value      string
	Accent     RGB
	Background RGB
}

type ChartSection struct {
	Slices      []chart.Slice
	CenterLabel string
	CenterValue string
}

type Row struct {
	Label   string
	Amount  string
	Striped bool
}

type Table struct {
	Title  string
	Accent RGB
	Rows   []Row
}

type ProjectionRow struct {
	Period  string
	Capital string
	Striped bool
}

type ProjectionSection struct {
	Title    string
	Accent   RGB
	Monthly  string
	Duration string
	Goal     string
	Rows     []ProjectionRow
}

// Layout is everything a report shows, top to bottom.
type Layout struct {
	Title      string
	Header     Header
	Tiles      []Tile
	Chart      *ChartSection
	Tables     []Table
	Projection *ProjectionSection
}

// PlanAnalysis lays out the analysis report.
func PlanAnalysis(a Analysis) Layout {
	l := Layout{
		Title:  AnalysisTitle,
		Header: a.Header,
		Tiles: []Tile{
			{Label: "TOTAL INCOME", Value: core.FormatMoney(a.Totals.Income), Accent: Blue, Background: IceBlue},
			{Label: "TOTAL EXPENSE", Value: core.FormatMoney(a.Totals.Expense), Accent: LightBlue, Background: IceCyan},
			{Label: "FINAL BALANCE", Value: core.FormatMoney(a.Totals.Balance), Accent: Blue, Background: Mist},
		},
	}

	if !a.Totals.IsZero() {
		l.Chart = &ChartSection{
			Slices: []chart.Slice{
				{Label: core.KindIncome.Label(), Value: a.Totals.Income, Color: Blue.Hex()},
				{Label: core.KindExpense.Label(), Value: a.Totals.Expense, Color: LightBlue.Hex()},
			},
			CenterLabel: "Balance",
			CenterValue: core.FormatMoney(a.Totals.Balance),
		}
	}

	details := []struct {
		kind   core.Kind
		title  string
		accent RGB
	}{
		{core.KindIncome, "INCOME DETAIL", Blue},
		{core.KindExpense, "EXPENSE DETAIL", LightBlue},
	}
	// Stripes follow the position in the whole ledger.
	for _, d := range details {
		t := Table{Title: d.title, Accent: d.accent}
		for i, tx := range a.Transactions {
			if tx.Kind != d.kind {
				continue
			}
			t.Rows = append(t.Rows, Row{Label: tx.Category, Amount: core.FormatMoney(tx.Amount), Striped: i%2 != 0})
		}
		if len(t.Rows) == 0 {
			continue
		}
		l.Tables = append(l.Tables, t)
	}
	return l
}

// PlanProjection lays out the savings projection report.
func PlanProjection(h Header, p core.Projection) Layout {
	sec := &ProjectionSection{
		Title:    "SAVINGS PROJECTION",
		Accent:   DeepBlue,
		Monthly:  "Monthly Base Savings: " + core.FormatMoney(p.Monthly),
		Duration: "Estimated Time: " + p.Label(),
		Goal:     "Total Goal: " + core.FormatMoney(p.Total),
	}
	for _, pt := range p.Sampled() {
		sec.Rows = append(sec.Rows, ProjectionRow{
			Period:  fmt.Sprintf("Month %d (%s)", pt.Month, core.DurationLabel(pt.Month)),
			Capital: core.FormatMoney(pt.Capital),
			Striped: pt.YearMark,
		})
	}
	return Layout{Title: ProjectionTitle, Header: h, Projection: sec}
}

// Tile returns the tile with the given label.
func (l Layout) Tile(label string) (Tile, bool) {
	for _, t := range l.Tiles {
		if t.Label == label {
			return t, true
		}
	}
	return Tile{}, false
}
