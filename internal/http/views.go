package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"html/template"
	"net/url"
	"strconv"
	"time"

	"consultoria/internal/chart"
	"consultoria/internal/core"
	"consultoria/internal/export/pdf"
	"consultoria/internal/log"
	"consultoria/internal/records"
	"consultoria/internal/session"
)

// Tabs of the dashboard, in display order.
const (
	TabRecords    = "records"
	TabAnalysis   = "analysis"
	TabDebts      = "debts"
	TabProjection = "projection"
	TabDatabase   = "database"
)

var tabs = []tabLink{
	{ID: TabRecords, Label: "Records"},
	{ID: TabAnalysis, Label: "Analysis"},
	{ID: TabDebts, Label: "Debts"},
	{ID: TabProjection, Label: "Projection"},
	{ID: TabDatabase, Label: "Database"},
}

var templateFuncs = template.FuncMap{
	"pathEscape": url.PathEscape,
}

func validTab(tab string) bool {
	for _, t := range tabs {
		if t.ID == tab {
			return true
		}
	}
	return false
}

type tabLink struct {
	ID     string
	Label  string
	Active bool
}

type pageData struct {
	Theme   string
	Tabs    []tabLink
	Profile profileView
	Panel   panelData
}

type option struct {
	Value    string
	Label    string
	Selected bool
}

type profileView struct {
	Name       string
	Occupation string
	Phone      string
	Email      string
	Age        int
	Sexes      []option
	HasClient  bool
}

func newProfileView(p core.Profile) profileView {
	v := profileView{
		Name:       p.Name,
		Occupation: p.Occupation,
		Phone:      p.Phone,
		Email:      p.Email,
		Age:        p.Age,
		HasClient:  p.HasClient(),
	}
	for _, sex := range core.Sexes() {
		v.Sexes = append(v.Sexes, option{Value: string(sex), Label: string(sex), Selected: sex == p.Sex})
	}
	return v
}

// panelData carries exactly one populated tab view.
type panelData struct {
	Tab        string
	Records    *recordsView
	Analysis   *analysisView
	Debts      *debtsView
	Projection *projectionView
	Database   *databaseView
}

type txRow struct {
	ID        int64
	Date      string
	Category  string
	Amount    string
	Kind      string
	KindLabel string
	Editing   bool
}

type recordsView struct {
	Kinds     []option
	Editing   bool
	EditingID int64
	Category  string
	Amount    string
	Rows      []txRow
	Income    string
	Expense   string
	Balance   string
	Negative  bool
}

func newRecordsView(st session.State) *recordsView {
	v := &recordsView{
		Income:   core.FormatMoney(st.Totals.Income),
		Expense:  core.FormatMoney(st.Totals.Expense),
		Balance:  core.FormatMoney(st.Totals.Balance),
		Negative: st.Totals.Balance.IsNegative(),
	}
	kind := st.DefaultKind
	if st.Editing != nil {
		v.Editing = true
		v.EditingID = st.Editing.ID
		v.Category = st.Editing.Category
		v.Amount = st.Editing.Amount.StringFixed(2)
		kind = st.Editing.Kind
	}
	for _, k := range core.Kinds() {
		v.Kinds = append(v.Kinds, option{Value: string(k), Label: k.Label(), Selected: k == kind})
	}
	for _, tx := range st.Ledger {
		v.Rows = append(v.Rows, txRow{
			ID:        tx.ID,
			Date:      tx.Date.Display(),
			Category:  tx.Category,
			Amount:    core.FormatMoney(tx.Amount),
			Kind:      string(tx.Kind),
			KindLabel: tx.Kind.Label(),
			Editing:   v.Editing && tx.ID == v.EditingID,
		})
	}
	return v
}

type legendEntry struct {
	Label   string
	Amount  string
	Percent string
	Color   string
}

type analysisView struct {
	Header      pdf.Header
	HasClient   bool
	Tiles       []pdf.Tile
	Chart       template.URL
	Legend      []legendEntry
	CenterLabel string
	CenterValue string
	Tables      []pdf.Table
	Empty       bool
	CloseMonths []option
	CloseYears  []option
}

// closeOptions lists the months and years a period can be closed for,
// preselecting today.
func closeOptions(today core.Date) (months, years []option) {
	cur := core.PeriodOf(today.Time)
	for m := time.January; m <= time.December; m++ {
		months = append(months, option{Value: strconv.Itoa(int(m)), Label: m.String(), Selected: m == cur.Month})
	}
	for y := core.MinPeriodYear; y <= core.MaxPeriodYear; y++ {
		years = append(years, option{Value: strconv.Itoa(y), Label: strconv.Itoa(y), Selected: y == cur.Year})
	}
	return months, years
}

// newAnalysisView shares its layout with the analysis document so the tab
// and the download always agree.
func (s *Server) newAnalysisView(ctx context.Context, st session.State) *analysisView {
	layout := pdf.PlanAnalysis(pdf.LiveAnalysis(st.Profile, st.Today, st.Ledger))
	v := &analysisView{
		Header:    layout.Header,
		HasClient: st.Profile.HasClient(),
		Tiles:     layout.Tiles,
		Tables:    layout.Tables,
		Empty:     layout.Chart == nil,
	}
	v.CloseMonths, v.CloseYears = closeOptions(st.Today)
	if layout.Chart == nil {
		return v
	}

	v.CenterLabel = layout.Chart.CenterLabel
	v.CenterValue = layout.Chart.CenterValue
	shares := chart.Percentages(layout.Chart.Slices)
	for i, sl := range layout.Chart.Slices {
		v.Legend = append(v.Legend, legendEntry{
			Label:   sl.Label,
			Amount:  core.FormatMoney(sl.Value),
			Percent: core.FormatPercent(shares[i]),
			Color:   sl.Color,
		})
	}

	if s.charts == nil {
		return v
	}
	png, err := s.charts.RenderProportion(ctx, layout.Chart.Slices)
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Chart preview failed", log.FieldError, err)
		return v
	}
	v.Chart = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
	return v
}

type debtRow struct {
	ID       int64
	Creditor string
	Amount   string
	Rate     string
}

type debtsView struct {
	Rows  []debtRow
	Total string
}

func newDebtsView(st session.State) *debtsView {
	v := &debtsView{Total: core.FormatMoney(st.TotalDebt)}
	for _, d := range st.Debts {
		v.Rows = append(v.Rows, debtRow{
			ID:       d.ID,
			Creditor: d.Creditor,
			Amount:   core.FormatMoney(d.Amount),
			Rate:     d.Rate.StringFixed(2) + "%",
		})
	}
	return v
}

type projectionRow struct {
	Month   int
	Label   string
	Capital string
	Striped bool
}

type projectionView struct {
	Monthly   string
	Months    int
	MaxMonths int
	Label     string
	Total     string
	Rows      []projectionRow
}

func newProjectionView(st session.State) *projectionView {
	p := st.Projection
	v := &projectionView{
		Monthly:   p.Monthly.StringFixed(2),
		Months:    p.Months,
		MaxMonths: core.MaxProjectionMonths,
		Label:     p.Label(),
		Total:     core.FormatMoney(p.Total),
	}
	for _, pt := range p.Series() {
		v.Rows = append(v.Rows, projectionRow{
			Month:   pt.Month,
			Label:   core.DurationLabel(pt.Month),
			Capital: core.FormatMoney(pt.Capital),
			Striped: pt.YearMark,
		})
	}
	return v
}

type snapshotRow struct {
	ID          int64
	Period      string
	Date        string
	Income      string
	Expense     string
	Balance     string
	Savings     string
	HasDocument bool
}

type clientView struct {
	Client     string
	Profile    profileView
	HasSavings bool
	Records    []snapshotRow
}

type databaseView struct {
	Clients   []clientView
	Snapshots int
	Dirty     bool
}

func newDatabaseView(store *records.Store) *databaseView {
	v := &databaseView{Snapshots: store.Len(), Dirty: store.Dirty()}
	for _, g := range store.GroupByClient() {
		cv := clientView{
			Client:     g.Client,
			Profile:    newProfileView(g.Latest().Profile()),
			HasSavings: g.HasProjectedSavings(),
		}
		for _, snap := range g.Snapshots {
			cv.Records = append(cv.Records, snapshotRow{
				ID:          snap.ID,
				Period:      snap.PeriodLabel,
				Date:        snap.Date.Display(),
				Income:      core.FormatMoney(snap.TotalIncome),
				Expense:     core.FormatMoney(snap.TotalExpense),
				Balance:     core.FormatMoney(snap.Balance),
				Savings:     core.FormatMoney(snap.Savings()),
				HasDocument: snap.HasDocument(),
			})
		}
		v.Clients = append(v.Clients, cv)
	}
	return v
}

func (s *Server) panel(ctx context.Context, tab string) panelData {
	st := s.session.State()
	p := panelData{Tab: tab}
	switch tab {
	case TabAnalysis:
		p.Analysis = s.newAnalysisView(ctx, st)
	case TabDebts:
		p.Debts = newDebtsView(st)
	case TabProjection:
		p.Projection = newProjectionView(st)
	case TabDatabase:
		p.Database = newDatabaseView(s.ledger.Store())
	default:
		p.Tab = TabRecords
		p.Records = newRecordsView(st)
	}
	return p
}

func (s *Server) page(ctx context.Context, tab string) pageData {
	d := pageData{
		Theme:   s.theme,
		Profile: newProfileView(s.session.Profile()),
		Panel:   s.panel(ctx, tab),
	}
	for _, t := range tabs {
		t.Active = t.ID == d.Panel.Tab
		d.Tabs = append(d.Tabs, t)
	}
	return d
}

// render executes a template into a buffer first so a failing template never
// leaves a half-written response.
func (s *Server) render(ctx context.Context, name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Template execution failed",
			log.FieldError, err,
			"template", name)
		return nil, err
	}
	return buf.Bytes(), nil
}
