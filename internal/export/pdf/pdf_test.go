package pdf

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consultoria/internal/chart"
	"consultoria/internal/core"
	"consultoria/internal/records"
)

type fakeCharts struct {
	calls  int
	slices []chart.Slice
	err    error
}

func (f *fakeCharts) RenderProportion(_ context.Context, slices []chart.Slice) ([]byte, error) {
	f.calls++
	f.slices = slices
	if f.err != nil {
		return nil, f.err
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func tx(category string, amount int64, kind core.Kind) core.Transaction {
	return core.Transaction{Category: category, Amount: decimal.NewFromInt(amount), Kind: kind}
}

func TestPlanAnalysisTiles(t *testing.T) {
	txs := []core.Transaction{tx("Salary", 1000, core.KindIncome), tx("Rent", 400, core.KindExpense)}
	l := PlanAnalysis(LiveAnalysis(core.Profile{Name: "Ana"}, core.NewDate(2025, 3, 7), txs))

	balance, ok := l.Tile("FINAL BALANCE")
	require.True(t, ok)
	assert.Equal(t, "$600.00", balance.Value)
	income, _ := l.Tile("TOTAL INCOME")
	assert.Equal(t, "$1,000.00", income.Value)

	require.NotNil(t, l.Chart)
	assert.Equal(t, "$600.00", l.Chart.CenterValue)
	require.Len(t, l.Tables, 2)
	assert.Equal(t, "INCOME DETAIL", l.Tables[0].Title)
	assert.Equal(t, "EXPENSE DETAIL", l.Tables[1].Title)
	assert.Equal(t, "Rent", l.Tables[1].Rows[0].Label)
}

func TestPlanAnalysisEmptyLedger(t *testing.T) {
	l := PlanAnalysis(LiveAnalysis(core.DefaultProfile(), core.NewDate(2025, 3, 7), nil))
	assert.Nil(t, l.Chart, "no chart without income or expense")
	assert.Empty(t, l.Tables)
	balance, _ := l.Tile("FINAL BALANCE")
	assert.Equal(t, "$0.00", balance.Value)
}

func TestPlanAnalysisStripes(t *testing.T) {
	txs := []core.Transaction{
		tx("A", 1, core.KindExpense),
		tx("B", 2, core.KindExpense),
		tx("C", 3, core.KindExpense),
	}
	l := PlanAnalysis(LiveAnalysis(core.DefaultProfile(), core.NewDate(2025, 1, 1), txs))
	require.Len(t, l.Tables, 1)
	rows := l.Tables[0].Rows
	assert.False(t, rows[0].Striped)
	assert.True(t, rows[1].Striped)
	assert.False(t, rows[2].Striped)
}

func TestPlanAnalysisStripesFollowLedgerPosition(t *testing.T) {
	txs := []core.Transaction{
		tx("Salary", 900, core.KindIncome),
		tx("Rent", 400, core.KindExpense),
		tx("Bonus", 100, core.KindIncome),
		tx("Food", 50, core.KindExpense),
	}
	l := PlanAnalysis(LiveAnalysis(core.DefaultProfile(), core.NewDate(2025, 1, 1), txs))
	require.Len(t, l.Tables, 2)

	income, expense := l.Tables[0].Rows, l.Tables[1].Rows
	require.Len(t, income, 2)
	require.Len(t, expense, 2)
	assert.False(t, income[0].Striped, "Salary is row 0 of the ledger")
	assert.False(t, income[1].Striped, "Bonus is row 2 of the ledger")
	assert.True(t, expense[0].Striped, "Rent is row 1 of the ledger")
	assert.True(t, expense[1].Striped, "Food is row 3 of the ledger")
}

func TestHeaderLines(t *testing.T) {
	h := Header{Date: core.NewDate(2025, 3, 7)}
	assert.Equal(t, "CLIENT: NOT REGISTERED", h.ClientLine())
	assert.Equal(t, "OCCUPATION: N/A", h.OccupationLine())
	assert.Equal(t, "DATE: 07/03/2025", h.DateLine())

	h = Header{Client: "Ana Pérez", Occupation: "Engineer"}
	assert.Equal(t, "CLIENT: ANA PÉREZ", h.ClientLine())
	assert.Equal(t, "OCCUPATION: ENGINEER", h.OccupationLine())
}

func TestSnapshotAnalysisUsesFrozenValues(t *testing.T) {
	s := records.NewSnapshot(
		core.Profile{Name: "Bob", Occupation: "Chef"},
		core.NewDate(2024, 12, 31),
		core.Period{Year: 2024, Month: 12},
		core.Totals{Income: decimal.NewFromInt(50), Expense: decimal.NewFromInt(80)},
		decimal.Zero,
		nil,
	)
	a := SnapshotAnalysis(s)
	assert.Equal(t, "Bob", a.Header.Client)
	assert.Nil(t, a.Transactions)

	l := PlanAnalysis(a)
	balance, _ := l.Tile("FINAL BALANCE")
	assert.Equal(t, "-$30.00", balance.Value)
	assert.Empty(t, l.Tables)
}

func TestPlanProjection(t *testing.T) {
	p, err := core.NewProjection(decimal.NewFromInt(100), 18)
	require.NoError(t, err)
	l := PlanProjection(Header{Client: "Ana"}, p)

	require.NotNil(t, l.Projection)
	assert.Equal(t, DeepBlue, l.Projection.Accent)
	assert.Equal(t, "Total Goal: $1,800.00", l.Projection.Goal)
	assert.Equal(t, "Estimated Time: 18 Months (1.5 Years)", l.Projection.Duration)
	require.Len(t, l.Projection.Rows, 3)
	assert.Equal(t, "Month 6 (6 Months)", l.Projection.Rows[0].Period)
	assert.Equal(t, "Month 12 (1 Year)", l.Projection.Rows[1].Period)
	assert.True(t, l.Projection.Rows[1].Striped)
	assert.Equal(t, "$1,800.00", l.Projection.Rows[2].Capital)
	assert.Empty(t, l.Tiles)
}

func TestRenderAnalysis(t *testing.T) {
	charts := &fakeCharts{}
	e := New(Options{Charts: charts})
	txs := []core.Transaction{tx("Salary", 1000, core.KindIncome), tx("Rent", 400, core.KindExpense)}

	doc, err := e.Analysis(context.Background(), LiveAnalysis(core.Profile{Name: "José Ñúñez 日本"}, core.NewDate(2025, 3, 7), txs))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
	assert.Equal(t, 1, charts.calls)
	require.Len(t, charts.slices, 2)
	assert.True(t, charts.slices[0].Value.Equal(decimal.NewFromInt(1000)))
}

func TestRenderSkipsChartWhenEmpty(t *testing.T) {
	charts := &fakeCharts{}
	doc, err := New(Options{Charts: charts}).Analysis(context.Background(), LiveAnalysis(core.DefaultProfile(), core.NewDate(2025, 3, 7), nil))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
	assert.Zero(t, charts.calls)
}

func TestRenderChartFailureAborts(t *testing.T) {
	boom := errors.New("boom")
	e := New(Options{Charts: &fakeCharts{err: boom}})
	txs := []core.Transaction{tx("Salary", 1, core.KindIncome)}
	_, err := e.Analysis(context.Background(), LiveAnalysis(core.DefaultProfile(), core.NewDate(2025, 3, 7), txs))
	assert.ErrorIs(t, err, boom)
}

func TestRenderProjectionUncompressed(t *testing.T) {
	p, err := core.NewProjection(decimal.NewFromInt(250), 60)
	require.NoError(t, err)
	doc, err := New(Options{Uncompressed: true}).Projection(context.Background(), Header{Client: "Ana"}, p)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "Total Goal: $15,000.00")
	assert.Contains(t, string(doc), "Month 60")
	assert.Contains(t, string(doc), "SAVINGS PROJECTION")
}

func TestRenderHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{}).Analysis(ctx, LiveAnalysis(core.DefaultProfile(), core.NewDate(2025, 3, 7), nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEncodeText(t *testing.T) {
	assert.Equal(t, "caf\xe9", encodeText("café"))
	assert.Equal(t, "\xd1and\xfa", encodeText("Ñandú"))
	assert.Equal(t, "?? ok", encodeText("日本 ok"))
	assert.Equal(t, "\x80", encodeText("€"))
}
