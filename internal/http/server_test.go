package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consultoria/internal/chart"
	"consultoria/internal/export/pdf"
	"consultoria/internal/export/xlsx"
	"consultoria/internal/records"
	"consultoria/internal/services"
	"consultoria/internal/session"
)

type fakeCharts struct{ calls int }

func (f *fakeCharts) RenderProportion(_ context.Context, _ []chart.Slice) ([]byte, error) {
	f.calls++
	return []byte("png"), nil
}

type testEnv struct {
	srv       *Server
	session   *session.Session
	store     *records.Store
	persister *records.Memory
}

func fixedNow() time.Time { return time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC) }

func newTestEnv(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()
	persister := records.NewMemory()
	store := records.NewStore(persister, records.Options{Now: fixedNow})
	sess := session.New(session.Options{Now: fixedNow})
	ledger := services.NewLedgerService(services.LedgerOptions{
		Store:     store,
		Workbooks: xlsx.New(xlsx.Options{}),
		Documents: pdf.New(pdf.Options{}),
	})

	opts := Options{
		Addr:           ":0",
		Session:        sess,
		Ledger:         ledger,
		Charts:         &fakeCharts{},
		NoticeDuration: 2 * time.Second,
		RateLimit:      1000,
	}
	for _, m := range mutate {
		m(&opts)
	}
	srv, err := NewServer(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, session: sess, store: store, persister: persister}
}

func (e *testEnv) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) addTx(t *testing.T, category, amount, kind string) {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/transactions", url.Values{"category": {category}, "amount": {amount}, "kind": {kind}})
	require.Equal(t, http.StatusOK, rr.Code)
}

func (e *testEnv) setClient(t *testing.T, name string) {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/profile", url.Values{"name": {name}, "occupation": {"Engineer"}, "age": {"34"}, "sex": {"Female"}})
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestNewServer_RequiresCollaborators(t *testing.T) {
	_, err := NewServer(Options{})
	assert.Error(t, err)
}

func TestIndexAndHealth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Financial Consulting")
	assert.Contains(t, rr.Body.String(), "New transaction")
	assert.Contains(t, rr.Body.String(), `class="theme-light"`)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, rr.Header().Get("Content-Security-Policy"))

	rr = env.do(t, http.MethodGet, "/?tab=database", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Client database")

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}

	rr = env.do(t, http.MethodGet, "/static/app.css", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Cache-Control"), "max-age=3600")
}

func TestTabPartials(t *testing.T) {
	env := newTestEnv(t)

	for _, tab := range []string{TabRecords, TabAnalysis, TabDebts, TabProjection, TabDatabase} {
		rr := env.do(t, http.MethodGet, "/ui/tab/"+tab, nil)
		require.Equal(t, http.StatusOK, rr.Code, tab)
		assert.Contains(t, rr.Body.String(), `data-tab="`+tab+`"`)
	}

	rr := env.do(t, http.MethodGet, "/ui/tab/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSubmitTransaction(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/transactions", url.Values{"category": {"Salary"}, "amount": {"1,000.00"}, "kind": {"income"}})
	require.Equal(t, http.StatusOK, rr.Code)
	trigger := rr.Header().Get("HX-Trigger")
	assert.Contains(t, trigger, "ledger:changed")
	assert.Contains(t, trigger, "form:reset")
	assert.Contains(t, trigger, "Income added: $1,000.00")
	assert.Contains(t, trigger, `"duration":2000`)

	st := env.session.State()
	require.Len(t, st.Ledger, 1)
	assert.Equal(t, "1000", st.Ledger[0].Amount.String())
}

func TestSubmitTransaction_InvalidIsIgnored(t *testing.T) {
	env := newTestEnv(t)

	cases := []url.Values{
		{"category": {""}, "amount": {"10"}, "kind": {"income"}},
		{"category": {"Rent"}, "amount": {"0"}, "kind": {"expense"}},
		{"category": {"Rent"}, "amount": {"-5"}, "kind": {"expense"}},
		{"category": {"Rent"}, "amount": {"abc"}, "kind": {"expense"}},
		{"category": {"Rent"}, "amount": {"10"}, "kind": {"transfer"}},
	}
	for _, form := range cases {
		rr := env.do(t, http.MethodPost, "/transactions", form)
		assert.Equal(t, http.StatusNoContent, rr.Code, form.Encode())
		assert.Empty(t, rr.Header().Get("HX-Trigger"))
	}
	assert.Empty(t, env.session.State().Ledger)
}

func TestEditTransaction(t *testing.T) {
	env := newTestEnv(t)
	env.addTx(t, "Rent", "500", "expense")
	id := env.session.State().Ledger[0].ID

	rr := env.do(t, http.MethodPost, "/transactions/"+formatTestID(id)+"/edit", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, env.session.State().Editing)

	rr = env.do(t, http.MethodGet, "/ui/tab/records", nil)
	assert.Contains(t, rr.Body.String(), "Edit transaction")
	assert.Contains(t, rr.Body.String(), `value="500.00"`)

	rr = env.do(t, http.MethodPost, "/transactions", url.Values{"category": {"Rent March"}, "amount": {"550"}, "kind": {"expense"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "Transaction updated")

	st := env.session.State()
	require.Len(t, st.Ledger, 1)
	assert.Equal(t, id, st.Ledger[0].ID)
	assert.Equal(t, "Rent March", st.Ledger[0].Category)
	assert.Nil(t, st.Editing)
}

func TestEditTransaction_MissingTargetClearsEditMode(t *testing.T) {
	env := newTestEnv(t)
	env.addTx(t, "Rent", "500", "expense")
	id := env.session.State().Ledger[0].ID

	env.do(t, http.MethodPost, "/transactions/"+formatTestID(id)+"/edit", nil)
	rr := env.do(t, http.MethodPost, "/transactions/999/edit", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, env.session.State().Editing)

	rr = env.do(t, http.MethodPost, "/transactions/abc/edit", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCancelEditAndDelete(t *testing.T) {
	env := newTestEnv(t)
	env.addTx(t, "Rent", "500", "expense")
	env.addTx(t, "Salary", "900", "income")
	id := env.session.State().Ledger[0].ID

	env.do(t, http.MethodPost, "/transactions/"+formatTestID(id)+"/edit", nil)
	rr := env.do(t, http.MethodPost, "/transactions/edit/cancel", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, env.session.State().Editing)

	rr = env.do(t, http.MethodPost, "/transactions/"+formatTestID(id)+"/delete", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "Transaction deleted")

	st := env.session.State()
	require.Len(t, st.Ledger, 1)
	assert.Equal(t, "Salary", st.Ledger[0].Category)
}

func TestDebts(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/debts", url.Values{"creditor": {"Bank"}, "amount": {"2500"}, "rate": {"12.5"}})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = env.do(t, http.MethodPost, "/debts", url.Values{"creditor": {"Card"}, "amount": {"500"}})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/debts", url.Values{"creditor": {""}, "amount": {"100"}})
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = env.do(t, http.MethodPost, "/debts", url.Values{"creditor": {"Shop"}, "amount": {"0"}})
	assert.Equal(t, http.StatusNoContent, rr.Code)

	st := env.session.State()
	require.Len(t, st.Debts, 2)
	assert.Equal(t, "3000", st.TotalDebt.String())

	rr = env.do(t, http.MethodGet, "/ui/tab/debts", nil)
	assert.Contains(t, rr.Body.String(), "$3,000.00")
	assert.Contains(t, rr.Body.String(), "12.50%")

	rr = env.do(t, http.MethodPost, "/debts/"+formatTestID(st.Debts[0].ID)+"/delete", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, env.session.State().Debts, 1)
}

func TestProjection(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/projection", url.Values{"monthly": {"300"}, "months": {"18"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "18 Months (1.5 Years)")

	p := env.session.State().Projection
	assert.Equal(t, "5400", p.Total.String())

	rr = env.do(t, http.MethodGet, "/ui/tab/projection", nil)
	assert.Contains(t, rr.Body.String(), "$5,400.00")
	assert.Contains(t, rr.Body.String(), "Month 12 (1 Year)")

	for _, form := range []url.Values{
		{"monthly": {"300"}, "months": {"0"}},
		{"monthly": {"300"}, "months": {"61"}},
		{"monthly": {"-1"}, "months": {"12"}},
	} {
		rr := env.do(t, http.MethodPost, "/projection", form)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, form.Encode())
	}
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)
	env.setClient(t, "Ana López")

	p := env.session.Profile()
	assert.Equal(t, "Ana López", p.Name)
	assert.Equal(t, 34, p.Age)

	rr := env.do(t, http.MethodPost, "/profile", url.Values{"name": {"Ana"}, "age": {"200"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "age must be between 1 and 120")
	assert.Equal(t, 34, env.session.Profile().Age)

	rr = env.do(t, http.MethodGet, "/ui/profile", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Ana López")
}

func TestAnalysisTab(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/ui/tab/analysis", nil)
	assert.Contains(t, rr.Body.String(), "Add income or expenses")
	assert.NotContains(t, rr.Body.String(), "data:image/png")

	env.addTx(t, "Salary", "1000", "income")
	env.addTx(t, "Rent", "400", "expense")

	rr = env.do(t, http.MethodGet, "/ui/tab/analysis", nil)
	body := rr.Body.String()
	assert.Contains(t, body, "data:image/png;base64,")
	assert.Contains(t, body, "$600.00")
	assert.Contains(t, body, "INCOME DETAIL")
	assert.Contains(t, body, "EXPENSE DETAIL")
	assert.Contains(t, body, "71.4%")
}

func TestReports(t *testing.T) {
	env := newTestEnv(t)
	env.setClient(t, "Ana López")
	env.addTx(t, "Salary", "1000", "income")
	env.do(t, http.MethodPost, "/projection", url.Values{"monthly": {"100"}, "months": {"12"}})

	rr := env.do(t, http.MethodGet, "/reports/analysis.pdf", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, pdf.ContentType, rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), `filename="Report_Ana_López.pdf"`)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "%PDF"))

	rr = env.do(t, http.MethodGet, "/reports/projection.pdf", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "Savings_Projection.pdf")

	rr = env.do(t, http.MethodGet, "/reports/clients.xlsx", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, xlsx.ContentType, rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "Clients_Database.xlsx")
}

func TestClosePeriod(t *testing.T) {
	env := newTestEnv(t)
	env.addTx(t, "Salary", "1000", "income")

	rr := env.do(t, http.MethodPost, "/records/close", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "Enter the client name first")
	assert.Equal(t, 0, env.store.Len())

	env.setClient(t, "Ana")
	rr = env.do(t, http.MethodPost, "/records/close", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	trigger := rr.Header().Get("HX-Trigger")
	assert.Contains(t, trigger, "records:changed")
	assert.Contains(t, trigger, "March 2025 saved for Ana")

	require.Equal(t, 1, env.store.Len())
	assert.Empty(t, env.session.State().Ledger)
	assert.False(t, env.session.Profile().HasClient())

	snap := env.store.All()[0]
	rr = env.do(t, http.MethodGet, "/records/"+formatTestID(snap.ID)+"/document.pdf", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), `filename="Report_Ana_March_2025.pdf"`)
	assert.Equal(t, snap.Document, rr.Body.Bytes())

	rr = env.do(t, http.MethodGet, "/records/42/document.pdf", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodGet, "/?tab=database", nil)
	assert.Contains(t, rr.Body.String(), "1 stored period for 1 client.")
}

func TestClosePeriod_ChosenMonth(t *testing.T) {
	env := newTestEnv(t)
	env.setClient(t, "Ana")
	env.addTx(t, "Salary", "1000", "income")

	rr := env.do(t, http.MethodGet, "/ui/tab/analysis", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `<option value="3" selected>March</option>`)
	assert.Contains(t, rr.Body.String(), `<option value="2025" selected>2025</option>`)

	rr = env.do(t, http.MethodPost, "/records/close", url.Values{"month": {"13"}, "year": {"2025"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "Invalid period")
	assert.Equal(t, 0, env.store.Len())

	rr = env.do(t, http.MethodPost, "/records/close", url.Values{"month": {"11"}, "year": {"2024"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "November 2024 saved for Ana")

	snap := env.store.All()[0]
	assert.Equal(t, "November 2024", snap.PeriodLabel)
	assert.Equal(t, "November", snap.Month)
	assert.Equal(t, 2024, snap.Year)
	assert.Equal(t, "14/03/2025", snap.Date.Display())
}

func TestClosePeriod_SaveFailureKeepsSession(t *testing.T) {
	env := newTestEnv(t)
	env.setClient(t, "Ana")
	env.addTx(t, "Salary", "1000", "income")
	env.persister.SetErr(errors.New("disk full"))

	rr := env.do(t, http.MethodPost, "/records/close", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), `"type":"warning"`)
	assert.Equal(t, 1, env.store.Len())
	assert.Len(t, env.session.State().Ledger, 1)

	rr = env.do(t, http.MethodGet, "/ui/tab/database", nil)
	assert.Contains(t, rr.Body.String(), "not saved to disk")

	rr = env.do(t, http.MethodPost, "/records/flush", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	env.persister.SetErr(nil)
	rr = env.do(t, http.MethodPost, "/records/flush", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, env.store.Dirty())
}

func TestClientProfileAndDelete(t *testing.T) {
	env := newTestEnv(t)
	env.setClient(t, "Ana María")
	env.addTx(t, "Salary", "1000", "income")
	env.do(t, http.MethodPost, "/records/close", nil)
	env.setClient(t, "Ana María")
	env.do(t, http.MethodPost, "/records/close", nil)
	require.Equal(t, 2, env.store.Len())

	target := "/clients/" + url.PathEscape("Ana María")
	rr := env.do(t, http.MethodPost, target+"/profile", url.Values{"occupation": {"Architect"}, "phone": {"555"}, "age": {"40"}, "sex": {"Female"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "Ana María updated (2 records)")
	for _, snap := range env.store.All() {
		assert.Equal(t, "Architect", snap.Occupation)
		assert.Equal(t, 40, snap.Age)
		assert.Equal(t, "Ana María", snap.Client)
	}

	rr = env.do(t, http.MethodPost, "/clients/Nobody/profile", url.Values{"age": {"40"}})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodPost, target+"/delete", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, env.store.Len())

	rr = env.do(t, http.MethodPost, target+"/delete", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSuspiciousRequestsBlocked(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.BlockSuspicious = true })

	rr := env.do(t, http.MethodGet, "/?file=../../etc/passwd", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.RateLimit = 2 })

	for i := 0; i < 2; i++ {
		rr := env.do(t, http.MethodPost, "/transactions/edit/cancel", nil)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := env.do(t, http.MethodPost, "/transactions/edit/cancel", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "Too many requests")

	rr = env.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func formatTestID(id int64) string { return strconv.FormatInt(id, 10) }
