package core

import "github.com/shopspring/decimal"

// Totals is the reduction of a ledger.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

// KindAmount represents an amount aggregated by transaction kind.
type KindAmount struct {
	Kind   Kind
	Amount decimal.Decimal
}

// Summarize sums the ledger by kind. Entries with an unknown kind count
// towards neither total.
func Summarize(txs []Transaction) Totals {
	income, expense := decimal.Zero, decimal.Zero
	for _, t := range txs {
		switch t.Kind {
		case KindIncome:
			income = income.Add(t.Amount)
		case KindExpense:
			expense = expense.Add(t.Amount)
		}
	}
	return Totals{Income: income, Expense: expense, Balance: income.Sub(expense)}
}

// IsZero reports whether there was neither income nor expense.
func (t Totals) IsZero() bool {
	return t.Income.IsZero() && t.Expense.IsZero()
}

// ByKind returns the totals as a slice in Kinds() order.
func (t Totals) ByKind() []KindAmount {
	return []KindAmount{
		{Kind: KindIncome, Amount: t.Income},
		{Kind: KindExpense, Amount: t.Expense},
	}
}

// FilterKind returns the transactions of one kind, preserving order.
func FilterKind(txs []Transaction, kind Kind) []Transaction {
	var out []Transaction
	for _, t := range txs {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// TotalDebt sums the principal of all debts.
func TotalDebt(debts []Debt) decimal.Decimal {
	total := decimal.Zero
	for _, d := range debts {
		total = total.Add(d.Amount)
	}
	return total
}
