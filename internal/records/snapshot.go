// Package records keeps the closed accounting periods of every client and
// persists them through a Persister.
package records

import (
	"errors"

	"github.com/shopspring/decimal"

	"consultoria/internal/core"
)

var ErrNotFound = errors.New("snapshot not found")

// Snapshot is one closed accounting period for a client. Financial fields and
// the rendered document are frozen when the snapshot is created.
type Snapshot struct {
	ID         int64
	Client     string
	Occupation string
	Phone      string
	Email      string
	Age        int
	Sex        core.Sex

	Date        core.Date
	PeriodLabel string
	Month       string
	Year        int

	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Balance      decimal.Decimal
	// ProjectedSavings is invalid for records written before the field existed.
	ProjectedSavings decimal.NullDecimal

	Document []byte
}

// NewSnapshot freezes the profile and totals of a period. date is the save
// day; period is the month being closed. The id is assigned by Store.Append.
func NewSnapshot(p core.Profile, date core.Date, period core.Period, totals core.Totals, projected decimal.Decimal, document []byte) Snapshot {
	return Snapshot{
		Client:           p.Name,
		Occupation:       p.Occupation,
		Phone:            p.Phone,
		Email:            p.Email,
		Age:              p.Age,
		Sex:              p.Sex,
		Date:             date,
		PeriodLabel:      period.Label(),
		Month:            period.Month.String(),
		Year:             period.Year,
		TotalIncome:      totals.Income,
		TotalExpense:     totals.Expense,
		Balance:          totals.Income.Sub(totals.Expense),
		ProjectedSavings: decimal.NewNullDecimal(projected),
		Document:         document,
	}
}

// Profile returns the client profile captured by the snapshot.
func (s Snapshot) Profile() core.Profile {
	return core.Profile{
		Name:       s.Client,
		Occupation: s.Occupation,
		Phone:      s.Phone,
		Email:      s.Email,
		Age:        s.Age,
		Sex:        s.Sex,
	}
}

// Totals returns the frozen period totals.
func (s Snapshot) Totals() core.Totals {
	return core.Totals{Income: s.TotalIncome, Expense: s.TotalExpense, Balance: s.Balance}
}

// Savings returns the projected savings, zero when absent.
func (s Snapshot) Savings() decimal.Decimal {
	if !s.ProjectedSavings.Valid {
		return decimal.Zero
	}
	return s.ProjectedSavings.Decimal
}

func (s Snapshot) HasDocument() bool {
	return len(s.Document) > 0
}

// ClientGroup is the snapshots of one client in stored order.
type ClientGroup struct {
	Client    string
	Snapshots []Snapshot
}

// Latest returns the snapshot with the highest id.
func (g ClientGroup) Latest() Snapshot {
	var latest Snapshot
	for i, s := range g.Snapshots {
		if i == 0 || s.ID > latest.ID {
			latest = s
		}
	}
	return latest
}

// HasProjectedSavings reports whether any snapshot carries the field.
func (g ClientGroup) HasProjectedSavings() bool {
	for _, s := range g.Snapshots {
		if s.ProjectedSavings.Valid {
			return true
		}
	}
	return false
}

// GroupByClient partitions snapshots by client in order of first appearance,
// preserving relative order inside each partition.
func GroupByClient(snaps []Snapshot) []ClientGroup {
	index := make(map[string]int)
	var groups []ClientGroup
	for _, s := range snaps {
		i, ok := index[s.Client]
		if !ok {
			i = len(groups)
			index[s.Client] = i
			groups = append(groups, ClientGroup{Client: s.Client})
		}
		groups[i].Snapshots = append(groups[i].Snapshots, s)
	}
	return groups
}
