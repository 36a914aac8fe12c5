package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxProjectionMonths bounds the projection horizon offered by the UI.
const MaxProjectionMonths = 60

// Projection accumulates a fixed monthly saving over a number of months.
type Projection struct {
	Monthly decimal.Decimal
	Months  int
	Total   decimal.Decimal
}

// ProjectionPoint is the capital accumulated after Month months.
type ProjectionPoint struct {
	Month    int
	Capital  decimal.Decimal
	YearMark bool
}

func NewProjection(monthly decimal.Decimal, months int) (Projection, error) {
	if monthly.IsNegative() {
		return Projection{}, fmt.Errorf("%w: negative monthly amount", ErrInvalidProjection)
	}
	if months < 1 {
		return Projection{}, fmt.Errorf("%w: duration must be at least one month", ErrInvalidProjection)
	}
	return Projection{
		Monthly: monthly,
		Months:  months,
		Total:   monthly.Mul(decimal.NewFromInt(int64(months))),
	}, nil
}

// Label renders the projection horizon, see DurationLabel.
func (p Projection) Label() string {
	return DurationLabel(p.Months)
}

// Series returns one point per elapsed month.
func (p Projection) Series() []ProjectionPoint {
	points := make([]ProjectionPoint, 0, p.Months)
	for m := 1; m <= p.Months; m++ {
		points = append(points, p.point(m))
	}
	return points
}

// Sampled returns every sixth month plus the final month.
func (p Projection) Sampled() []ProjectionPoint {
	var points []ProjectionPoint
	for m := 1; m <= p.Months; m++ {
		if m%6 == 0 || m == p.Months {
			points = append(points, p.point(m))
		}
	}
	return points
}

func (p Projection) point(m int) ProjectionPoint {
	return ProjectionPoint{
		Month:    m,
		Capital:  p.Monthly.Mul(decimal.NewFromInt(int64(m))),
		YearMark: m%12 == 0,
	}
}

// DurationLabel renders a number of months:
//
//	 6 -> "6 Months"
//	24 -> "2 Years"
//	18 -> "18 Months (1.5 Years)"
func DurationLabel(months int) string {
	switch {
	case months < 12:
		return plural(months, "Month")
	case months%12 == 0:
		return plural(months/12, "Year")
	default:
		return fmt.Sprintf("%d Months (%.1f Years)", months, float64(months)/12)
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
