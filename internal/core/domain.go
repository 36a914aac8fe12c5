package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

const (
	SexMale        Sex = "Male"
	SexFemale      Sex = "Female"
	SexUnspecified Sex = "Unspecified"
)

// DefaultAge is the age a new profile starts with.
const DefaultAge = 18

type (
	Kind string
	Sex  string

	Date struct {
		time.Time
	}

	Transaction struct {
		ID       int64
		Date     Date
		Category string
		Amount   decimal.Decimal
		Kind     Kind
	}

	Debt struct {
		ID       int64
		Creditor string
		Amount   decimal.Decimal
		Rate     decimal.Decimal // annual interest, percent
	}

	// Profile describes the client a ledger belongs to. Only Name and
	// Occupation are ever printed on generated documents.
	Profile struct {
		Name       string
		Occupation string
		Phone      string
		Email      string
		Age        int
		Sex        Sex
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidRate       = errors.New("invalid interest rate")
	ErrEmptyCategory     = errors.New("empty category")
	ErrEmptyCreditor     = errors.New("empty creditor")
	ErrInvalidKind       = errors.New("invalid transaction kind")
	ErrInvalidProfile    = errors.New("invalid profile")
	ErrInvalidProjection = errors.New("invalid projection")
	ErrInvalidPeriod     = errors.New("invalid period")
)

// Kinds lists the transaction kinds in display order.
func Kinds() []Kind {
	return []Kind{KindIncome, KindExpense}
}

// ParseKind accepts the canonical names as well as the labels used by
// older data files ("Ingreso", "Gasto").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "ingreso", "ingresos":
		return KindIncome, nil
	case "expense", "gasto", "gastos", "egreso", "egresos":
		return KindExpense, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Label returns the human readable name of the kind.
func (k Kind) Label() string {
	switch k {
	case KindIncome:
		return "Income"
	case KindExpense:
		return "Expense"
	}
	return string(k)
}

// Sexes lists the selectable values in display order.
func Sexes() []Sex {
	return []Sex{SexMale, SexFemale, SexUnspecified}
}

// ParseSex maps free text to a Sex, falling back to SexUnspecified.
func ParseSex(s string) Sex {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "masculino", "m":
		return SexMale
	case "female", "femenino", "f":
		return SexFemale
	}
	return SexUnspecified
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// Display renders the date as dd/mm/yyyy.
func (d Date) Display() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("02/01/2006")
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}

// UnmarshalJSON accepts "2006-01-02" as well as the full timestamps written
// by older data files.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			*d = DateOf(t)
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", s)
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Category) > 200 {
		return errors.New("category too long (max 200 characters)")
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}

func (d Debt) Validate() error {
	if strings.TrimSpace(d.Creditor) == "" {
		return ErrEmptyCreditor
	}
	if !d.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if d.Rate.IsNegative() {
		return ErrInvalidRate
	}
	return nil
}

// DefaultProfile returns the profile a fresh session starts with.
func DefaultProfile() Profile {
	return Profile{Age: DefaultAge, Sex: SexUnspecified}
}

func (p Profile) Validate() error {
	if p.Age < 1 || p.Age > 120 {
		return fmt.Errorf("%w: age %d out of range 1-120", ErrInvalidProfile, p.Age)
	}
	switch p.Sex {
	case SexMale, SexFemale, SexUnspecified:
	default:
		return fmt.Errorf("%w: sex %q", ErrInvalidProfile, p.Sex)
	}
	return nil
}

// HasClient reports whether the profile names a client.
func (p Profile) HasClient() bool {
	return strings.TrimSpace(p.Name) != ""
}

// PeriodLabel renders the accounting period of t, e.g. "March 2025".
func PeriodLabel(t time.Time) string {
	return t.Format("January 2006")
}

// Closing years offered by the dashboard.
const (
	MinPeriodYear = 2020
	MaxPeriodYear = 2030
)

// Period is the accounting month a snapshot closes. It is chosen by the
// consultant and may differ from the day the snapshot is saved.
type Period struct {
	Year  int
	Month time.Month
}

func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// NewPeriod validates a closing month (1-12) and year.
func NewPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %d", ErrInvalidPeriod, month)
	}
	if year < MinPeriodYear || year > MaxPeriodYear {
		return Period{}, fmt.Errorf("%w: year %d outside %d-%d", ErrInvalidPeriod, year, MinPeriodYear, MaxPeriodYear)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

func (p Period) Label() string {
	return PeriodLabel(time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC))
}
