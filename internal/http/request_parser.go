// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// form values for profiles, transactions, debts, projections and closing periods.

package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"consultoria/internal/core"
)

// ErrInvalidID is returned for malformed path ids.
var ErrInvalidID = errors.New("invalid id")

// ProfileForm holds the client profile fields.
type ProfileForm struct {
	Name       string
	Occupation string
	Phone      string
	Email      string
	Age        string
	Sex        string
}

// ParseProfileForm reads the profile fields from form values.
func ParseProfileForm(form url.Values) ProfileForm {
	return ProfileForm{
		Name:       sanitizeInput(form.Get("name")),
		Occupation: sanitizeInput(form.Get("occupation")),
		Phone:      sanitizeInput(form.Get("phone")),
		Email:      sanitizeInput(form.Get("email")),
		Age:        strings.TrimSpace(form.Get("age")),
		Sex:        strings.TrimSpace(form.Get("sex")),
	}
}

// Profile converts the form into a core.Profile. A missing age keeps the
// default; an unparsable one is an error.
func (f ProfileForm) Profile() (core.Profile, error) {
	p := core.Profile{
		Name:       f.Name,
		Occupation: f.Occupation,
		Phone:      f.Phone,
		Email:      f.Email,
		Age:        core.DefaultAge,
		Sex:        core.ParseSex(f.Sex),
	}
	if f.Age != "" {
		age, err := strconv.Atoi(f.Age)
		if err != nil {
			return core.Profile{}, fmt.Errorf("%w: age %q", core.ErrInvalidProfile, f.Age)
		}
		p.Age = age
	}
	return p, p.Validate()
}

// TransactionForm holds a submitted ledger entry.
type TransactionForm struct {
	Category string
	Amount   decimal.Decimal
	Kind     core.Kind
}

// ParseTransactionForm validates a transaction submission.
func ParseTransactionForm(form url.Values) (TransactionForm, error) {
	f := TransactionForm{Category: sanitizeInput(form.Get("category"))}
	if f.Category == "" {
		return f, core.ErrEmptyCategory
	}
	amount, err := core.ParseAmount(form.Get("amount"))
	if err != nil {
		return f, err
	}
	kind, err := core.ParseKind(form.Get("kind"))
	if err != nil {
		return f, err
	}
	f.Amount, f.Kind = amount, kind
	return f, nil
}

// DebtForm holds a submitted debt.
type DebtForm struct {
	Creditor string
	Amount   decimal.Decimal
	Rate     decimal.Decimal
}

// ParseDebtForm validates a debt submission. The rate is optional.
func ParseDebtForm(form url.Values) (DebtForm, error) {
	f := DebtForm{Creditor: sanitizeInput(form.Get("creditor"))}
	if f.Creditor == "" {
		return f, core.ErrEmptyCreditor
	}
	amount, err := core.ParseAmount(form.Get("amount"))
	if err != nil {
		return f, err
	}
	rate, err := core.ParseNonNegative(form.Get("rate"))
	if err != nil {
		return f, fmt.Errorf("%w: %v", core.ErrInvalidRate, err)
	}
	f.Amount, f.Rate = amount, rate
	return f, nil
}

// ProjectionForm holds the projection inputs.
type ProjectionForm struct {
	Monthly decimal.Decimal
	Months  int
}

// ParseProjectionForm validates the projection inputs; months must be within
// 1..core.MaxProjectionMonths.
func ParseProjectionForm(form url.Values) (ProjectionForm, error) {
	monthly, err := core.ParseNonNegative(form.Get("monthly"))
	if err != nil {
		return ProjectionForm{}, fmt.Errorf("%w: monthly amount", core.ErrInvalidProjection)
	}
	months, err := strconv.Atoi(strings.TrimSpace(form.Get("months")))
	if err != nil || months < 1 || months > core.MaxProjectionMonths {
		return ProjectionForm{}, fmt.Errorf("%w: months must be between 1 and %d", core.ErrInvalidProjection, core.MaxProjectionMonths)
	}
	return ProjectionForm{Monthly: monthly, Months: months}, nil
}

// ParsePeriodForm reads the closing month and year. Missing values default to
// the period of today.
func ParsePeriodForm(form url.Values, today core.Date) (core.Period, error) {
	def := core.PeriodOf(today.Time)
	month, year := int(def.Month), def.Year
	if v := strings.TrimSpace(form.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return core.Period{}, fmt.Errorf("%w: month %q", core.ErrInvalidPeriod, v)
		}
		month = m
	}
	if v := strings.TrimSpace(form.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return core.Period{}, fmt.Errorf("%w: year %q", core.ErrInvalidPeriod, v)
		}
		year = y
	}
	return core.NewPeriod(year, month)
}

// PathID parses a numeric path value.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, r.PathValue(name))
	}
	return id, nil
}

// PathClient returns the client named in the path.
func PathClient(r *http.Request) (string, error) {
	client := sanitizeInput(r.PathValue("client"))
	if client == "" {
		return "", fmt.Errorf("%w: empty client", ErrInvalidID)
	}
	return client, nil
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	r.Body = http.MaxBytesReader(nil, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}

const maxFormBytes = 64 << 10

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
