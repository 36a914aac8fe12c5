// Package sheets mirrors the client Summary to a shared spreadsheet.
package sheets

import (
	"context"

	"consultoria/internal/export/xlsx"
)

// Ports for outbound adapters.
type (
	// SummaryWriter replaces the mirrored Summary with rows.
	SummaryWriter interface {
		WriteSummary(ctx context.Context, rows []xlsx.SummaryRow) (location string, err error)
	}

	// SummaryReader returns the currently mirrored Summary.
	SummaryReader interface {
		ReadSummary(ctx context.Context) ([]xlsx.SummaryRow, error)
	}
)

// Header is the first row of a mirrored Summary.
var Header = []string{"Client", "Occupation", "Phone", "Email", "Age", "Sex"}
