// Package chart renders the income/expense proportion chart embedded in
// analysis documents.
package chart

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"consultoria/internal/core"
)

// ErrNoData is returned when every slice is zero.
var ErrNoData = errors.New("chart has no non-zero values")

// Slice is one labelled share of the chart. Color is a hex RGB string.
type Slice struct {
	Label string
	Value decimal.Decimal
	Color string
}

// Renderer turns slices into a PNG image.
type Renderer interface {
	RenderProportion(ctx context.Context, slices []Slice) ([]byte, error)
}

// Percentages returns each slice's share of the total, zero slices included.
func Percentages(slices []Slice) []decimal.Decimal {
	total := decimal.Zero
	for _, s := range slices {
		if s.Value.IsPositive() {
			total = total.Add(s.Value)
		}
	}
	out := make([]decimal.Decimal, len(slices))
	for i, s := range slices {
		if total.IsZero() || !s.Value.IsPositive() {
			out[i] = decimal.Zero
			continue
		}
		out[i] = s.Value.Div(total)
	}
	return out
}

// PieRenderer draws a pie chart with go-chart.
type PieRenderer struct {
	Width  int
	Height int
}

func NewPieRenderer() *PieRenderer {
	return &PieRenderer{Width: 600, Height: 600}
}

func (r *PieRenderer) RenderProportion(ctx context.Context, slices []Slice) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shares := Percentages(slices)
	var values []gochart.Value
	for i, s := range slices {
		if !s.Value.IsPositive() {
			continue
		}
		v, _ := s.Value.Float64()
		values = append(values, gochart.Value{
			Value: v,
			Label: fmt.Sprintf("%s %s", s.Label, core.FormatPercent(shares[i])),
			Style: gochart.Style{
				FillColor:   drawing.ColorFromHex(s.Color),
				StrokeColor: drawing.ColorWhite,
				StrokeWidth: 4,
				FontColor:   drawing.ColorWhite,
				FontSize:    16,
			},
		})
	}
	if len(values) == 0 {
		return nil, ErrNoData
	}

	pie := gochart.PieChart{
		Width:  r.Width,
		Height: r.Height,
		Background: gochart.Style{
			FillColor: drawing.ColorWhite,
		},
		Values: values,
	}

	var buf bytes.Buffer
	if err := pie.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render pie chart: %w", err)
	}
	return buf.Bytes(), nil
}
