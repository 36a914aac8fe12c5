package pdf

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-pdf/fpdf"

	"consultoria/internal/chart"
	"consultoria/internal/core"
)

// Page geometry, millimetres on A4 portrait.
const (
	pageWidth     = 210.0
	bandHeight    = 25.0
	contentLeft   = 10.0
	contentWidth  = 190.0
	infoTop       = 30.0
	infoHeight    = 25.0
	tileWidth     = 60.0
	tileHeight    = 20.0
	tileGap       = 63.0
	tileLeft      = 12.0
	chartLeft     = 45.0
	chartWidth    = 120.0
	holeRadius    = 22.0
	rowHeight     = 7.0
	bottomMargin  = 20.0
	fontFamily    = "Helvetica"
	chartImageKey = "proportion-chart"
)

type Options struct {
	// Charts draws the income/expense proportion. Reports skip the chart
	// when nil.
	Charts chart.Renderer
	// Uncompressed leaves page streams readable, for debugging.
	Uncompressed bool
}

// Exporter renders report layouts to PDF bytes.
type Exporter struct {
	charts   chart.Renderer
	compress bool
}

func New(opts Options) *Exporter {
	return &Exporter{charts: opts.Charts, compress: !opts.Uncompressed}
}

// Analysis renders the analysis report.
func (e *Exporter) Analysis(ctx context.Context, a Analysis) ([]byte, error) {
	return e.Render(ctx, PlanAnalysis(a))
}

// Projection renders the savings projection report.
func (e *Exporter) Projection(ctx context.Context, h Header, p core.Projection) ([]byte, error) {
	return e.Render(ctx, PlanProjection(h, p))
}

// Render draws a layout. Any drawing failure aborts the whole document.
func (e *Exporter) Render(ctx context.Context, l Layout) ([]byte, error) {
	var chartPNG []byte
	if l.Chart != nil && e.charts != nil {
		png, err := e.charts.RenderProportion(ctx, l.Chart.Slices)
		if err != nil {
			return nil, fmt.Errorf("render chart: %w", err)
		}
		chartPNG = png
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCompression(e.compress)
	doc.SetTitle(l.Title, true)
	doc.SetCreationDate(l.Header.Date.Time)
	doc.SetAutoPageBreak(true, bottomMargin)
	doc.SetHeaderFunc(func() { drawBand(doc, l.Title) })
	doc.SetFooterFunc(func() { drawFooter(doc) })

	doc.AddPage()
	drawInfo(doc, l.Header)
	if len(l.Tiles) > 0 {
		drawTiles(doc, l.Tiles)
	}
	if chartPNG != nil {
		drawChart(doc, l.Chart, chartPNG)
	}
	for _, t := range l.Tables {
		drawTable(doc, t)
	}
	if l.Projection != nil {
		drawProjection(doc, l.Projection)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func fill(doc *fpdf.Fpdf, c RGB) { doc.SetFillColor(c.R, c.G, c.B) }
func ink(doc *fpdf.Fpdf, c RGB)  { doc.SetTextColor(c.R, c.G, c.B) }

func drawBand(doc *fpdf.Fpdf, title string) {
	fill(doc, Blue)
	doc.Rect(0, 0, pageWidth, bandHeight, "F")
	doc.SetFont(fontFamily, "B", 18)
	doc.SetTextColor(255, 255, 255)
	doc.SetXY(contentLeft, 8)
	doc.CellFormat(contentWidth, 10, encodeText(title), "", 0, "C", false, 0, "")
	doc.SetY(infoTop)
}

func drawFooter(doc *fpdf.Fpdf) {
	doc.SetY(-15)
	doc.SetFont(fontFamily, "I", 8)
	ink(doc, FooterGray)
	doc.CellFormat(0, 10, fmt.Sprintf("Page %d", doc.PageNo()), "", 0, "C", false, 0, "")
}

func drawInfo(doc *fpdf.Fpdf, h Header) {
	fill(doc, Mist)
	doc.Rect(contentLeft, infoTop, contentWidth, infoHeight, "F")

	ink(doc, Graphite)
	doc.SetFont(fontFamily, "B", 11)
	doc.SetXY(contentLeft+5, infoTop+5)
	doc.CellFormat(110, 6, encodeText(h.ClientLine()), "", 0, "L", false, 0, "")
	doc.SetXY(contentLeft+115, infoTop+5)
	doc.CellFormat(70, 6, encodeText(h.DateLine()), "", 0, "R", false, 0, "")

	doc.SetFont(fontFamily, "", 10)
	doc.SetXY(contentLeft+5, infoTop+14)
	doc.CellFormat(180, 6, encodeText(h.OccupationLine()), "", 0, "L", false, 0, "")

	doc.SetY(infoTop + infoHeight + 12)
}

func drawTiles(doc *fpdf.Fpdf, tiles []Tile) {
	y := doc.GetY()
	for i, t := range tiles {
		x := tileLeft + float64(i)*tileGap
		fill(doc, t.Background)
		doc.Rect(x, y, tileWidth, tileHeight, "F")
		fill(doc, t.Accent)
		doc.Rect(x, y, tileWidth, 1, "F")

		doc.SetFont(fontFamily, "B", 8)
		ink(doc, Graphite)
		doc.SetXY(x, y+3)
		doc.CellFormat(tileWidth, 5, encodeText(t.Label), "", 0, "C", false, 0, "")

		doc.SetFont(fontFamily, "B", 13)
		ink(doc, t.Accent)
		doc.SetXY(x, y+10)
		doc.CellFormat(tileWidth, 8, encodeText(t.Value), "", 0, "C", false, 0, "")
	}
	doc.SetY(y + tileHeight + 8)
}

func drawChart(doc *fpdf.Fpdf, c *ChartSection, png []byte) {
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	info := doc.RegisterImageOptionsReader(chartImageKey, opts, bytes.NewReader(png))
	if info == nil || doc.Err() {
		return
	}
	height := chartWidth * info.Height() / info.Width()

	y := doc.GetY()
	doc.ImageOptions(chartImageKey, chartLeft, y, chartWidth, height, false, opts, 0, "")

	cx, cy := chartLeft+chartWidth/2, y+height/2
	doc.SetFillColor(255, 255, 255)
	doc.Circle(cx, cy, holeRadius, "F")

	ink(doc, Graphite)
	doc.SetFont(fontFamily, "B", 9)
	doc.SetXY(cx-holeRadius, cy-6)
	doc.CellFormat(holeRadius*2, 5, encodeText(c.CenterLabel), "", 0, "C", false, 0, "")
	doc.SetFont(fontFamily, "B", 11)
	doc.SetXY(cx-holeRadius, cy)
	doc.CellFormat(holeRadius*2, 6, encodeText(c.CenterValue), "", 0, "C", false, 0, "")

	doc.SetY(y + height + 5)
}

func drawTable(doc *fpdf.Fpdf, t Table) {
	fill(doc, t.Accent)
	doc.SetTextColor(255, 255, 255)
	doc.SetFont(fontFamily, "B", 11)
	doc.SetX(contentLeft)
	doc.CellFormat(contentWidth, 8, encodeText(t.Title), "", 1, "L", true, 0, "")

	doc.SetFont(fontFamily, "", 10)
	ink(doc, Graphite)
	fill(doc, Mist)
	for _, r := range t.Rows {
		doc.SetX(contentLeft)
		doc.CellFormat(140, rowHeight, encodeText(r.Label), "B", 0, "L", r.Striped, 0, "")
		doc.CellFormat(50, rowHeight, encodeText(r.Amount), "B", 1, "R", r.Striped, 0, "")
	}
	doc.Ln(5)
}

func drawProjection(doc *fpdf.Fpdf, p *ProjectionSection) {
	doc.SetX(contentLeft)
	doc.SetFont(fontFamily, "B", 14)
	ink(doc, DeepBlue)
	doc.CellFormat(contentWidth, 10, encodeText(p.Title), "", 1, "L", false, 0, "")

	doc.SetFont(fontFamily, "", 11)
	ink(doc, Graphite)
	for _, line := range []string{p.Monthly, p.Duration} {
		doc.SetX(contentLeft)
		doc.CellFormat(contentWidth, 7, encodeText(line), "", 1, "L", false, 0, "")
	}
	doc.Ln(3)

	fill(doc, IceBlue)
	doc.SetFont(fontFamily, "B", 14)
	ink(doc, DeepBlue)
	doc.SetX(contentLeft)
	doc.CellFormat(contentWidth, 12, encodeText(p.Goal), "", 1, "C", true, 0, "")
	doc.Ln(4)

	fill(doc, p.Accent)
	doc.SetTextColor(255, 255, 255)
	doc.SetFont(fontFamily, "B", 10)
	doc.SetX(contentLeft)
	doc.CellFormat(contentWidth/2, 8, "Period", "", 0, "C", true, 0, "")
	doc.CellFormat(contentWidth/2, 8, "Accumulated Capital", "", 1, "C", true, 0, "")

	doc.SetFont(fontFamily, "", 10)
	ink(doc, Graphite)
	fill(doc, IceBlue)
	for _, r := range p.Rows {
		doc.SetX(contentLeft)
		doc.CellFormat(contentWidth/2, rowHeight, encodeText(r.Period), "B", 0, "C", r.Striped, 0, "")
		doc.CellFormat(contentWidth/2, rowHeight, encodeText(r.Capital), "B", 1, "C", r.Striped, 0, "")
	}
}
