package http

import (
	"net/http"
	"strings"
	"unicode"

	"consultoria/internal/export/pdf"
	"consultoria/internal/export/xlsx"
	"consultoria/internal/log"
)

const (
	projectionFilename = "Savings_Projection.pdf"
	workbookFilename   = "Clients_Database.xlsx"
)

func (s *Server) handleAnalysisReport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ledger.AnalysisDocument(r.Context(), s.session)
	if err != nil {
		s.fail(w, r, log.OpRender, err)
		return
	}
	name := "Report_" + fileSafe(s.session.Profile().Name) + ".pdf"
	NewHTMXResponse().Attachment(pdf.ContentType, name, doc).Write(w)
}

func (s *Server) handleProjectionReport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ledger.ProjectionDocument(r.Context(), s.session)
	if err != nil {
		s.fail(w, r, log.OpRender, err)
		return
	}
	NewHTMXResponse().Attachment(pdf.ContentType, projectionFilename, doc).Write(w)
}

func (s *Server) handleWorkbook(w http.ResponseWriter, r *http.Request) {
	data, err := s.ledger.Workbook(r.Context())
	if err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}
	NewHTMXResponse().Attachment(xlsx.ContentType, workbookFilename, data).Write(w)
}

// fileSafe turns free text into a file name fragment: letters and digits are
// kept, runs of anything else become a single underscore.
func fileSafe(s string) string {
	var b strings.Builder
	sep := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			sep = false
			b.WriteRune(r)
			continue
		}
		sep = true
	}
	if b.Len() == 0 {
		return "Client"
	}
	return b.String()
}
