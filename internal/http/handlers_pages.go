package http

import (
	"net/http"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	tab := r.URL.Query().Get("tab")
	if !validTab(tab) {
		tab = TabRecords
	}
	body, err := s.render(r.Context(), "index.html", s.page(r.Context(), tab))
	if err != nil {
		InternalServerError("Page unavailable").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

// handleTab renders one tab panel. Panels reload themselves through this
// route when the ledger or the stored records change.
func (s *Server) handleTab(w http.ResponseWriter, r *http.Request) {
	tab := r.PathValue("tab")
	if !validTab(tab) {
		NotFoundError("Unknown tab").Write(w)
		return
	}
	body, err := s.render(r.Context(), "panel", s.panel(r.Context(), tab))
	if err != nil {
		InternalServerError("Panel unavailable").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

func (s *Server) handleProfilePartial(w http.ResponseWriter, r *http.Request) {
	body, err := s.render(r.Context(), "profile", newProfileView(s.session.Profile()))
	if err != nil {
		InternalServerError("Profile unavailable").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}
