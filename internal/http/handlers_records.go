package http

import (
	"fmt"
	"net/http"

	"consultoria/internal/export/pdf"
	"consultoria/internal/log"
	"consultoria/internal/services"
)

func (s *Server) recordsChanged() *HTMXResponseBuilder {
	return s.ledgerChanged().TriggerRecordsChanged(s.ledger.Store().Len())
}

// warnNotPersisted reports a change that applied in memory but failed to save.
func (s *Server) warnNotPersisted(w http.ResponseWriter, r *http.Request, res services.MutationResult, what string) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Change not persisted",
		log.FieldError, res.Warning,
		log.FieldErrorType, log.ErrorTypePersistence)
	s.recordsChanged().
		TriggerNotification(NotificationWarning, what+" but could not be saved to disk; use Save to retry", s.notice).
		Write(w)
}

// handleClosePeriod freezes the working session into a stored snapshot of
// the chosen month.
func (s *Server) handleClosePeriod(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	period, err := ParsePeriodForm(r.PostForm, s.session.State().Today)
	if err != nil {
		s.fail(w, r, log.OpSave, err)
		return
	}
	res, err := s.ledger.ClosePeriod(r.Context(), s.session, period)
	if err != nil {
		s.fail(w, r, log.OpSave, err)
		return
	}
	if !res.Persisted() {
		s.warnNotPersisted(w, r, res, "Period closed")
		return
	}

	snap := res.Snapshot
	s.recordsChanged().
		Trigger("profile:changed", map[string]bool{"hasClient": false}).
		TriggerFormReset().
		TriggerNotification(NotificationSuccess,
			fmt.Sprintf("%s saved for %s", snap.PeriodLabel, snap.Client), s.notice).
		Write(w)
}

// handleFlush retries saving the record collection.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Flush(r.Context()); err != nil {
		s.fail(w, r, log.OpSave, err)
		return
	}
	s.recordsChanged().
		TriggerNotification(NotificationSuccess, "All records saved", s.notice).
		Write(w)
}

func (s *Server) handleSnapshotDocument(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	snap, doc, err := s.ledger.SnapshotDocument(r.Context(), id)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	name := fmt.Sprintf("Report_%s_%s.pdf", fileSafe(snap.Client), fileSafe(snap.PeriodLabel))
	NewHTMXResponse().Attachment(pdf.ContentType, name, doc).Write(w)
}

func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	client, err := PathClient(r)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	p, err := ParseProfileForm(r.PostForm).Profile()
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	res, err := s.ledger.UpdateClientProfile(r.Context(), client, p)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	if !res.Persisted() {
		s.warnNotPersisted(w, r, res, "Client updated")
		return
	}
	s.recordsChanged().
		TriggerNotification(NotificationSuccess,
			fmt.Sprintf("%s updated (%d records)", client, res.Affected), s.notice).
		Write(w)
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	client, err := PathClient(r)
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	res, err := s.ledger.DeleteClient(r.Context(), client)
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	if !res.Persisted() {
		s.warnNotPersisted(w, r, res, "Client deleted")
		return
	}
	s.recordsChanged().
		TriggerNotification(NotificationSuccess,
			fmt.Sprintf("%s deleted (%d records)", client, res.Affected), s.notice).
		Write(w)
}
