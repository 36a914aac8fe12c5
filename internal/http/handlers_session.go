package http

import (
	"fmt"
	"net/http"

	"consultoria/internal/core"
	"consultoria/internal/log"
)

func (s *Server) ledgerChanged() *HTMXResponseBuilder {
	return NewHTMXResponse().TriggerLedgerChanged(len(s.session.State().Ledger))
}

func (s *Server) handleSetProfile(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	p, err := ParseProfileForm(r.PostForm).Profile()
	if err == nil {
		err = s.session.SetProfile(p)
	}
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Profile updated", log.FieldClient, p.Name)

	s.ledgerChanged().
		Trigger("profile:changed", map[string]bool{"hasClient": p.HasClient()}).
		TriggerNotification(NotificationSuccess, "Profile updated", s.notice).
		Write(w)
}

// handleSubmitTransaction adds a transaction or saves the one being edited.
// Invalid submissions are ignored with 204 and no notification.
func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	logger := log.FromContext(ctx)

	form, err := ParseTransactionForm(r.PostForm)
	if err != nil {
		logger.DebugContext(ctx, "Transaction ignored", log.FieldError, err)
		NoContent().Write(w)
		return
	}
	tx, edited, err := s.session.Submit(form.Category, form.Amount, form.Kind)
	if err != nil {
		logger.DebugContext(ctx, "Transaction ignored", log.FieldError, err)
		NoContent().Write(w)
		return
	}

	op, msg := log.OpCreate, fmt.Sprintf("%s added: %s", tx.Kind.Label(), core.FormatMoney(tx.Amount))
	if edited {
		op, msg = log.OpUpdate, "Transaction updated"
	}
	log.NewStructuredLogger(logger).LogTransaction(ctx, op, tx.ID, string(tx.Kind), tx.Category, tx.Amount.String())

	s.ledgerChanged().
		TriggerFormReset().
		TriggerNotification(NotificationSuccess, msg, s.notice).
		Write(w)
}

// handleBeginEdit switches the form to edit mode. A transaction that no
// longer exists leaves the form in new-entry mode.
func (s *Server) handleBeginEdit(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	if !s.session.BeginEdit(id) {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Edit target missing, form reset",
			log.FieldTransactionID, id)
	}
	s.ledgerChanged().Write(w)
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	s.session.CancelEdit()
	s.ledgerChanged().TriggerFormReset().Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	if !s.session.Delete(id) {
		s.ledgerChanged().Write(w)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldTransactionID, id)

	s.ledgerChanged().
		TriggerNotification(NotificationSuccess, "Transaction deleted", s.notice).
		Write(w)
}

// handleAddDebt records a debt; like transactions, invalid input is ignored.
func (s *Server) handleAddDebt(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	form, err := ParseDebtForm(r.PostForm)
	if err != nil {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Debt ignored", log.FieldError, err)
		NoContent().Write(w)
		return
	}
	d, err := s.session.AddDebt(form.Creditor, form.Amount, form.Rate)
	if err != nil {
		NoContent().Write(w)
		return
	}

	s.ledgerChanged().
		TriggerFormReset().
		TriggerNotification(NotificationSuccess, "Debt added: "+d.Creditor, s.notice).
		Write(w)
}

func (s *Server) handleDeleteDebt(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	if !s.session.DeleteDebt(id) {
		s.ledgerChanged().Write(w)
		return
	}
	s.ledgerChanged().
		TriggerNotification(NotificationSuccess, "Debt deleted", s.notice).
		Write(w)
}

func (s *Server) handleSetProjection(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	form, err := ParseProjectionForm(r.PostForm)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	p, err := s.session.SetProjection(form.Monthly, form.Months)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	s.ledgerChanged().
		TriggerNotification(NotificationInfo, "Goal in "+p.Label()+": "+core.FormatMoney(p.Total), s.notice).
		Write(w)
}
