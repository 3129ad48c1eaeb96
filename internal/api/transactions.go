package api

import (
	"net/http"

	"github.com/cleared-dev/bankrec/internal/transactions"
)

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var p transactions.CreateParams
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.svc.Transactions.Create(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryInt64(r, "bankAccountId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	txns, err := s.svc.Transactions.List(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, txns)
}

func (s *Server) unreconciledTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryInt64(r, "bankAccountId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	txns, err := s.svc.Transactions.Unreconciled(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, txns)
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.svc.Transactions.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) reconcileTransaction(w http.ResponseWriter, r *http.Request) {
	id, err1 := pathID(r)
	entryID, err2 := queryInt64(r, "statementEntryId")
	if err := firstErr(err1, err2); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.Matching.ReconcileTransaction(r.Context(), id, entryID, actor(r, "reconciledBy"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
