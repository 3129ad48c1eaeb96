package api

import (
	"net/http"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/ledger"
	"github.com/cleared-dev/bankrec/internal/model"
)

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var p ledger.CreateParams
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.svc.Ledger.Create(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// listAccounts serves ?search=, ?minBalance= and ?activeOnly=true.
func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minBalance, hasMin, err := queryDecimal(r, "minBalance")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var accounts []model.BankAccount
	switch {
	case q.Get("search") != "":
		accounts, err = s.svc.Ledger.Search(r.Context(), q.Get("search"))
	case hasMin:
		accounts, err = s.svc.Ledger.MinBalance(r.Context(), minBalance)
	default:
		accounts, err = s.svc.Ledger.List(r.Context(), q.Get("activeOnly") == "true")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, accounts)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.svc.Ledger.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p ledger.UpdateParams
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.svc.Ledger.Update(r.Context(), id, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) updateBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	balance, ok, err := queryDecimal(r, "balance")
	if err == nil && !ok {
		err = apperr.Invalid("balance", "is required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.svc.Ledger.UpdateBalance(r.Context(), id, balance)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.svc.Ledger.Deactivate(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
