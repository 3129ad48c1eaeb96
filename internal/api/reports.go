package api

import (
	"fmt"
	"net/http"

	"github.com/cleared-dev/bankrec/internal/logger"
	"github.com/cleared-dev/bankrec/internal/report"
)

func (s *Server) accountSummary(w http.ResponseWriter, r *http.Request) {
	id, err1 := pathID(r)
	from, err2 := queryDate(r, "startDate")
	to, err3 := queryDate(r, "endDate")
	if err := firstErr(err1, err2, err3); err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.svc.Reports.Summary(r.Context(), id, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) allAccountsSummary(w http.ResponseWriter, r *http.Request) {
	from, err1 := queryDate(r, "startDate")
	to, err2 := queryDate(r, "endDate")
	if err := firstErr(err1, err2); err != nil {
		writeError(w, r, err)
		return
	}
	sums, err := s.svc.Reports.AllAccounts(r.Context(), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, sums)
}

func (s *Server) accountStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.svc.Reports.Status(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) trend(w http.ResponseWriter, r *http.Request) {
	id, err1 := pathID(r)
	months, err2 := queryInt(r, "months")
	asOf, err3 := queryDate(r, "asOf")
	if err := firstErr(err1, err2, err3); err != nil {
		writeError(w, r, err)
		return
	}
	points, err := s.svc.Reports.Trend(r.Context(), id, months, asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

type outstandingFunc func(r *http.Request, accountID int64) ([]report.OutstandingItem, error)

func (s *Server) outstanding(w http.ResponseWriter, r *http.Request, list outstandingFunc) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := list(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, items)
}

func (s *Server) outstandingChecks(w http.ResponseWriter, r *http.Request) {
	s.outstanding(w, r, func(r *http.Request, accountID int64) ([]report.OutstandingItem, error) {
		asOf, err1 := queryDate(r, "asOf")
		days, err2 := queryInt(r, "days")
		if err := firstErr(err1, err2); err != nil {
			return nil, err
		}
		return s.svc.Reports.OutstandingChecks(r.Context(), accountID, asOf, days)
	})
}

func (s *Server) depositsInTransit(w http.ResponseWriter, r *http.Request) {
	s.outstanding(w, r, func(r *http.Request, accountID int64) ([]report.OutstandingItem, error) {
		asOf, err1 := queryDate(r, "asOf")
		days, err2 := queryInt(r, "days")
		if err := firstErr(err1, err2); err != nil {
			return nil, err
		}
		return s.svc.Reports.DepositsInTransit(r.Context(), accountID, asOf, days)
	})
}

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	id, err1 := pathID(r)
	from, err2 := queryDate(r, "startDate")
	to, err3 := queryDate(r, "endDate")
	if err := firstErr(err1, err2, err3); err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.svc.Reports.ExportRows(r.Context(), id, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	attachment(w, fmt.Sprintf("reconciliation-%d.csv", id))
	if err := report.WriteRows(w, rows); err != nil {
		logger.FromContext(r.Context()).Error("writing csv export failed", "accountID", id, "error", err)
	}
}
