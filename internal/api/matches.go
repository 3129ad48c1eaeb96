package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/discrepancy"
	"github.com/cleared-dev/bankrec/internal/matching"
	"github.com/cleared-dev/bankrec/internal/model"
)

var defaultReviewThreshold = decimal.RequireFromString("0.80")

func (s *Server) createMatch(w http.ResponseWriter, r *http.Request) {
	var p matching.ManualParams
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.Matching.CreateManual(r.Context(), p, actor(r, "matchedBy"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryInt64(r, "bankAccountId")
	if err == nil && accountID <= 0 {
		err = apperr.Invalid("bankAccountId", "is required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	matches, err := s.svc.Matching.ByAccount(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, matches)
}

func (s *Server) unconfirmedMatches(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryInt64(r, "bankAccountId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	matches, err := s.svc.Matching.ListUnconfirmed(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, matches)
}

func (s *Server) matchesNeedingReview(w http.ResponseWriter, r *http.Request) {
	threshold, ok, err := queryDecimal(r, "confidenceThreshold")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		threshold = defaultReviewThreshold
	}
	matches, err := s.svc.Matching.NeedsReview(r.Context(), threshold)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, matches)
}

type autoMatchResponse struct {
	matching.RunSummary
	Detection *discrepancy.DetectSummary `json:"detection,omitempty"`
}

func (s *Server) autoMatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	who := actor(r, "matchedBy")
	run, err := s.svc.Matching.AutoMatch(r.Context(), id, who)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := autoMatchResponse{RunSummary: run}
	if s.detect {
		found, err := s.svc.Discrepancies.Detect(r.Context(), id, model.DateOf(s.Now()), who)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.Detection = &found
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) candidates(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	found, err := s.svc.Matching.Candidates(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, found)
}

func (s *Server) getMatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.Matching.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) confirmMatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.Matching.Confirm(r.Context(), id, actor(r, "confirmedBy"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) dismissMatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Matching.Dismiss(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
