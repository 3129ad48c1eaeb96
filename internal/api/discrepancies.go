package api

import (
	"net/http"
	"strings"

	"github.com/cleared-dev/bankrec/internal/discrepancy"
	"github.com/cleared-dev/bankrec/internal/model"
)

// textBody carries the free text of resolve, reopen and note requests.
type textBody struct {
	Resolution string `json:"resolution"`
	Reason     string `json:"reason"`
	Text       string `json:"text"`
}

func (s *Server) createDiscrepancy(w http.ResponseWriter, r *http.Request) {
	var p discrepancy.CreateParams
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.svc.Discrepancies.Create(r.Context(), p, actor(r, "identifiedBy"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) listDiscrepancies(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryInt64(r, "bankAccountId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	found, err := s.svc.Discrepancies.List(r.Context(), discrepancy.Query{
		AccountID: accountID,
		Status:    model.DiscrepancyStatus(strings.ToUpper(q.Get("status"))),
		Type:      model.DiscrepancyType(strings.ToUpper(q.Get("discrepancyType"))),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, found)
}

func (s *Server) openDiscrepancies(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryInt64(r, "bankAccountId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	found, err := s.svc.Discrepancies.Open(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, found)
}

func (s *Server) highPriorityDiscrepancies(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryInt64(r, "bankAccountId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	found, err := s.svc.Discrepancies.HighPriority(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, found)
}

func (s *Server) overdueDiscrepancies(w http.ResponseWriter, r *http.Request) {
	accountID, err1 := queryInt64(r, "bankAccountId")
	asOf, err2 := queryDate(r, "asOf")
	if err := firstErr(err1, err2); err != nil {
		writeError(w, r, err)
		return
	}
	at := s.Now()
	if !asOf.IsZero() {
		at = asOf.Time()
	}
	found, err := s.svc.Discrepancies.Overdue(r.Context(), accountID, at)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, found)
}

func (s *Server) detectDiscrepancies(w http.ResponseWriter, r *http.Request) {
	id, err1 := pathID(r)
	asOf, err2 := queryDate(r, "asOf")
	if err := firstErr(err1, err2); err != nil {
		writeError(w, r, err)
		return
	}
	if asOf.IsZero() {
		asOf = model.DateOf(s.Now())
	}
	sum, err := s.svc.Discrepancies.Detect(r.Context(), id, asOf, actor(r, "identifiedBy"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) getDiscrepancy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.svc.Discrepancies.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) assignDiscrepancy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.svc.Discrepancies.Assign(r.Context(), id, actor(r, "assignee"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// readText decodes an optional JSON body; a request without one leaves
// every field empty.
func readText(w http.ResponseWriter, r *http.Request) (textBody, error) {
	var b textBody
	if r.ContentLength == 0 {
		return b, nil
	}
	err := decodeJSON(w, r, &b)
	return b, err
}

func (s *Server) resolveDiscrepancy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := readText(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resolution := b.Resolution
	if resolution == "" {
		resolution = r.URL.Query().Get("resolution")
	}
	d, err := s.svc.Discrepancies.Resolve(r.Context(), id, resolution, actor(r, "resolvedBy"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) closeDiscrepancy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.svc.Discrepancies.Close(r.Context(), id, actor(r, "closedBy"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) reopenDiscrepancy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := readText(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	reason := b.Reason
	if reason == "" {
		reason = r.URL.Query().Get("reason")
	}
	d, err := s.svc.Discrepancies.Reopen(r.Context(), id, reason, actor(r, "reopenedBy"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) addDiscrepancyNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := readText(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.svc.Discrepancies.AddNote(r.Context(), id, actor(r, "author"), b.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) setDiscrepancyPriority(w http.ResponseWriter, r *http.Request) {
	id, err1 := pathID(r)
	priority, err2 := requireParam(r, "priority")
	if err := firstErr(err1, err2); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.svc.Discrepancies.SetPriority(r.Context(), id, priority)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
