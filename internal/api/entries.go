package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/statements"
)

const defaultStatementFormat = "generic"

func (s *Server) importEntry(w http.ResponseWriter, r *http.Request) {
	var in statements.EntryInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.svc.Statements.Import(r.Context(), in, actor(r, "importedBy"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) importEntries(w http.ResponseWriter, r *http.Request) {
	var in []statements.EntryInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Statements.ImportBatch(r.Context(), in, actor(r, "importedBy"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// importCSV accepts the statement file either as the raw request body or as
// the "file" part of a multipart form.
func (s *Server) importCSV(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryInt64(r, "bankAccountId")
	if err == nil && accountID <= 0 {
		err = apperr.Invalid("bankAccountId", "is required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = defaultStatementFormat
	}

	body, err := statementFile(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer body.Close()

	res, err := s.svc.Statements.ImportCSV(r.Context(), accountID, format, body, actor(r, "importedBy"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func statementFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return r.Body, nil
		}
		return nil, apperr.Invalid("file", "reading upload: %v", err)
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, apperr.Invalid("file", "is required")
	}
	return f, nil
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryInt64(r, "bankAccountId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.svc.Statements.List(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, entries)
}

func (s *Server) unmatchedEntries(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryInt64(r, "bankAccountId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.svc.Statements.Unmatched(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, entries)
}

func (s *Server) entriesInRange(w http.ResponseWriter, r *http.Request) {
	accountID, err1 := queryInt64(r, "bankAccountId")
	from, err2 := queryDate(r, "startDate")
	to, err3 := queryDate(r, "endDate")
	if err := firstErr(err1, err2, err3); err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.svc.Statements.DateRange(r.Context(), accountID, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, entries)
}

func (s *Server) potentialEntries(w http.ResponseWriter, r *http.Request) {
	accountID, err1 := queryInt64(r, "bankAccountId")
	amount, ok, err2 := queryDecimal(r, "amount")
	date, err3 := queryDate(r, "date")
	err := firstErr(err1, err2, err3)
	if err == nil && !ok {
		err = apperr.Invalid("amount", "is required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.svc.Statements.PotentialMatches(r.Context(), accountID, amount, date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, entries)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.svc.Statements.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) matchEntry(w http.ResponseWriter, r *http.Request) {
	id, err1 := pathID(r)
	txnIDs, err2 := queryIDs(r, "transactionIds")
	if err := firstErr(err1, err2); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.Matching.MatchEntry(r.Context(), id, txnIDs, actor(r, "matchedBy"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
