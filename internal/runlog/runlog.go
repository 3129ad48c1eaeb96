// Package runlog keeps a CSV history of batch commands run against a
// workspace: imports, auto-match runs and detection sweeps.
package runlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Entry is one recorded run.
type Entry struct {
	At        time.Time
	Command   string
	AccountID int64
	Actor     string
	Outcome   string // ok or failed
	Summary   string
}

// Header is the CSV header of run-log.csv.
const Header = "at,command,bank_account_id,actor,outcome,summary"

// File is the workspace-relative path of the log.
const File = "logs/run-log.csv"

const (
	numFields  = 6
	colAt      = 0
	colCommand = 1
	colAccount = 2
	colActor   = 3
	colOutcome = 4
	colSummary = 5
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colAt] = e.At.UTC().Format(time.RFC3339)
	row[colCommand] = e.Command
	if e.AccountID != 0 {
		row[colAccount] = strconv.FormatInt(e.AccountID, 10)
	}
	row[colActor] = e.Actor
	row[colOutcome] = e.Outcome
	row[colSummary] = e.Summary
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}
	at, err := time.Parse(time.RFC3339, record[colAt])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing time %q: %w", record[colAt], err)
	}
	var account int64
	if record[colAccount] != "" {
		account, err = strconv.ParseInt(record[colAccount], 10, 64)
		if err != nil {
			return Entry{}, fmt.Errorf("parsing bank account id %q: %w", record[colAccount], err)
		}
	}
	return Entry{
		At:        at,
		Command:   record[colCommand],
		AccountID: account,
		Actor:     record[colActor],
		Outcome:   record[colOutcome],
		Summary:   record[colSummary],
	}, nil
}

// Append adds entries to <workspace>/logs/run-log.csv, writing the header
// when the file is new.
func Append(workspace string, entries ...Entry) error {
	path := filepath.Join(workspace, File)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	_, statErr := os.Stat(path)
	needsHeader := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns every entry of the workspace's run log, oldest first. A
// missing log has no entries.
func Read(workspace string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(workspace, File))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()
	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading run log CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	entries := make([]Entry, 0, len(records)-1)
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
