package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/model"
)

func parseFile(t *testing.T, p Parser, name string) []Row {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	defer f.Close()

	rows, err := p.Parse(f)
	require.NoError(t, err)
	return rows
}

func TestChaseParser_Parse(t *testing.T) {
	rows := parseFile(t, &ChaseParser{}, "chase_checking.csv")
	require.Len(t, rows, 6)
	for _, r := range rows {
		require.NoError(t, r.Err)
	}

	first := rows[0].Line
	assert.Equal(t, 2, rows[0].Number)
	assert.Equal(t, "GITHUB *PRO SUBSCRIPTION", first.Description)
	assert.Equal(t, "-4.00", first.Amount.StringFixed(2))
	assert.Equal(t, "ACH_DEBIT", first.Category)
	assert.Equal(t, model.NewDate(2025, 1, 3), first.Date)
	require.NotNil(t, first.RunningBalance)
	assert.Equal(t, "10496.00", first.RunningBalance.StringFixed(2))

	income := rows[3].Line
	assert.Equal(t, "ACME CONSULTING INVOICE 1042", income.Description)
	assert.True(t, income.Amount.IsPositive())
	assert.Equal(t, "3500.00", income.Amount.StringFixed(2))

	assert.Equal(t, model.NewDate(2025, 1, 22), rows[5].Line.Date)
}

func TestChaseParser_Reference(t *testing.T) {
	rows := parseFile(t, &ChaseParser{}, "chase_checking.csv")

	// Reference format: chase_YYYYMMDD_<prefix>
	assert.Equal(t, "chase_20250103_GITHUBPROS", rows[0].Line.Reference)
	// Check number wins when present.
	assert.Equal(t, "1001", rows[2].Line.Reference)
}

func TestChaseParser_EmptyFile(t *testing.T) {
	p := &ChaseParser{}
	rows, err := p.Parse(strings.NewReader("Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n"))
	require.NoError(t, err)
	assert.Nil(t, rows)

	rows, err = p.Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestChaseParser_BadRowsDoNotAbort(t *testing.T) {
	csv := "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n" +
		"DEBIT,NOTADATE,desc,-4.00,ACH_DEBIT,100.00,\n" +
		"DEBIT,01/03/2025,desc,NOTANUMBER,ACH_DEBIT,100.00,\n" +
		"DEBIT,01/03/2025,short\n" +
		"DEBIT,01/04/2025,fine,-1.00,ACH_DEBIT,,\n"
	rows, err := (&ChaseParser{}).Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.ErrorContains(t, rows[0].Err, "parsing date")
	assert.Equal(t, 2, rows[0].Number)
	assert.ErrorContains(t, rows[1].Err, "parsing amount")
	assert.ErrorContains(t, rows[2].Err, "expected 7 fields")
	assert.Equal(t, 4, rows[2].Number)
	assert.NoError(t, rows[3].Err)
	assert.Nil(t, rows[3].Line.RunningBalance)
}

func TestGenericParser_Parse(t *testing.T) {
	rows := parseFile(t, &GenericParser{}, "generic.csv")
	require.Len(t, rows, 3)

	assert.Equal(t, model.NewDate(2024, 7, 2), rows[0].Line.Date)
	assert.Equal(t, "1001", rows[0].Line.Reference)
	assert.Equal(t, "CHECK", rows[0].Line.Category)
	assert.Equal(t, "-25.00", rows[1].Line.Amount.StringFixed(2))
	assert.Nil(t, rows[1].Line.RunningBalance)
	assert.Equal(t, "DEP-77", rows[2].Line.Reference)
}

func TestGenericParser_ColumnOrder(t *testing.T) {
	csv := "Amount,Date\n12.50,2024-01-31\n7,31/01/2024\n"
	rows, err := (&GenericParser{}).Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NoError(t, rows[0].Err)
	assert.Equal(t, model.NewDate(2024, 1, 31), rows[0].Line.Date)
	assert.Error(t, rows[1].Err)
}

func TestGenericParser_MissingColumn(t *testing.T) {
	_, err := (&GenericParser{}).Parse(strings.NewReader("date,description\n2024-01-01,x\n"))
	assert.ErrorContains(t, err, `missing "amount" column`)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nonexistent"))

	r.Register(&ChaseParser{})
	p := r.Get(" Chase ")
	require.NotNil(t, p)
	assert.Equal(t, "chase", p.Format())
	assert.Panics(t, func() { r.Register(&ChaseParser{}) })

	assert.Equal(t, []string{"chase", "generic"}, DefaultRegistry().Formats())
}

func TestScanAndMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.CSV"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("xy"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.csv", files[0].Name)
	assert.Equal(t, int64(2), files[0].Size)

	require.NoError(t, MarkProcessed(dir, "a.csv"))
	_, err = os.Stat(filepath.Join(dir, "processed", "a.csv"))
	assert.NoError(t, err)

	files, err = Scan(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	missing, err := Scan(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}
