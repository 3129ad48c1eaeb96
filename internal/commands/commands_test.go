package commands_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/commands"
	"github.com/cleared-dev/bankrec/internal/report"
	"github.com/cleared-dev/bankrec/internal/runlog"
)

func runBankrec(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := commands.NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func initWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := runBankrec(t, "init", dir)
	require.NoError(t, err)
	return dir
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := initWorkspace(t)

	for _, d := range []string{"import", filepath.Join("import", "processed"), "exports", "logs"} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}

	data, err := os.ReadFile(filepath.Join(dir, commands.ConfigFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "driver: sqlite")
	assert.Contains(t, string(data), "dsn: bankrec.db")

	data, err = os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "*.db")
}

func TestInit_RefusesExistingWorkspace(t *testing.T) {
	dir := initWorkspace(t)
	_, err := runBankrec(t, "init", dir)
	require.Error(t, err)
}

func TestInit_RejectsUnknownDriver(t *testing.T) {
	_, err := runBankrec(t, "init", t.TempDir(), "--driver", "mongo")
	require.Error(t, err)
}

func TestMigrate_MemoryDriver(t *testing.T) {
	dir := t.TempDir()
	_, err := runBankrec(t, "init", dir, "--driver", "memory")
	require.NoError(t, err)

	_, err = runBankrec(t, "migrate", "--dir", dir)
	require.Error(t, err)
}

func TestMigrate_SQLite(t *testing.T) {
	dir := initWorkspace(t)
	out, err := runBankrec(t, "migrate", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite schema is up to date")

	_, err = os.Stat(filepath.Join(dir, "bankrec.db"))
	require.NoError(t, err)
}

func TestAccountCreateRequiresFlags(t *testing.T) {
	dir := initWorkspace(t)
	_, err := runBankrec(t, "account", "create", "--dir", dir, "--name", "Operating")
	require.Error(t, err)
}

func TestReconciliationWorkflow(t *testing.T) {
	dir := initWorkspace(t)

	out, err := runBankrec(t, "account", "create", "--dir", dir, "--name", "Operating", "--bank", "Chase", "--number", "000123456789", "--balance", "1000")
	require.NoError(t, err)
	assert.Contains(t, out, "Created bank account 1")

	out, err = runBankrec(t, "account", "list", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "****6789")
	assert.Contains(t, out, "1000.00")

	statement := "date,amount,description,reference\n" +
		"2024-07-02,500.00,Deposit,DEP-1\n" +
		"2024-07-03,-80.00,Check 1002,1002\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "july.csv"), []byte(statement), 0o644))

	out, err = runBankrec(t, "import", "--dir", dir, "--account", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "july.csv: imported=2 failed=0")
	_, err = os.Stat(filepath.Join(dir, "import", "processed", "july.csv"))
	require.NoError(t, err, "imported file should move to processed")

	out, err = runBankrec(t, "import", "--dir", dir, "--account", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "No CSV files")

	_, err = runBankrec(t, "account", "add-transaction", "--dir", dir, "--account", "1",
		"--amount", "500.00", "--date", "2024-07-02", "--ref", "DEP-1", "--type", "DEPOSIT")
	require.NoError(t, err)

	out, err = runBankrec(t, "automatch", "--dir", dir, "--account", "1", "--detect=false")
	require.NoError(t, err)
	assert.Contains(t, out, "processed=2 confirmed=1 candidates=0 pending=0 unmatched=1")

	out, err = runBankrec(t, "detect", "--dir", dir, "--account", "1", "--as-of", "2024-07-31")
	require.NoError(t, err)
	assert.Contains(t, out, "created=1")
	assert.Contains(t, out, "MISSING_INTERNAL")

	out, err = runBankrec(t, "report", "--dir", dir, "--account", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 1 internal (100.00%)")
	assert.Contains(t, out, "open discrepancies:     1")

	out, err = runBankrec(t, "report", "--dir", dir, "--account", "1", "--csv", "-")
	require.NoError(t, err)
	rows, err := report.ReadRows(strings.NewReader(out))
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.True(t, strings.HasPrefix(out, report.Header))

	entries, err := runlog.Read(dir)
	require.NoError(t, err)
	var cmds []string
	for _, e := range entries {
		cmds = append(cmds, e.Command)
	}
	assert.Equal(t, []string{"import", "automatch", "detect"}, cmds)

	out, err = runBankrec(t, "history", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "automatch")
}

func TestImport_FailedRunIsLogged(t *testing.T) {
	dir := initWorkspace(t)
	path := filepath.Join(t.TempDir(), "statement.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,amount\n2024-07-02,1.00\n"), 0o644))

	_, err := runBankrec(t, "import", "--dir", dir, "--account", "42", path)
	require.Error(t, err)

	entries, err := runlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "failed", entries[0].Outcome)
}
