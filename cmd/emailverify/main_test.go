package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/emailverify/types"
)

func TestReadAddresses(t *testing.T) {
	in := strings.NewReader("alice@example.com\n\n  # a comment\n bob@example.org \n")

	got, err := readAddresses(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com", "bob@example.org"}, got)
}

func TestCheckFormat(t *testing.T) {
	assert.NoError(t, checkFormat("text"))
	assert.NoError(t, checkFormat("json"))
	assert.Error(t, checkFormat("yaml"))
}

func TestPrintResults_Text(t *testing.T) {
	results := []types.Result{
		types.NewResult("alice@example.com", types.StatusValid, 95, types.Details{}),
		types.NewResult("bob@gmial.com", types.StatusInvalid, 40, types.Details{Suggestion: "gmail.com"}),
	}

	var buf bytes.Buffer
	require.NoError(t, printResults(&buf, "text", results))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "EMAIL")
	assert.Contains(t, lines[1], "alice@example.com")
	assert.Contains(t, lines[1], "valid")
	assert.Contains(t, lines[2], "did you mean gmail.com?")

	total, verified := summarize(results)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, verified)
}

func TestPrintResults_JSON(t *testing.T) {
	one := []types.Result{types.NewResult("alice@example.com", types.StatusValid, 95, types.Details{})}

	var buf bytes.Buffer
	require.NoError(t, printResults(&buf, "json", one))
	var obj map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &obj))
	assert.Equal(t, "alice@example.com", obj["email"])

	buf.Reset()
	two := append(one, types.NewResult("bob@example.com", types.StatusRisky, 65, types.Details{}))
	require.NoError(t, printResults(&buf, "json", two))
	var arr []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &arr))
	assert.Len(t, arr, 2)
}

func TestNote(t *testing.T) {
	assert.Equal(t, "boom", note(types.Details{Error: "boom", Reason: "ignored"}))
	assert.Equal(t, "domain accepts any recipient", note(types.Details{IsCatchAll: true}))
	assert.Equal(t, "role account", note(types.Details{IsRoleAccount: true}))
	assert.Equal(t, "550 no such user", note(types.Details{Reason: "550 no such user"}))
}

// The addresses below are settled before any network check runs.
func TestVerifyCommand_Offline(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"verify", "--format", "json", "not-an-email", "someone@mailinator.com"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		verifyFormat = "text"
	})

	require.NoError(t, rootCmd.Execute())

	var got []types.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, types.StatusInvalid, got[0].Status)
	assert.Equal(t, types.StatusDisposable, got[1].Status)
}

func TestBulkCommand_FromFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	list := filepath.Join(dir, "list.txt")
	require.NoError(t, os.WriteFile(list, []byte("# offline only\nbroken@\nuser@mailinator.com\n"), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"bulk", "--file", list})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		bulkFile = "-"
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "user@mailinator.com")
	assert.Contains(t, out.String(), "disposable")
	assert.Contains(t, out.String(), "total: 2, verified: 0")
}

func TestVersionCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "emailverify dev\n", out.String())
}
