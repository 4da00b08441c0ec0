package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/envelopes/internal/adapter/http/dto"
	"github.com/iho/envelopes/internal/domain"
)

type harness struct {
	t       *testing.T
	dataDir string
}

func newHarness(t *testing.T) *harness {
	return &harness{t: t, dataDir: filepath.Join(t.TempDir(), "books")}
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"--data-dir", h.dataDir}, args...)
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), err
}

func (h *harness) mustRun(stdin string, args ...string) string {
	h.t.Helper()
	out, err := h.run(stdin, args...)
	require.NoError(h.t, err, out)
	return out
}

const januaryInput = `{
	"date": "2024-01-20",
	"remarks": "January statement",
	"bank_balances": [{"account": "Cheque", "balance": "500"}],
	"transactions": {
		"POWER": [{"kind": "budget_credit", "amount": "175"}, {"amount": "-75", "narrative": "power bill"}]
	}
}`

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("expected short unchanged, got %q", got)
	}

	if got := truncate("longerstring", 6); got != "lon..." {
		t.Fatalf("expected lon..., got %q", got)
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printJSON(&buf, struct {
		A int `json:"a"`
	}{A: 1}); err != nil {
		t.Fatalf("print: %v", err)
	}

	expected := "{\n  \"a\": 1\n}\n"
	if buf.String() != expected {
		t.Fatalf("unexpected json output:\n%s", buf.String())
	}
}

func TestReconcileLifecycle(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("", "init", "Household", "--key", "household", "--bucket", "power=Cheque")
	assert.Contains(t, out, `Created "Household" with key household`)

	out = h.mustRun(januaryInput, "--json", "reconcile", "household", "--input", "-")
	var line dto.LineResponse
	require.NoError(t, json.Unmarshal([]byte(out), &line))
	require.Len(t, line.Entries, 1)
	assert.Equal(t, "175", line.Entries[0].ClosingBalance.String())
	assert.Equal(t, "325", line.CalculatedSurplus.String())

	out = h.mustRun("", "show", "household")
	assert.Contains(t, out, "Household (household)")
	assert.Contains(t, out, "2024-01-20  bank 500.00  ledger 500.00  surplus 325.00")
	assert.Contains(t, out, "January statement")

	out = h.mustRun("", "verify", "household")
	assert.Contains(t, out, "Verification PASSED")

	h.mustRun("", "remarks", "household", "2024-01-20", "paid early")
	h.mustRun("", "rename", "household", "Family")
	h.mustRun("", "track", "household", "car", "Savings")
	h.mustRun("", "move", "household", "car", "Cheque")

	out = h.mustRun("", "--json", "show", "household")
	var book dto.BookResponse
	require.NoError(t, json.Unmarshal([]byte(out), &book))
	assert.Equal(t, "Family", book.Name)
	assert.Equal(t, "paid early", book.Lines[0].Remarks)
	assert.Equal(t, []dto.BucketResponse{{Code: "CAR", Account: "Cheque"}, {Code: "POWER", Account: "Cheque"}}, book.Buckets)

	h.mustRun("", "undo", "household", "2024-01-20")
	out = h.mustRun("", "--json", "show", "household")
	require.NoError(t, json.Unmarshal([]byte(out), &book))
	assert.Equal(t, 0, book.TotalLines)
}

func TestReconcileFromFile(t *testing.T) {
	h := newHarness(t)
	h.mustRun("", "init", "Household", "--key", "household", "--bucket", "POWER=Cheque")

	path := filepath.Join(t.TempDir(), "january.json")
	require.NoError(t, os.WriteFile(path, []byte(januaryInput), 0o600))

	out := h.mustRun("", "reconcile", "household", "--input", path)
	assert.Contains(t, out, "surplus 325.00")

	_, err := h.run("", "reconcile", "household", "--input", path)
	assert.ErrorIs(t, err, domain.ErrDuplicateDate)
}

func TestReconcileRejectsInvalidInput(t *testing.T) {
	h := newHarness(t)
	h.mustRun("", "init", "Household", "--key", "household")

	_, err := h.run(`{"date": "2024-01-20"}`, "reconcile", "household", "--input", "-")
	assert.ErrorContains(t, err, "invalid reconciliation input")

	_, err = h.run("", "reconcile", "household")
	assert.Error(t, err, "--input is required")
}

func TestInitRejectsMalformedBucket(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "init", "Household", "--bucket", "POWER")
	assert.ErrorContains(t, err, "CODE=ACCOUNT")
}

func TestVerifyDetectsTampering(t *testing.T) {
	h := newHarness(t)
	h.mustRun("", "init", "Household", "--key", "household", "--bucket", "POWER=Cheque")
	h.mustRun(januaryInput, "reconcile", "household", "--input", "-")

	path := filepath.Join(h.dataDir, "household.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, bytes.Replace(data, []byte(`"500"`), []byte(`"900"`), 1), 0o600))

	_, err = h.run("", "verify", "household")
	assert.ErrorIs(t, err, domain.ErrTamperedData)
}

func TestShowMissingBook(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "show", "missing")
	assert.ErrorIs(t, err, domain.ErrBookNotFound)
}
