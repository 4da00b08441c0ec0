package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var reconciliationDate = time.Date(2013, 9, 20, 0, 0, 0, 0, time.UTC)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("txn-%d", n)
	}
}

func budget(amount int64) Transaction {
	return NewTransaction("budget", KindBudgetCredit, decimal.NewFromInt(amount), "Budget Amount", reconciliationDate)
}

func actual(amount int64) Transaction {
	return NewTransaction(fmt.Sprintf("actual%d", amount), "", decimal.NewFromInt(amount), "", time.Date(2013, 9, 11, 0, 0, 0, 0, time.UTC))
}

func TestSettle_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		opening     int64
		proposed    []Transaction
		wantBalance int64
		wantComp    TransactionKind
		wantAmount  int64
		wantCount   int
	}{
		{
			name:        "budget above opening caps excess at budget",
			opening:     125,
			proposed:    []Transaction{budget(175), actual(-75)},
			wantBalance: 175,
			wantComp:    KindRemoveExcess,
			wantAmount:  -50,
			wantCount:   3,
		},
		{
			name:        "opening above budget caps excess at opening",
			opening:     125,
			proposed:    []Transaction{budget(105), actual(-75)},
			wantBalance: 125,
			wantComp:    KindRemoveExcess,
			wantAmount:  -30,
			wantCount:   3,
		},
		{
			name:        "overspend is supplemented back to opening",
			opening:     125,
			proposed:    []Transaction{budget(100), actual(-200)},
			wantBalance: 125,
			wantComp:    KindSupplement,
			wantAmount:  100,
			wantCount:   3,
		},
		{
			name:        "overspend is supplemented up to larger budget",
			opening:     125,
			proposed:    []Transaction{budget(200), actual(-200)},
			wantBalance: 200,
			wantComp:    KindSupplement,
			wantAmount:  75,
			wantCount:   3,
		},
		{
			name:        "overspend with budget equal to opening",
			opening:     125,
			proposed:    []Transaction{budget(125), actual(-200)},
			wantBalance: 125,
			wantComp:    KindSupplement,
			wantAmount:  75,
			wantCount:   3,
		},
		{
			name:        "no budget line accumulates freely",
			opening:     1,
			proposed:    []Transaction{actual(-1)},
			wantBalance: 0,
			wantCount:   1,
		},
		{
			name:        "nothing proposed records nothing",
			opening:     0,
			proposed:    nil,
			wantBalance: 0,
			wantCount:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Settle(decimal.NewFromInt(tt.opening), tt.proposed, reconciliationDate, seqIDs())

			if !s.Balance.Equal(decimal.NewFromInt(tt.wantBalance)) {
				t.Fatalf("expected balance %d, got %s", tt.wantBalance, s.Balance)
			}
			if len(s.Transactions) != tt.wantCount {
				t.Fatalf("expected %d transactions, got %d", tt.wantCount, len(s.Transactions))
			}

			if tt.wantComp == "" {
				if s.Compensation != nil {
					t.Fatalf("expected no compensation, got %+v", *s.Compensation)
				}
				return
			}

			if s.Compensation == nil {
				t.Fatal("expected a compensating transaction")
			}
			last := s.Transactions[len(s.Transactions)-1]
			if last.ID != s.Compensation.ID {
				t.Fatalf("compensation must be appended last, got %s", last.ID)
			}
			if last.Kind != tt.wantComp {
				t.Fatalf("expected %s, got %s", tt.wantComp, last.Kind)
			}
			if !last.Amount.Equal(decimal.NewFromInt(tt.wantAmount)) {
				t.Fatalf("expected compensation %d, got %s", tt.wantAmount, last.Amount)
			}
			if !last.Date.Equal(reconciliationDate) {
				t.Fatalf("expected compensation dated %s, got %s", reconciliationDate, last.Date)
			}
		})
	}
}

func TestSettle_RemoveExcessNarrative(t *testing.T) {
	s := Settle(decimal.NewFromInt(125), []Transaction{budget(175), actual(-75)}, reconciliationDate, seqIDs())
	if s.Compensation.Narrative != NarrativeRemoveExcess {
		t.Fatalf("expected narrative %q, got %q", NarrativeRemoveExcess, s.Compensation.Narrative)
	}
	if s.Compensation.ID != "txn-1" {
		t.Fatalf("expected generated ID txn-1, got %s", s.Compensation.ID)
	}
}

// Opening / budget / closing relationships, 1 meaning "greater".
func TestSettle_CompensationMatrix(t *testing.T) {
	tests := []struct {
		name      string
		opening   int64
		proposed  []Transaction
		wantCount int
	}{
		{"all zero", 0, nil, 0},
		{"opening above closing, no budget", 1, []Transaction{actual(-1)}, 1},
		{"budget above closing", 0, []Transaction{budget(1), actual(-1)}, 3},
		{"opening and budget above closing", 1, []Transaction{budget(1), actual(-2)}, 3},
		{"closing above opening and zero budget", 0, []Transaction{budget(0), actual(1)}, 3},
		{"closing equals opening", 1, []Transaction{budget(0), actual(1), actual(-1)}, 3},
		{"closing equals budget", 0, []Transaction{budget(1)}, 1},
		{"closing equals opening and budget", 125, []Transaction{budget(125), actual(-125)}, 2},
		{"budget equals closing below opening", 1, []Transaction{budget(1), actual(-1)}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Settle(decimal.NewFromInt(tt.opening), tt.proposed, reconciliationDate, seqIDs())
			if len(s.Transactions) != tt.wantCount {
				t.Fatalf("expected %d transactions, got %d", tt.wantCount, len(s.Transactions))
			}
		})
	}
}

func TestSettle_BudgetLineAlwaysSettlesToTarget(t *testing.T) {
	values := []int64{-50, 0, 1, 99, 125, 300}
	for _, o := range values {
		for _, g := range values {
			for _, delta := range values {
				proposed := []Transaction{budget(g), actual(delta)}
				s := Settle(decimal.NewFromInt(o), proposed, reconciliationDate, seqIDs())

				target := decimal.Max(decimal.NewFromInt(o), decimal.NewFromInt(g))
				if !s.Balance.Equal(target) {
					t.Fatalf("O=%d G=%d delta=%d: expected %s, got %s", o, g, delta, target, s.Balance)
				}
				added := len(s.Transactions) - len(proposed)
				if added != 0 && added != 1 {
					t.Fatalf("O=%d G=%d delta=%d: %d transactions added", o, g, delta, added)
				}
				if closing := decimal.NewFromInt(o + g + delta); closing.Equal(target) && added != 0 {
					t.Fatalf("O=%d G=%d delta=%d: closing equals target but compensation added", o, g, delta)
				}
			}
		}
	}
}

func TestSettle_NoBudgetLineNeverCompensates(t *testing.T) {
	for _, delta := range []int64{-500, -1, 0, 1, 500} {
		opening := decimal.NewFromInt(40)
		s := Settle(opening, []Transaction{actual(delta)}, reconciliationDate, seqIDs())
		if !s.Balance.Equal(opening.Add(decimal.NewFromInt(delta))) {
			t.Fatalf("delta=%d: expected %s, got %s", delta, opening.Add(decimal.NewFromInt(delta)), s.Balance)
		}
		if s.Compensation != nil || len(s.Transactions) != 1 {
			t.Fatalf("delta=%d: expected no synthesized transaction", delta)
		}
	}
}

func TestSettle_DoesNotMutateInput(t *testing.T) {
	proposed := make([]Transaction, 2, 10)
	proposed[0] = budget(175)
	proposed[1] = actual(-75)

	Settle(decimal.NewFromInt(125), proposed, reconciliationDate, seqIDs())

	if len(proposed) != 2 || proposed[:3][2].ID != "" {
		t.Fatal("expected proposed backing array to be untouched")
	}
}

func TestSettleStrict_RejectsInvalidBatches(t *testing.T) {
	tests := []struct {
		name     string
		proposed []Transaction
	}{
		{"two budget credits", []Transaction{budget(1), budget(2)}},
		{"caller supplied supplement", []Transaction{NewTransaction("s", KindSupplement, decimal.NewFromInt(5), "", reconciliationDate)}},
		{"balance adjustment", []Transaction{NewTransaction("a", KindBalanceAdjustment, decimal.NewFromInt(5), "", reconciliationDate)}},
		{"missing date", []Transaction{NewTransaction("d", KindActualDebit, decimal.NewFromInt(-5), "", time.Time{})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SettleStrict(decimal.Zero, tt.proposed, reconciliationDate, seqIDs())
			if err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
