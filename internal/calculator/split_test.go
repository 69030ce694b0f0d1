package calculator

import (
	"math"
	"reflect"
	"testing"

	"github.com/mmynk/tripmate/internal/models"
)

func TestSplitExpense(t *testing.T) {
	tests := []struct {
		name         string
		expense      models.Expense
		wantErr      bool
		validateFunc func(t *testing.T, shares map[string]float64)
	}{
		{
			name:    "even split between two",
			expense: models.Expense{Amount: 3000, Payer: "Alice", SplitWith: []string{"Alice", "Bob"}},
			validateFunc: func(t *testing.T, shares map[string]float64) {
				if math.Abs(shares["Alice"]-1500) > 0.01 {
					t.Errorf("Alice share = %v, want 1500", shares["Alice"])
				}
				if math.Abs(shares["Bob"]-1500) > 0.01 {
					t.Errorf("Bob share = %v, want 1500", shares["Bob"])
				}
			},
		},
		{
			name:    "empty split means payer alone",
			expense: models.Expense{Amount: 8400, Payer: "me", SplitWith: []string{}},
			validateFunc: func(t *testing.T, shares map[string]float64) {
				if len(shares) != 1 || math.Abs(shares["me"]-8400) > 0.01 {
					t.Errorf("shares = %v, want only me=8400", shares)
				}
			},
		},
		{
			name:    "payer not in split owes nothing",
			expense: models.Expense{Amount: 90, Payer: "Alice", SplitWith: []string{"Bob", "Carol", "Dave"}},
			validateFunc: func(t *testing.T, shares map[string]float64) {
				if _, ok := shares["Alice"]; ok {
					t.Errorf("Alice should not owe a share")
				}
				for _, p := range []string{"Bob", "Carol", "Dave"} {
					if math.Abs(shares[p]-30) > 0.01 {
						t.Errorf("%s share = %v, want 30", p, shares[p])
					}
				}
			},
		},
		{
			name:    "negative amount is a refund",
			expense: models.Expense{Amount: -200, Payer: "Bob", SplitWith: []string{"me", "Bob"}},
			validateFunc: func(t *testing.T, shares map[string]float64) {
				if math.Abs(shares["me"]+100) > 0.01 || math.Abs(shares["Bob"]+100) > 0.01 {
					t.Errorf("shares = %v, want me=-100 Bob=-100", shares)
				}
			},
		},
		{
			name:    "non-finite amount should error",
			expense: models.Expense{Amount: math.NaN(), Payer: "Alice"},
			wantErr: true,
		},
		{
			name:    "no payer and no split should error",
			expense: models.Expense{Amount: 10},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := SplitExpense(tt.expense)
			if (err != nil) != tt.wantErr {
				t.Errorf("SplitExpense() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tt.validateFunc != nil {
				tt.validateFunc(t, shares)
			}
		})
	}
}

func TestTotals(t *testing.T) {
	totals := Totals([]models.Expense{
		{Amount: 100, Currency: models.CurrencyJPY},
		{Amount: 250, Currency: models.CurrencyJPY},
		{Amount: 30, Currency: models.CurrencyTWD},
	})
	if totals[models.CurrencyJPY] != 350 || totals[models.CurrencyTWD] != 30 {
		t.Errorf("Totals() = %v", totals)
	}
}

func TestPeople(t *testing.T) {
	got := People([]models.Expense{
		{Payer: "Zed", SplitWith: []string{"me", "Ghost"}},
		{Payer: "me"},
	}, []string{"me", "Alice"})

	want := []string{"me", "Alice", "Zed", "Ghost"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("People() = %v, want %v", got, want)
	}
}
