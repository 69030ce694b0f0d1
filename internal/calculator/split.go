package calculator

import (
	"fmt"
	"math"

	"github.com/mmynk/tripmate/internal/models"
)

// SplitExpense computes how much each participant owes for one expense.
// The amount is divided evenly; an empty split list means the payer alone.
// A name listed twice owes two shares. A negative amount is a refund and
// yields negative shares.
func SplitExpense(e models.Expense) (map[string]float64, error) {
	if math.IsNaN(e.Amount) || math.IsInf(e.Amount, 0) {
		return nil, fmt.Errorf("amount is not a finite number: %v", e.Amount)
	}
	participants := e.Participants()
	if len(participants) == 0 || (len(participants) == 1 && participants[0] == "") {
		return nil, fmt.Errorf("must have at least one participant")
	}

	perPerson := e.Amount / float64(len(participants))
	shares := make(map[string]float64, len(participants))
	for _, p := range participants {
		shares[p] += perPerson
	}
	return shares, nil
}

// Totals sums expense amounts per currency.
func Totals(expenses []models.Expense) map[models.Currency]float64 {
	totals := make(map[models.Currency]float64)
	for _, e := range expenses {
		totals[e.Currency] += e.Amount
	}
	return totals
}

// People returns members followed by every other name referenced as payer or
// split participant, in first-seen order without duplicates.
func People(expenses []models.Expense, members []string) []string {
	seen := make(map[string]bool)
	var people []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		people = append(people, name)
	}
	for _, m := range members {
		add(m)
	}
	for _, e := range expenses {
		add(e.Payer)
		for _, p := range e.SplitWith {
			add(p)
		}
	}
	return people
}
