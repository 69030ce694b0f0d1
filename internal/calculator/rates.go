package calculator

import (
	"fmt"
	"sort"

	"github.com/mmynk/tripmate/internal/models"
)

// RatesToTWD are fixed display rates: one unit of the currency in TWD.
var RatesToTWD = map[models.Currency]float64{
	models.CurrencyJPY: 0.21,
	models.CurrencyTWD: 1,
	models.CurrencyUSD: 31.5,
}

// Convert converts amount between two supported currencies.
func Convert(amount float64, from, to models.Currency) (float64, error) {
	fromRate, ok := RatesToTWD[from]
	if !ok {
		return 0, fmt.Errorf("unsupported currency: %s", from)
	}
	toRate, ok := RatesToTWD[to]
	if !ok {
		return 0, fmt.Errorf("unsupported currency: %s", to)
	}
	return amount * fromRate / toRate, nil
}

// CategoryTotal is the TWD-normalized spend of one category.
type CategoryTotal struct {
	Category models.Category `json:"category"`
	Value    float64         `json:"value"`
}

// CategoryBreakdown totals expenses per category in TWD, largest first.
// Expenses without a category count as "other"; unsupported currencies are skipped.
func CategoryBreakdown(expenses []models.Expense) []CategoryTotal {
	groups := make(map[models.Category]float64)
	for _, e := range expenses {
		twd, err := Convert(e.Amount, e.Currency, models.CurrencyTWD)
		if err != nil {
			continue
		}
		category := e.Category
		if category == "" {
			category = models.CategoryOther
		}
		groups[category] += twd
	}

	out := make([]CategoryTotal, 0, len(groups))
	for c, v := range groups {
		out = append(out, CategoryTotal{Category: c, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Category < out[j].Category
	})
	return out
}
