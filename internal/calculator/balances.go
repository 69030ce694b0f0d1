package calculator

import (
	"sort"

	"github.com/mmynk/tripmate/internal/models"
)

// settleThreshold ignores floating point noise when matching debts.
const settleThreshold = 0.01

// MemberBalance is one person's position in one currency.
type MemberBalance struct {
	MemberName string          `json:"memberName"`
	Currency   models.Currency `json:"currency"`
	NetBalance float64         `json:"netBalance"` // Positive = owed money, Negative = owes money
	TotalPaid  float64         `json:"totalPaid"`
	TotalOwed  float64         `json:"totalOwed"`
}

// DebtEdge is a payment that settles part of the balances in one currency.
type DebtEdge struct {
	From     string          `json:"from"` // Person who owes
	To       string          `json:"to"`   // Person who is owed
	Amount   float64         `json:"amount"`
	Currency models.Currency `json:"currency"`
}

// Settlement is the full result of Settle.
type Settlement struct {
	// Balances holds one entry per person per currency used, ordered by person
	// (members first) then currency.
	Balances []MemberBalance `json:"balances"`
	Debts    []DebtEdge      `json:"debts"`

	// Skipped lists the ids of expenses that could not be split.
	Skipped []string `json:"skipped,omitempty"`
}

// Settle computes balances across all expenses, per currency. Currencies are
// never mixed; no conversion happens here.
//
// Algorithm:
// - For each expense: payer contributed +amount, each participant owes their share
// - Aggregate: net_balance = total_paid - total_owed
// - Debts: simplified per currency using greedy matching
//
// Names that are not members (removed or never added) are tolerated and get
// their own balances. Expenses that cannot be split are left out and listed
// in Skipped; the rest still settle.
func Settle(expenses []models.Expense, members []string) *Settlement {
	type key struct {
		name     string
		currency models.Currency
	}
	balances := make(map[key]*MemberBalance)
	get := func(name string, currency models.Currency) *MemberBalance {
		k := key{name, currency}
		if _, exists := balances[k]; !exists {
			balances[k] = &MemberBalance{MemberName: name, Currency: currency}
		}
		return balances[k]
	}

	var currencies []models.Currency
	var skipped []string
	seenCurrency := make(map[models.Currency]bool)

	for _, e := range expenses {
		// Skip expenses without payer (can't calculate balances)
		if e.Payer == "" {
			continue
		}

		shares, err := SplitExpense(e)
		if err != nil {
			skipped = append(skipped, e.ID)
			continue
		}

		if !seenCurrency[e.Currency] {
			seenCurrency[e.Currency] = true
			currencies = append(currencies, e.Currency)
		}

		get(e.Payer, e.Currency).TotalPaid += e.Amount
		for participant, share := range shares {
			get(participant, e.Currency).TotalOwed += share
		}
	}

	sort.Slice(currencies, func(i, j int) bool { return currencies[i] < currencies[j] })

	result := &Settlement{Balances: []MemberBalance{}, Debts: []DebtEdge{}, Skipped: skipped}
	for _, person := range People(expenses, members) {
		for _, c := range currencies {
			bal := get(person, c)
			bal.NetBalance = bal.TotalPaid - bal.TotalOwed
			result.Balances = append(result.Balances, *bal)
		}
	}

	result.Debts = SimplifyDebts(result.Balances)
	return result
}

// SimplifyDebts matches debtors with creditors, per currency, to minimize the
// number of payments. Largest debts are matched with largest credits first.
func SimplifyDebts(balances []MemberBalance) []DebtEdge {
	byCurrency := make(map[models.Currency][]MemberBalance)
	var currencies []models.Currency
	for _, b := range balances {
		if _, ok := byCurrency[b.Currency]; !ok {
			currencies = append(currencies, b.Currency)
		}
		byCurrency[b.Currency] = append(byCurrency[b.Currency], b)
	}
	sort.Slice(currencies, func(i, j int) bool { return currencies[i] < currencies[j] })

	debtEdges := []DebtEdge{}
	for _, c := range currencies {
		debtEdges = append(debtEdges, simplify(c, byCurrency[c])...)
	}
	return debtEdges
}

func simplify(currency models.Currency, balances []MemberBalance) []DebtEdge {
	// Create lists of creditors (owed money) and debtors (owe money)
	var creditors, debtors []MemberBalance
	for _, bal := range balances {
		if bal.NetBalance > settleThreshold {
			creditors = append(creditors, bal)
		} else if bal.NetBalance < -settleThreshold {
			debtors = append(debtors, bal)
		}
	}
	sort.SliceStable(creditors, func(i, j int) bool { return creditors[i].NetBalance > creditors[j].NetBalance })
	sort.SliceStable(debtors, func(i, j int) bool { return debtors[i].NetBalance < debtors[j].NetBalance })

	debtorBalance := make([]float64, len(debtors))
	for i, d := range debtors {
		debtorBalance[i] = -d.NetBalance // Make positive
	}
	creditorBalance := make([]float64, len(creditors))
	for i, c := range creditors {
		creditorBalance[i] = c.NetBalance
	}

	var edges []DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		// Amount to settle is minimum of what debtor owes and creditor is owed
		amount := min(debtorBalance[i], creditorBalance[j])
		if amount > settleThreshold {
			edges = append(edges, DebtEdge{
				From:     debtors[i].MemberName,
				To:       creditors[j].MemberName,
				Amount:   amount,
				Currency: currency,
			})
		}

		debtorBalance[i] -= amount
		creditorBalance[j] -= amount

		// Move to next debtor/creditor if fully settled
		if debtorBalance[i] < settleThreshold {
			i++
		}
		if creditorBalance[j] < settleThreshold {
			j++
		}
	}
	return edges
}
