// Package categorize suggests expense categories from their descriptions
// using ordered expr-lang rules.
package categorize

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/mmynk/tripmate/internal/models"
)

// Rule assigns Category when the boolean expression When holds.
// Expressions see the fields of Input: desc, category, amount, currency.
type Rule struct {
	Category models.Category `json:"category"`
	When     string          `json:"when"`
}

// Input is the environment rules are evaluated against.
type Input struct {
	// Desc is the lowercased description.
	Desc     string  `expr:"desc"`
	Category string  `expr:"category"`
	Amount   float64 `expr:"amount"`
	Currency string  `expr:"currency"`
}

// keyword lists of the built-in rules, in priority order.
var defaultKeywords = []struct {
	category models.Category
	words    []string
}{
	{models.CategorySightseeing, []string{"ticket", "門票", "遊樂園", "museum"}},
	{models.CategoryHotel, []string{"hotel", "bnb", "住宿", "民宿"}},
	{models.CategoryTransport, []string{"train", "bus", "uber", "taxi", "車", "pass"}},
	{models.CategoryFood, []string{"food", "lunch", "dinner", "restaurant", "餐", "食", "cafe"}},
	{models.CategoryShopping, []string{"shop", "gift", "買", "藥妝"}},
}

// DefaultRules returns the built-in keyword rules.
func DefaultRules() []Rule {
	rules := make([]Rule, 0, len(defaultKeywords))
	for _, k := range defaultKeywords {
		rules = append(rules, KeywordRule(k.category, k.words...))
	}
	return rules
}

// KeywordRule matches descriptions containing any of words (case-insensitive).
func KeywordRule(category models.Category, words ...string) Rule {
	clauses := make([]string, len(words))
	for i, w := range words {
		clauses[i] = "desc contains " + strconv.Quote(strings.ToLower(w))
	}
	return Rule{Category: category, When: strings.Join(clauses, " or ")}
}

type compiledRule struct {
	category models.Category
	program  *vm.Program
}

// Categorizer evaluates rules in order; the first match wins.
type Categorizer struct {
	rules []compiledRule
}

// New compiles rules. Every rule must be a boolean expression over Input.
func New(rules []Rule) (*Categorizer, error) {
	c := &Categorizer{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		if r.Category == "" {
			return nil, fmt.Errorf("rule %d: category must not be empty", i)
		}
		program, err := expr.Compile(r.When, expr.Env(Input{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Category, err)
		}
		c.rules = append(c.rules, compiledRule{category: r.Category, program: program})
	}
	return c, nil
}

// Default returns a Categorizer over DefaultRules.
func Default() *Categorizer {
	c, err := New(DefaultRules())
	if err != nil {
		panic(fmt.Sprintf("built-in category rules do not compile: %v", err))
	}
	return c
}

// LoadFile reads a JSON array of rules from path.
func LoadFile(path string) (*Categorizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	return New(rules)
}

// Suggest returns the category of the first matching rule, or current when no
// rule matches or the description is empty.
func (c *Categorizer) Suggest(description string, current models.Category) models.Category {
	return c.SuggestExpense(models.Expense{Description: description, Category: current})
}

// SuggestExpense is Suggest with the amount and currency visible to rules.
func (c *Categorizer) SuggestExpense(e models.Expense) models.Category {
	if strings.TrimSpace(e.Description) == "" {
		return e.Category
	}
	in := Input{
		Desc:     strings.ToLower(e.Description),
		Category: string(e.Category),
		Amount:   e.Amount,
		Currency: string(e.Currency),
	}
	for _, r := range c.rules {
		out, err := expr.Run(r.program, in)
		if err != nil {
			continue
		}
		if matched, _ := out.(bool); matched {
			return r.category
		}
	}
	return e.Category
}
