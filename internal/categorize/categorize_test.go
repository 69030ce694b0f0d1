package categorize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mmynk/tripmate/internal/models"
)

func TestDefaultSuggest(t *testing.T) {
	c := Default()

	tests := []struct {
		desc    string
		current models.Category
		want    models.Category
	}{
		{desc: "USJ Tickets", current: models.CategoryOther, want: models.CategorySightseeing},
		{desc: "Museum entry", current: "", want: models.CategorySightseeing},
		{desc: "Airbnb Namba", current: models.CategoryOther, want: models.CategoryHotel},
		{desc: "JR Pass", current: models.CategoryOther, want: models.CategoryTransport},
		{desc: "計程車", current: models.CategoryOther, want: models.CategoryTransport},
		{desc: "Ramen lunch", current: models.CategoryOther, want: models.CategoryFood},
		{desc: "藥妝店", current: models.CategoryOther, want: models.CategoryShopping},
		{desc: "Museum cafe", current: models.CategoryOther, want: models.CategorySightseeing},
		{desc: "Coin locker", current: models.CategoryPrep, want: models.CategoryPrep},
		{desc: "", current: models.CategoryHotel, want: models.CategoryHotel},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := c.Suggest(tt.desc, tt.current); got != tt.want {
				t.Errorf("Suggest(%q) = %q, want %q", tt.desc, got, tt.want)
			}
		})
	}
}

func TestCustomRules(t *testing.T) {
	c, err := New([]Rule{
		{Category: models.CategoryHotel, When: `currency == "JPY" && amount >= 10000`},
		KeywordRule(models.CategoryPrep, "SIM"),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got := c.SuggestExpense(models.Expense{Description: "night", Amount: 12000, Currency: models.CurrencyJPY}); got != models.CategoryHotel {
		t.Errorf("expected amount rule to match, got %q", got)
	}
	if got := c.Suggest("eSIM card", ""); got != models.CategoryPrep {
		t.Errorf("expected keyword rule to match, got %q", got)
	}
}

func TestNewRejectsBadRules(t *testing.T) {
	if _, err := New([]Rule{{Category: models.CategoryFood, When: `desc +`}}); err == nil {
		t.Error("expected syntax error")
	}
	if _, err := New([]Rule{{Category: models.CategoryFood, When: `amount + 1`}}); err == nil {
		t.Error("expected non-boolean rule to be rejected")
	}
	if _, err := New([]Rule{{When: `true`}}); err == nil {
		t.Error("expected empty category to be rejected")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(path, []byte(`[{"category":"food","when":"desc contains \"onigiri\""}]`), 0644); err != nil {
		t.Fatalf("failed to write rules: %v", err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if got := c.Suggest("Onigiri x3", models.CategoryOther); got != models.CategoryFood {
		t.Errorf("got %q, want food", got)
	}
	if got := c.Suggest("train", models.CategoryOther); got != models.CategoryOther {
		t.Errorf("custom rules replace the defaults, got %q", got)
	}
}
