package enumerator

import (
	"os"
	"strconv"
)

// Budgets bounds the Reply Enumerator's scroll effort. Dev defaults are
// small to keep local runs and tests fast; production defaults are large
// enough to drain a genuinely long thread.
type Budgets struct {
	ReplyScrollDelayMs    int
	ScrollBudget          int
	ConsecutiveNoNewPhaseA int
	BottomSweepRounds     int
	BottomSweepNoNew      int
}

// DevBudgets returns the development defaults from SPEC_FULL.md §4.6.
func DevBudgets() Budgets {
	return Budgets{
		ReplyScrollDelayMs:     1200,
		ScrollBudget:           120,
		ConsecutiveNoNewPhaseA: 10,
		BottomSweepRounds:      30,
		BottomSweepNoNew:       6,
	}
}

// ProdBudgets returns the production defaults from SPEC_FULL.md §4.6.
func ProdBudgets() Budgets {
	return Budgets{
		ReplyScrollDelayMs:     4800,
		ScrollBudget:           1800,
		ConsecutiveNoNewPhaseA: 40,
		BottomSweepRounds:      120,
		BottomSweepNoNew:       20,
	}
}

// BudgetsFromEnv starts from base and overrides any field whose
// corresponding SCRAPER_* env var is set and parses as an integer.
func BudgetsFromEnv(base Budgets) Budgets {
	overrideInt(&base.ReplyScrollDelayMs, "SCRAPER_REPLY_SCROLL_DELAY_MS")
	overrideInt(&base.ConsecutiveNoNewPhaseA, "SCRAPER_MAX_SCROLLS_NO_NEW")
	overrideInt(&base.ScrollBudget, "SCRAPER_SCROLL_BUDGET")
	overrideInt(&base.BottomSweepNoNew, "SCRAPER_BOTTOM_NO_NEW")
	overrideInt(&base.BottomSweepRounds, "SCRAPER_BOTTOM_ROUNDS")
	return base
}

func overrideInt(dst *int, envVar string) {
	v := os.Getenv(envVar)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}
