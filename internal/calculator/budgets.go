package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BudgetForProgress represents a budget with the minimal information needed for progress calculations.
type BudgetForProgress struct {
	ID         string
	CategoryID string
	Amount     decimal.Decimal
	StartsOn   string // YYYY-MM-DD, inclusive
	EndsOn     string // YYYY-MM-DD, inclusive
}

// BudgetProgress is how much of a budget has been spent.
type BudgetProgress struct {
	BudgetID  string
	Spent     decimal.Decimal
	Remaining decimal.Decimal // Negative when over budget
	Percent   decimal.Decimal // Spent / Amount * 100, two decimals
	Over      bool
}

// CalculateBudgetProgress sums expenses in each budget's category that fall
// inside its date window. Dates compare as YYYY-MM-DD strings.
func CalculateBudgetProgress(budgets []BudgetForProgress, txs []TransactionForBalance) ([]BudgetProgress, error) {
	hundred := decimal.NewFromInt(100)
	out := make([]BudgetProgress, 0, len(budgets))

	for _, b := range budgets {
		if !b.Amount.IsPositive() {
			return nil, fmt.Errorf("budget %s amount must be positive", b.ID)
		}

		spent := decimal.Zero
		for _, tx := range txs {
			if tx.Kind != Expense || tx.CategoryID != b.CategoryID {
				continue
			}
			if tx.OccurredOn < b.StartsOn || tx.OccurredOn > b.EndsOn {
				continue
			}
			spent = spent.Add(tx.Amount)
		}

		remaining := b.Amount.Sub(spent)
		out = append(out, BudgetProgress{
			BudgetID:  b.ID,
			Spent:     spent,
			Remaining: remaining,
			Percent:   spent.Div(b.Amount).Mul(hundred).Round(2),
			Over:      remaining.IsNegative(),
		})
	}

	return out, nil
}
