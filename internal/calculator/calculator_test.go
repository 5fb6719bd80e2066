package calculator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateWalletBalances(t *testing.T) {
	wallets := []WalletForBalance{
		{ID: "cash", InitialBalance: d("100")},
		{ID: "bank", InitialBalance: d("0")},
	}
	txs := []TransactionForBalance{
		{WalletID: "cash", Kind: Expense, Amount: d("12.50")},
		{WalletID: "cash", Kind: Income, Amount: d("2.50")},
		{WalletID: "bank", Kind: Income, Amount: d("1000")},
		{WalletID: "unknown", Kind: Income, Amount: d("5")},
	}

	balances := CalculateWalletBalances(wallets, txs)
	if len(balances) != 2 {
		t.Fatalf("got %d balances, want 2", len(balances))
	}

	tests := []struct {
		idx     int
		id      string
		balance string
		income  string
		expense string
	}{
		{0, "cash", "90", "2.5", "12.5"},
		{1, "bank", "1000", "1000", "0"},
	}
	for _, tt := range tests {
		got := balances[tt.idx]
		if got.WalletID != tt.id {
			t.Errorf("balances[%d].WalletID = %s, want %s", tt.idx, got.WalletID, tt.id)
		}
		if !got.Balance.Equal(d(tt.balance)) {
			t.Errorf("%s balance = %s, want %s", tt.id, got.Balance, tt.balance)
		}
		if !got.TotalIncome.Equal(d(tt.income)) {
			t.Errorf("%s income = %s, want %s", tt.id, got.TotalIncome, tt.income)
		}
		if !got.TotalExpense.Equal(d(tt.expense)) {
			t.Errorf("%s expense = %s, want %s", tt.id, got.TotalExpense, tt.expense)
		}
	}

	if total := TotalBalance(balances); !total.Equal(d("1090")) {
		t.Errorf("TotalBalance = %s, want 1090", total)
	}
}

func TestSummarizeByCategory(t *testing.T) {
	txs := []TransactionForBalance{
		{CategoryID: "food", Kind: Expense, Amount: d("10")},
		{CategoryID: "food", Kind: Expense, Amount: d("15")},
		{CategoryID: "rent", Kind: Expense, Amount: d("500")},
		{CategoryID: "", Kind: Income, Amount: d("1")},
	}

	got := SummarizeByCategory(txs)
	if len(got) != 3 {
		t.Fatalf("got %d totals, want 3", len(got))
	}
	if got[0].CategoryID != "rent" || !got[0].Amount.Equal(d("500")) {
		t.Errorf("first total = %+v, want rent 500", got[0])
	}
	if got[1].CategoryID != "food" || !got[1].Amount.Equal(d("25")) {
		t.Errorf("second total = %+v, want food 25", got[1])
	}
}

func TestCalculateBudgetProgress(t *testing.T) {
	budgets := []BudgetForProgress{
		{ID: "b1", CategoryID: "food", Amount: d("100"), StartsOn: "2026-10-01", EndsOn: "2026-10-31"},
	}
	txs := []TransactionForBalance{
		{CategoryID: "food", Kind: Expense, Amount: d("40"), OccurredOn: "2026-10-01"},
		{CategoryID: "food", Kind: Expense, Amount: d("80"), OccurredOn: "2026-10-31"},
		{CategoryID: "food", Kind: Expense, Amount: d("999"), OccurredOn: "2026-11-01"},
		{CategoryID: "food", Kind: Income, Amount: d("50"), OccurredOn: "2026-10-10"},
		{CategoryID: "rent", Kind: Expense, Amount: d("500"), OccurredOn: "2026-10-10"},
	}

	progress, err := CalculateBudgetProgress(budgets, txs)
	if err != nil {
		t.Fatalf("CalculateBudgetProgress() error = %v", err)
	}
	got := progress[0]
	if !got.Spent.Equal(d("120")) {
		t.Errorf("Spent = %s, want 120", got.Spent)
	}
	if !got.Remaining.Equal(d("-20")) {
		t.Errorf("Remaining = %s, want -20", got.Remaining)
	}
	if !got.Percent.Equal(d("120")) {
		t.Errorf("Percent = %s, want 120", got.Percent)
	}
	if !got.Over {
		t.Error("Over = false, want true")
	}

	if _, err := CalculateBudgetProgress([]BudgetForProgress{{ID: "zero"}}, nil); err == nil {
		t.Error("expected error for zero budget amount")
	}
}

func TestCalculateLoanOutstanding(t *testing.T) {
	loans := []LoanForOutstanding{
		{ID: "l1", Direction: Lent, Amount: d("100"), Paid: d("30")},
		{ID: "l2", Direction: Borrowed, Amount: d("50"), Paid: d("0")},
		{ID: "l3", Direction: Lent, Amount: d("20"), Paid: d("25")},
	}

	summary := CalculateLoanOutstanding(loans)

	if !summary.Outstanding["l1"].Equal(d("70")) {
		t.Errorf("l1 outstanding = %s, want 70", summary.Outstanding["l1"])
	}
	if !summary.Outstanding["l3"].IsZero() {
		t.Errorf("l3 outstanding = %s, want 0", summary.Outstanding["l3"])
	}
	if !summary.Receivable.Equal(d("70")) {
		t.Errorf("Receivable = %s, want 70", summary.Receivable)
	}
	if !summary.Payable.Equal(d("50")) {
		t.Errorf("Payable = %s, want 50", summary.Payable)
	}
	if !summary.Net.Equal(d("20")) {
		t.Errorf("Net = %s, want 20", summary.Net)
	}
}
