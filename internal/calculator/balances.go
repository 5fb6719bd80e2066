package calculator

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Transaction kinds understood by the calculator.
const (
	Income  = "income"
	Expense = "expense"
)

// WalletForBalance represents a wallet with the minimal information needed for balance calculations.
type WalletForBalance struct {
	ID             string
	InitialBalance decimal.Decimal
}

// TransactionForBalance represents a transaction with the minimal information needed for balance calculations.
type TransactionForBalance struct {
	WalletID   string
	CategoryID string
	Kind       string // Income or Expense
	Amount     decimal.Decimal
	OccurredOn string // YYYY-MM-DD
}

// WalletBalance is the derived balance of one wallet.
type WalletBalance struct {
	WalletID     string
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Balance      decimal.Decimal // InitialBalance + TotalIncome - TotalExpense
}

// CalculateWalletBalances derives the current balance of every wallet from
// its initial balance and its transactions.
//
// Algorithm:
// - Start each wallet at its initial balance
// - Income adds to the wallet, expense subtracts from it
// - Transactions for wallets not in the list are ignored
//
// The result keeps the order of wallets.
func CalculateWalletBalances(wallets []WalletForBalance, txs []TransactionForBalance) []WalletBalance {
	index := make(map[string]int, len(wallets))
	balances := make([]WalletBalance, len(wallets))
	for i, w := range wallets {
		index[w.ID] = i
		balances[i] = WalletBalance{
			WalletID:     w.ID,
			TotalIncome:  decimal.Zero,
			TotalExpense: decimal.Zero,
			Balance:      w.InitialBalance,
		}
	}

	for _, tx := range txs {
		i, ok := index[tx.WalletID]
		if !ok {
			continue
		}
		switch tx.Kind {
		case Income:
			balances[i].TotalIncome = balances[i].TotalIncome.Add(tx.Amount)
			balances[i].Balance = balances[i].Balance.Add(tx.Amount)
		case Expense:
			balances[i].TotalExpense = balances[i].TotalExpense.Add(tx.Amount)
			balances[i].Balance = balances[i].Balance.Sub(tx.Amount)
		}
	}

	return balances
}

// TotalBalance sums the balances of all wallets. Mixed currencies are the
// caller's problem; the calculator only adds numbers.
func TotalBalance(balances []WalletBalance) decimal.Decimal {
	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.Balance)
	}
	return total
}

// CategoryTotal is the amount moved in one category.
type CategoryTotal struct {
	CategoryID string
	Kind       string
	Amount     decimal.Decimal
}

// SummarizeByCategory totals transactions per (category, kind), largest
// amount first. Uncategorized transactions are grouped under "".
func SummarizeByCategory(txs []TransactionForBalance) []CategoryTotal {
	type key struct{ category, kind string }
	totals := make(map[key]decimal.Decimal)
	for _, tx := range txs {
		k := key{tx.CategoryID, tx.Kind}
		totals[k] = totals[k].Add(tx.Amount)
	}

	out := make([]CategoryTotal, 0, len(totals))
	for k, amount := range totals {
		out = append(out, CategoryTotal{CategoryID: k.category, Kind: k.kind, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		if out[i].CategoryID != out[j].CategoryID {
			return out[i].CategoryID < out[j].CategoryID
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
