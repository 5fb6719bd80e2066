package resource

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/lifeboard/internal/apperr"
	"github.com/mmynk/lifeboard/internal/backend"
	"github.com/mmynk/lifeboard/internal/calculator"
	"github.com/mmynk/lifeboard/internal/models"
	"github.com/mmynk/lifeboard/internal/storage"
)

// Wallets is the wallet hook.
type Wallets struct {
	*Collection[models.Wallet, models.WalletDraft]
	transactions *Transactions
}

// WalletWithBalance is a wallet with its derived balance.
type WalletWithBalance struct {
	models.Wallet
	calculator.WalletBalance
}

// Balances returns every wallet of the active tenancy with its balance
// derived from its transactions.
func (w *Wallets) Balances(ctx context.Context) ([]WalletWithBalance, error) {
	wallets, err := w.List(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := w.transactions.List(ctx)
	if err != nil {
		return nil, err
	}

	inputs := make([]calculator.WalletForBalance, len(wallets))
	for i, wallet := range wallets {
		inputs[i] = calculator.WalletForBalance{ID: wallet.ID, InitialBalance: wallet.InitialBalance}
	}
	balances := calculator.CalculateWalletBalances(inputs, forBalance(txs))

	out := make([]WalletWithBalance, len(wallets))
	for i := range wallets {
		out[i] = WalletWithBalance{Wallet: wallets[i], WalletBalance: balances[i]}
	}
	return out, nil
}

// Categories is the category hook.
type Categories struct {
	*Collection[models.Category, models.CategoryDraft]
}

// Transactions is the transaction hook.
type Transactions struct {
	*Collection[models.Transaction, models.TransactionDraft]
}

// TransactionFilter narrows a transaction listing. Dates are inclusive
// YYYY-MM-DD bounds; zero values do not filter.
type TransactionFilter struct {
	WalletID   string
	CategoryID string
	From       string
	To         string
	Limit      int
	Offset     int
}

func (f TransactionFilter) filters() []backend.Filter {
	var out []backend.Filter
	if f.WalletID != "" {
		out = append(out, backend.Eq("wallet_id", f.WalletID))
	}
	if f.CategoryID != "" {
		out = append(out, backend.Eq("category_id", f.CategoryID))
	}
	if f.From != "" {
		out = append(out, backend.Gte("occurred_on", f.From))
	}
	if f.To != "" {
		out = append(out, backend.Lte("occurred_on", f.To))
	}
	return out
}

func (f TransactionFilter) variant() string {
	parts := []string{
		"wallet=" + f.WalletID,
		"category=" + f.CategoryID,
		"from=" + f.From,
		"to=" + f.To,
		fmt.Sprintf("range=%d+%d", f.Offset, f.Limit),
	}
	return strings.Join(parts, ";")
}

// ListFiltered returns one page of transactions matching f.
func (t *Transactions) ListFiltered(ctx context.Context, f TransactionFilter) ([]models.Transaction, error) {
	return t.query(ctx, f.variant(), f.filters(), f.Limit, f.Offset)
}

// ByCategory totals the active tenancy's transactions per category.
func (t *Transactions) ByCategory(ctx context.Context) ([]calculator.CategoryTotal, error) {
	txs, err := t.List(ctx)
	if err != nil {
		return nil, err
	}
	return calculator.SummarizeByCategory(forBalance(txs)), nil
}

func forBalance(txs []models.Transaction) []calculator.TransactionForBalance {
	out := make([]calculator.TransactionForBalance, len(txs))
	for i, tx := range txs {
		category := ""
		if tx.CategoryID != nil {
			category = *tx.CategoryID
		}
		out[i] = calculator.TransactionForBalance{
			WalletID:   tx.WalletID,
			CategoryID: category,
			Kind:       tx.Kind,
			Amount:     tx.Amount,
			OccurredOn: tx.OccurredOn,
		}
	}
	return out
}

// Budgets is the budget hook.
type Budgets struct {
	*Collection[models.Budget, models.BudgetDraft]
	transactions *Transactions
}

// BudgetWithProgress is a budget with its spending so far.
type BudgetWithProgress struct {
	models.Budget
	calculator.BudgetProgress
}

// Progress returns every budget with the expenses counted against it.
func (b *Budgets) Progress(ctx context.Context) ([]BudgetWithProgress, error) {
	budgets, err := b.List(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := b.transactions.List(ctx)
	if err != nil {
		return nil, err
	}

	inputs := make([]calculator.BudgetForProgress, len(budgets))
	for i, budget := range budgets {
		inputs[i] = calculator.BudgetForProgress{
			ID:         budget.ID,
			CategoryID: budget.CategoryID,
			Amount:     budget.Amount,
			StartsOn:   budget.StartsOn,
			EndsOn:     budget.EndsOn,
		}
	}
	progress, err := calculator.CalculateBudgetProgress(inputs, forBalance(txs))
	if err != nil {
		return nil, err
	}

	out := make([]BudgetWithProgress, len(budgets))
	for i := range budgets {
		out[i] = BudgetWithProgress{Budget: budgets[i], BudgetProgress: progress[i]}
	}
	return out, nil
}

// Loans is the loan hook.
type Loans struct {
	*Collection[models.Loan, models.LoanDraft]
}

// Summary returns what is still open across the active tenancy's loans.
func (l *Loans) Summary(ctx context.Context) (calculator.LoanSummary, error) {
	loans, err := l.List(ctx)
	if err != nil {
		return calculator.LoanSummary{}, err
	}
	inputs := make([]calculator.LoanForOutstanding, len(loans))
	for i, loan := range loans {
		inputs[i] = calculator.LoanForOutstanding{
			ID:        loan.ID,
			Direction: loan.Direction,
			Amount:    loan.Amount,
			Paid:      loan.Paid,
		}
	}
	return calculator.CalculateLoanOutstanding(inputs), nil
}

// RecordPayment adds amount to what has been paid on loan id. The loan is
// read from the backend, not the cache; concurrent payments on one loan are
// still last-write-wins.
func (l *Loans) RecordPayment(ctx context.Context, id string, amount decimal.Decimal) (*models.Loan, error) {
	if !amount.IsPositive() {
		return nil, apperr.FieldInvalid("amount", "payment must be greater than zero")
	}
	loan, err := l.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	paid := loan.Paid.Add(amount)
	if paid.GreaterThan(loan.Amount) {
		return nil, apperr.FieldInvalid("amount", "payment exceeds what is still owed")
	}
	return l.Update(ctx, id, backend.Row{"paid": paid.String()})
}

var walletSpec = Spec{Kind: KindWallets, Table: storage.TableWallets, Noun: "wallet", Partitioned: true}

var categorySpec = Spec{
	Kind:        KindCategories,
	Table:       storage.TableCategories,
	Noun:        "category",
	Partitioned: true,
	Order:       []backend.Order{backend.Asc("name")},
}

var transactionSpec = Spec{
	Kind:        KindTransactions,
	Table:       storage.TableTransactions,
	Noun:        "transaction",
	Partitioned: true,
	Order:       []backend.Order{backend.Desc("occurred_on"), backend.Desc(storage.ColCreatedAt)},
}

var budgetSpec = Spec{Kind: KindBudgets, Table: storage.TableBudgets, Noun: "budget", Partitioned: true}

var loanSpec = Spec{Kind: KindLoans, Table: storage.TableLoans, Noun: "loan", Partitioned: true}
